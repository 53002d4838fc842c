package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/arnold/kanban-live/internal/handlers"
	"github.com/arnold/kanban-live/internal/middleware"
)

func Setup(app *fiber.App, h *handlers.Handler, secret string) {
	api := app.Group("/api")
	protected := middleware.Protected(secret)

	users := api.Group("/users")
	users.Post("/", h.CreateUser)
	users.Get("/online", h.GetOnlineUsers)
	users.Get("/:username", h.GetUser)

	boards := api.Group("/boards")
	boards.Get("/", h.GetBoards)
	boards.Get("/default", h.GetDefaultBoard)
	boards.Get("/:id", h.GetBoard)
	boards.Get("/:id/activity", h.GetBoardActivity)
	boards.Post("/", protected, h.CreateBoard)
	boards.Patch("/:id", protected, h.UpdateBoard)
	boards.Delete("/:id", protected, h.DeleteBoard)

	columns := api.Group("/columns")
	columns.Get("/", h.GetColumns)
	columns.Get("/:id", h.GetColumn)
	columns.Post("/", protected, h.CreateColumn)
	columns.Patch("/:id", protected, h.UpdateColumn)
	columns.Patch("/:id/move", protected, h.MoveColumn)
	columns.Delete("/:id", protected, h.DeleteColumn)

	cards := api.Group("/cards")
	cards.Get("/", h.GetCards)
	cards.Get("/:id", h.GetCard)
	cards.Post("/", protected, h.CreateCard)
	cards.Patch("/:id", protected, h.UpdateCard)
	cards.Patch("/:id/move", protected, h.MoveCard)
	cards.Delete("/:id", protected, h.DeleteCard)

	api.Post("/export/backlog", protected, h.ExportBacklog)

	notifications := api.Group("/notifications", protected)
	notifications.Get("/", h.GetNotifications)
	notifications.Put("/:id/read", h.MarkNotificationRead)
	notifications.Post("/read-all", h.MarkAllRead)

	// Device token for push notifications
	api.Post("/device-token", protected, h.RegisterDeviceToken)

	// Realtime sessions; login happens over the socket
	app.Use("/ws", handlers.WebSocketUpgrade())
	app.Get("/ws", websocket.New(h.HandleWebSocket))
}
