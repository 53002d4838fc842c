package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/golang/glog"

	"github.com/arnold/kanban-live/internal/config"
	"github.com/arnold/kanban-live/internal/database"
	"github.com/arnold/kanban-live/internal/dispatch"
	"github.com/arnold/kanban-live/internal/export"
	"github.com/arnold/kanban-live/internal/handlers"
	"github.com/arnold/kanban-live/internal/middleware"
	"github.com/arnold/kanban-live/internal/presence"
	"github.com/arnold/kanban-live/internal/realtime"
	"github.com/arnold/kanban-live/internal/routes"
	"github.com/arnold/kanban-live/internal/services"
	"github.com/arnold/kanban-live/internal/session"
	"github.com/arnold/kanban-live/internal/store"
)

func main() {
	envFile := flag.String("env", ".env", "optional env file")
	flag.Parse()
	defer glog.Flush()

	cfg, err := config.Load(*envFile)
	if err != nil {
		glog.Exitf("config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		glog.Exitf("database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		glog.Exitf("migrate: %v", err)
	}

	ctx := context.Background()
	s := store.New(db)
	// No connection survives a restart.
	if err := s.ResetPresence(ctx); err != nil {
		glog.Warningf("reset presence: %v", err)
	}

	hub := realtime.NewHub()
	registry := presence.New(s)
	issue := func(username, connectionID string) (string, error) {
		return middleware.GenerateToken(cfg.JWTSecret, username, connectionID)
	}
	sessions := session.NewHandler(s, s, hub, registry, issue)

	push := services.InitPush(ctx, cfg.FCMServiceAccount, s)
	gateway := dispatch.New(s, hub,
		dispatch.WithNotifier(services.NewNotificationService(s, push)),
		dispatch.WithDefaultBoardName(cfg.DefaultBoardName),
	)
	exporter := export.New(s, cfg.ExportWebhookURL, cfg.ExportTimeout)

	app := fiber.New(fiber.Config{
		AppName: "kanban-live",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigin,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + middleware.ConnectionHeader,
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	routes.Setup(app, handlers.New(s, gateway, exporter, sessions), cfg.JWTSecret)

	go func() {
		glog.Infof("listening on %s", cfg.Addr())
		if err := app.Listen(cfg.Addr()); err != nil {
			glog.Errorf("listen: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	glog.Info("shutting down")
	// Closing the hub ends every write pump, which unblocks the socket handlers.
	hub.Close()
	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		glog.Warningf("shutdown: %v", err)
	}
	registry.Close(ctx)
	if err := s.ResetPresence(ctx); err != nil {
		glog.Warningf("reset presence: %v", err)
	}
}
