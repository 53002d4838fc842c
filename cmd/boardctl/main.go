package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"

	"github.com/arnold/kanban-live/internal/apiclient"
	"github.com/arnold/kanban-live/internal/models"
	"github.com/arnold/kanban-live/internal/protocol"
	"github.com/arnold/kanban-live/internal/reconcile"
)

const BoardCtlVersion = "0.1.0"

func main() {
	usage := `Kanban board control.

Usage:
    boardctl show [--output=<format>] [--server=<url>]
    boardctl online [--server=<url>]
    boardctl watch --user=<user> [--email=<email>] [--name=<name>] [--server=<url>]
    boardctl add-column <name> --user=<user> [--email=<email>] [--name=<name>] [--server=<url>]
    boardctl add-card <column> <title> --user=<user> [--priority=<priority>] [--email=<email>] [--name=<name>] [--server=<url>]
    boardctl move <card> <column> <position> --user=<user> [--email=<email>] [--name=<name>] [--server=<url>]
    boardctl move-column <column> <position> --user=<user> [--email=<email>] [--name=<name>] [--server=<url>]
    boardctl assign <card> <assignee> --user=<user> [--email=<email>] [--name=<name>] [--server=<url>]
    boardctl rm-card <card> --user=<user> [--email=<email>] [--name=<name>] [--server=<url>]
    boardctl rm-column <column> --user=<user> [--email=<email>] [--name=<name>] [--server=<url>]

Cards and columns are named by id or by title.

Options:
    -h --help               Show this screen.
    --version               Show version.
    --server=<url>          Server base URL [default: http://localhost:3000].
    --user=<user>           Username to sign in as.
    --email=<email>         Email for first sign in.
    --name=<name>           Display name.
    --priority=<priority>   Card priority: low, medium, high or urgent [default: medium].
    --output=<format>       Output format: text, json or yaml [default: text].
    `

	opts, err := docopt.ParseArgs(usage, os.Args[1:], BoardCtlVersion)
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintln(os.Stderr, "boardctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts docopt.Opts) error {
	server, _ := opts.String("--server")

	if show, _ := opts.Bool("show"); show {
		api := apiclient.NewHTTP(server, requestTimeout)
		board, err := api.DefaultBoard(ctx)
		if err != nil {
			return err
		}
		return writeBoard(os.Stdout, *board, arg(opts, "--output"))
	}
	if online, _ := opts.Bool("online"); online {
		users, err := apiclient.NewHTTP(server, requestTimeout).OnlineUsers(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			fmt.Printf("%-16s %s\n", u.Username, u.DisplayName)
		}
		return nil
	}

	conn, err := connect(ctx, server, loginFrom(opts))
	if err != nil {
		return err
	}
	defer conn.Close()
	board := conn.client.Engine().Snapshot()

	switch {
	case flag(opts, "watch"):
		return watch(ctx, conn)

	case flag(opts, "add-column"):
		name, _ := opts.String("<name>")
		col, err := conn.client.CreateColumn(ctx, models.CreateColumnRequest{Name: name, BoardID: board.ID})
		if err != nil {
			return err
		}
		fmt.Printf("created column %s\n", col.ID)

	case flag(opts, "add-card"):
		col, err := resolveColumn(board, arg(opts, "<column>"))
		if err != nil {
			return err
		}
		priority, _ := opts.String("--priority")
		card, err := conn.client.CreateCard(ctx, models.CreateCardRequest{
			Title:    arg(opts, "<title>"),
			ColumnID: col.ID,
			Priority: models.Priority(priority),
		})
		if err != nil {
			return err
		}
		fmt.Printf("created card %s\n", card.ID)

	case flag(opts, "move"):
		card, err := resolveCard(board, arg(opts, "<card>"))
		if err != nil {
			return err
		}
		col, err := resolveColumn(board, arg(opts, "<column>"))
		if err != nil {
			return err
		}
		to, err := strconv.Atoi(arg(opts, "<position>"))
		if err != nil || to < 0 {
			return fmt.Errorf("position must be a non-negative integer")
		}
		if _, err := conn.client.MoveCard(ctx, card.ID, col.ID, to); err != nil {
			return err
		}

	case flag(opts, "move-column"):
		col, err := resolveColumn(board, arg(opts, "<column>"))
		if err != nil {
			return err
		}
		to, err := strconv.Atoi(arg(opts, "<position>"))
		if err != nil || to < 0 {
			return fmt.Errorf("position must be a non-negative integer")
		}
		if _, err := conn.client.MoveColumn(ctx, col.ID, to); err != nil {
			return err
		}

	case flag(opts, "assign"):
		card, err := resolveCard(board, arg(opts, "<card>"))
		if err != nil {
			return err
		}
		assignee := arg(opts, "<assignee>")
		if _, err := conn.client.UpdateCard(ctx, card.ID, models.CardPatch{AssignedTo: &assignee}); err != nil {
			return err
		}

	case flag(opts, "rm-card"):
		card, err := resolveCard(board, arg(opts, "<card>"))
		if err != nil {
			return err
		}
		if err := conn.client.DeleteCard(ctx, card.ID); err != nil {
			return err
		}

	case flag(opts, "rm-column"):
		col, err := resolveColumn(board, arg(opts, "<column>"))
		if err != nil {
			return err
		}
		if err := conn.client.DeleteColumn(ctx, col.ID); err != nil {
			return err
		}
	}

	printBoard(os.Stdout, conn.client.Engine().Snapshot())
	return nil
}

// watch prints the board every time a peer's change is merged.
func watch(ctx context.Context, conn *connection) error {
	printBoard(os.Stdout, conn.client.Engine().Snapshot())
	err := conn.socket.Listen(ctx, func(frame []byte) {
		outcome, err := conn.client.Receive(frame)
		if err != nil || outcome != reconcile.Applied {
			return
		}
		env, _ := protocol.Decode(frame)
		fmt.Printf("\n%s %s\n", time.Now().Format(time.TimeOnly), env.Event)
		if env.Event == protocol.EventUserConnected || env.Event == protocol.EventUserDisconnected {
			fmt.Printf("online: %v\n", conn.client.Engine().Online())
			return
		}
		printBoard(os.Stdout, conn.client.Engine().Snapshot())
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func flag(opts docopt.Opts, name string) bool {
	v, _ := opts.Bool(name)
	return v
}

func arg(opts docopt.Opts, name string) string {
	v, _ := opts.String(name)
	return v
}

func loginFrom(opts docopt.Opts) protocol.LoginRequest {
	req := protocol.LoginRequest{
		Username:    arg(opts, "--user"),
		DisplayName: arg(opts, "--name"),
		Email:       arg(opts, "--email"),
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}
	if req.Email == "" {
		req.Email = req.Username + "@kanban.local"
	}
	return req
}
