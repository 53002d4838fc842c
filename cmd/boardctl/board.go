package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/arnold/kanban-live/internal/apiclient"
	"github.com/arnold/kanban-live/internal/models"
	"github.com/arnold/kanban-live/internal/protocol"
	"github.com/arnold/kanban-live/internal/reconcile"
)

const requestTimeout = 10 * time.Second

type connection struct {
	socket *apiclient.Socket
	client *reconcile.Client
}

func socketURL(server string) string {
	switch {
	case strings.HasPrefix(server, "https://"):
		return "wss://" + strings.TrimPrefix(server, "https://") + "/ws"
	case strings.HasPrefix(server, "http://"):
		return "ws://" + strings.TrimPrefix(server, "http://") + "/ws"
	}
	return server + "/ws"
}

// connect signs in over the socket, joins the default board and loads it.
func connect(ctx context.Context, server string, login protocol.LoginRequest) (*connection, error) {
	sock, err := apiclient.Dial(ctx, socketURL(server))
	if err != nil {
		return nil, err
	}
	loginCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	res, err := sock.Login(loginCtx, login)
	if err != nil {
		sock.Close()
		return nil, err
	}

	api := apiclient.NewHTTP(server, requestTimeout)
	api.Authenticate(res.Token, res.ConnectionID)
	board, err := api.DefaultBoard(ctx)
	if err != nil {
		sock.Close()
		return nil, err
	}
	if err := sock.Send(protocol.EventJoinBoard, protocol.RoomRequest{BoardID: board.ID, Username: login.Username}); err != nil {
		sock.Close()
		return nil, err
	}

	client := reconcile.NewClient(reconcile.NewEngine(login.Username), api)
	if err := client.Sync(ctx, board.ID); err != nil {
		sock.Close()
		return nil, err
	}
	return &connection{socket: sock, client: client}, nil
}

func (c *connection) Close() error {
	return c.socket.Close()
}

func resolveColumn(board models.Board, ref string) (*models.Column, error) {
	var match *models.Column
	for i := range board.Columns {
		col := &board.Columns[i]
		if col.ID.String() == ref {
			return col, nil
		}
		if strings.EqualFold(col.Name, ref) {
			if match != nil {
				return nil, fmt.Errorf("column %q is ambiguous, use its id", ref)
			}
			match = col
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no column %q", ref)
	}
	return match, nil
}

func resolveCard(board models.Board, ref string) (*models.Card, error) {
	id, idErr := uuid.Parse(ref)
	var match *models.Card
	for i := range board.Columns {
		for j := range board.Columns[i].Cards {
			card := &board.Columns[i].Cards[j]
			if idErr == nil && card.ID == id {
				return card, nil
			}
			if strings.EqualFold(card.Title, ref) {
				if match != nil {
					return nil, fmt.Errorf("card %q is ambiguous, use its id", ref)
				}
				match = card
			}
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no card %q", ref)
	}
	return match, nil
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	columnStyle = lipgloss.NewStyle().Bold(true)

	priorityStyles = map[models.Priority]lipgloss.Style{
		models.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")),
		models.PriorityMedium: lipgloss.NewStyle(),
		models.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F5A623")),
		models.PriorityUrgent: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")),
	}
)

func printBoard(w io.Writer, board models.Board) {
	fmt.Fprintln(w, titleStyle.Render(board.Name))
	for _, col := range board.Columns {
		fmt.Fprintf(w, "\n  %s\n", columnStyle.Render(fmt.Sprintf("%s (%d)", col.Name, len(col.Cards))))
		for _, card := range col.Cards {
			line := fmt.Sprintf("%d. %s [%s]", card.Position, card.Title, card.Priority)
			if card.AssignedTo != nil {
				line += " @" + *card.AssignedTo
			}
			style, ok := priorityStyles[card.Priority]
			if !ok {
				style = lipgloss.NewStyle()
			}
			fmt.Fprintf(w, "    %s\n", style.Render(line))
		}
	}
}

type cardView struct {
	ID         string `json:"id" yaml:"id"`
	Title      string `json:"title" yaml:"title"`
	Position   int    `json:"position" yaml:"position"`
	Priority   string `json:"priority" yaml:"priority"`
	AssignedTo string `json:"assignedTo,omitempty" yaml:"assignedTo,omitempty"`
}

type columnView struct {
	ID       string     `json:"id" yaml:"id"`
	Name     string     `json:"name" yaml:"name"`
	Position int        `json:"position" yaml:"position"`
	Cards    []cardView `json:"cards" yaml:"cards"`
}

type boardView struct {
	ID      string       `json:"id" yaml:"id"`
	Name    string       `json:"name" yaml:"name"`
	Columns []columnView `json:"columns" yaml:"columns"`
}

func viewOf(board models.Board) boardView {
	v := boardView{ID: board.ID.String(), Name: board.Name, Columns: []columnView{}}
	for _, col := range board.Columns {
		cv := columnView{ID: col.ID.String(), Name: col.Name, Position: col.Position, Cards: []cardView{}}
		for _, card := range col.Cards {
			c := cardView{
				ID:       card.ID.String(),
				Title:    card.Title,
				Position: card.Position,
				Priority: string(card.Priority),
			}
			if card.AssignedTo != nil {
				c.AssignedTo = *card.AssignedTo
			}
			cv.Cards = append(cv.Cards, c)
		}
		v.Columns = append(v.Columns, cv)
	}
	return v
}

// writeBoard renders the board as text, json or yaml.
func writeBoard(w io.Writer, board models.Board, format string) error {
	switch format {
	case "", "text":
		printBoard(w, board)
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(viewOf(board))
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(viewOf(board)); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output format %q", format)
}
