// Package commands implements the slash-commands a user can type into a
// conversation with the bot.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/internal/runtime"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
)

// Command names, typed with a leading slash.
const (
	Help   = "help"
	List   = "list"
	Status = "status"
	Abort  = "abort"
)

// Replies sent by the commands.
const (
	ListQuestion   = "Choose a workflow."
	MsgSelecting   = "A workflow is already being selected."
	MsgNoWorkflows = "No workflows available."
	MsgNoRun       = "No workflow is running."
)

var usage = strings.Join([]string{
	"/help    show this message",
	"/list    choose a workflow to start",
	"/status  show the workflow you are in",
	"/abort   cancel the workflow you are in",
}, "\n")

// Catalog is the part of the workflow catalog the commands read.
type Catalog interface {
	SelectableNames() []string
}

// Handler runs commands on behalf of the user who typed them.
type Handler struct {
	catalog Catalog
	engine  *runtime.Engine
	sender  ports.Sender
	logger  *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// New creates a Handler.
func New(catalog Catalog, engine *runtime.Engine, sender ports.Sender, opts ...Option) *Handler {
	h := &Handler{
		catalog: catalog,
		engine:  engine,
		sender:  sender,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Parse returns the command named by text. Only the exact form "/name" is
// a command; anything else is ordinary text.
func Parse(text string) (string, bool) {
	name, ok := strings.CutPrefix(strings.TrimSpace(text), "/")
	if !ok {
		return "", false
	}
	switch name {
	case Help, List, Status, Abort:
		return name, true
	}
	return "", false
}

// Run executes the command. The session may be modified; the caller persists it.
func (h *Handler) Run(ctx context.Context, name string, ev domain.Event, session *domain.ChannelSession) error {
	h.logger.Debug("Running command", "command", name, "user_id", ev.User.ID, "room_id", ev.RoomID)

	switch name {
	case Help:
		return h.reply(ctx, ev, usage)
	case List:
		return h.list(ctx, ev, session)
	case Status:
		return h.status(ctx, ev)
	case Abort:
		return h.abort(ctx, ev)
	}
	return fmt.Errorf("unknown command: %s", name)
}

func (h *Handler) list(ctx context.Context, ev domain.Event, session *domain.ChannelSession) error {
	if session.Selecting {
		return h.reply(ctx, ev, MsgSelecting)
	}
	names := h.catalog.SelectableNames()
	if len(names) == 0 {
		return h.reply(ctx, ev, MsgNoWorkflows)
	}
	session.Selecting = true
	return h.sender.Send(ctx, ev.RoomID, domain.SelectContent{Question: ListQuestion, Options: names})
}

func (h *Handler) status(ctx context.Context, ev domain.Event) error {
	run, err := h.engine.Current(ctx, ev.User.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return h.reply(ctx, ev, MsgNoRun)
	}
	if err != nil {
		return err
	}

	w := run.Workflow()
	msg := fmt.Sprintf("Running %s %s", w.Name, w.Version)
	if step, ok := run.CurrentStep(); ok {
		msg += fmt.Sprintf(", waiting on step %d of %d", run.StepIndex()+1, len(w.Steps))
		if label := step.Label(); label != "" {
			msg += " (" + label + ")"
		}
	}
	return h.reply(ctx, ev, msg+".")
}

func (h *Handler) abort(ctx context.Context, ev domain.Event) error {
	run, err := h.engine.Current(ctx, ev.User.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return h.reply(ctx, ev, MsgNoRun)
	}
	if err != nil {
		return err
	}
	if err := run.Cancel(ctx); err != nil {
		return err
	}
	return h.reply(ctx, ev, fmt.Sprintf("Cancelled %s.", run.Workflow().Name))
}

func (h *Handler) reply(ctx context.Context, ev domain.Event, text string) error {
	return h.sender.Send(ctx, ev.RoomID, domain.TextContent{Text: text})
}
