package chatflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/chatflow/internal/catalog"
	"github.com/aretw0/chatflow/internal/commands"
	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/internal/repository"
	"github.com/aretw0/chatflow/internal/runtime"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
	"github.com/aretw0/chatflow/pkg/registry"
)

// Bot routes inbound chat events to workflow runs.
//
// A Bot is safe for concurrent use. Events from the same user are handled
// one at a time; events from different users proceed in parallel.
type Bot struct {
	catalog  *catalog.Catalog
	repo     *repository.Repository
	engine   *runtime.Engine
	commands *commands.Handler
	platform ports.Platform
	logger   *slog.Logger

	workflows   []*domain.Workflow
	registry    *registry.Registry
	runtimeOpts []runtime.EngineOption

	users *keyedMutex
}

// Option configures the Bot.
type Option func(*Bot)

// WithLogger sets the structured logger shared by the bot and its runs.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(b *Bot) {
		b.runtimeOpts = append(b.runtimeOpts, runtime.WithLifecycleHooks(hooks))
	}
}

// WithRegistry supplies the custom actions available as "custom:<name>".
func WithRegistry(r *registry.Registry) Option {
	return func(b *Bot) {
		b.registry = r
	}
}

// WithAction registers a single custom action.
func WithAction(name string, fn registry.ActionFunc) Option {
	return func(b *Bot) {
		if b.registry == nil {
			b.registry = registry.NewRegistry()
		}
		b.registry.Register(name, fn)
	}
}

// WithRenderer replaces the Handlebars template renderer.
func WithRenderer(r ports.Renderer) Option {
	return func(b *Bot) {
		b.runtimeOpts = append(b.runtimeOpts, runtime.WithRenderer(r))
	}
}

// WithBotIdentityRemap controls whether events posted under the bot's own
// account are attributed to another member of the room. Enabled by default.
func WithBotIdentityRemap(enabled bool) Option {
	return func(b *Bot) {
		b.runtimeOpts = append(b.runtimeOpts, runtime.WithBotIdentityRemap(enabled))
	}
}

// WithWorkflows uses the given definitions instead of loading a directory.
func WithWorkflows(workflows ...*domain.Workflow) Option {
	return func(b *Bot) {
		b.workflows = append(b.workflows, workflows...)
	}
}

// ParseWorkflow parses and validates one YAML workflow document.
// source names the document in errors.
func ParseWorkflow(source string, data []byte) (*domain.Workflow, error) {
	return catalog.Parse(source, data)
}

// New creates a Bot serving the workflows found in dir.
// If WithWorkflows is given, dir may be empty and is not read.
func New(dir string, platform ports.Platform, store ports.KVStore, opts ...Option) (*Bot, error) {
	b := &Bot{
		platform: platform,
		logger:   logging.NewNop(),
		users:    newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(b)
	}

	var err error
	switch {
	case len(b.workflows) > 0:
		b.catalog, err = catalog.New(b.workflows...)
	case dir != "":
		b.catalog, err = catalog.Load(dir)
	default:
		err = errors.New("a workflow directory is required when no workflows are given")
	}
	if err != nil {
		return nil, err
	}
	b.logger.Info("Workflows loaded", "workflows", b.catalog.Names())

	b.repo = repository.New(store, b.catalog, repository.WithLogger(b.logger))

	runtimeOpts := []runtime.EngineOption{
		runtime.WithLogger(b.logger),
		runtime.WithRegistry(b.registry),
	}
	b.engine = runtime.NewEngine(b.repo, platform, append(runtimeOpts, b.runtimeOpts...)...)
	b.commands = commands.New(b.catalog, b.engine, platform, commands.WithLogger(b.logger))
	return b, nil
}

// Workflows returns the loaded definitions in catalog order.
func (b *Bot) Workflows() []*domain.Workflow {
	return b.catalog.All()
}

// Listen feeds events from sub into the bot until ctx is cancelled.
// Per-event failures are logged and do not stop the subscription.
func (b *Bot) Listen(ctx context.Context, sub ports.Subscriber) error {
	return sub.Subscribe(ctx, func(ctx context.Context, ev domain.Event) error {
		_ = b.Handle(ctx, ev)
		return nil
	})
}

// Handle processes one inbound event: a slash-command, a reply to the
// caller's current run, a choice from the /list menu, or an event that
// starts a new run.
func (b *Bot) Handle(ctx context.Context, ev domain.Event) error {
	unlock := b.users.Lock(ev.User.ID)
	defer unlock()

	logger := b.logger.With("event", ev.Type, "user_id", ev.User.ID, "room_id", ev.RoomID)

	session, err := b.repo.FindOrCreateSession(ctx, ev.RoomID, ev.User.ID)
	if err != nil {
		logger.Error("Failed to load session", "err", err)
		return err
	}

	err = b.route(ctx, ev, session, logger)
	if err != nil {
		logger.Error("Event handling failed", "err", err)
	}
	if saveErr := b.repo.SaveSession(ctx, session); saveErr != nil {
		logger.Error("Failed to save session", "err", saveErr)
		err = errors.Join(err, saveErr)
	}
	return err
}

func (b *Bot) route(ctx context.Context, ev domain.Event, session *domain.ChannelSession, logger *slog.Logger) error {
	switch ev.Type {
	case domain.EventText:
		if name, ok := commands.Parse(ev.Text); ok {
			return b.commands.Run(ctx, name, ev, session)
		}
	case domain.EventLeave:
		return b.leave(ctx, ev, logger)
	}

	run, err := b.current(ctx, ev.User.ID)
	if err != nil {
		return err
	}
	if run != nil {
		handled, err := run.Handle(ctx, ev)
		if handled || err != nil {
			return err
		}
	}

	if ev.Type == domain.EventSelect && session.Selecting {
		session.Selecting = false
		return b.startSelected(ctx, ev)
	}
	if run != nil {
		logger.Debug("Event ignored", "run_id", run.ID())
		return nil
	}

	_, err = b.trigger(ctx, ev, logger)
	return err
}

// trigger starts the first workflow whose trigger fires on ev. It returns
// nil when none does.
func (b *Bot) trigger(ctx context.Context, ev domain.Event, logger *slog.Logger) (*runtime.Run, error) {
	w, ok := b.catalog.FirstFiring(ev.Type, ev)
	if !ok {
		logger.Debug("No workflow fired")
		return nil, nil
	}
	logger.Info("Workflow triggered", "workflow", w.Name)
	run := b.engine.Create(w)
	return run, run.StartByEvent(ctx, ev)
}

// startSelected starts the workflow picked from the /list menu.
func (b *Bot) startSelected(ctx context.Context, ev domain.Event) error {
	name, _ := ev.Select.Chosen()
	w, ok := b.catalog.FindByName(name)
	if !ok {
		return b.platform.Send(ctx, ev.RoomID, domain.TextContent{Text: fmt.Sprintf("Workflow not found: %s", name)})
	}
	return b.engine.Create(w).Start(ctx, ev)
}

// leave is delivered like any other event, then the run it reached is
// cancelled. A user who leaves is never left waiting in a run.
func (b *Bot) leave(ctx context.Context, ev domain.Event, logger *slog.Logger) error {
	run, err := b.current(ctx, ev.User.ID)
	if err != nil {
		return err
	}
	if run != nil {
		_, err = run.Handle(ctx, ev)
	} else {
		run, err = b.trigger(ctx, ev, logger)
	}
	if err != nil || run == nil {
		return err
	}
	if run.Active() {
		return run.Cancel(ctx)
	}
	return nil
}

func (b *Bot) current(ctx context.Context, userID string) (*runtime.Run, error) {
	run, err := b.engine.Current(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return run, err
}
