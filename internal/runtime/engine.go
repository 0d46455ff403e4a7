package runtime

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/internal/render"
	"github.com/aretw0/chatflow/internal/repository"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
	"github.com/aretw0/chatflow/pkg/registry"
	"github.com/google/uuid"
)

// Engine creates and restores runs and holds what they share: the
// repository, the platform, the renderer and the custom action registry.
type Engine struct {
	repo      *repository.Repository
	platform  ports.Platform
	renderer  ports.Renderer
	registry  *registry.Registry
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	newID     func() string
	now       func() time.Time
	remapSelf bool
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithRegistry sets the custom action registry.
func WithRegistry(r *registry.Registry) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithRenderer replaces the Handlebars renderer.
func WithRenderer(r ports.Renderer) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.renderer = r
		}
	}
}

// WithIDGenerator replaces the run id generator.
func WithIDGenerator(fn func() string) EngineOption {
	return func(e *Engine) {
		e.newID = fn
	}
}

// WithClock replaces the time source used for lifecycle events.
func WithClock(fn func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = fn
	}
}

// WithBotIdentityRemap controls whether events sent by the bot's own
// account are attributed to another occupant of the room. Enabled by default.
func WithBotIdentityRemap(enabled bool) EngineOption {
	return func(e *Engine) {
		e.remapSelf = enabled
	}
}

// NewEngine creates a new engine with dependencies.
func NewEngine(repo *repository.Repository, platform ports.Platform, opts ...EngineOption) *Engine {
	e := &Engine{
		repo:      repo,
		platform:  platform,
		renderer:  render.New(nil),
		registry:  registry.NewRegistry(),
		logger:    logging.NewNop(),
		newID:     uuid.NewString,
		now:       time.Now,
		remapSelf: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Create instantiates an inactive run of w. Nothing is persisted until the
// run is started.
func (e *Engine) Create(w *domain.Workflow) *Run {
	return e.newRun(domain.NewRunState(e.newID(), w), w)
}

// Restore loads a persisted run.
// Returns domain.ErrNotFound if the record is absent or invalid.
func (e *Engine) Restore(ctx context.Context, id string) (*Run, error) {
	s, w, err := e.repo.FindRun(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.newRun(s, w), nil
}

// Current returns the run the user is bound to.
// Returns domain.ErrNotFound if the user has no active binding.
func (e *Engine) Current(ctx context.Context, userID string) (*Run, error) {
	p, err := e.repo.FindParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p.CurrentRunID == "" {
		return nil, domain.ErrNotFound
	}
	run, err := e.Restore(ctx, p.CurrentRunID)
	if errors.Is(err, domain.ErrNotFound) {
		e.logger.Debug("Participant bound to a missing run", "user_id", userID, "run_id", p.CurrentRunID)
	}
	return run, err
}

func (e *Engine) newRun(s *domain.RunState, w *domain.Workflow) *Run {
	return &Run{
		engine:   e,
		state:    s,
		workflow: w,
		logger:   e.logger.With("run_id", s.ID, "workflow", w.Name),
	}
}

// Reply implements domain.Replier for custom actions.
func (e *Engine) Reply(ctx context.Context, roomID string, content domain.Content) error {
	return e.platform.Send(ctx, roomID, content)
}

func (e *Engine) emitRunStart(ctx context.Context, r *Run) {
	if e.hooks.OnRunStart != nil {
		e.hooks.OnRunStart(ctx, &domain.RunEvent{
			Timestamp: e.now(),
			RunID:     r.state.ID,
			Workflow:  r.workflow.Name,
			Trigger:   r.state.Trigger,
		})
	}
}

func (e *Engine) emitRunExit(ctx context.Context, r *Run, trigger domain.EventType, reason string, data domain.RunData) {
	if e.hooks.OnRunExit != nil {
		e.hooks.OnRunExit(ctx, &domain.RunEvent{
			Timestamp: e.now(),
			RunID:     r.state.ID,
			Workflow:  r.workflow.Name,
			Trigger:   trigger,
			Reason:    reason,
			Data:      data,
		})
	}
}

func (e *Engine) emitStep(ctx context.Context, ev *domain.StepEvent) {
	if e.hooks.OnStep != nil {
		ev.Timestamp = e.now()
		e.hooks.OnStep(ctx, ev)
	}
}

func (e *Engine) emitDispatch(ctx context.Context, ev *domain.StepEvent) {
	if e.hooks.OnDispatch != nil {
		ev.Timestamp = e.now()
		e.hooks.OnDispatch(ctx, ev)
	}
}
