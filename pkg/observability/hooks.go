package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/chatflow/pkg/domain"
)

// Combine returns hooks that call each of the given hooks in order.
func Combine(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range hooks {
		out.OnRunStart = chainRun(out.OnRunStart, h.OnRunStart)
		out.OnRunExit = chainRun(out.OnRunExit, h.OnRunExit)
		out.OnStep = chainStep(out.OnStep, h.OnStep)
		out.OnDispatch = chainStep(out.OnDispatch, h.OnDispatch)
	}
	return out
}

func chainRun(a, b func(context.Context, *domain.RunEvent)) func(context.Context, *domain.RunEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, ev *domain.RunEvent) {
		a(ctx, ev)
		b(ctx, ev)
	}
}

func chainStep(a, b func(context.Context, *domain.StepEvent)) func(context.Context, *domain.StepEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, ev *domain.StepEvent) {
		a(ctx, ev)
		b(ctx, ev)
	}
}

// LogHooks returns hooks that write an audit line per lifecycle event.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, ev *domain.RunEvent) {
			logger.InfoContext(ctx, "run_start", "run_id", ev.RunID, "workflow", ev.Workflow, "trigger", ev.Trigger)
		},
		OnRunExit: func(ctx context.Context, ev *domain.RunEvent) {
			logger.InfoContext(ctx, "run_exit", "run_id", ev.RunID, "workflow", ev.Workflow, "reason", ev.Reason)
		},
		OnStep: func(ctx context.Context, ev *domain.StepEvent) {
			logger.DebugContext(ctx, "step",
				"run_id", ev.RunID,
				"step_index", ev.StepIndex,
				"step_id", ev.StepID,
				"action", ev.Action,
				"skipped", ev.Skipped,
			)
		},
		OnDispatch: func(ctx context.Context, ev *domain.StepEvent) {
			if ev.Err != nil {
				logger.WarnContext(ctx, "dispatch", "run_id", ev.RunID, "action", ev.Action, "err", ev.Err)
				return
			}
			logger.DebugContext(ctx, "dispatch", "run_id", ev.RunID, "action", ev.Action)
		},
	}
}
