package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/aretw0/chatflow/internal/repository"
	"github.com/aretw0/chatflow/pkg/domain"
)

// Run is one in-progress dialog. Its state is a value round-tripped through
// the repository; every mutation is re-persisted explicitly.
//
// A Run is not safe for concurrent use. Two events racing on the same run
// may both observe the same persisted cursor.
type Run struct {
	engine   *Engine
	state    *domain.RunState
	workflow *domain.Workflow
	logger   *slog.Logger
}

func (r *Run) ID() string { return r.state.ID }
func (r *Run) Workflow() *domain.Workflow { return r.workflow }
func (r *Run) Active() bool { return r.state.Active }
func (r *Run) StepIndex() int { return r.state.StepIndex }

// State returns a copy of the run state.
func (r *Run) State() domain.RunState {
	s := *r.state
	s.Data = maps.Clone(r.state.Data)
	s.Participants = append([]string(nil), r.state.Participants...)
	return s
}

// CurrentStep returns the step the run is waiting on.
func (r *Run) CurrentStep() (domain.Step, bool) {
	i := r.state.StepIndex
	if !r.state.Active || i < 0 || i >= len(r.workflow.Steps) {
		return domain.Step{}, false
	}
	return r.workflow.Steps[i], true
}

// Start begins the run at step 0. ev is the event that selected it and
// decides where the first step replies.
func (r *Run) Start(ctx context.Context, ev domain.Event) error {
	r.activate(domain.EventWorkflowDispatch)
	r.engine.emitRunStart(ctx, r)
	return r.evaluate(ctx, 0, ev)
}

// StartByEvent begins the run at the synthetic entry step built from ev.
// The entry step records the event under "trigger" and advances to step 0
// in the same turn; ev is not delivered to step 0 again.
func (r *Run) StartByEvent(ctx context.Context, ev domain.Event) error {
	r.activate(ev.Type)
	r.engine.emitRunStart(ctx, r)
	return r.evaluate(ctx, domain.EntryStepIndex, ev)
}

func (r *Run) activate(trigger domain.EventType) {
	r.state.Reset()
	r.state.Active = true
	r.state.Trigger = trigger
}

// Handle delivers a reply to the run. It reports false when the run is not
// waiting on a step of the event's kind; that is not an error.
func (r *Run) Handle(ctx context.Context, ev domain.Event) (bool, error) {
	step, ok := r.CurrentStep()
	if !ok {
		return false, nil
	}
	want, ok := domain.ReplyAction(ev.Type)
	if !ok || step.Action != want {
		r.logger.Debug("Event ignored by run", "event", ev.Type, "step_index", r.state.StepIndex, "step_id", step.ID)
		return false, nil
	}

	if step.ID != "" {
		outcome, err := repository.Normalize(replyOutcome(ev))
		if err != nil {
			return true, r.fail(ctx, r.state.StepIndex, step, "", err, false)
		}
		r.state.Data[step.ID] = outcome
	}
	return true, r.evaluate(ctx, r.state.StepIndex+1, ev)
}

// Cancel forces the run to exit regardless of its current step.
func (r *Run) Cancel(ctx context.Context) error {
	return r.exit(ctx, domain.ExitCancelled)
}

// evaluate runs steps from index until one waits or the run exits.
func (r *Run) evaluate(ctx context.Context, index int, ev domain.Event) error {
	e := r.engine
	for {
		if index >= len(r.workflow.Steps) {
			return r.exit(ctx, domain.ExitCompleted)
		}
		r.state.StepIndex = index

		var (
			step domain.Step
			err  error
		)
		if index == domain.EntryStepIndex {
			step = entryStep(ev)
		} else {
			step, err = evaluateStep(e.renderer, r.workflow.Steps[index], map[string]any(r.state.Data))
			if err != nil {
				return r.fail(ctx, index, r.workflow.Steps[index], "", err, false)
			}
		}
		logger := r.logger.With("step_index", index, "step_id", step.ID)

		if !guard(step.If) {
			logger.Debug("Step skipped by guard")
			e.emitStep(ctx, &domain.StepEvent{RunID: r.state.ID, Workflow: r.workflow.Name, StepIndex: index, StepID: step.ID, Skipped: true})
			index++
			continue
		}

		action, err := Resolve(step)
		if err == nil {
			err = r.checkRegistered(action)
		}
		if err != nil {
			return r.fail(ctx, index, step, "", err, false)
		}
		roomID, userID, err := r.target(ctx, action, ev)
		if err != nil {
			return r.fail(ctx, index, step, ActionName(action), err, false)
		}
		e.emitStep(ctx, &domain.StepEvent{RunID: r.state.ID, Workflow: r.workflow.Name, StepIndex: index, StepID: step.ID, Action: ActionName(action)})

		// The binding and the cursor are durable before the action runs.
		if err := r.bind(ctx, userID); err != nil {
			return err
		}
		if err := e.repo.SaveRun(ctx, r.state); err != nil {
			return err
		}

		result, err := r.dispatch(ctx, action, roomID, step, ev)
		e.emitDispatch(ctx, &domain.StepEvent{RunID: r.state.ID, Workflow: r.workflow.Name, StepIndex: index, StepID: step.ID, Action: ActionName(action), Err: err})
		if err != nil {
			return r.fail(ctx, index, step, ActionName(action), err, true)
		}
		if err := r.record(step.ID, result); err != nil {
			return r.fail(ctx, index, step, ActionName(action), err, true)
		}
		if index == domain.EntryStepIndex {
			r.state.Data[step.ID].(map[string]any)["responder"] = userFields(ev.User)
		}

		last := index == len(r.workflow.Steps)-1
		switch {
		case step.ExitFlow:
			logger.Debug("Step requested exit")
			return r.exit(ctx, domain.ExitFlow)
		case last:
			return r.exit(ctx, domain.ExitCompleted)
		case noWait(step, r.workflow.Defaults):
			index++
			continue
		}

		logger.Debug("Waiting for reply", "action", ActionName(action))
		return e.repo.SaveRun(ctx, r.state)
	}
}

// entryStep is the synthetic step standing for the event that started the run.
func entryStep(ev domain.Event) domain.Step {
	nowait := true
	return domain.Step{
		ID:     domain.EntryStepID,
		With:   ev.Payload(),
		NoWait: &nowait,
	}
}

// target picks the room the action talks to and the user it binds.
func (r *Run) target(ctx context.Context, action domain.Action, ev domain.Event) (string, string, error) {
	if msg, ok := action.(domain.MessageAction); ok && msg.To != "" {
		room, user, err := r.engine.platform.FindPairRoom(ctx, msg.To)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return "", "", errors.Join(domain.ErrDestinationNotFound, err)
			}
			return "", "", err
		}
		return room.ID, user.ID, nil
	}
	return ev.RoomID, r.sender(ctx, ev), nil
}

// sender attributes ev to a user. Events posted under the bot's own identity
// are attributed to another occupant of the room when remapping is enabled.
func (r *Run) sender(ctx context.Context, ev domain.Event) string {
	e := r.engine
	bot := e.platform.BotUserID()
	if !e.remapSelf || bot == "" || ev.User.ID != bot {
		return ev.User.ID
	}
	room, err := e.platform.Room(ctx, ev.RoomID)
	if err != nil {
		r.logger.Debug("Cannot remap bot sender", "room_id", ev.RoomID, "err", err)
		return ev.User.ID
	}
	for _, u := range room.Users {
		if u.ID != bot {
			return u.ID
		}
	}
	return ev.User.ID
}

func (r *Run) checkRegistered(action domain.Action) error {
	if c, ok := action.(domain.CustomAction); ok {
		if _, found := r.engine.registry.Lookup(c.Name); !found {
			return fmt.Errorf("%w: custom:%s is not registered", domain.ErrUnknownAction, c.Name)
		}
	}
	return nil
}

func (r *Run) dispatch(ctx context.Context, action domain.Action, roomID string, step domain.Step, ev domain.Event) (*domain.ActionResult, error) {
	switch a := action.(type) {
	case domain.MessageAction:
		return nil, r.engine.platform.Send(ctx, roomID, a.Content)
	case domain.CustomAction:
		return r.engine.registry.Execute(ctx, a.Name, a.Args, domain.ActionContext{
			RunID:    r.state.ID,
			Workflow: r.workflow.Name,
			StepID:   step.ID,
			Data:     maps.Clone(map[string]any(r.state.Data)),
			Event:    ev,
			Replier:  r.engine,
		})
	case domain.NoopAction:
		return &domain.ActionResult{Data: a.Args}, nil
	}
	return nil, domain.ErrUnknownAction
}

// record merges an action result into the step's entry as "response".
func (r *Run) record(stepID string, result *domain.ActionResult) error {
	if stepID == "" || result == nil {
		return nil
	}
	response, err := repository.Normalize(result.Data)
	if err != nil {
		return err
	}
	entry := map[string]any{}
	if prev, ok := r.state.Data[stepID].(map[string]any); ok {
		maps.Copy(entry, prev)
	}
	entry["response"] = response
	r.state.Data[stepID] = entry
	return nil
}

// bind points the participant at this run, superseding any earlier binding.
func (r *Run) bind(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	repo := r.engine.repo
	p, err := repo.FindOrCreateParticipant(ctx, userID)
	if err != nil {
		return err
	}
	if p.CurrentRunID != r.state.ID {
		if p.CurrentRunID != "" {
			r.logger.Debug("Participant binding superseded", "user_id", userID, "previous_run_id", p.CurrentRunID)
		}
		p.CurrentRunID = r.state.ID
		if err := repo.SaveParticipant(ctx, p); err != nil {
			return err
		}
	}
	r.state.AddParticipant(userID)
	return nil
}

// exit resets the run, releases its participants and deletes its record.
// Participants already bound to another run keep that binding.
func (r *Run) exit(ctx context.Context, reason string) error {
	repo := r.engine.repo
	trigger := r.state.Trigger
	participants := r.state.Participants
	data := r.state.Data

	r.state.Active = false
	r.state.Trigger = ""
	r.state.Reset()

	var errs []error
	for _, id := range participants {
		p, err := repo.FindParticipant(ctx, id)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				errs = append(errs, err)
			}
			continue
		}
		if p.CurrentRunID != r.state.ID {
			continue
		}
		p.CurrentRunID = ""
		if err := repo.SaveParticipant(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	if err := repo.DeleteRun(ctx, r.state.ID); err != nil {
		errs = append(errs, err)
	}

	r.logger.Info("Run exited", "reason", reason)
	r.engine.emitRunExit(ctx, r, trigger, reason, data)
	return errors.Join(errs...)
}

// fail exits the run after a step error and returns the typed error.
func (r *Run) fail(ctx context.Context, index int, step domain.Step, action string, cause error, dispatched bool) error {
	var err error
	if dispatched {
		err = &domain.DispatchError{
			RunID: r.state.ID, Workflow: r.workflow.Name, StepIndex: index, StepID: step.ID,
			Action: action, Err: cause,
		}
	} else {
		err = &domain.StepEvaluationError{
			RunID: r.state.ID, Workflow: r.workflow.Name, StepIndex: index, StepID: step.ID,
			Err: cause,
		}
	}
	r.logger.Error("Step failed", "step_index", index, "step_id", step.ID, "err", err)

	if exitErr := r.exit(ctx, domain.ExitError); exitErr != nil {
		return errors.Join(err, exitErr)
	}
	return err
}
