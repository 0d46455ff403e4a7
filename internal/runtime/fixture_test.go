package runtime_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/chatflow/internal/catalog"
	"github.com/aretw0/chatflow/internal/repository"
	"github.com/aretw0/chatflow/internal/runtime"
	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/stretchr/testify/require"
)

var (
	ann = domain.User{ID: "u1", DisplayName: "Ann"}
	bob = domain.User{ID: "u2", DisplayName: "Bob"}
	bot = domain.User{ID: "bot", DisplayName: "Bot"}
)

type fixture struct {
	store    *memory.Store
	platform *memory.Platform
	repo     *repository.Repository
	engine   *runtime.Engine
	catalog  *catalog.Catalog

	starts []*domain.RunEvent
	exits  []*domain.RunEvent
	steps  []*domain.StepEvent
}

func newFixture(t *testing.T, defs []string, opts ...runtime.EngineOption) *fixture {
	t.Helper()

	workflows := make([]*domain.Workflow, 0, len(defs))
	for i, def := range defs {
		w, err := catalog.Parse(fmt.Sprintf("wf%d.yml", i), []byte(def))
		require.NoError(t, err)
		workflows = append(workflows, w)
	}
	cat, err := catalog.New(workflows...)
	require.NoError(t, err)

	f := &fixture{
		store: memory.NewStore(),
		platform: memory.NewPlatform(bot.ID,
			domain.Room{ID: "r1", Type: domain.RoomPair, Users: []domain.User{ann, bot}},
			domain.Room{ID: "r2", Type: domain.RoomPair, Users: []domain.User{bob, bot}},
			domain.Room{ID: "g1", Type: domain.RoomGroup, Users: []domain.User{ann, bob, bot}},
		),
		catalog: cat,
	}
	f.repo = repository.New(f.store, cat)

	n := 0
	base := []runtime.EngineOption{
		runtime.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("run-%d", n)
		}),
		runtime.WithLifecycleHooks(domain.LifecycleHooks{
			OnRunStart: func(_ context.Context, ev *domain.RunEvent) { f.starts = append(f.starts, ev) },
			OnRunExit:  func(_ context.Context, ev *domain.RunEvent) { f.exits = append(f.exits, ev) },
			OnStep:     func(_ context.Context, ev *domain.StepEvent) { f.steps = append(f.steps, ev) },
		}),
	}
	f.engine = runtime.NewEngine(f.repo, f.platform, append(base, opts...)...)
	return f
}

func (f *fixture) workflow(t *testing.T, name string) *domain.Workflow {
	t.Helper()
	w, ok := f.catalog.FindByName(name)
	require.True(t, ok, name)
	return w
}

func (f *fixture) lastExit(t *testing.T) *domain.RunEvent {
	t.Helper()
	require.NotEmpty(t, f.exits)
	return f.exits[len(f.exits)-1]
}

func textEvent(room string, u domain.User, text string) domain.Event {
	return domain.Event{Type: domain.EventText, RoomID: room, User: u, Text: text}
}

func selectEvent(room string, u domain.User, question string, options []string, response int) domain.Event {
	return domain.Event{
		Type:   domain.EventSelect,
		RoomID: room,
		User:   u,
		Select: &domain.SelectReply{Question: question, Options: options, Response: &response},
	}
}

func dispatchEvent(room string, u domain.User) domain.Event {
	return domain.Event{Type: domain.EventWorkflowDispatch, RoomID: room, User: u}
}
