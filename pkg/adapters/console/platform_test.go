package console_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aretw0/chatflow"
	"github.com/aretw0/chatflow/pkg/adapters/console"
	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const onboarding = `version: 1.0.0
name: onboarding
steps:
  - id: q1
    action: daab:message:text
    with: {text: "Name?"}
  - id: q2
    action: daab:message:select
    with:
      question: Dept?
      options: [A, B]
`

func TestConsole_Conversation(t *testing.T) {
	wf, err := chatflow.ParseWorkflow("onboarding.yml", []byte(onboarding))
	require.NoError(t, err)

	var exit *domain.RunEvent
	var out bytes.Buffer
	p := console.NewPlatform(strings.NewReader("/list\n1\nAnn\n2\n"), &out)
	bot, err := chatflow.New("", p, memory.NewStore(),
		chatflow.WithWorkflows(wf),
		chatflow.WithLifecycleHooks(domain.LifecycleHooks{
			OnRunExit: func(_ context.Context, ev *domain.RunEvent) { exit = ev },
		}),
	)
	require.NoError(t, err)

	require.NoError(t, bot.Listen(context.Background(), p))

	assert.Contains(t, out.String(), "Choose a workflow.\n  1) onboarding\n")
	assert.Contains(t, out.String(), "Name?\n")
	assert.Contains(t, out.String(), "Dept?\n  1) A\n  2) B\n")

	require.NotNil(t, exit)
	assert.Equal(t, domain.ExitCompleted, exit.Reason)
	q1, ok := exit.Data["q1"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Ann", q1["response"])
	q2, ok := exit.Data["q2"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, q2["response"])
}

func TestConsole_Event(t *testing.T) {
	p := console.NewPlatform(strings.NewReader(""), &bytes.Buffer{})
	ctx := context.Background()

	ev := p.Event("hello")
	assert.Equal(t, domain.EventText, ev.Type)
	assert.Equal(t, console.RoomID, ev.RoomID)
	assert.Equal(t, console.DefaultUser, ev.User)

	require.NoError(t, p.Send(ctx, console.RoomID, domain.YesNoContent{Question: "Sure?"}))
	assert.Equal(t, domain.EventText, p.Event("maybe").Type)
	ev = p.Event("Y")
	require.Equal(t, domain.EventYesNo, ev.Type)
	assert.True(t, *ev.YesNo.Response)
	assert.Equal(t, domain.EventText, p.Event("y").Type, "the stamp is answered once")

	require.NoError(t, p.Send(ctx, console.RoomID, domain.SelectContent{Question: "Pick", Options: []string{"a", "b"}}))
	assert.Equal(t, domain.EventText, p.Event("3").Type)
	ev = p.Event("2")
	require.Equal(t, domain.EventSelect, ev.Type)
	chosen, ok := ev.Select.Chosen()
	require.True(t, ok)
	assert.Equal(t, "b", chosen)

	require.NoError(t, p.Send(ctx, console.RoomID, domain.TaskContent{Title: "Ship"}))
	ev = p.Event("done")
	require.Equal(t, domain.EventTask, ev.Type)
	assert.Equal(t, "Ship", ev.Task.Title)

	ev = p.Event(":leave")
	assert.Equal(t, domain.EventLeave, ev.Type)
	assert.Equal(t, []domain.User{console.DefaultUser}, ev.Users)
}

func TestConsole_Send(t *testing.T) {
	var out bytes.Buffer
	p := console.NewPlatform(strings.NewReader(""), &out,
		console.WithRenderer(func(s string) (string, error) { return "**" + s + "**\n", nil }))
	ctx := context.Background()

	require.NoError(t, p.Send(ctx, console.RoomID, domain.TextContent{Text: "hi"}))
	require.NoError(t, p.Send(ctx, "elsewhere", domain.TaskContent{Title: "Ship"}))

	assert.Equal(t, "**hi**\n[elsewhere] [ ] Ship (type \"done\" to close)\n", out.String())

	// A stamp sent to another room is not answerable from the console.
	assert.Equal(t, domain.EventText, p.Event("done").Type)
}

func TestConsole_SubscribeKeepsGoingOnError(t *testing.T) {
	var out bytes.Buffer
	p := console.NewPlatform(strings.NewReader("a\n\nb\n"), &out, console.WithPrompt(""))

	var got []string
	err := p.Subscribe(context.Background(), func(_ context.Context, ev domain.Event) error {
		got = append(got, ev.Text)
		return errors.New("nope")
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, "Error: nope\nError: nope\n", out.String())
}

func TestConsole_Directory(t *testing.T) {
	p := console.NewPlatform(strings.NewReader(""), &bytes.Buffer{})

	room, err := p.Room(context.Background(), console.RoomID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomPair, room.Type)

	_, u, err := p.FindPairRoom(context.Background(), "You")
	require.NoError(t, err)
	assert.Equal(t, console.DefaultUser.ID, u.ID)
	assert.Equal(t, "bot", p.BotUserID())
}
