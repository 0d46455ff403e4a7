package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBot struct {
	mu        sync.Mutex
	events    []domain.Event
	err       error
	workflows []*domain.Workflow
	onHandle  func(ev domain.Event)
}

func (b *fakeBot) Handle(ctx context.Context, ev domain.Event) error {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
	if b.onHandle != nil {
		b.onHandle(ev)
	}
	return b.err
}

func (b *fakeBot) Workflows() []*domain.Workflow { return b.workflows }

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestPostEvent(t *testing.T) {
	bot := &fakeBot{}
	h := NewHandler(bot)

	w := post(t, h, `{"type":"select","room_id":"r1","user":{"id":"u1"},"select":{"question":"Q","options":["a","b"],"response":1}}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	require.Len(t, bot.events, 1)
	chosen, ok := bot.events[0].Select.Chosen()
	require.True(t, ok)
	assert.Equal(t, "b", chosen)
}

func TestPostEvent_Rejected(t *testing.T) {
	bot := &fakeBot{}
	h := NewHandler(bot)

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{`},
		{"unknown type", `{"type":"poke","room_id":"r1","user":{"id":"u1"}}`},
		{"dispatch is not inbound", `{"type":"workflow_dispatch","room_id":"r1","user":{"id":"u1"}}`},
		{"missing room", `{"type":"text","user":{"id":"u1"}}`},
		{"missing user", `{"type":"text","room_id":"r1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, h, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
	assert.Empty(t, bot.events)
}

func TestPostEvent_Failure(t *testing.T) {
	bot := &fakeBot{err: &domain.StepEvaluationError{Workflow: "w", Err: domain.ErrDestinationNotFound}}
	w := post(t, NewHandler(bot), `{"type":"text","room_id":"r1","user":{"id":"u1"},"text":"x"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	bot.err = errors.New("store down")
	w = post(t, NewHandler(bot), `{"type":"text","room_id":"r1","user":{"id":"u1"},"text":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetWorkflows(t *testing.T) {
	bot := &fakeBot{workflows: []*domain.Workflow{
		{Name: "onboarding", Version: "1.0.0", Source: "onboarding.yml",
			On:    domain.TriggerMap{domain.EventWorkflowDispatch: {}, domain.EventText: {"match": "^hi"}},
			Steps: []domain.Step{{ID: "a"}, {ID: "b"}}},
		{Name: "bye", Version: "0.1.0", On: domain.TriggerMap{domain.EventLeave: {}}, Steps: []domain.Step{{}}},
	}}

	req := httptest.NewRequest(http.MethodGet, "/workflows", nil)
	w := httptest.NewRecorder()
	NewHandler(bot).ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var got []WorkflowInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, []WorkflowInfo{
		{Name: "onboarding", Version: "1.0.0", Source: "onboarding.yml", Selectable: true, Steps: 2,
			On: []domain.EventType{domain.EventWorkflowDispatch, domain.EventText}},
		{Name: "bye", Version: "0.1.0", Steps: 1, On: []domain.EventType{domain.EventLeave}},
	}, got)
}

func TestHealthInfoAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "chatflow_runs_started_total 1\n")
	})
	h := NewHandler(&fakeBot{}, WithVersion("1.2.3\n"), WithMetrics(metrics))

	for path, want := range map[string]string{
		"/health":  `"status":"ok"`,
		"/info":    `"version":"1.2.3"`,
		"/metrics": "chatflow_runs_started_total",
	} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), want, path)
	}

	w := httptest.NewRecorder()
	NewHandler(&fakeBot{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlatform_Callback(t *testing.T) {
	received := make(chan Outbound, 1)
	callback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw struct {
			RoomID  string             `json:"room_id"`
			Kind    domain.MessageKind `json:"kind"`
			Content domain.TextContent `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		received <- Outbound{RoomID: raw.RoomID, Kind: raw.Kind, Content: raw.Content}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer callback.Close()

	p := NewPlatform(memory.NewPlatform("bot"), nil, WithCallbackURL(callback.URL))
	require.NoError(t, p.Send(context.Background(), "r1", domain.TextContent{Text: "hi"}))

	select {
	case got := <-received:
		assert.Equal(t, Outbound{RoomID: "r1", Kind: domain.KindText, Content: domain.TextContent{Text: "hi"}}, got)
	case <-time.After(time.Second):
		t.Fatal("callback not called")
	}
	assert.Equal(t, "bot", p.BotUserID())
}

func TestPlatform_CallbackError(t *testing.T) {
	callback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer callback.Close()

	p := NewPlatform(memory.NewPlatform("bot"), nil, WithCallbackURL(callback.URL))
	err := p.Send(context.Background(), "r1", domain.TextContent{Text: "hi"})
	assert.ErrorContains(t, err, "502")
}

func TestStreamRoom(t *testing.T) {
	streams := NewStreamManager()
	platform := NewPlatform(memory.NewPlatform("bot"), streams)
	bot := &fakeBot{onHandle: func(ev domain.Event) {
		_ = platform.Send(context.Background(), ev.RoomID, domain.TextContent{Text: "echo " + ev.Text})
	}}
	srv := httptest.NewServer(NewHandler(bot, WithStreams(streams)))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/rooms/r1/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: ping", lines.Text())

	// The subscription is registered before the ping is written.
	posted, err := http.Post(srv.URL+"/events", "application/json",
		strings.NewReader(`{"type":"text","room_id":"r1","user":{"id":"u1"},"text":"hello"}`))
	require.NoError(t, err)
	posted.Body.Close()
	assert.Equal(t, http.StatusAccepted, posted.StatusCode)

	for lines.Scan() {
		if data, ok := strings.CutPrefix(lines.Text(), "data: "); ok && data != "connected" {
			assert.JSONEq(t, `{"room_id":"r1","kind":"text","content":{"text":"echo hello"}}`, data)
			return
		}
	}
	t.Fatal("no message received")
}
