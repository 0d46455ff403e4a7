package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	h := m.Hooks()
	ctx := context.Background()
	start := time.Now()

	h.OnRunStart(ctx, &domain.RunEvent{Timestamp: start, RunID: "r1", Workflow: "onboarding", Trigger: domain.EventWorkflowDispatch})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsStarted.WithLabelValues("onboarding", "workflow_dispatch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsActive))

	h.OnStep(ctx, &domain.StepEvent{Workflow: "onboarding", Action: "daab:message:text"})
	h.OnStep(ctx, &domain.StepEvent{Workflow: "onboarding", Skipped: true})
	h.OnDispatch(ctx, &domain.StepEvent{Workflow: "onboarding", Action: "daab:message:text"})
	h.OnDispatch(ctx, &domain.StepEvent{Workflow: "onboarding", Action: "custom:lookup", Err: errors.New("boom")})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Steps.WithLabelValues("onboarding", "evaluated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Steps.WithLabelValues("onboarding", "skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatches.WithLabelValues("onboarding", "daab:message:text", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatches.WithLabelValues("onboarding", "custom:lookup", "error")))

	h.OnRunExit(ctx, &domain.RunEvent{Timestamp: start.Add(2 * time.Second), RunID: "r1", Workflow: "onboarding", Reason: domain.ExitCompleted})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsExited.WithLabelValues("onboarding", "completed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RunsActive))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RunDuration))
}

func TestMetrics_ExitOfForeignRun(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	// Started by another process: counted, but neither gauge nor duration move.
	m.Hooks().OnRunExit(context.Background(), &domain.RunEvent{RunID: "other", Workflow: "w", Reason: domain.ExitCancelled})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsExited.WithLabelValues("w", "cancelled")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RunsActive))
	assert.Equal(t, 0, testutil.CollectAndCount(m.RunDuration))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.Hooks().OnRunStart(context.Background(), &domain.RunEvent{RunID: "r1", Workflow: "w", Trigger: domain.EventText})

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `chatflow_runs_started_total{trigger="text",workflow="w"} 1`)
}

func TestCombine(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{OnRunStart: func(context.Context, *domain.RunEvent) { calls = append(calls, "a") }}
	b := domain.LifecycleHooks{
		OnRunStart: func(context.Context, *domain.RunEvent) { calls = append(calls, "b") },
		OnStep:     func(context.Context, *domain.StepEvent) { calls = append(calls, "b-step") },
	}

	h := Combine(a, domain.LifecycleHooks{}, b)
	h.OnRunStart(context.Background(), &domain.RunEvent{})
	h.OnStep(context.Background(), &domain.StepEvent{})

	assert.Equal(t, []string{"a", "b", "b-step"}, calls)
	assert.Nil(t, h.OnRunExit)
	assert.Nil(t, h.OnDispatch)
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := LogHooks(logger)
	ctx := context.Background()

	h.OnRunStart(ctx, &domain.RunEvent{RunID: "r1", Workflow: "w", Trigger: domain.EventText})
	h.OnDispatch(ctx, &domain.StepEvent{RunID: "r1", Action: "custom:x", Err: errors.New("boom")})
	h.OnRunExit(ctx, &domain.RunEvent{RunID: "r1", Workflow: "w", Reason: domain.ExitError})

	out := buf.String()
	assert.Contains(t, out, `"msg":"run_start"`)
	assert.Contains(t, out, `"level":"WARN","msg":"dispatch"`)
	assert.Contains(t, out, `"err":"boom"`)
	assert.Contains(t, out, `"reason":"error"`)
}
