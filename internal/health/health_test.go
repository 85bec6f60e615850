package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pass(context.Context) error { return nil }

func failWith(msg string) func(context.Context) error {
	return func(context.Context) error { return errors.New(msg) }
}

func TestHandlerAggregatesChecks(t *testing.T) {
	tests := []struct {
		name        string
		storage     func(context.Context) error
		cache       func(context.Context) error
		wantStatus  Status
		wantCode    int
		wantReady   int
		wantMessage map[string]string
	}{
		{
			name:       "all good",
			storage:    pass,
			cache:      pass,
			wantStatus: StatusHealthy,
			wantCode:   http.StatusOK,
			wantReady:  http.StatusOK,
		},
		{
			name:        "redis down keeps serving",
			storage:     pass,
			cache:       failWith("redis timeout"),
			wantStatus:  StatusDegraded,
			wantCode:    http.StatusOK,
			wantReady:   http.StatusOK,
			wantMessage: map[string]string{"cache": "redis timeout"},
		},
		{
			name:        "database down",
			storage:     failWith("connection refused"),
			cache:       failWith("redis timeout"),
			wantStatus:  StatusUnhealthy,
			wantCode:    http.StatusServiceUnavailable,
			wantReady:   http.StatusServiceUnavailable,
			wantMessage: map[string]string{"storage": "connection refused", "cache": "redis timeout"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewHandler("1.2.3")
			handler.RegisterChecker("storage", NewSimpleChecker("storage", tc.storage))
			handler.RegisterChecker("cache", NewOptionalChecker("cache", tc.cache))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			require.Equal(t, tc.wantCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body Response
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tc.wantStatus, body.Status)
			assert.Equal(t, "1.2.3", body.Version)
			assert.Len(t, body.Checks, 2)
			for name, msg := range tc.wantMessage {
				assert.Equal(t, msg, body.Checks[name].Message, name)
			}

			ready := httptest.NewRecorder()
			handler.ReadinessHandler(ready, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			assert.Equal(t, tc.wantReady, ready.Code)
		})
	}
}

func TestHandlerBoundsSlowChecks(t *testing.T) {
	handler := NewHandler("dev")
	handler.timeout = 20 * time.Millisecond
	handler.RegisterChecker("storage", NewSimpleChecker("storage", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	start := time.Now()
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Less(t, time.Since(start), time.Second, "check must observe the handler deadline")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestProbeBodies(t *testing.T) {
	handler := NewHandler("dev")

	live := httptest.NewRecorder()
	LivenessHandler(live, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, "ok", live.Body.String())

	ready := httptest.NewRecorder()
	handler.ReadinessHandler(ready, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, "ready", ready.Body.String())

	handler.RegisterChecker("storage", NewSimpleChecker("storage", failWith("down")))
	notReady := httptest.NewRecorder()
	handler.ReadinessHandler(notReady, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, "not ready", notReady.Body.String())
}

func TestSimpleCheckerReportsDuration(t *testing.T) {
	check := NewSimpleChecker("storage", func(context.Context) error {
		time.Sleep(10 * time.Millisecond)
		return nil
	}).Check(context.Background())

	assert.Equal(t, "storage", check.Name)
	assert.Equal(t, StatusHealthy, check.Status)
	assert.GreaterOrEqual(t, check.DurationMs, int64(10))
	assert.Empty(t, check.Message)
}
