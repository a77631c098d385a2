package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouter_MiddlewareOrder(t *testing.T) {
	var order []string

	trace := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, "before"+name)
				next.ServeHTTP(w, r)
				order = append(order, "after"+name)
			})
		}
	}

	r := New(trace("1"))
	r.Get("/test", func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
		w.WriteHeader(http.StatusOK)
	}, trace("2"))

	w := serve(r, "/test")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"before1", "before2", "handler", "after2", "after1"}, order)
}

func TestRouter_MethodMismatch(t *testing.T) {
	r := New()
	r.Get("/test", func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRecovery(t *testing.T) {
	r := New(Recovery(testLogger()))
	r.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	w := serve(r, "/panic")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestOps_Health(t *testing.T) {
	ops := NewOps(OpsConfig{}, testLogger())

	w := serve(ops, "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestOps_Ready(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]Check
		wantStatus int
		wantBody   readiness
	}{
		{
			name: "all dependencies reachable",
			checks: map[string]Check{
				"postgres": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return nil },
			},
			wantStatus: http.StatusOK,
			wantBody: readiness{Status: "ok", Checks: map[string]string{
				"postgres": "ok",
				"redis":    "ok",
			}},
		},
		{
			name: "one dependency down",
			checks: map[string]Check{
				"postgres": func(context.Context) error { return nil },
				"nats":     func(context.Context) error { return errors.New("nats: connection closed") },
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody: readiness{Status: "unavailable", Checks: map[string]string{
				"postgres": "ok",
				"nats":     "nats: connection closed",
			}},
		},
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
			wantBody:   readiness{Status: "ok", Checks: map[string]string{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := NewOps(OpsConfig{Checks: tt.checks}, testLogger())

			w := serve(ops, "/ready")

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var got readiness
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, tt.wantBody, got)
		})
	}
}

func TestOps_ReadyCheckHasDeadline(t *testing.T) {
	var hadDeadline bool
	ops := NewOps(OpsConfig{Checks: map[string]Check{
		"postgres": func(ctx context.Context) error {
			_, hadDeadline = ctx.Deadline()
			return nil
		},
	}}, testLogger())

	serve(ops, "/ready")

	assert.True(t, hadDeadline)
}

func TestOps_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_test_total",
		Help: "test counter",
	})
	reg.MustRegister(counter)
	counter.Add(3)

	ops := NewOps(OpsConfig{Gatherer: reg}, testLogger())

	w := serve(ops, "/metrics")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "checkout_test_total 3")
}
