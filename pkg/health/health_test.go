package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func passing(context.Context) error { return nil }

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func get(t *testing.T, handler http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func runN(h *Health, n int) {
	for range n {
		for _, p := range h.probes {
			p.run(context.Background(), h.lg)
		}
	}
}

func TestLiveEndpoint(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]CheckFunc
		runs   int
		code   int
		body   string
	}{
		{
			name: "no checks",
			code: http.StatusOK,
			body: `{"status":"ok"}`,
		},
		{
			name:   "passing",
			checks: map[string]CheckFunc{"a": passing, "b": passing},
			runs:   3,
			code:   http.StatusOK,
			body:   `{"status":"ok"}`,
		},
		{
			name:   "failing below threshold",
			checks: map[string]CheckFunc{"flaky": failing("temporary")},
			runs:   2,
			code:   http.StatusOK,
			body:   `{"status":"ok"}`,
		},
		{
			name:   "failing at threshold",
			checks: map[string]CheckFunc{"db": failing("connection refused"), "ok": passing},
			runs:   3,
			code:   http.StatusServiceUnavailable,
			body:   `{"status":"unhealthy","checks":{"db":"connection refused"}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(nil)
			for name, fn := range tt.checks {
				h.Add(Liveness, Check{Name: name, Func: fn})
			}
			runN(h, tt.runs)

			w := get(t, h.LiveEndpoint)
			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}

func TestReadyEndpoint(t *testing.T) {
	h := New(nil)
	h.Add(Readiness, Check{Name: "postgres", Func: failing("ping: refused")})
	h.Add(Liveness, Check{Name: "goroutines", Func: failing("too many")})

	w := get(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"_readiness":"service is not ready"}}`, w.Body.String())

	h.SetReady(true)
	w = get(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, h.IsReady())

	runN(h, 3)
	w = get(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	// Liveness failures do not leak into readiness.
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"postgres":"ping: refused"}}`, w.Body.String())
	assert.False(t, h.IsReady())

	h.SetReady(false)
	w = get(t, h.ReadyEndpoint)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"_readiness":"service is not ready","postgres":"ping: refused"}}`, w.Body.String())
}

func TestCheckThresholds(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := New(zap.New(core))

	var fail atomic.Bool
	fail.Store(true)
	h.Add(Readiness, Check{
		Name:             "db",
		SuccessThreshold: 2,
		Func: func(context.Context) error {
			if fail.Load() {
				return errors.New("down")
			}
			return nil
		},
	})
	h.SetReady(true)

	runN(h, 3)
	require.False(t, h.IsReady())
	require.Equal(t, 1, logs.FilterMessage("Health check failing").Len())

	fail.Store(false)
	runN(h, 1)
	assert.False(t, h.IsReady(), "one success is below the threshold")
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"db":"check is unhealthy"}}`, get(t, h.ReadyEndpoint).Body.String())

	runN(h, 1)
	assert.True(t, h.IsReady())
	assert.Equal(t, 1, logs.FilterMessage("Health check recovered").Len())
}

func TestStartStop(t *testing.T) {
	h := New(nil)
	var calls atomic.Int32
	h.Add(Liveness, Check{Name: "count", Func: func(context.Context) error {
		calls.Add(1)
		return nil
	}})

	h.Start(context.Background(), 10*time.Millisecond)
	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
	stopped := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, calls.Load())
}

func TestCheckTimeout(t *testing.T) {
	h := New(nil)
	h.Add(Readiness, Check{
		Name:             "slow",
		Timeout:          5 * time.Millisecond,
		FailureThreshold: 1,
		Func: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	h.SetReady(true)

	runN(h, 1)
	assert.False(t, h.IsReady())
}

func TestConcurrentAccess(t *testing.T) {
	h := New(nil)
	h.Add(Liveness, Check{Name: "a", Func: passing})
	h.Add(Readiness, Check{Name: "b", Func: failing("x")})
	h.SetReady(true)

	h.Start(context.Background(), time.Millisecond)
	defer h.Stop()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				get(t, h.LiveEndpoint)
				get(t, h.ReadyEndpoint)
				h.IsReady()
			}
		}()
	}
	wg.Wait()
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestCheckers(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, PingCheck(fakePinger{})(ctx))
	err := PingCheck(fakePinger{err: errors.New("refused")})(ctx)
	require.EqualError(t, err, "ping: refused")

	assert.NoError(t, GoroutineCountCheck(100_000)(ctx))
	assert.Error(t, GoroutineCountCheck(0)(ctx))

	assert.NoError(t, GCMaxPauseCheck(time.Hour)(ctx))
}
