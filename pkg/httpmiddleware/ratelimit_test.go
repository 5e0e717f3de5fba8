package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(cfg RateLimitConfig) (*limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
	l := newLimiter(cfg)
	l.now = clock.Now
	return l, clock
}

func serve(h http.Handler, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:4444"
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_RejectsOverBudget(t *testing.T) {
	l, _ := newTestLimiter(RateLimitConfig{Max: 3, Window: time.Minute})
	h := l.middleware()(okHandler())

	for i := range 3 {
		w := serve(h, nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
	}

	w := serve(h, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"rate limit exceeded"}`, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimit_SlidingWindow(t *testing.T) {
	l, clock := newTestLimiter(RateLimitConfig{Max: 2, Window: time.Minute})
	h := l.middleware()(okHandler())

	require.Equal(t, http.StatusOK, serve(h, nil).Code)
	require.Equal(t, http.StatusOK, serve(h, nil).Code)
	require.Equal(t, http.StatusTooManyRequests, serve(h, nil).Code)

	// Half a window in, the previous window still weighs 2*0.5 = 1.
	clock.Advance(90 * time.Second)
	assert.Equal(t, http.StatusOK, serve(h, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, nil).Code)

	// Two idle windows reset the counter.
	clock.Advance(2 * time.Minute)
	assert.Equal(t, http.StatusOK, serve(h, nil).Code)
	assert.Equal(t, http.StatusOK, serve(h, nil).Code)
}

func TestRateLimit_Headers(t *testing.T) {
	l, clock := newTestLimiter(RateLimitConfig{Max: 10, Window: time.Minute})
	h := l.middleware()(okHandler())

	w := serve(h, nil)

	assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", w.Header().Get("X-RateLimit-Remaining"))
	reset := clock.Now().Truncate(time.Minute).Add(time.Minute).Unix()
	assert.Equal(t, strconv.FormatInt(reset, 10), w.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimit_Keys(t *testing.T) {
	tests := []struct {
		name    string
		first   func(*http.Request)
		second  func(*http.Request)
		limited bool
	}{
		{
			name:    "same address",
			first:   func(r *http.Request) { r.RemoteAddr = "10.0.0.1:1234" },
			second:  func(r *http.Request) { r.RemoteAddr = "10.0.0.1:5678" },
			limited: true,
		},
		{
			name:   "different address",
			first:  func(r *http.Request) { r.RemoteAddr = "10.0.0.1:1234" },
			second: func(r *http.Request) { r.RemoteAddr = "10.0.0.2:1234" },
		},
		{
			name:    "forwarded for first hop",
			first:   func(r *http.Request) { r.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18") },
			second:  func(r *http.Request) { r.RemoteAddr = "192.168.1.2:5555"; r.Header.Set("X-Forwarded-For", "203.0.113.50") },
			limited: true,
		},
		{
			name:   "distinct bearer tokens behind one address",
			first:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer a") },
			second: func(r *http.Request) { r.Header.Set("Authorization", "Bearer b") },
		},
		{
			name:    "same staff key from different addresses",
			first:   func(r *http.Request) { r.Header.Set("api_key", "k1") },
			second:  func(r *http.Request) { r.RemoteAddr = "10.9.9.9:1"; r.Header.Set("api_key", "k1") },
			limited: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _ := newTestLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
			h := l.middleware()(okHandler())

			require.Equal(t, http.StatusOK, serve(h, tt.first).Code)
			want := http.StatusOK
			if tt.limited {
				want = http.StatusTooManyRequests
			}
			assert.Equal(t, want, serve(h, tt.second).Code)
		})
	}
}

func TestRateLimit_CustomKeyFunc(t *testing.T) {
	l, _ := newTestLimiter(RateLimitConfig{
		Max:     1,
		Window:  time.Minute,
		KeyFunc: func(*http.Request) string { return "everyone" },
	})
	h := l.middleware()(okHandler())

	require.Equal(t, http.StatusOK, serve(h, func(r *http.Request) { r.RemoteAddr = "10.0.0.1:1" }).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, func(r *http.Request) { r.RemoteAddr = "10.0.0.2:1" }).Code)
}

func TestLimiter_Evict(t *testing.T) {
	l, clock := newTestLimiter(RateLimitConfig{Max: 1, Window: time.Minute})

	_, _, ok := l.take("a", clock.Now())
	require.True(t, ok)

	l.evict(clock.Now().Add(time.Minute))
	assert.Len(t, l.counters, 1)

	l.evict(clock.Now().Add(2 * time.Minute))
	assert.Empty(t, l.counters)
}
