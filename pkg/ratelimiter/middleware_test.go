package ratelimiter_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/codeai/pkg/metrics"
	"github.com/dmitrymomot/codeai/pkg/ratelimiter"
)

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (*ratelimiter.Result, error) {
	return nil, ratelimiter.ErrStoreUnavailable
}

func (failingLimiter) AllowN(context.Context, string, int) (*ratelimiter.Result, error) {
	return nil, ratelimiter.ErrStoreUnavailable
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func request(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	t.Cleanup(func() { _ = store.Close() })
	bucket, err := ratelimiter.NewBucket(store, ratelimiter.Config{
		Capacity: 2, RefillRate: 1, RefillInterval: time.Minute,
	})
	require.NoError(t, err)

	m := metrics.New()
	h := ratelimiter.Middleware(bucket,
		ratelimiter.WithScope("login"),
		ratelimiter.WithMetrics(m),
	)(okHandler())

	rec := request(h, "10.0.0.1:1234")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusNoContent, request(h, "10.0.0.1:5678").Code)

	rec = request(h, "10.0.0.1:9999")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "too_many_requests")

	// Another client still has its own budget.
	assert.Equal(t, http.StatusNoContent, request(h, "10.0.0.2:1234").Code)
}

func TestMiddleware_FailOpen(t *testing.T) {
	t.Parallel()

	h := ratelimiter.Middleware(failingLimiter{})(okHandler())
	assert.Equal(t, http.StatusNoContent, request(h, "10.0.0.1:1").Code)
}

func TestComposite(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "192.168.1.10:4321"

	assert.Equal(t, "192.168.1.10", ratelimiter.ByIP(req))
	assert.Equal(t, "192.168.1.10:POST /api/auth/login", ratelimiter.Composite(ratelimiter.ByIP, ratelimiter.ByRoute)(req))
	assert.Empty(t, ratelimiter.Composite(func(*http.Request) string { return "" })(req))

	long := ratelimiter.Composite(
		func(*http.Request) string { return string(make([]byte, 40)) },
		func(*http.Request) string { return string(make([]byte, 40)) },
	)(req)
	assert.LessOrEqual(t, len(long), 13)
}
