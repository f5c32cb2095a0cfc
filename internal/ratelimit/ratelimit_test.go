package ratelimit_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ashita-ai/tsushin/internal/ratelimit"
	"github.com/ashita-ai/tsushin/internal/testutil"
)

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("backend down")
}
func (failingLimiter) Close() error { return nil }

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/update", nil)
	req.RemoteAddr = remoteAddr
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddlewareRejectsAfterBurst(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(0.001, 2)
	defer func() { _ = limiter.Close() }()

	h := ratelimit.Middleware(limiter, ratelimit.IPKeyFunc, testutil.TestLogger())(okHandler())

	assert.Equal(t, http.StatusOK, serve(h, "192.168.1.1:1234").Code)
	assert.Equal(t, http.StatusOK, serve(h, "192.168.1.1:1234").Code)

	rec := serve(h, "192.168.1.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"status":"error","message":"too many requests"}`, rec.Body.String())

	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.2:1234").Code, "other addresses unaffected")
}

func TestMiddlewareFailsOpen(t *testing.T) {
	h := ratelimit.Middleware(failingLimiter{}, ratelimit.IPKeyFunc, testutil.TestLogger())(okHandler())
	assert.Equal(t, http.StatusOK, serve(h, "127.0.0.1:1").Code)
}

func TestMiddlewareNilLimiterPassesThrough(t *testing.T) {
	h := ratelimit.Middleware(nil, ratelimit.IPKeyFunc, testutil.TestLogger())(okHandler())
	assert.Equal(t, http.StatusOK, serve(h, "127.0.0.1:1").Code)
}

func TestIPKeyFunc(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	req.Header.Set("X-Forwarded-For", "1.1.1.1")
	assert.Equal(t, "ip:10.1.2.3", ratelimit.IPKeyFunc(req))
}
