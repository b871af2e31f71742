package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker_Check(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(h *HealthChecker)
		expected string
	}{
		{
			name:     "no checks",
			setup:    func(h *HealthChecker) {},
			expected: StatusHealthy,
		},
		{
			name: "all passing",
			setup: func(h *HealthChecker) {
				h.AddCheck("subscription", true, func(context.Context) error { return nil })
				h.AddCheck("zeal_api", false, func(context.Context) error { return nil })
			},
			expected: StatusHealthy,
		},
		{
			name: "non-critical failure degrades",
			setup: func(h *HealthChecker) {
				h.AddCheck("subscription", true, func(context.Context) error { return nil })
				h.AddCheck("zeal_api", false, func(context.Context) error { return errors.New("connection refused") })
			},
			expected: StatusDegraded,
		},
		{
			name: "critical failure is unhealthy",
			setup: func(h *HealthChecker) {
				h.AddCheck("zeal_api", false, func(context.Context) error { return errors.New("timeout") })
				h.AddCheck("subscription", true, func(context.Context) error { return errors.New("not running") })
			},
			expected: StatusUnhealthy,
		},
		{
			name: "panicking check is a failure",
			setup: func(h *HealthChecker) {
				h.AddCheck("subscription", true, func(context.Context) error { panic("nil manager") })
			},
			expected: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthChecker("1.0.0", nil)
			tt.setup(h)

			status := h.Check(context.Background())
			assert.Equal(t, tt.expected, status.Status)
			assert.Equal(t, "1.0.0", status.Version)
		})
	}
}

func TestHealthChecker_DependencyDetail(t *testing.T) {
	h := NewHealthChecker("1.0.0", nil)
	h.AddCheck("zeal_api", false, func(context.Context) error { return errors.New("connection refused") })
	h.AddCheck("panics", false, func(context.Context) error { panic("boom") })

	status := h.Check(context.Background())
	require.Contains(t, status.Dependencies, "zeal_api")
	assert.Equal(t, StatusUnhealthy, status.Dependencies["zeal_api"].Status)
	assert.Equal(t, "connection refused", status.Dependencies["zeal_api"].Message)
	assert.Equal(t, "panic: boom", status.Dependencies["panics"].Message)
}

func TestHealthChecker_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	h := NewHealthChecker("1.0.0", client)
	assert.Equal(t, []string{"redis"}, h.Names())

	status := h.Check(context.Background())
	assert.Equal(t, StatusHealthy, status.Status)
	assert.Equal(t, StatusHealthy, status.Dependencies["redis"].Status)

	mr.Close()
	status = h.Check(context.Background())
	assert.Equal(t, StatusDegraded, status.Status)
	assert.Equal(t, StatusUnhealthy, status.Dependencies["redis"].Status)
}

func TestHealthChecker_Names(t *testing.T) {
	h := NewHealthChecker("", nil)
	h.AddCheck("zeal_api", false, func(context.Context) error { return nil })
	h.AddCheck("subscription", true, func(context.Context) error { return nil })
	assert.Equal(t, []string{"subscription", "zeal_api"}, h.Names())
}

func TestHealthRoutes(t *testing.T) {
	running := true
	h := NewHealthChecker("1.0.0", nil)
	h.AddCheck("subscription", true, func(context.Context) error {
		if !running {
			return errors.New("subscription manager is not running")
		}
		return nil
	})

	mux := http.NewServeMux()
	RegisterHealthRoutes(mux, h)

	get := func(path string) (*httptest.ResponseRecorder, map[string]interface{}) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return rec, body
	}

	rec, body := get("/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, StatusHealthy, body["status"])

	running = false
	rec, body = get("/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, StatusUnhealthy, body["status"])

	rec, body = get("/health/live")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusHealthy, body["status"])
}
