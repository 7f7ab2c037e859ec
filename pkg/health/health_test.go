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

func up(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("connection refused") }

func ready(t *testing.T, h *Handler) (int, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestLiveness(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("search_engine", down)

	rec := httptest.NewRecorder()
	h.LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusUp, resp.Status)
	assert.Empty(t, resp.Checks)
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name       string
		engine     Checker
		redis      Checker
		postgres   Checker
		kafka      Checker
		wantCode   int
		wantStatus Status
	}{
		{"all up", up, up, up, up, http.StatusOK, StatusUp},
		{"catalog down degrades", up, up, down, up, http.StatusOK, StatusDegraded},
		{"catalog and events down degrade", up, up, down, down, http.StatusOK, StatusDegraded},
		{"engine down", down, up, up, up, http.StatusServiceUnavailable, StatusDown},
		{"rate limit store down", up, down, up, up, http.StatusServiceUnavailable, StatusDown},
		{"critical wins over degraded", down, up, down, up, http.StatusServiceUnavailable, StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler()
			h.RegisterCritical("search_engine", tt.engine)
			h.Register("redis", tt.redis)
			h.RegisterNonCritical("postgres", tt.postgres)
			h.RegisterNonCritical("kafka", tt.kafka)

			code, resp := ready(t, h)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, resp.Status)
			require.Len(t, resp.Checks, 4)
			assert.True(t, resp.Checks["redis"].Critical)
			assert.False(t, resp.Checks["kafka"].Critical)
		})
	}
}

func TestReadiness_ReportsErrors(t *testing.T) {
	h := NewHandler()
	h.RegisterNonCritical("postgres", down)

	_, resp := ready(t, h)
	assert.Equal(t, StatusDown, resp.Checks["postgres"].Status)
	assert.Equal(t, "connection refused", resp.Checks["postgres"].Error)
}

func TestReadiness_NoChecks(t *testing.T) {
	code, resp := ready(t, NewHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusUp, resp.Status)
}

func TestRegister_Overwrites(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("search_engine", down)
	h.RegisterNonCritical("search_engine", down)

	code, resp := ready(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusDegraded, resp.Status)
}

func TestReadiness_HonoursTimeout(t *testing.T) {
	h := NewHandler()
	h.timeout = 10 * time.Millisecond
	h.RegisterCritical("search_engine", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	code, resp := ready(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, resp.Checks["search_engine"].Error, "deadline exceeded")
}
