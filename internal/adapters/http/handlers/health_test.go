package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/application-intake/internal/adapters/storage/memory"
	"github.com/jsamuelsen/application-intake/internal/platform/telemetry"
	"github.com/jsamuelsen/application-intake/internal/ports"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type failingChecker struct{}

func (failingChecker) Name() string { return "redis" }

func (failingChecker) Check(context.Context) error { return errors.New("connection refused") }

func healthRouter(t *testing.T, checkers ...ports.HealthChecker) (*gin.Engine, *prometheus.Registry) {
	t.Helper()

	registry := ports.NewHealthRegistry()
	for _, c := range checkers {
		require.NoError(t, registry.Register(c))
	}

	reg := prometheus.NewRegistry()
	handler := NewHealthHandler(registry, NewBuildInfo("1.2.3", "def456", "2026-02-01T12:00:00Z", "memory"), reg)

	router := gin.New()
	handler.RegisterHealthRoutesOnEngine(router)

	return router, reg
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	return w
}

func TestNewBuildInfo(t *testing.T) {
	bi := NewBuildInfo("1.0.0", "abc123", "2026-01-15T10:00:00Z", "postgres")

	assert.Equal(t, "1.0.0", bi.Version)
	assert.Equal(t, "postgres", bi.StoreDriver)
	assert.Equal(t, runtime.Version(), bi.GoVersion)
}

func TestHealthHandler_Liveness(t *testing.T) {
	router, _ := healthRouter(t, failingChecker{})

	w := get(router, "/-/live")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHealthHandler_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		checkers   []ports.HealthChecker
		wantStatus int
		wantBody   string
	}{
		{
			name:       "store healthy",
			checkers:   []ports.HealthChecker{memory.New(0)},
			wantStatus: http.StatusOK,
			wantBody:   "healthy",
		},
		{
			name:       "store unhealthy",
			checkers:   []ports.HealthChecker{memory.New(0), failingChecker{}},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "connection refused",
		},
		{
			name:       "no checks registered",
			wantStatus: http.StatusOK,
			wantBody:   "healthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := healthRouter(t, tt.checkers...)

			w := get(router, "/-/ready")

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestHealthHandler_BuildInfo(t *testing.T) {
	router, _ := healthRouter(t)

	w := get(router, "/-/build")

	require.Equal(t, http.StatusOK, w.Code)

	var resp BuildInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, "def456", resp.Commit)
	assert.Equal(t, "memory", resp.StoreDriver)
}

func TestHealthHandler_Metrics(t *testing.T) {
	router, reg := healthRouter(t)

	metrics, err := telemetry.NewIntakeMetrics(reg)
	require.NoError(t, err)
	metrics.RecordBalance(context.Background(), 4)

	w := get(router, "/-/metrics")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Body.String(), "intake_quota_balance 4")
}

func TestNewHealthHandler_DefaultGatherer(t *testing.T) {
	handler := NewHealthHandler(ports.NewHealthRegistry(), BuildInfo{}, nil)

	assert.Equal(t, prometheus.DefaultGatherer, handler.gatherer)
}
