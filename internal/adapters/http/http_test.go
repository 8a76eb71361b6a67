package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/application-intake/internal/adapters/http/dto"
	"github.com/jsamuelsen/application-intake/internal/adapters/http/handlers"
	"github.com/jsamuelsen/application-intake/internal/adapters/http/middleware"
	"github.com/jsamuelsen/application-intake/internal/adapters/security"
	"github.com/jsamuelsen/application-intake/internal/adapters/storage/memory"
	"github.com/jsamuelsen/application-intake/internal/app"
	"github.com/jsamuelsen/application-intake/internal/domain"
	"github.com/jsamuelsen/application-intake/internal/platform/config"
	"github.com/jsamuelsen/application-intake/internal/ports"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testServerConfig(maxRequestSize int64) *config.ServerConfig {
	return &config.ServerConfig{
		Host:           "127.0.0.1",
		Port:           0,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    30 * time.Second,
		MaxRequestSize: maxRequestSize,
	}
}

type testApp struct {
	srv   *Server
	nonce *security.Nonce
	store *memory.Store
}

func newTestApp(t *testing.T, limit int, limiter *middleware.ClientRateLimiter) *testApp {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	nonce, err := security.NewNonce([]byte("0123456789abcdef0123456789abcdef"), security.SubmitAction, time.Hour)
	require.NoError(t, err)

	store := memory.New(limit)

	registry := ports.NewHealthRegistry()
	require.NoError(t, registry.Register(store))

	intake := app.NewIntakeService(app.IntakeServiceConfig{
		Tokens:   nonce,
		Settings: store,
		Store:    store,
		Logger:   logger,
	})

	srv := New(testServerConfig(1<<10), logger)

	SetupRouter(srv.Engine(), RouterConfig{
		Logger:     logger,
		AuthConfig: &config.AuthConfig{},
		AppConfig:  &config.AppConfig{Name: "application-intake"},
		HealthHandler: handlers.NewHealthHandler(registry,
			handlers.NewBuildInfo("test", "none", "", "memory"), prometheus.NewRegistry()),
		IntakeHandler: handlers.NewIntakeHandler(handlers.IntakeHandlerConfig{
			Submitter: intake,
			Issuer:    nonce,
			SubmitURL: ApplicationsPath,
		}),
		AdminHandler: handlers.NewAdminHandler(app.NewAdminService(store, store, logger)),
		RateLimiter:  limiter,
		Timeout:      DefaultRequestTimeout,
	})

	return &testApp{srv: srv, nonce: nonce, store: store}
}

func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.srv.Engine().ServeHTTP(w, req)

	return w
}

func (a *testApp) submit(name, email string) *httptest.ResponseRecorder {
	form := url.Values{
		"securityToken": {a.nonce.Issue(context.Background())},
		"name":          {name},
		"email":         {email},
	}

	req := httptest.NewRequest(http.MethodPost, ApplicationsPath, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "198.51.100.4:5555"

	return a.do(req)
}

func (a *testApp) admin(method, path, body, roles string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "operator-1")

	if roles != "" {
		req.Header.Set("X-User-Roles", roles)
	}

	return a.do(req)
}

func TestRouter_IntakeFlow(t *testing.T) {
	a := newTestApp(t, 2, nil)

	w := a.do(httptest.NewRequest(http.MethodGet, ApplicationsPath+"/form", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))

	w = a.submit("Ada Lovelace", "ada@example.com")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"application received; we will respond soon","success":true,"balance":1}`, w.Body.String())

	w = a.submit("Grace Hopper", "grace@example.com")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"balance":0`)

	w = a.submit("Edsger Dijkstra", "edsger@example.com")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"message":"submission quota is full; contact us with further queries.","success":false}`, w.Body.String())
}

func TestRouter_IntakeRateLimited(t *testing.T) {
	a := newTestApp(t, 10, middleware.NewClientRateLimiter(0.001, 2))

	assert.Equal(t, http.StatusOK, a.submit("Ada", "ada@example.com").Code)
	assert.Equal(t, http.StatusConflict, a.submit("Ada", "ada@example.com").Code)

	w := a.submit("Grace", "grace@example.com")
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var errResp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, dto.ErrorCodeRateLimited, errResp.Error.Code)

	exists, err := a.store.ExistsByEmail(context.Background(), "grace@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRouter_OversizedBodyIsForbidden(t *testing.T) {
	a := newTestApp(t, 10, nil)

	form := url.Values{
		"securityToken": {a.nonce.Issue(context.Background())},
		"name":          {strings.Repeat("a", 2<<10)},
		"email":         {"ada@example.com"},
	}

	req := httptest.NewRequest(http.MethodPost, ApplicationsPath, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := a.do(req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), domain.MessageForbidden)
}

func TestRouter_AdminAuthorization(t *testing.T) {
	a := newTestApp(t, 10, nil)
	require.Equal(t, http.StatusOK, a.submit("Ada", "ada@example.com").Code)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		roles      string
		noSubject  bool
		wantStatus int
	}{
		{name: "list without subject", method: http.MethodGet, path: "/api/v1/admin/applications", noSubject: true, wantStatus: http.StatusUnauthorized},
		{name: "list without role", method: http.MethodGet, path: "/api/v1/admin/applications", wantStatus: http.StatusForbidden},
		{name: "list as administrator", method: http.MethodGet, path: "/api/v1/admin/applications", roles: domain.RoleAdministrator, wantStatus: http.StatusOK},
		{name: "settings as subscriber", method: http.MethodGet, path: "/api/v1/admin/settings", roles: "subscriber", wantStatus: http.StatusForbidden},
		{name: "settings as administrator", method: http.MethodGet, path: "/api/v1/admin/settings", roles: domain.RoleAdministrator, wantStatus: http.StatusOK},
		{name: "update as administrator", method: http.MethodPut, path: "/api/v1/admin/settings", body: `{"applicationsLimit":4}`, roles: domain.RoleAdministrator, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w *httptest.ResponseRecorder

			if tt.noSubject {
				w = a.do(httptest.NewRequest(tt.method, tt.path, nil))
			} else {
				w = a.admin(tt.method, tt.path, tt.body, tt.roles)
			}

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}

	limit, err := a.store.ApplicationsLimit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, limit)
}

func TestRouter_AdminListing(t *testing.T) {
	a := newTestApp(t, 10, nil)
	require.Equal(t, http.StatusOK, a.submit("Ada", "ada@example.com").Code)

	w := a.admin(http.MethodGet, "/api/v1/admin/applications", "", domain.RoleAdministrator)
	require.Equal(t, http.StatusOK, w.Code)

	var page dto.PaginatedResponse[dto.SubmissionRow]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))

	require.Len(t, page.Items, 1)
	assert.Equal(t, "Ada", page.Items[0].Applicant)
	assert.Equal(t, "ada@example.com", page.Items[0].Email)
	assert.False(t, page.HasMore)
}

func TestRouter_SettingsReportCallerCapabilities(t *testing.T) {
	a := newTestApp(t, 10, nil)

	w := a.admin(http.MethodGet, "/api/v1/admin/settings", "", domain.RoleAdministrator)
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.QuotaSettingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, 10, resp.Remaining)
	assert.Contains(t, resp.Capabilities, string(domain.CapReadPrivateApps))
	assert.Contains(t, resp.Capabilities, string(domain.CapManageOptions))
}

func TestRouter_HealthRoutes(t *testing.T) {
	a := newTestApp(t, 10, nil)

	for _, path := range []string{"/-/live", "/-/ready", "/-/build", "/-/metrics"} {
		w := a.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	a := newTestApp(t, 10, nil)

	w := a.do(httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), dto.ErrorCodeNotFound)
}

func TestRouter_RecoversFromPanics(t *testing.T) {
	a := newTestApp(t, 10, nil)
	a.srv.Engine().GET("/api/v1/boom", func(*gin.Context) { panic("boom") })

	w := a.do(httptest.NewRequest(http.MethodGet, "/api/v1/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestServerNew(t *testing.T) {
	cfg := testServerConfig(1 << 20)
	cfg.Port = 8080
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv := New(cfg, logger)

	require.NotNil(t, srv.Engine())
	assert.Equal(t, cfg, srv.Config())
	assert.Equal(t, "127.0.0.1:8080", srv.Addr())
	assert.Equal(t, int64(1<<20), srv.Engine().MaxMultipartMemory)
}

func TestServerStartShutdown(t *testing.T) {
	srv := New(testServerConfig(1<<20), slog.New(slog.NewTextHandler(io.Discard, nil)))

	errCh := srv.Start()

	time.Sleep(100 * time.Millisecond)

	select {
	case err := <-errCh:
		require.NoError(t, err)
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, srv.Shutdown(ctx))

	_, ok := <-errCh
	assert.False(t, ok, "error channel should be closed")
}
