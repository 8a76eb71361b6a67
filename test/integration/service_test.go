//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	httpadapter "github.com/jsamuelsen/application-intake/internal/adapters/http"
	"github.com/jsamuelsen/application-intake/internal/adapters/http/dto"
	"github.com/jsamuelsen/application-intake/internal/adapters/http/handlers"
	"github.com/jsamuelsen/application-intake/internal/adapters/security"
	"github.com/jsamuelsen/application-intake/internal/app"
	"github.com/jsamuelsen/application-intake/internal/domain"
	"github.com/jsamuelsen/application-intake/internal/platform/config"
	"github.com/jsamuelsen/application-intake/internal/platform/telemetry"
	"github.com/jsamuelsen/application-intake/internal/ports"
)

// intakeStore is the combined store surface every driver provides.
type intakeStore interface {
	ports.SubmissionStore
	ports.SettingsStore
	ports.HealthChecker
}

// service is an in-process instance of the intake API.
type service struct {
	server  *httptest.Server
	client  *http.Client
	metrics *prometheus.Registry
}

// startService wires the full router over store, the way cmd/service does.
func startService(store intakeStore) (*service, error) {
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	nonce, err := security.NewNonce([]byte("integration-secret-integration-secret"), security.SubmitAction, time.Hour)
	if err != nil {
		return nil, err
	}

	registry := ports.NewHealthRegistry()
	if err := registry.Register(store); err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()

	metrics, err := telemetry.NewIntakeMetrics(reg)
	if err != nil {
		return nil, err
	}

	engine := gin.New()

	httpadapter.SetupRouter(engine, httpadapter.RouterConfig{
		Logger:     logger,
		AuthConfig: &config.AuthConfig{},
		AppConfig:  &config.AppConfig{Name: "application-intake"},
		HealthHandler: handlers.NewHealthHandler(registry,
			handlers.NewBuildInfo("integration", "none", "", store.Name()), reg),
		IntakeHandler: handlers.NewIntakeHandler(handlers.IntakeHandlerConfig{
			Submitter: app.NewIntakeService(app.IntakeServiceConfig{
				Tokens:   nonce,
				Settings: store,
				Store:    store,
				Recorder: metrics,
				Logger:   logger,
			}),
			Issuer:    nonce,
			SubmitURL: httpadapter.ApplicationsPath,
		}),
		AdminHandler: handlers.NewAdminHandler(app.NewAdminService(store, store, logger)),
		Timeout:      httpadapter.DefaultRequestTimeout,
	})

	server := httptest.NewServer(engine)

	return &service{
		server:  server,
		client:  &http.Client{Timeout: 10 * time.Second},
		metrics: reg,
	}, nil
}

func (s *service) close() {
	s.server.Close()
}

func (s *service) formToken(ctx context.Context) (string, error) {
	resp, body, err := s.do(ctx, http.MethodGet, httpadapter.ApplicationsPath+"/form", nil, nil)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("form token: status %d", resp.StatusCode)
	}

	var token dto.FormTokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", err
	}

	return token.SecurityToken, nil
}

func (s *service) submit(ctx context.Context, form url.Values) (*http.Response, []byte, error) {
	header := http.Header{"Content-Type": {"application/x-www-form-urlencoded"}}

	return s.do(ctx, http.MethodPost, httpadapter.ApplicationsPath, strings.NewReader(form.Encode()), header)
}

func (s *service) admin(ctx context.Context, method, path, body string) (*http.Response, []byte, error) {
	header := http.Header{
		"Content-Type": {"application/json"},
		"X-User-Id":    {"operator-1"},
		"X-User-Roles": {domain.RoleAdministrator},
	}

	return s.do(ctx, method, path, strings.NewReader(body), header)
}

func (s *service) setLimit(ctx context.Context, limit int) error {
	resp, body, err := s.admin(ctx, http.MethodPut, "/api/v1/admin/settings", fmt.Sprintf(`{"applicationsLimit":%d}`, limit))
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("set limit: status %d: %s", resp.StatusCode, body)
	}

	return nil
}

func (s *service) do(ctx context.Context, method, path string, body io.Reader, header http.Header) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.server.URL+path, body)
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}

	for k, v := range header {
		req.Header[http.CanonicalHeaderKey(k)] = v
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("reading response body: %w", err)
	}

	return resp, data, nil
}
