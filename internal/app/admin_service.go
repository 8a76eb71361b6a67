package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jsamuelsen/application-intake/internal/domain"
	"github.com/jsamuelsen/application-intake/internal/platform/logging"
	"github.com/jsamuelsen/application-intake/internal/ports"
)

const (
	// DefaultPageSize is used when a listing request does not set a limit.
	DefaultPageSize = 20

	// MaxPageSize caps listing requests.
	MaxPageSize = 100
)

// AdminService serves the operator views over stored submissions and the
// quota setting.
type AdminService struct {
	store    ports.SubmissionStore
	settings ports.SettingsStore
	logger   *slog.Logger
}

// NewAdminService creates an admin service.
func NewAdminService(store ports.SubmissionStore, settings ports.SettingsStore, logger *slog.Logger) *AdminService {
	if logger == nil {
		logger = slog.Default()
	}

	return &AdminService{
		store:    store,
		settings: settings,
		logger:   logger.With(slog.String("component", "app.AdminService")),
	}
}

// ListSubmissions returns one page of submissions, newest first. The page
// size is clamped to [1, MaxPageSize] and one extra submission is fetched
// when available, so callers can tell whether another page follows.
func (s *AdminService) ListSubmissions(ctx context.Context, query domain.ListQuery) ([]*domain.Submission, error) {
	switch {
	case query.Limit <= 0:
		query.Limit = DefaultPageSize
	case query.Limit > MaxPageSize:
		query.Limit = MaxPageSize
	}

	query.Limit++

	subs, err := s.store.List(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}

	return subs, nil
}

// QuotaStatus reads the quota and the current count concurrently.
// Remaining is limit - count and may be negative after the limit is lowered.
func (s *AdminService) QuotaStatus(ctx context.Context) (*domain.QuotaStatus, error) {
	limit, count, err := Parallel2(ctx, s.settings.ApplicationsLimit, s.store.Count)
	if err != nil {
		return nil, fmt.Errorf("reading quota status: %w", err)
	}

	return domain.NewQuotaStatus(limit, count), nil
}

// UpdateApplicationsLimit stores a new quota. Lowering it below the current
// count leaves existing submissions untouched.
func (s *AdminService) UpdateApplicationsLimit(ctx context.Context, limit int) (*domain.QuotaStatus, error) {
	if limit < 0 {
		return nil, domain.NewValidationErrorWithValue("applicationsLimit", "must be zero or greater", limit)
	}

	if err := s.settings.SetApplicationsLimit(ctx, limit); err != nil {
		return nil, fmt.Errorf("updating applications limit: %w", err)
	}

	logging.FromContextOr(ctx, s.logger).InfoContext(ctx, "applications limit updated",
		slog.Int("limit", limit),
	)

	return s.QuotaStatus(ctx)
}
