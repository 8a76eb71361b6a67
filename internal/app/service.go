// Package app contains application services that orchestrate use cases.
// This is the application layer in Clean Architecture - it coordinates
// domain logic and infrastructure through ports.
//
// Application Layer Responsibilities:
//   - Orchestrate use cases (submission intake, quota administration)
//   - Coordinate between domain and infrastructure
//   - Handle cross-cutting concerns (logging, outcome metrics)
//
// What does NOT belong here:
//   - HTTP specifics (that's adapters)
//   - Database queries or Redis scripts (that's store adapters)
//   - Core domain rules (that's the domain layer)
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jsamuelsen/application-intake/internal/domain"
	"github.com/jsamuelsen/application-intake/internal/platform/logging"
	"github.com/jsamuelsen/application-intake/internal/ports"
)

// IntakeRecorder receives intake outcomes for metrics.
type IntakeRecorder interface {
	RecordOutcome(ctx context.Context, kind domain.ResultKind)
	RecordBalance(ctx context.Context, balance int)
}

// IntakeService runs the submission intake workflow.
// It holds no per-request state and is safe for concurrent use.
type IntakeService struct {
	tokens   ports.TokenValidator
	settings ports.SettingsStore
	store    ports.SubmissionStore
	recorder IntakeRecorder
	logger   *slog.Logger
	newID    func() string
	now      func() time.Time
}

// IntakeServiceConfig contains the dependencies of the intake service.
// Recorder, Logger, NewID and Now are optional.
type IntakeServiceConfig struct {
	Tokens   ports.TokenValidator
	Settings ports.SettingsStore
	Store    ports.SubmissionStore
	Recorder IntakeRecorder
	Logger   *slog.Logger
	NewID    func() string
	Now      func() time.Time
}

// NewIntakeService creates an intake service with the provided dependencies.
func NewIntakeService(cfg IntakeServiceConfig) *IntakeService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &IntakeService{
		tokens:   cfg.Tokens,
		settings: cfg.Settings,
		store:    cfg.Store,
		recorder: cfg.Recorder,
		logger:   logger.With(slog.String("component", "app.IntakeService")),
		newID:    newID,
		now:      now,
	}
}

// ProcessSubmission runs one intake attempt against the given collaborators
// with default id generation and clock.
func ProcessSubmission(
	ctx context.Context,
	req domain.IntakeRequest,
	tokens ports.TokenValidator,
	settings ports.SettingsStore,
	store ports.SubmissionStore,
) *domain.IntakeResult {
	return NewIntakeService(IntakeServiceConfig{
		Tokens:   tokens,
		Settings: settings,
		Store:    store,
	}).Submit(ctx, req)
}

// Submit validates req, enforces the quota and email uniqueness, and stores
// the submission. Every failure is returned as a result, never as an error;
// the first failing check decides the outcome.
func (s *IntakeService) Submit(ctx context.Context, req domain.IntakeRequest) *domain.IntakeResult {
	logger := logging.FromContextOr(ctx, s.logger).With(slog.String("method", "Submit"))

	result := s.submit(ctx, req)

	s.record(ctx, result)

	switch {
	case result.Success:
		logger.InfoContext(ctx, "submission accepted",
			slog.String("submission_id", result.SubmissionID),
			slog.Int("balance", result.Balance),
		)
	case result.Kind == domain.KindStorageError:
		logger.ErrorContext(ctx, "submission storage failed", slog.Any("error", result.Err))
	default:
		logger.InfoContext(ctx, "submission rejected", slog.String("kind", string(result.Kind)))
	}

	return result
}

func (s *IntakeService) submit(ctx context.Context, req domain.IntakeRequest) *domain.IntakeResult {
	if !s.tokens.Validate(ctx, req.SecurityToken) {
		return domain.Failed(domain.KindForbidden, domain.MessageForbidden,
			domain.NewForbiddenError("submit", "security token rejected"))
	}

	if !req.NamePresent || !req.EmailPresent {
		return domain.Failed(domain.KindInvalidInput, domain.MessageMissingField,
			domain.NewValidationError("", "name or email is missing"))
	}

	name := SanitizeName(req.Name)
	email := NormalizeEmail(req.Email)

	if name == "" || !ValidEmail(email) {
		return domain.Failed(domain.KindInvalidInput, domain.MessageInvalidField,
			domain.NewValidationError("", "name or email is invalid"))
	}

	count, err := s.store.Count(ctx)
	if err != nil {
		return storageFailure(err)
	}

	limit, err := s.settings.ApplicationsLimit(ctx)
	if err != nil {
		return storageFailure(err)
	}

	if count >= limit {
		return quotaFailure(domain.NewQuotaExceededError("submission", limit))
	}

	exists, err := s.store.ExistsByEmail(ctx, email)
	if err != nil {
		return storageFailure(err)
	}

	if exists {
		return duplicateFailure(domain.NewConflictError("submission", "email already exists"))
	}

	sub := domain.NewSubmission(s.newID(), name, email, s.now())

	// The store re-checks both invariants atomically; the checks above only
	// fix which error a sequential caller sees first.
	before, err := s.store.Create(ctx, sub, limit)

	switch {
	case err == nil:
		return domain.Accepted(sub.ID, domain.Balance(limit, before))
	case errors.Is(err, domain.ErrQuotaExceeded):
		return quotaFailure(err)
	case errors.Is(err, domain.ErrConflict):
		return duplicateFailure(err)
	default:
		return storageFailure(err)
	}
}

func (s *IntakeService) record(ctx context.Context, result *domain.IntakeResult) {
	if s.recorder == nil {
		return
	}

	s.recorder.RecordOutcome(ctx, result.Kind)

	if result.Success {
		s.recorder.RecordBalance(ctx, result.Balance)
	}
}

func quotaFailure(err error) *domain.IntakeResult {
	return domain.Failed(domain.KindQuotaExceeded, domain.MessageQuotaExceeded, err)
}

func duplicateFailure(err error) *domain.IntakeResult {
	return domain.Failed(domain.KindDuplicateEmail, domain.MessageDuplicateEmail, err)
}

func storageFailure(err error) *domain.IntakeResult {
	return domain.Failed(domain.KindStorageError, err.Error(), err)
}
