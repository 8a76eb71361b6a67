// Package ports defines interfaces for external dependencies.
// Ports are contracts that adapters implement, allowing the application layer
// to depend on abstractions rather than concrete implementations.
//
// Port Design Principles:
//   - Context as first parameter (always) for cancellation and deadlines
//   - Return domain types, never driver or wire types
//   - Error returns use domain error types (ErrConflict, ErrQuotaExceeded, etc.)
//   - Keep interfaces small and focused
package ports

import (
	"context"

	"github.com/jsamuelsen/application-intake/internal/domain"
)

// SubmissionStore persists intake submissions.
//
// Create is the authoritative guard for both intake invariants: it must
// count, check the email and insert as one atomic step so that concurrent
// callers can neither oversubscribe the quota nor store the same email twice.
type SubmissionStore interface {
	// Count returns the number of stored submissions.
	Count(ctx context.Context) (int, error)

	// ExistsByEmail reports whether a submission with the normalized email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Create stores sub if fewer than limit submissions exist and no submission
	// shares its email. It returns the number of submissions that existed
	// immediately before the insert.
	// Returns domain.ErrQuotaExceeded when the quota is full and
	// domain.ErrConflict when the email already exists.
	Create(ctx context.Context, sub *domain.Submission, limit int) (int, error)

	// List returns submissions newest first, starting after the query cursor.
	List(ctx context.Context, query domain.ListQuery) ([]*domain.Submission, error)
}

// SettingsStore holds operator-editable intake settings.
type SettingsStore interface {
	// ApplicationsLimit returns the submission quota.
	// Unset or non-numeric values read as the configured default.
	ApplicationsLimit(ctx context.Context) (int, error)

	// SetApplicationsLimit stores a new submission quota.
	SetApplicationsLimit(ctx context.Context, limit int) error
}

// TokenValidator verifies that a request originated from the intake form
// within the token's validity window.
type TokenValidator interface {
	Validate(ctx context.Context, token string) bool
}

// TokenIssuer mints security tokens for the intake form.
type TokenIssuer interface {
	Issue(ctx context.Context) string
}

// TokenValidatorFunc adapts a plain function to TokenValidator.
type TokenValidatorFunc func(ctx context.Context, token string) bool

// Validate implements TokenValidator.
func (f TokenValidatorFunc) Validate(ctx context.Context, token string) bool {
	return f(ctx, token)
}
