// Package memory provides an in-process submission store for local runs
// and tests. Contents are lost on restart.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/jsamuelsen/application-intake/internal/domain"
)

// Store keeps submissions and settings in memory.
// A single mutex covers every read and the conditional insert.
type Store struct {
	mu           sync.RWMutex
	submissions  []*domain.Submission
	emails       map[string]string
	limit        *int
	defaultLimit int
}

// New creates an empty store. defaultLimit is reported until a limit is set.
func New(defaultLimit int) *Store {
	return &Store{
		emails:       make(map[string]string),
		defaultLimit: defaultLimit,
	}
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string {
	return "memory"
}

// Check implements ports.HealthChecker.
func (s *Store) Check(ctx context.Context) error {
	return ctx.Err()
}

// Count implements ports.SubmissionStore.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.submissions), nil
}

// ExistsByEmail implements ports.SubmissionStore.
func (s *Store) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.emails[email]

	return ok, nil
}

// Create implements ports.SubmissionStore.
func (s *Store) Create(ctx context.Context, sub *domain.Submission, limit int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.submissions)

	if before >= limit {
		return before, domain.NewQuotaExceededError("submission", limit)
	}

	if _, ok := s.emails[sub.Email]; ok {
		return before, domain.NewConflictError("submission", "email already exists")
	}

	stored := *sub
	s.submissions = append(s.submissions, &stored)
	s.emails[sub.Email] = sub.ID

	return before, nil
}

// List implements ports.SubmissionStore.
func (s *Store) List(ctx context.Context, query domain.ListQuery) ([]*domain.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if query.Limit <= 0 {
		return []*domain.Submission{}, nil
	}

	s.mu.RLock()
	ordered := slices.Clone(s.submissions)
	s.mu.RUnlock()

	slices.SortFunc(ordered, newestFirst)

	out := make([]*domain.Submission, 0, min(query.Limit, len(ordered)))

	for _, sub := range ordered {
		if len(out) == query.Limit {
			break
		}

		if query.Before(sub) {
			copied := *sub
			out = append(out, &copied)
		}
	}

	return out, nil
}

// ApplicationsLimit implements ports.SettingsStore.
func (s *Store) ApplicationsLimit(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.limit == nil {
		return s.defaultLimit, nil
	}

	return *s.limit, nil
}

// SetApplicationsLimit implements ports.SettingsStore.
func (s *Store) SetApplicationsLimit(ctx context.Context, limit int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if limit < 0 {
		return domain.NewValidationErrorWithValue("applicationsLimit", "must be zero or greater", limit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.limit = &limit

	return nil
}

// newestFirst orders by received time descending, then id descending.
func newestFirst(a, b *domain.Submission) int {
	if c := b.ReceivedAt.Compare(a.ReceivedAt); c != 0 {
		return c
	}

	switch {
	case a.ID > b.ID:
		return -1
	case a.ID < b.ID:
		return 1
	default:
		return 0
	}
}
