package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/lib/pq"

	"github.com/jsamuelsen/application-intake/internal/domain"
)

// createLockKey serializes conditional inserts through
// pg_advisory_xact_lock. Any constant works as long as no other
// component of the database uses it.
const createLockKey int64 = 0x696e74616b65 // "intake"

const uniqueViolation = "23505"

const limitSettingKey = "applications_limit"

// schema is applied by Migrate. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS submissions (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		email       TEXT NOT NULL,
		status      TEXT NOT NULL,
		received_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS submissions_email_key ON submissions (email)`,
	`CREATE INDEX IF NOT EXISTS submissions_received_idx ON submissions (received_at DESC, id DESC)`,
	`CREATE TABLE IF NOT EXISTS intake_settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

const (
	countQuery  = `SELECT COUNT(*) FROM submissions`
	existsQuery = `SELECT EXISTS (SELECT 1 FROM submissions WHERE email = $1)`
	lockQuery   = `SELECT pg_advisory_xact_lock($1)`
	insertQuery = `INSERT INTO submissions (id, name, email, status, received_at) VALUES ($1, $2, $3, $4, $5)`

	listQuery = `SELECT id, name, email, status, received_at FROM submissions
		ORDER BY received_at DESC, id DESC LIMIT $1`
	listAfterQuery = `SELECT id, name, email, status, received_at FROM submissions
		WHERE (received_at, id) < ($1, $2)
		ORDER BY received_at DESC, id DESC LIMIT $3`

	getSettingQuery = `SELECT value FROM intake_settings WHERE key = $1`
	putSettingQuery = `INSERT INTO intake_settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
)

// Store persists submissions and settings in PostgreSQL.
type Store struct {
	db           *sql.DB
	defaultLimit int
}

// New creates a store over db. defaultLimit is reported until a limit is set.
func New(db *sql.DB, defaultLimit int) *Store {
	return &Store{db: db, defaultLimit: defaultLimit}
}

// Migrate creates the tables and indexes the store needs.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}

	return nil
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string {
	return "postgres"
}

// Check implements ports.HealthChecker.
func (s *Store) Check(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return domain.NewUnavailableError(s.Name(), err.Error())
	}

	return nil
}

// Count implements ports.SubmissionStore.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, countQuery).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting submissions: %w", err)
	}

	return n, nil
}

// ExistsByEmail implements ports.SubmissionStore.
func (s *Store) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, existsQuery, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("looking up email: %w", err)
	}

	return exists, nil
}

// Create implements ports.SubmissionStore. The advisory lock makes the
// count and insert atomic with respect to other Create calls; the unique
// email index rejects duplicates.
func (s *Store) Create(ctx context.Context, sub *domain.Submission, limit int) (before int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, lockQuery, createLockKey); err != nil {
		return 0, fmt.Errorf("acquiring intake lock: %w", err)
	}

	if err = tx.QueryRowContext(ctx, countQuery).Scan(&before); err != nil {
		return 0, fmt.Errorf("counting submissions: %w", err)
	}

	if before >= limit {
		return before, domain.NewQuotaExceededError("submission", limit)
	}

	_, err = tx.ExecContext(ctx, insertQuery, sub.ID, sub.Name, sub.Email, sub.Status, sub.ReceivedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return before, domain.NewConflictError("submission", "email already exists")
		}

		return before, fmt.Errorf("inserting submission: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return before, fmt.Errorf("committing submission: %w", err)
	}

	return before, nil
}

// List implements ports.SubmissionStore.
func (s *Store) List(ctx context.Context, query domain.ListQuery) ([]*domain.Submission, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if query.HasCursor() {
		rows, err = s.db.QueryContext(ctx, listAfterQuery, query.AfterReceivedAt, query.AfterID, query.Limit)
	} else {
		rows, err = s.db.QueryContext(ctx, listQuery, query.Limit)
	}

	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	defer rows.Close()

	subs := make([]*domain.Submission, 0, query.Limit)

	for rows.Next() {
		var sub domain.Submission
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.Email, &sub.Status, &sub.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scanning submission: %w", err)
		}

		sub.ReceivedAt = sub.ReceivedAt.UTC()
		subs = append(subs, &sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating submissions: %w", err)
	}

	return subs, nil
}

// ApplicationsLimit implements ports.SettingsStore.
func (s *Store) ApplicationsLimit(ctx context.Context) (int, error) {
	var raw string

	err := s.db.QueryRowContext(ctx, getSettingQuery, limitSettingKey).Scan(&raw)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return s.defaultLimit, nil
	case err != nil:
		return 0, fmt.Errorf("reading applications limit: %w", err)
	}

	return domain.ParseApplicationsLimit(raw, s.defaultLimit), nil
}

// SetApplicationsLimit implements ports.SettingsStore.
func (s *Store) SetApplicationsLimit(ctx context.Context, limit int) error {
	if limit < 0 {
		return domain.NewValidationErrorWithValue("applicationsLimit", "must be zero or greater", limit)
	}

	if _, err := s.db.ExecContext(ctx, putSettingQuery, limitSettingKey, strconv.Itoa(limit)); err != nil {
		return fmt.Errorf("writing applications limit: %w", err)
	}

	return nil
}
