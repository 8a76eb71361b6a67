package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/jsamuelsen/application-intake/internal/domain"
)

var receivedAt = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	return New(db, 4), mock
}

func testSubmission() *domain.Submission {
	return domain.NewSubmission("sub-1", "Ada Lovelace", "ada@example.com", receivedAt)
}

func TestStore_Migrate(t *testing.T) {
	s, mock := newMockStore(t)

	for _, stmt := range schema {
		mock.ExpectExec(stmt).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, s.Migrate(context.Background()))
}

func TestStore_Migrate_Error(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(schema[0]).WillReturnError(errors.New("permission denied"))

	err := s.Migrate(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "applying schema")
}

func TestStore_Count(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(countQuery).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := s.Count(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStore_ExistsByEmail(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(existsQuery).
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := s.ExistsByEmail(context.Background(), "ada@example.com")

	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStore_Create(t *testing.T) {
	s, mock := newMockStore(t)
	sub := testSubmission()

	mock.ExpectBegin()
	mock.ExpectExec(lockQuery).WithArgs(createLockKey).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(countQuery).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec(insertQuery).
		WithArgs(sub.ID, sub.Name, sub.Email, domain.SubmissionStatusAccepted, sub.ReceivedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	before, err := s.Create(context.Background(), sub, 5)

	require.NoError(t, err)
	assert.Equal(t, 2, before)
}

func TestStore_Create_QuotaFull(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(lockQuery).WithArgs(createLockKey).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(countQuery).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectRollback()

	before, err := s.Create(context.Background(), testSubmission(), 5)

	require.ErrorIs(t, err, domain.ErrQuotaExceeded)
	assert.Equal(t, 5, before)
}

func TestStore_Create_DuplicateEmail(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(lockQuery).WithArgs(createLockKey).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(countQuery).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(insertQuery).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: uniqueViolation, Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	_, err := s.Create(context.Background(), testSubmission(), 5)

	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestStore_Create_InsertError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(lockQuery).WithArgs(createLockKey).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(countQuery).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(insertQuery).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := s.Create(context.Background(), testSubmission(), 5)

	require.Error(t, err)
	assert.False(t, domain.IsConflict(err))
	assert.Contains(t, err.Error(), "disk full")
}

func TestStore_Create_BeginError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	_, err := s.Create(context.Background(), testSubmission(), 5)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "beginning transaction")
}

func TestStore_List(t *testing.T) {
	s, mock := newMockStore(t)

	columns := []string{"id", "name", "email", "status", "received_at"}

	mock.ExpectQuery(listQuery).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("b", "Grace", "grace@example.com", "accepted", receivedAt.Add(time.Minute)).
			AddRow("a", "Ada", "ada@example.com", "accepted", receivedAt))

	page, err := s.List(context.Background(), domain.ListQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].ID)
	assert.Equal(t, "grace@example.com", page[0].Email)

	mock.ExpectQuery(listAfterQuery).
		WithArgs(receivedAt, "a", 2).
		WillReturnRows(sqlmock.NewRows(columns))

	page, err = s.List(context.Background(), domain.ListQuery{Limit: 2, AfterReceivedAt: receivedAt, AfterID: "a"})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestStore_ApplicationsLimit(t *testing.T) {
	tests := []struct {
		name     string
		rows     *sqlmock.Rows
		err      error
		expected int
		wantErr  bool
	}{
		{name: "stored", rows: sqlmock.NewRows([]string{"value"}).AddRow("12"), expected: 12},
		{name: "unset", err: sql.ErrNoRows, expected: 4},
		{name: "non-numeric", rows: sqlmock.NewRows([]string{"value"}).AddRow("lots"), expected: 4},
		{name: "query failure", err: errors.New("timeout"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)

			expect := mock.ExpectQuery(getSettingQuery).WithArgs(limitSettingKey)
			if tt.err != nil {
				expect.WillReturnError(tt.err)
			} else {
				expect.WillReturnRows(tt.rows)
			}

			limit, err := s.ApplicationsLimit(context.Background())

			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, limit)
		})
	}
}

func TestStore_SetApplicationsLimit(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(putSettingQuery).WithArgs(limitSettingKey, "9").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.SetApplicationsLimit(context.Background(), 9))

	err := s.SetApplicationsLimit(context.Background(), -2)
	assert.True(t, domain.IsValidation(err))
}

func TestStore_HealthCheck(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	defer db.Close()

	mock.ExpectPing()

	s := New(db, 0)

	assert.Equal(t, "postgres", s.Name())
	require.NoError(t, s.Check(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	err = s.Check(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsUnavailable(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestStore_ConcurrentCreate runs against a real database when
// INTAKE_TEST_POSTGRES_DSN is set.
func TestStore_ConcurrentCreate(t *testing.T) {
	dsn := os.Getenv("INTAKE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("INTAKE_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()

	db, err := Open(ctx, Options{DSN: dsn, MaxOpenConns: 20, MaxIdleConns: 5})
	require.NoError(t, err)

	defer db.Close()

	s := New(db, 0)
	require.NoError(t, s.Migrate(ctx))

	_, err = db.ExecContext(ctx, `TRUNCATE submissions`)
	require.NoError(t, err)

	var accepted atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	for i := range 10 {
		g.Go(func() error {
			sub := domain.NewSubmission(uuid.NewString(), "Applicant", fmt.Sprintf("a%d@example.com", i), time.Now().UTC())

			_, err := s.Create(gctx, sub, 1)

			switch {
			case err == nil:
				accepted.Add(1)
			case !domain.IsQuotaExceeded(err):
				return err
			}

			return nil
		})
	}

	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), accepted.Load())

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
