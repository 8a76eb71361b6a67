package app

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/jsamuelsen/application-intake/internal/domain"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) Create(ctx context.Context, sub *domain.Submission, limit int) (int, error) {
	args := m.Called(ctx, sub, limit)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) List(ctx context.Context, query domain.ListQuery) ([]*domain.Submission, error) {
	args := m.Called(ctx, query)

	subs, _ := args.Get(0).([]*domain.Submission)

	return subs, args.Error(1)
}

type mockSettings struct {
	mock.Mock
}

func (m *mockSettings) ApplicationsLimit(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockSettings) SetApplicationsLimit(ctx context.Context, limit int) error {
	return m.Called(ctx, limit).Error(0)
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordOutcome(ctx context.Context, kind domain.ResultKind) {
	m.Called(ctx, kind)
}

func (m *mockRecorder) RecordBalance(ctx context.Context, balance int) {
	m.Called(ctx, balance)
}
