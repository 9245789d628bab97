package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"cashstash/internal/core"
	"cashstash/internal/storage"
)

type MockTransactionStore struct {
	mock.Mock
}

func (m *MockTransactionStore) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(core.Transaction), args.Error(1)
}

func (m *MockTransactionStore) Get(ctx context.Context, id string) (core.Transaction, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(core.Transaction), args.Error(1)
}

func (m *MockTransactionStore) UpdateFields(ctx context.Context, id string, amount float64, description string) (core.Transaction, error) {
	args := m.Called(ctx, id, amount, description)
	return args.Get(0).(core.Transaction), args.Error(1)
}

func (m *MockTransactionStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockTransactionStore) ListByUser(ctx context.Context, userID string) ([]core.Transaction, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]core.Transaction), args.Error(1)
}

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) CreateUser(ctx context.Context, u storage.User) (storage.User, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(storage.User), args.Error(1)
}

func (m *MockUserStore) UserByEmail(ctx context.Context, email string) (storage.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(storage.User), args.Error(1)
}

func (m *MockUserStore) UserByID(ctx context.Context, id string) (storage.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(storage.User), args.Error(1)
}

func (m *MockUserStore) UpdateDisplayName(ctx context.Context, id, name string) (storage.User, error) {
	args := m.Called(ctx, id, name)
	return args.Get(0).(storage.User), args.Error(1)
}
