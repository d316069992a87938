package mocks

import (
	"context"

	"github.com/arcanalabs/arcana/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockLedgerRepo struct {
	mock.Mock
	domain.LedgerRepository
}

func (m *MockLedgerRepo) ApplyDelta(ctx context.Context, entry *domain.LedgerEntry) (int, error) {
	args := m.Called(ctx, entry)
	return args.Int(0), args.Error(1)
}

func (m *MockLedgerRepo) CreatePendingPurchase(ctx context.Context, entry *domain.LedgerEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerRepo) CompletePurchase(ctx context.Context, paymentID string) (*domain.LedgerEntry, int, error) {
	args := m.Called(ctx, paymentID)

	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).(*domain.LedgerEntry), args.Int(1), args.Error(2)
}

func (m *MockLedgerRepo) FailPurchase(ctx context.Context, paymentID string) error {
	args := m.Called(ctx, paymentID)
	return args.Error(0)
}

func (m *MockLedgerRepo) RefundPurchase(ctx context.Context, paymentID string) (*domain.RefundedPurchase, error) {
	args := m.Called(ctx, paymentID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefundedPurchase), args.Error(1)
}

func (m *MockLedgerRepo) GetEntryById(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	args := m.Called(ctx, id)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepo) GetEntryByPaymentId(ctx context.Context, paymentID string) (*domain.LedgerEntry, error) {
	args := m.Called(ctx, paymentID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepo) GetEntriesByUserId(
	ctx context.Context,
	userID int,
	pagination domain.Pagination) ([]domain.LedgerEntry, *domain.Metadata, error) {

	args := m.Called(ctx, userID, pagination)

	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]domain.LedgerEntry), args.Get(1).(*domain.Metadata), args.Error(2)
}

func (m *MockLedgerRepo) SumEntriesByUserId(ctx context.Context, userID int) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}
