package mocks

import (
	"context"

	"github.com/arcanalabs/arcana/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockCreditService struct {
	mock.Mock
	domain.CreditService
}

func (m *MockCreditService) CheckSufficientCredits(ctx context.Context, userID, amount int) (domain.CreditCheck, error) {
	args := m.Called(ctx, userID, amount)
	return args.Get(0).(domain.CreditCheck), args.Error(1)
}

func (m *MockCreditService) DeductCredits(ctx context.Context, params domain.DeductParams) (domain.TransactionResult, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(domain.TransactionResult), args.Error(1)
}

func (m *MockCreditService) AddCredits(ctx context.Context, params domain.AddParams) (domain.TransactionResult, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(domain.TransactionResult), args.Error(1)
}

func (m *MockCreditService) RefundCredits(ctx context.Context, params domain.RefundParams) (domain.TransactionResult, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(domain.TransactionResult), args.Error(1)
}

func (m *MockCreditService) CreatePendingPurchase(ctx context.Context, params domain.PendingPurchase) (uuid.UUID, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockCreditService) CompletePurchase(ctx context.Context, paymentID string) (*domain.CompletedPurchase, error) {
	args := m.Called(ctx, paymentID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CompletedPurchase), args.Error(1)
}

func (m *MockCreditService) FailPurchase(ctx context.Context, paymentID string) error {
	args := m.Called(ctx, paymentID)
	return args.Error(0)
}

func (m *MockCreditService) RefundPurchase(ctx context.Context, paymentID string) (*domain.RefundedPurchase, error) {
	args := m.Called(ctx, paymentID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefundedPurchase), args.Error(1)
}

func (m *MockCreditService) UpdateTransactionStatus(ctx context.Context, paymentID string, status domain.PaymentStatus) error {
	args := m.Called(ctx, paymentID, status)
	return args.Error(0)
}

func (m *MockCreditService) CalculateReadingCost(
	spread domain.SpreadType,
	styleCount int,
	extended bool) (domain.CostBreakdown, error) {

	args := m.Called(spread, styleCount, extended)
	return args.Get(0).(domain.CostBreakdown), args.Error(1)
}
