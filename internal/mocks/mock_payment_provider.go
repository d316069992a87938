package mocks

import (
	"context"
	"net/http"

	"github.com/arcanalabs/arcana/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockPaymentProvider struct {
	mock.Mock
	ProviderName string
	Configured   bool
}

func (m *MockPaymentProvider) Name() string {
	return m.ProviderName
}

func (m *MockPaymentProvider) IsConfigured() bool {
	return m.Configured
}

func (m *MockPaymentProvider) CreateCheckoutSession(
	ctx context.Context,
	params domain.CheckoutParams) (*domain.CheckoutSession, error) {

	args := m.Called(ctx, params)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckoutSession), args.Error(1)
}

func (m *MockPaymentProvider) VerifyPayment(ctx context.Context, sessionID string) (*domain.PaymentVerification, error) {
	args := m.Called(ctx, sessionID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentVerification), args.Error(1)
}

func (m *MockPaymentProvider) CapturePayment(ctx context.Context, params domain.CaptureParams) (*domain.CaptureResult, error) {
	args := m.Called(ctx, params)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CaptureResult), args.Error(1)
}

func (m *MockPaymentProvider) VerifyWebhook(
	ctx context.Context,
	payload []byte,
	header http.Header) (*domain.WebhookEvent, error) {

	args := m.Called(ctx, payload, header)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WebhookEvent), args.Error(1)
}
