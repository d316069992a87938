package integration_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/arcanalabs/arcana/internal/domain"
	"github.com/arcanalabs/arcana/internal/mailer"
	"github.com/arcanalabs/arcana/internal/mocks"
	"github.com/arcanalabs/arcana/internal/reconciler"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type ReconcilerDedupSuite struct {
	BaseSuite
}

func TestReconcilerDedupSuite(t *testing.T) {
	suite.Run(t, new(ReconcilerDedupSuite))
}

func (s *ReconcilerDedupSuite) newReconciler(credits *mocks.MockCreditService) *reconciler.Reconciler {
	ledgerRepo := new(mocks.MockLedgerRepo)
	userRepo := new(mocks.MockUserRepo)
	userRepo.On("GetById", mock.Anything, mock.Anything).Return(nil, domain.ErrRecordNotFound).Maybe()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return reconciler.New(credits, ledgerRepo, userRepo, s.cache, mailer.NewMockMailer(), logger)
}

func (s *ReconcilerDedupSuite) TestEventDedupedOnlyAfterSuccessfulApply() {
	ctx := context.Background()

	credits := new(mocks.MockCreditService)
	rec := s.newReconciler(credits)

	event := &domain.WebhookEvent{
		ID:        "evt_" + uuid.NewString(),
		Type:      domain.WebhookPaymentCompleted,
		Provider:  "stripe",
		PaymentID: "cs_" + uuid.NewString(),
	}

	credits.On("CompletePurchase", mock.Anything, event.PaymentID).
		Return(nil, errors.New("connection reset")).Once()
	credits.On("CompletePurchase", mock.Anything, event.PaymentID).
		Return(&domain.CompletedPurchase{
			Entry:      &domain.LedgerEntry{ID: uuid.New(), UserID: 1, Amount: 28},
			NewBalance: 28,
		}, nil).Once()

	// A transient failure must leave the event retryable: the dedup key is
	// written only once the apply succeeds, so the provider's redelivery still
	// reaches the ledger.
	s.Error(rec.Apply(ctx, event))

	s.NoError(rec.Apply(ctx, event))

	// The third delivery is cut off by the cache before the credit service.
	s.NoError(rec.Apply(ctx, event))

	credits.AssertNumberOfCalls(s.T(), "CompletePurchase", 2)
}

func (s *ReconcilerDedupSuite) TestDedupKeysAreScopedPerProviderAndEvent() {
	ctx := context.Background()

	credits := new(mocks.MockCreditService)
	rec := s.newReconciler(credits)

	paymentID := "cs_" + uuid.NewString()

	completed := &domain.CompletedPurchase{
		Entry:      &domain.LedgerEntry{ID: uuid.New(), UserID: 1, Amount: 28},
		NewBalance: 28,
	}

	credits.On("CompletePurchase", mock.Anything, paymentID).Return(completed, nil).Once()
	credits.On("CompletePurchase", mock.Anything, paymentID).Return(nil, domain.ErrAlreadyProcessed)

	stripeEvent := &domain.WebhookEvent{
		ID:        "evt_" + uuid.NewString(),
		Type:      domain.WebhookPaymentCompleted,
		Provider:  "stripe",
		PaymentID: paymentID,
	}

	s.NoError(rec.Apply(ctx, stripeEvent))

	// A different event id for the same payment is not a duplicate delivery;
	// it falls through to the idempotent ledger transition.
	otherEvent := &domain.WebhookEvent{
		ID:        "evt_" + uuid.NewString(),
		Type:      domain.WebhookPaymentCompleted,
		Provider:  "stripe",
		PaymentID: paymentID,
	}

	s.NoError(rec.Apply(ctx, otherEvent))

	credits.AssertNumberOfCalls(s.T(), "CompletePurchase", 2)
}
