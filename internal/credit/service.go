// Package credit implements the credit service: the only component allowed to
// move a user's balance. Every mutation pairs the balance change with a ledger
// entry inside one repository-level transaction.
package credit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arcanalabs/arcana/internal/audit"
	"github.com/arcanalabs/arcana/internal/domain"
	"github.com/google/uuid"
)

type Service struct {
	ledgerRepo domain.LedgerRepository
	userRepo   domain.UserRepository
	auditor    audit.Logger
	logger     *slog.Logger
}

func NewService(
	ledgerRepo domain.LedgerRepository,
	userRepo domain.UserRepository,
	auditor audit.Logger,
	logger *slog.Logger) *Service {

	return &Service{
		ledgerRepo: ledgerRepo,
		userRepo:   userRepo,
		auditor:    auditor,
		logger:     logger,
	}
}

// CheckSufficientCredits fails closed: an unknown user reads as sufficient=false
// with a zero balance rather than an error, so callers can branch on the user
// existing separately from the balance being short.
func (s *Service) CheckSufficientCredits(ctx context.Context, userID, amount int) (domain.CreditCheck, error) {
	user, err := s.userRepo.GetById(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return domain.CreditCheck{Sufficient: false, Balance: 0}, nil
		}

		return domain.CreditCheck{}, err
	}

	return domain.CreditCheck{
		Sufficient: user.Credits >= amount,
		Balance:    user.Credits,
	}, nil
}

func (s *Service) DeductCredits(ctx context.Context, params domain.DeductParams) (domain.TransactionResult, error) {
	if params.Amount <= 0 {
		return domain.TransactionResult{}, fmt.Errorf("deduct amount must be positive, got %d", params.Amount)
	}

	entry := &domain.LedgerEntry{
		ID:          uuid.New(),
		UserID:      params.UserID,
		Type:        params.Type,
		Amount:      -params.Amount,
		Description: params.Description,
	}

	newBalance, err := s.ledgerRepo.ApplyDelta(ctx, entry)
	s.auditor.Log(ctx, audit.Record{
		Action:        "credits.deduct",
		UserID:        params.UserID,
		Amount:        -params.Amount,
		TransactionID: entry.ID.String(),
		Err:           err,
	})
	if err != nil {
		return domain.TransactionResult{}, err
	}

	return domain.TransactionResult{NewBalance: newBalance, TransactionID: entry.ID}, nil
}

func (s *Service) AddCredits(ctx context.Context, params domain.AddParams) (domain.TransactionResult, error) {
	if params.Amount <= 0 {
		return domain.TransactionResult{}, fmt.Errorf("add amount must be positive, got %d", params.Amount)
	}

	entry := &domain.LedgerEntry{
		ID:          uuid.New(),
		UserID:      params.UserID,
		Type:        params.Type,
		Amount:      params.Amount,
		Description: params.Description,
	}

	if params.Provider != "" {
		entry.PaymentProvider = &params.Provider
	}
	if params.PaymentID != "" {
		entry.PaymentID = &params.PaymentID
	}

	newBalance, err := s.ledgerRepo.ApplyDelta(ctx, entry)
	s.auditor.Log(ctx, audit.Record{
		Action:        "credits.add",
		UserID:        params.UserID,
		Amount:        params.Amount,
		TransactionID: entry.ID.String(),
		Err:           err,
	})
	if err != nil {
		return domain.TransactionResult{}, err
	}

	return domain.TransactionResult{NewBalance: newBalance, TransactionID: entry.ID}, nil
}

// RefundCredits compensates a committed deduction. The REFUND entry references
// the original transaction, and the unique index on that reference makes a
// double refund surface as ErrAlreadyRefunded instead of a second credit.
func (s *Service) RefundCredits(ctx context.Context, params domain.RefundParams) (domain.TransactionResult, error) {
	if params.Amount <= 0 {
		return domain.TransactionResult{}, fmt.Errorf("refund amount must be positive, got %d", params.Amount)
	}

	original := params.OriginalTransactionID

	entry := &domain.LedgerEntry{
		ID:          uuid.New(),
		UserID:      params.UserID,
		Type:        domain.TransactionRefund,
		Amount:      params.Amount,
		Description: params.Reason,
		RefEntryID:  &original,
	}

	newBalance, err := s.ledgerRepo.ApplyDelta(ctx, entry)
	s.auditor.Log(ctx, audit.Record{
		Action:        "credits.refund",
		UserID:        params.UserID,
		Amount:        params.Amount,
		TransactionID: entry.ID.String(),
		Err:           err,
	})
	if err != nil {
		return domain.TransactionResult{}, err
	}

	return domain.TransactionResult{NewBalance: newBalance, TransactionID: entry.ID}, nil
}

func (s *Service) CreatePendingPurchase(ctx context.Context, params domain.PendingPurchase) (uuid.UUID, error) {
	status := domain.PaymentStatusPending

	entry := &domain.LedgerEntry{
		ID:              uuid.New(),
		UserID:          params.UserID,
		Type:            domain.TransactionPurchase,
		Amount:          params.Credits,
		Description:     fmt.Sprintf("Purchase of credit package %q", params.PackageID),
		PaymentProvider: &params.Provider,
		PaymentID:       &params.PaymentID,
		PaymentStatus:   &status,
		PackageID:       &params.PackageID,
	}

	err := s.ledgerRepo.CreatePendingPurchase(ctx, entry)
	s.auditor.Log(ctx, audit.Record{
		Action:        "purchase.pending",
		UserID:        params.UserID,
		Amount:        params.Credits,
		TransactionID: entry.ID.String(),
		Err:           err,
	})
	if err != nil {
		return uuid.Nil, err
	}

	return entry.ID, nil
}

// CompletePurchase applies the PENDING -> COMPLETED transition exactly once.
// The credited amount is read from the stored entry, never from provider data.
func (s *Service) CompletePurchase(ctx context.Context, paymentID string) (*domain.CompletedPurchase, error) {
	entry, newBalance, err := s.ledgerRepo.CompletePurchase(ctx, paymentID)
	if err != nil {
		if !errors.Is(err, domain.ErrAlreadyProcessed) {
			s.auditor.Log(ctx, audit.Record{Action: "purchase.complete", TransactionID: paymentID, Err: err})
		}

		return nil, err
	}

	s.auditor.Log(ctx, audit.Record{
		Action:        "purchase.complete",
		UserID:        entry.UserID,
		Amount:        entry.Amount,
		TransactionID: entry.ID.String(),
	})

	return &domain.CompletedPurchase{Entry: entry, NewBalance: newBalance}, nil
}

func (s *Service) FailPurchase(ctx context.Context, paymentID string) error {
	err := s.ledgerRepo.FailPurchase(ctx, paymentID)
	if err != nil {
		return err
	}

	s.auditor.Log(ctx, audit.Record{Action: "purchase.fail", TransactionID: paymentID})

	return nil
}

func (s *Service) RefundPurchase(ctx context.Context, paymentID string) (*domain.RefundedPurchase, error) {
	refunded, err := s.ledgerRepo.RefundPurchase(ctx, paymentID)
	if err != nil {
		if !errors.Is(err, domain.ErrAlreadyRefunded) {
			s.auditor.Log(ctx, audit.Record{Action: "purchase.refund", TransactionID: paymentID, Err: err})
		}

		return nil, err
	}

	if refunded.Clamped {
		s.logger.WarnContext(ctx, "refund clamped at zero balance",
			"user_id", refunded.Original.UserID,
			"payment_id", paymentID,
			"refund_amount", -refunded.Refund.Amount,
			"new_balance", refunded.NewBalance,
		)
	}

	s.auditor.Log(ctx, audit.Record{
		Action:        "purchase.refund",
		UserID:        refunded.Original.UserID,
		Amount:        refunded.Refund.Amount,
		TransactionID: refunded.Refund.ID.String(),
	})

	return refunded, nil
}

// UpdateTransactionStatus routes a requested status to its idempotent
// transition. Re-applying a status that has already been reached is a no-op.
func (s *Service) UpdateTransactionStatus(ctx context.Context, paymentID string, status domain.PaymentStatus) error {
	switch status {
	case domain.PaymentStatusCompleted:
		_, err := s.CompletePurchase(ctx, paymentID)
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			return nil
		}
		return err

	case domain.PaymentStatusFailed:
		err := s.FailPurchase(ctx, paymentID)
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			return nil
		}
		return err

	case domain.PaymentStatusRefunded:
		_, err := s.RefundPurchase(ctx, paymentID)
		if errors.Is(err, domain.ErrAlreadyRefunded) {
			return nil
		}
		return err

	default:
		return domain.ErrInvalidStatusTransition
	}
}
