package domain

import (
	"context"

	"github.com/google/uuid"
)

type CreditCheck struct {
	Sufficient bool
	Balance    int
}

type TransactionResult struct {
	NewBalance    int
	TransactionID uuid.UUID
}

type DeductParams struct {
	UserID      int
	Amount      int
	Type        TransactionType
	Description string
}

type AddParams struct {
	UserID      int
	Amount      int
	Type        TransactionType
	Description string
	Provider    string
	PaymentID   string
}

type RefundParams struct {
	UserID                int
	Amount                int
	Reason                string
	OriginalTransactionID uuid.UUID
}

type PendingPurchase struct {
	UserID    int
	Provider  string
	PaymentID string
	Credits   int
	PackageID string
}

type CompletedPurchase struct {
	Entry      *LedgerEntry
	NewBalance int
}

type CostBreakdown struct {
	BaseCost     int
	StyleCost    int
	ExtendedCost int
	TotalCost    int
}

// CreditService is the transactional façade over balances and the ledger; no
// caller mutates a balance except through it.
type CreditService interface {
	CheckSufficientCredits(ctx context.Context, userID, amount int) (CreditCheck, error)
	DeductCredits(ctx context.Context, params DeductParams) (TransactionResult, error)
	AddCredits(ctx context.Context, params AddParams) (TransactionResult, error)
	RefundCredits(ctx context.Context, params RefundParams) (TransactionResult, error)

	CreatePendingPurchase(ctx context.Context, params PendingPurchase) (uuid.UUID, error)
	CompletePurchase(ctx context.Context, paymentID string) (*CompletedPurchase, error)
	FailPurchase(ctx context.Context, paymentID string) error
	RefundPurchase(ctx context.Context, paymentID string) (*RefundedPurchase, error)
	UpdateTransactionStatus(ctx context.Context, paymentID string, status PaymentStatus) error

	CalculateReadingCost(spread SpreadType, styleCount int, extended bool) (CostBreakdown, error)
}
