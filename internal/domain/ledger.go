package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionPurchase TransactionType = "PURCHASE"
	TransactionReading  TransactionType = "READING"
	TransactionQuestion TransactionType = "QUESTION"
	TransactionRefund   TransactionType = "REFUND"
	TransactionBonus    TransactionType = "BONUS"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

// LedgerEntry is one immutable balance-affecting event. PaymentStatus is the
// single exception to immutability and only moves along the legal purchase
// transitions; amounts are never edited, reversals get their own REFUND entry.
type LedgerEntry struct {
	ID              uuid.UUID
	UserID          int
	Type            TransactionType
	Amount          int
	Description     string
	PaymentProvider *string
	PaymentID       *string
	PaymentStatus   *PaymentStatus
	PackageID       *string
	RefEntryID      *uuid.UUID
	CreatedAt       time.Time
}

// RefundedPurchase bundles the rows touched by a COMPLETED -> REFUNDED
// transition.
type RefundedPurchase struct {
	Original   *LedgerEntry
	Refund     *LedgerEntry
	NewBalance int
	Clamped    bool
}

// LedgerRepository is the only write path into balances and ledger entries.
// Every mutating method runs as a single database transaction holding a row
// lock on the user's balance, so two operations for the same user serialize.
type LedgerRepository interface {
	// ApplyDelta adjusts the user's balance by entry.Amount and inserts the
	// entry in the same transaction. A negative delta that would take the
	// balance below zero returns ErrInsufficientCredits and writes nothing.
	ApplyDelta(ctx context.Context, entry *LedgerEntry) (newBalance int, err error)

	// CreatePendingPurchase inserts a PENDING purchase entry without touching
	// the balance.
	CreatePendingPurchase(ctx context.Context, entry *LedgerEntry) error

	// CompletePurchase flips the PENDING entry for paymentID to COMPLETED and
	// credits its amount, all in one transaction. A second call for the same
	// paymentID returns ErrAlreadyProcessed.
	CompletePurchase(ctx context.Context, paymentID string) (*LedgerEntry, int, error)

	// FailPurchase flips PENDING -> FAILED with no balance effect. Already
	// terminal entries return ErrAlreadyProcessed.
	FailPurchase(ctx context.Context, paymentID string) error

	// RefundPurchase flips COMPLETED -> REFUNDED, debits the original amount
	// (clamped at zero) and inserts the compensating REFUND entry. A second
	// call returns ErrAlreadyRefunded.
	RefundPurchase(ctx context.Context, paymentID string) (*RefundedPurchase, error)

	GetEntryById(ctx context.Context, id uuid.UUID) (*LedgerEntry, error)
	GetEntryByPaymentId(ctx context.Context, paymentID string) (*LedgerEntry, error)
	GetEntriesByUserId(ctx context.Context, userID int, pagination Pagination) ([]LedgerEntry, *Metadata, error)

	// SumEntriesByUserId returns the signed sum of all entries for the user;
	// the invariant balance == sum(entries) is checked against it.
	SumEntriesByUserId(ctx context.Context, userID int) (int, error)
}
