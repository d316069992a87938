// Package reconciler translates asynchronous payment notifications and
// synchronous verification polls into ledger transitions. All state changes go
// through the credit service's idempotent operations, so at-least-once and
// out-of-order delivery collapse to exactly-once ledger effects.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arcanalabs/arcana/internal/domain"
	"github.com/arcanalabs/arcana/internal/mailer"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	eventDedupTTL        = 24 * time.Hour
	purchaseEmailTimeout = 10 * time.Second
)

// ledgerReader is the read-only slice of the ledger the reconciler needs for
// ownership and amount checks. Writes still go through the credit service only.
type ledgerReader interface {
	GetEntryByPaymentId(ctx context.Context, paymentID string) (*domain.LedgerEntry, error)
}

type Reconciler struct {
	credits  domain.CreditService
	ledger   ledgerReader
	userRepo domain.UserRepository
	redis    redis.UniversalClient
	mailer   mailer.Mailer
	logger   *slog.Logger
}

func New(
	credits domain.CreditService,
	ledger ledgerReader,
	userRepo domain.UserRepository,
	redisClient redis.UniversalClient,
	m mailer.Mailer,
	logger *slog.Logger) *Reconciler {

	return &Reconciler{
		credits:  credits,
		ledger:   ledger,
		userRepo: userRepo,
		redis:    redisClient,
		mailer:   m,
		logger:   logger,
	}
}

// Apply drives the per-payment state machine for one verified webhook event.
// A nil return means the event is settled from the provider's point of view
// and must not be redelivered; an error asks the provider to retry. The dedup
// key is written only after a successful apply: marking it earlier would turn
// a transient failure plus redelivery into a permanently lost settlement.
func (r *Reconciler) Apply(ctx context.Context, event *domain.WebhookEvent) error {
	if r.seenBefore(ctx, event) {
		r.logger.InfoContext(ctx, "duplicate webhook event skipped",
			"provider", event.Provider, "event_id", event.ID)
		return nil
	}

	err := r.apply(ctx, event)
	if err != nil {
		return err
	}

	r.markSeen(ctx, event)

	return nil
}

func (r *Reconciler) apply(ctx context.Context, event *domain.WebhookEvent) error {
	switch event.Type {
	case domain.WebhookPaymentCompleted:
		completed, err := r.credits.CompletePurchase(ctx, event.PaymentID)
		if err != nil {
			if errors.Is(err, domain.ErrAlreadyProcessed) {
				return nil
			}

			return err
		}

		r.notifyPurchase(completed)

		return nil

	case domain.WebhookPaymentFailed, domain.WebhookSessionExpired:
		err := r.credits.FailPurchase(ctx, event.PaymentID)
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			return nil
		}
		if errors.Is(err, domain.ErrInvalidStatusTransition) {
			// An expiry racing a completed payment loses; the money already
			// moved, so the expiry is stale and can be dropped.
			r.logger.WarnContext(ctx, "stale failure event for settled payment",
				"provider", event.Provider, "payment_id", event.PaymentID)
			return nil
		}

		return err

	case domain.WebhookPaymentRefunded:
		refunded, err := r.credits.RefundPurchase(ctx, event.PaymentID)
		if err != nil {
			if errors.Is(err, domain.ErrAlreadyRefunded) {
				return nil
			}

			return err
		}

		r.logger.InfoContext(ctx, "purchase refunded",
			"provider", event.Provider,
			"payment_id", event.PaymentID,
			"amount", refunded.Refund.Amount,
			"new_balance", refunded.NewBalance,
		)

		return nil

	default:
		return fmt.Errorf("%w: %s", domain.ErrUnknownWebhookEvent, event.Type)
	}
}

// VerifyAndComplete is the synchronous poll path, used when the client returns
// from the provider redirect before the webhook lands.
func (r *Reconciler) VerifyAndComplete(
	ctx context.Context,
	provider domain.PaymentProvider,
	sessionID string) (*domain.CompletedPurchase, error) {

	verification, err := provider.VerifyPayment(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !verification.Succeeded {
		return nil, domain.ErrPaymentNotCompleted
	}

	completed, err := r.credits.CompletePurchase(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// The entry amount is authoritative; a mismatch against the provider
	// metadata points at tampering or a catalog drift and is worth an alarm,
	// but the credit has already been applied from the stored entry.
	if verification.Credits != completed.Entry.Amount {
		r.logger.ErrorContext(ctx, "provider credit metadata disagrees with ledger entry",
			"provider", provider.Name(),
			"payment_id", sessionID,
			"provider_credits", verification.Credits,
			"entry_credits", completed.Entry.Amount,
		)
	}

	r.notifyPurchase(completed)

	return completed, nil
}

// CompleteCapture settles a two-phase order: explicit provider capture first,
// then the ledger transition. The credited amount comes from the stored
// PENDING entry, never from provider-echoed metadata.
func (r *Reconciler) CompleteCapture(
	ctx context.Context,
	provider domain.PaymentProvider,
	userID int,
	orderID string) (*domain.CompletedPurchase, string, error) {

	entry, err := r.ledger.GetEntryByPaymentId(ctx, orderID)
	if err != nil {
		return nil, "", err
	}

	if entry.UserID != userID {
		return nil, "", domain.ErrRecordNotFound
	}

	if *entry.PaymentStatus == domain.PaymentStatusCompleted {
		return nil, "", domain.ErrAlreadyProcessed
	}

	capture, err := provider.CapturePayment(ctx, domain.CaptureParams{OrderID: orderID})
	if err != nil {
		return nil, "", err
	}

	completed, err := r.credits.CompletePurchase(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			// The capture webhook beat us to the transition; the capture
			// itself still succeeded.
			return nil, capture.CaptureID, err
		}

		return nil, "", err
	}

	r.notifyPurchase(completed)

	return completed, capture.CaptureID, nil
}

// seenBefore is a best-effort fast path over the database idempotency
// constraints. Redis being down only costs us the shortcut, and two concurrent
// deliveries that both pass it fall through to the idempotent transitions.
func (r *Reconciler) seenBefore(ctx context.Context, event *domain.WebhookEvent) bool {
	if r.redis == nil || event.ID == "" {
		return false
	}

	seen, err := r.redis.Exists(ctx, eventDedupKey(event)).Result()
	if err != nil {
		r.logger.WarnContext(ctx, "webhook dedup cache unavailable", "error", err)
		return false
	}

	return seen > 0
}

func (r *Reconciler) markSeen(ctx context.Context, event *domain.WebhookEvent) {
	if r.redis == nil || event.ID == "" {
		return
	}

	err := r.redis.Set(ctx, eventDedupKey(event), 1, eventDedupTTL).Err()
	if err != nil {
		r.logger.WarnContext(ctx, "webhook dedup cache unavailable", "error", err)
	}
}

func eventDedupKey(event *domain.WebhookEvent) string {
	return fmt.Sprintf("webhook_event:%s:%s", event.Provider, event.ID)
}

// notifyPurchase emits the confirmation email without ever blocking or failing
// the settled mutation.
func (r *Reconciler) notifyPurchase(completed *domain.CompletedPurchase) {
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("panic while sending purchase confirmation", "panic", rec)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), purchaseEmailTimeout)
		defer cancel()

		user, err := r.userRepo.GetById(ctx, completed.Entry.UserID)
		if err != nil {
			r.logger.Error("failed to load user for purchase confirmation",
				"user_id", completed.Entry.UserID, "error", err)
			return
		}

		amountPaid := decimal.Zero
		if completed.Entry.PackageID != nil {
			if pkg, err := domain.CreditPackageById(*completed.Entry.PackageID); err == nil {
				amountPaid = pkg.PriceEur
			}
		}

		data := map[string]any{
			"Username":   user.Username,
			"Credits":    completed.Entry.Amount,
			"AmountPaid": amountPaid.StringFixed(2),
			"NewBalance": completed.NewBalance,
			"Language":   user.Language,
		}

		err = r.mailer.Send(user.Email, "purchase_confirmation.tmpl", data)
		if err != nil {
			r.logger.Error("failed to send purchase confirmation",
				"user_id", user.ID, "error", err)
		}
	}()
}
