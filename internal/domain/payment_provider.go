package domain

import (
	"context"
	"net/http"
)

// CheckoutSession is the provider-side session the user is redirected to. It is
// ephemeral; only its ID survives internally, as the PENDING entry's PaymentID.
type CheckoutSession struct {
	ID       string
	URL      string
	Provider string
}

type CheckoutParams struct {
	User       *User
	Package    CreditPackage
	SuccessURL string
	CancelURL  string
}

// PaymentVerification is the result of the synchronous poll path, used when the
// client returns from a redirect before the webhook lands. Credits come from
// the metadata embedded at session-creation time, never from a price field.
type PaymentVerification struct {
	Succeeded bool
	Credits   int
	Status    string
}

type CaptureParams struct {
	OrderID string
}

type CaptureResult struct {
	Succeeded bool
	CaptureID string
}

type WebhookEventType string

const (
	WebhookPaymentCompleted WebhookEventType = "payment.completed"
	WebhookPaymentFailed    WebhookEventType = "payment.failed"
	WebhookPaymentRefunded  WebhookEventType = "payment.refunded"
	WebhookSessionExpired   WebhookEventType = "session.expired"
)

// WebhookEvent is the closed, provider-neutral event set the reconciler
// understands. PaymentID correlates with LedgerEntry.PaymentID.
type WebhookEvent struct {
	ID        string
	Type      WebhookEventType
	Provider  string
	PaymentID string
}

// PaymentProvider abstracts a payment gateway. Single-phase providers (hosted
// checkout) settle on the completed webhook; two-phase providers additionally
// require CapturePayment before funds count as settled.
type PaymentProvider interface {
	Name() string

	// IsConfigured must be checked before routing a checkout to the provider.
	IsConfigured() bool

	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)

	VerifyPayment(ctx context.Context, sessionID string) (*PaymentVerification, error)

	// CapturePayment settles an approved two-phase order. Single-phase
	// providers return ErrCaptureNotSupported.
	CapturePayment(ctx context.Context, params CaptureParams) (*CaptureResult, error)

	// VerifyWebhook authenticates the raw payload before interpreting it and
	// returns ErrInvalidWebhookSignature on a bad signature, or
	// ErrUnknownWebhookEvent for event types outside the normalized set.
	VerifyWebhook(ctx context.Context, payload []byte, header http.Header) (*WebhookEvent, error)
}
