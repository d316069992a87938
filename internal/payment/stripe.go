// Package payment contains the gateway implementations behind
// domain.PaymentProvider. Provider-specific session, order and event shapes are
// translated here at the boundary; nothing outside this package branches on a
// provider SDK type.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/arcanalabs/arcana/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

const ProviderStripe = "stripe"

// StripeProvider is the single-phase hosted-checkout gateway: the user pays on
// the Stripe-hosted page and settlement arrives as a completed-session webhook.
type StripeProvider struct {
	secretKey     string
	webhookSecret string
}

func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	return &StripeProvider{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
	}
}

func (s *StripeProvider) Name() string {
	return ProviderStripe
}

func (s *StripeProvider) IsConfigured() bool {
	return s.secretKey != "" && s.webhookSecret != ""
}

func (s *StripeProvider) CreateCheckoutSession(
	ctx context.Context,
	params domain.CheckoutParams) (*domain.CheckoutSession, error) {

	pkg := params.Package
	priceCents := pkg.PriceEur.Mul(decimal.NewFromInt(100)).IntPart()

	lineItem := &stripe.CheckoutSessionLineItemParams{
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(string(stripe.CurrencyEUR)),
			UnitAmount: stripe.Int64(priceCents),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name:        stripe.String(fmt.Sprintf("✨ %s Credit Package", pkg.Name)),
				Description: stripe.String(fmt.Sprintf("%d credits (+%d bonus)", pkg.Credits, pkg.BonusCredits)),
			},
		},
		Quantity: stripe.Int64(1),
	}

	// Reconciliation reads these values back from the session, so everything
	// needed to credit the purchase rides along and nothing is taken from the
	// client on return.
	metadata := map[string]string{
		"user_id":    strconv.Itoa(params.User.ID),
		"package_id": pkg.ID,
		"credits":    strconv.Itoa(pkg.TotalCredits()),
	}

	sessionParams := &stripe.CheckoutSessionParams{
		LineItems:         []*stripe.CheckoutSessionLineItemParams{lineItem},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(params.SuccessURL),
		CancelURL:         stripe.String(params.CancelURL),
		Metadata:          metadata,
		CustomerEmail:     &params.User.Email,
		ClientReferenceID: stripe.String(strconv.Itoa(params.User.ID)),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	sessionParams.Context = ctx

	checkoutSession, err := session.New(sessionParams)
	if err != nil {
		return nil, err
	}

	return &domain.CheckoutSession{
		ID:       checkoutSession.ID,
		URL:      checkoutSession.URL,
		Provider: ProviderStripe,
	}, nil
}

func (s *StripeProvider) VerifyPayment(ctx context.Context, sessionID string) (*domain.PaymentVerification, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	checkoutSession, err := session.Get(sessionID, params)
	if err != nil {
		return nil, err
	}

	credits, err := creditsFromMetadata(checkoutSession.Metadata)
	if err != nil {
		return nil, err
	}

	return &domain.PaymentVerification{
		Succeeded: checkoutSession.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Credits:   credits,
		Status:    string(checkoutSession.Status),
	}, nil
}

// CapturePayment is not applicable: hosted checkout settles in a single phase.
func (s *StripeProvider) CapturePayment(ctx context.Context, params domain.CaptureParams) (*domain.CaptureResult, error) {
	return nil, domain.ErrCaptureNotSupported
}

func (s *StripeProvider) VerifyWebhook(
	ctx context.Context,
	payload []byte,
	header http.Header) (*domain.WebhookEvent, error) {

	event, err := webhook.ConstructEvent(payload, header.Get("Stripe-Signature"), s.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidWebhookSignature, err)
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		checkoutSession, err := unmarshalSession(event.Data.Raw)
		if err != nil {
			return nil, err
		}

		if checkoutSession.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			// Delayed payment methods complete the session before the money
			// moves; the async_payment_succeeded event settles it later.
			return nil, domain.ErrUnknownWebhookEvent
		}

		return s.newEvent(event.ID, domain.WebhookPaymentCompleted, checkoutSession.ID), nil

	case "checkout.session.async_payment_failed":
		checkoutSession, err := unmarshalSession(event.Data.Raw)
		if err != nil {
			return nil, err
		}

		return s.newEvent(event.ID, domain.WebhookPaymentFailed, checkoutSession.ID), nil

	case "checkout.session.expired":
		checkoutSession, err := unmarshalSession(event.Data.Raw)
		if err != nil {
			return nil, err
		}

		return s.newEvent(event.ID, domain.WebhookSessionExpired, checkoutSession.ID), nil

	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return nil, err
		}

		sessionID, err := s.sessionIDForCharge(ctx, &charge)
		if err != nil {
			return nil, err
		}

		return s.newEvent(event.ID, domain.WebhookPaymentRefunded, sessionID), nil

	default:
		return nil, domain.ErrUnknownWebhookEvent
	}
}

func (s *StripeProvider) newEvent(id string, eventType domain.WebhookEventType, paymentID string) *domain.WebhookEvent {
	return &domain.WebhookEvent{
		ID:        id,
		Type:      eventType,
		Provider:  ProviderStripe,
		PaymentID: paymentID,
	}
}

// sessionIDForCharge resolves the checkout session a refunded charge belongs
// to. Refund events reference the charge, while the ledger keys purchases by
// checkout session id.
func (s *StripeProvider) sessionIDForCharge(ctx context.Context, charge *stripe.Charge) (string, error) {
	if charge.PaymentIntent == nil {
		return "", fmt.Errorf("refunded charge %s has no payment intent", charge.ID)
	}

	listParams := &stripe.CheckoutSessionListParams{
		PaymentIntent: stripe.String(charge.PaymentIntent.ID),
	}
	listParams.Context = ctx

	iter := session.List(listParams)
	for iter.Next() {
		return iter.CheckoutSession().ID, nil
	}

	if err := iter.Err(); err != nil {
		return "", err
	}

	return "", fmt.Errorf("no checkout session found for payment intent %s", charge.PaymentIntent.ID)
}

func unmarshalSession(raw json.RawMessage) (*stripe.CheckoutSession, error) {
	var checkoutSession stripe.CheckoutSession

	err := json.Unmarshal(raw, &checkoutSession)
	if err != nil {
		return nil, err
	}

	return &checkoutSession, nil
}

func creditsFromMetadata(metadata map[string]string) (int, error) {
	raw, ok := metadata["credits"]
	if !ok {
		return 0, fmt.Errorf("checkout session metadata is missing the credits field")
	}

	credits, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("malformed credits metadata %q: %w", raw, err)
	}

	return credits, nil
}
