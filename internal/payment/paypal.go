package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/arcanalabs/arcana/internal/domain"
	"github.com/plutov/paypal/v4"
)

const ProviderPayPal = "paypal"

const approveLinkRel = "approve"

// PayPalProvider is the two-phase gateway: an order is created, the user
// approves it on PayPal, and funds settle only after an explicit capture call.
// Order approval alone is never treated as settlement.
type PayPalProvider struct {
	client    *paypal.Client
	webhookID string

	authMu sync.Mutex
	authed bool
}

func NewPayPalProvider(clientID, secret, webhookID string, live bool) (*PayPalProvider, error) {
	if clientID == "" || secret == "" {
		return &PayPalProvider{webhookID: webhookID}, nil
	}

	apiBase := paypal.APIBaseSandBox
	if live {
		apiBase = paypal.APIBaseLive
	}

	client, err := paypal.NewClient(clientID, secret, apiBase)
	if err != nil {
		return nil, err
	}

	return &PayPalProvider{
		client:    client,
		webhookID: webhookID,
	}, nil
}

func (p *PayPalProvider) Name() string {
	return ProviderPayPal
}

func (p *PayPalProvider) IsConfigured() bool {
	return p.client != nil && p.webhookID != ""
}

// ensureAuth obtains the OAuth token on first use. Only success is latched; a
// transient failure is retried on the next call instead of poisoning the
// provider for the life of the process.
func (p *PayPalProvider) ensureAuth(ctx context.Context) error {
	if p.client == nil {
		return domain.ErrProviderNotConfigured
	}

	p.authMu.Lock()
	defer p.authMu.Unlock()

	if p.authed {
		return nil
	}

	_, err := p.client.GetAccessToken(ctx)
	if err != nil {
		return err
	}

	p.authed = true

	return nil
}

func (p *PayPalProvider) CreateCheckoutSession(
	ctx context.Context,
	params domain.CheckoutParams) (*domain.CheckoutSession, error) {

	if err := p.ensureAuth(ctx); err != nil {
		return nil, err
	}

	pkg := params.Package

	purchaseUnit := paypal.PurchaseUnitRequest{
		ReferenceID: pkg.ID,
		CustomID:    encodeCustomID(params.User.ID, pkg.ID, pkg.TotalCredits()),
		Description: fmt.Sprintf("%s credit package: %d credits (+%d bonus)", pkg.Name, pkg.Credits, pkg.BonusCredits),
		Amount: &paypal.PurchaseUnitAmount{
			Currency: "EUR",
			Value:    pkg.PriceEur.StringFixed(2),
		},
	}

	appContext := &paypal.ApplicationContext{
		ReturnURL:          params.SuccessURL,
		CancelURL:          params.CancelURL,
		UserAction:         paypal.UserActionPayNow,
		BrandName:          "Arcana",
		ShippingPreference: paypal.ShippingPreferenceNoShipping,
	}

	order, err := p.client.CreateOrder(
		ctx,
		paypal.OrderIntentCapture,
		[]paypal.PurchaseUnitRequest{purchaseUnit},
		nil,
		appContext,
	)
	if err != nil {
		return nil, err
	}

	approveURL := ""
	for _, link := range order.Links {
		if link.Rel == approveLinkRel {
			approveURL = link.Href
			break
		}
	}

	if approveURL == "" {
		return nil, fmt.Errorf("paypal order %s has no approve link", order.ID)
	}

	return &domain.CheckoutSession{
		ID:       order.ID,
		URL:      approveURL,
		Provider: ProviderPayPal,
	}, nil
}

func (p *PayPalProvider) VerifyPayment(ctx context.Context, sessionID string) (*domain.PaymentVerification, error) {
	if err := p.ensureAuth(ctx); err != nil {
		return nil, err
	}

	order, err := p.client.GetOrder(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if len(order.PurchaseUnits) == 0 {
		return nil, fmt.Errorf("paypal order %s has no purchase units", order.ID)
	}

	_, _, credits, err := decodeCustomID(order.PurchaseUnits[0].CustomID)
	if err != nil {
		return nil, err
	}

	// An APPROVED order is not settled; only COMPLETED means captured funds.
	return &domain.PaymentVerification{
		Succeeded: order.Status == "COMPLETED",
		Credits:   credits,
		Status:    order.Status,
	}, nil
}

func (p *PayPalProvider) CapturePayment(ctx context.Context, params domain.CaptureParams) (*domain.CaptureResult, error) {
	if err := p.ensureAuth(ctx); err != nil {
		return nil, err
	}

	capture, err := p.client.CaptureOrder(ctx, params.OrderID, paypal.CaptureOrderRequest{})
	if err != nil {
		return nil, err
	}

	if capture.Status != "COMPLETED" {
		return &domain.CaptureResult{Succeeded: false}, domain.ErrCaptureFailed
	}

	captureID := ""
	for _, unit := range capture.PurchaseUnits {
		if unit.Payments == nil {
			continue
		}
		for _, c := range unit.Payments.Captures {
			captureID = c.ID
			break
		}
	}

	return &domain.CaptureResult{
		Succeeded: true,
		CaptureID: captureID,
	}, nil
}

func (p *PayPalProvider) VerifyWebhook(
	ctx context.Context,
	payload []byte,
	header http.Header) (*domain.WebhookEvent, error) {

	if err := p.ensureAuth(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header = header

	verification, err := p.client.VerifyWebhookSignature(ctx, req, p.webhookID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidWebhookSignature, err)
	}

	if verification.VerificationStatus != "SUCCESS" {
		return nil, domain.ErrInvalidWebhookSignature
	}

	var event struct {
		ID        string `json:"id"`
		EventType string `json:"event_type"`
		Resource  struct {
			ID                string `json:"id"`
			CustomID          string `json:"custom_id"`
			SupplementaryData struct {
				RelatedIDs struct {
					OrderID string `json:"order_id"`
				} `json:"related_ids"`
			} `json:"supplementary_data"`
		} `json:"resource"`
	}

	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}

	switch event.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		orderID, err := p.orderIDFromResource(event.Resource.SupplementaryData.RelatedIDs.OrderID, event.Resource.ID)
		if err != nil {
			return nil, err
		}

		return p.newEvent(event.ID, domain.WebhookPaymentCompleted, orderID), nil

	case "PAYMENT.CAPTURE.DENIED":
		orderID, err := p.orderIDFromResource(event.Resource.SupplementaryData.RelatedIDs.OrderID, event.Resource.ID)
		if err != nil {
			return nil, err
		}

		return p.newEvent(event.ID, domain.WebhookPaymentFailed, orderID), nil

	case "PAYMENT.CAPTURE.REFUNDED":
		orderID, err := p.orderIDFromResource(event.Resource.SupplementaryData.RelatedIDs.OrderID, event.Resource.ID)
		if err != nil {
			return nil, err
		}

		return p.newEvent(event.ID, domain.WebhookPaymentRefunded, orderID), nil

	case "CHECKOUT.ORDER.VOIDED":
		return p.newEvent(event.ID, domain.WebhookSessionExpired, event.Resource.ID), nil

	default:
		// CHECKOUT.ORDER.APPROVED lands here on purpose: approval is not
		// settlement for a two-phase provider.
		return nil, domain.ErrUnknownWebhookEvent
	}
}

func (p *PayPalProvider) newEvent(id string, eventType domain.WebhookEventType, paymentID string) *domain.WebhookEvent {
	return &domain.WebhookEvent{
		ID:        id,
		Type:      eventType,
		Provider:  ProviderPayPal,
		PaymentID: paymentID,
	}
}

func (p *PayPalProvider) orderIDFromResource(orderID, resourceID string) (string, error) {
	if orderID == "" {
		return "", fmt.Errorf("paypal capture %s carries no related order id", resourceID)
	}

	return orderID, nil
}

// encodeCustomID packs the identifying metadata into the order's custom id.
// The credits figure is a cross-check only; the amount actually credited always
// comes from the stored PENDING ledger entry.
func encodeCustomID(userID int, packageID string, credits int) string {
	return fmt.Sprintf("%d|%s|%d", userID, packageID, credits)
}

func decodeCustomID(customID string) (userID int, packageID string, credits int, err error) {
	parts := strings.Split(customID, "|")
	if len(parts) != 3 {
		return 0, "", 0, fmt.Errorf("malformed custom id %q", customID)
	}

	userID, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", 0, fmt.Errorf("malformed custom id %q: %w", customID, err)
	}

	credits, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, "", 0, fmt.Errorf("malformed custom id %q: %w", customID, err)
	}

	return userID, parts[1], credits, nil
}
