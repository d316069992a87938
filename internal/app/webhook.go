package app

import (
	"errors"
	"io"
	"net/http"

	"github.com/arcanalabs/arcana/api"
	"github.com/arcanalabs/arcana/internal/domain"
	"github.com/go-chi/chi/v5"
)

const maxWebhookBodyBytes = 65536

// WebhookHandler receives provider notifications. Anything other than a 2xx
// asks the provider to redeliver, so only genuinely retryable failures return
// an error status; everything already settled or unprocessable is acknowledged.
func (app *application) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	provider, ok := app.providers[chi.URLParam(r, "provider")]
	if !ok {
		app.notFoundResponse(w, r)
		return
	}

	// An unconfigured provider has no credentials to verify signatures with,
	// so nothing it could deliver here is authenticatable.
	if !provider.IsConfigured() {
		app.providerNotConfiguredResponse(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	event, err := provider.VerifyWebhook(r.Context(), payload, r.Header)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidWebhookSignature):
			app.errorResponse(w, r, http.StatusBadRequest, api.CodeValidationError, "Invalid webhook signature")
		case errors.Is(err, domain.ErrUnknownWebhookEvent):
			// Acknowledge event types outside our set so the provider stops
			// redelivering them.
			w.WriteHeader(http.StatusOK)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.reconciler.Apply(r.Context(), event)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			// No ledger entry for this payment id. The PENDING entry is written
			// before the client ever sees the checkout URL, so this event
			// belongs to another system or a purged record; redelivery cannot
			// fix it.
			app.logger.Warn("webhook event for unknown payment",
				"provider", event.Provider, "payment_id", event.PaymentID, "type", event.Type)
			w.WriteHeader(http.StatusOK)
			return
		}

		app.serverErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
