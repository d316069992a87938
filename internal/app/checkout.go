package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/arcanalabs/arcana/api"
	"github.com/arcanalabs/arcana/internal/domain"
	"github.com/go-chi/chi/v5"
)

// CreateCheckoutSessionHandler starts a credit purchase: it creates the
// provider-side checkout session first and only then records the PENDING
// ledger entry keyed by the session id. No balance changes here; credits move
// when the payment settles.
func (app *application) CreateCheckoutSessionHandler(w http.ResponseWriter, r *http.Request) {
	userId := app.contextGetUserId(r)

	var req api.CreateCheckoutRequest

	err := app.readJSON(w, r, &req)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(req)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	pkg, err := domain.CreditPackageById(req.PackageId)
	if err != nil {
		app.invalidPackageResponse(w, r)
		return
	}

	provider, ok := app.providers[req.Provider]
	if !ok || !provider.IsConfigured() {
		app.providerNotConfiguredResponse(w, r)
		return
	}

	user, err := app.userRepo.GetById(r.Context(), userId)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			app.userNotFoundResponse(w, r)
			return
		}

		app.serverErrorResponse(w, r, err)
		return
	}

	session, err := provider.CreateCheckoutSession(r.Context(), domain.CheckoutParams{
		User:       user,
		Package:    pkg,
		SuccessURL: app.config.frontendURL + "/credits/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  app.config.frontendURL + "/credits/cancel",
	})
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	_, err = app.credits.CreatePendingPurchase(r.Context(), domain.PendingPurchase{
		UserID:    user.ID,
		Provider:  provider.Name(),
		PaymentID: session.ID,
		Credits:   pkg.TotalCredits(),
		PackageID: pkg.ID,
	})
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	resp := api.CheckoutSessionResponse{
		SessionId:   session.ID,
		RedirectUrl: session.URL,
		Provider:    session.Provider,
	}

	app.writeJSON(w, http.StatusCreated, resp, nil)
}

// CapturePaymentHandler settles an approved two-phase order. Approval alone
// never credits anything; this explicit capture is what moves the money and,
// through the reconciler, the credits.
func (app *application) CapturePaymentHandler(w http.ResponseWriter, r *http.Request) {
	userId := app.contextGetUserId(r)

	provider, ok := app.providers[chi.URLParam(r, "provider")]
	if !ok || !provider.IsConfigured() {
		app.providerNotConfiguredResponse(w, r)
		return
	}

	var req api.CapturePaymentRequest

	err := app.readJSON(w, r, &req)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(req)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	completed, captureId, err := app.reconciler.CompleteCapture(r.Context(), provider, userId, req.OrderId)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyProcessed):
			app.alreadyCapturedResponse(w, r, req.OrderId, captureId)
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		case errors.Is(err, domain.ErrCaptureNotSupported):
			app.badRequestResponse(w, r, fmt.Errorf("provider %s does not support capture", provider.Name()))
		default:
			app.captureFailedResponse(w, r, err)
		}
		return
	}

	resp := api.CapturePaymentResponse{
		Success:    true,
		Credits:    completed.Entry.Amount,
		CaptureId:  captureId,
		NewBalance: completed.NewBalance,
	}

	app.writeJSON(w, http.StatusOK, resp, nil)
}

// alreadyCapturedResponse answers a duplicate capture with the settled state
// instead of an error, so client retries converge.
func (app *application) alreadyCapturedResponse(w http.ResponseWriter, r *http.Request, orderId, captureId string) {
	entry, err := app.ledgerRepo.GetEntryByPaymentId(r.Context(), orderId)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	user, err := app.userRepo.GetById(r.Context(), entry.UserID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	resp := api.CapturePaymentResponse{
		Success:    true,
		Credits:    entry.Amount,
		CaptureId:  captureId,
		NewBalance: user.Credits,
	}

	app.writeJSON(w, http.StatusOK, resp, nil)
}

// VerifyPaymentHandler is the synchronous poll path for clients returning from
// a redirect before the webhook lands. It is safe to call any number of times.
func (app *application) VerifyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	userId := app.contextGetUserId(r)

	sessionId := r.URL.Query().Get("session_id")
	providerName := r.URL.Query().Get("provider")

	if sessionId == "" || providerName == "" {
		app.badRequestResponse(w, r, errors.New("session_id and provider query parameters are required"))
		return
	}

	provider, ok := app.providers[providerName]
	if !ok || !provider.IsConfigured() {
		app.providerNotConfiguredResponse(w, r)
		return
	}

	entry, err := app.ledgerRepo.GetEntryByPaymentId(r.Context(), sessionId)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			app.notFoundResponse(w, r)
			return
		}

		app.serverErrorResponse(w, r, err)
		return
	}

	if entry.UserID != userId {
		app.notFoundResponse(w, r)
		return
	}

	if *entry.PaymentStatus == domain.PaymentStatusCompleted {
		app.verifiedResponse(w, r, entry.Amount)
		return
	}

	completed, err := app.reconciler.VerifyAndComplete(r.Context(), provider, sessionId)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyProcessed):
			// The webhook settled the payment between our status read and the
			// completion attempt.
			app.verifiedResponse(w, r, entry.Amount)
		case errors.Is(err, domain.ErrPaymentNotCompleted):
			resp := api.VerifyPaymentResponse{
				Success: false,
				Status:  string(*entry.PaymentStatus),
			}
			app.writeJSON(w, http.StatusOK, resp, nil)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	resp := api.VerifyPaymentResponse{
		Success:    true,
		Credits:    completed.Entry.Amount,
		NewBalance: completed.NewBalance,
		Status:     string(domain.PaymentStatusCompleted),
	}

	app.writeJSON(w, http.StatusOK, resp, nil)
}

func (app *application) verifiedResponse(w http.ResponseWriter, r *http.Request, credits int) {
	user, err := app.userRepo.GetById(r.Context(), app.contextGetUserId(r))
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	resp := api.VerifyPaymentResponse{
		Success:    true,
		Credits:    credits,
		NewBalance: user.Credits,
		Status:     string(domain.PaymentStatusCompleted),
	}

	app.writeJSON(w, http.StatusOK, resp, nil)
}
