package app

import (
	"net/http"
	"time"

	"github.com/arcanalabs/arcana/api"
	appvalidator "github.com/arcanalabs/arcana/internal/validator"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

func (app *application) logError(r *http.Request, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.Error(err.Error(), "method", method, "uri", uri)
}

// errorResponse sends a JSON error with a stable machine-readable code. The
// code vocabulary is part of the API contract; message wording is not.
func (app *application) errorResponse(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	resp := api.ErrorResponse{
		Code:      code,
		Message:   message,
		RequestId: middleware.GetReqID(r.Context()),
		Timestamp: time.Now(),
	}

	err := app.writeJSON(w, status, resp, nil)
	if err != nil {
		app.logError(r, err)
		w.WriteHeader(500)
	}
}

func (app *application) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logError(r, err)

	message := "The server encountered a problem and could not process your request"
	app.errorResponse(w, r, http.StatusInternalServerError, api.CodeInternalError, message)
}

func (app *application) notFoundResponse(w http.ResponseWriter, r *http.Request) {
	message := "The requested resource not found"
	app.errorResponse(w, r, http.StatusNotFound, api.CodeNotFound, message)
}

func (app *application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorResponse(w, r, http.StatusBadRequest, api.CodeValidationError, err.Error())
}

func (app *application) unauthorizedResponse(w http.ResponseWriter, r *http.Request) {
	message := "You must be authenticated to access this resource"
	app.errorResponse(w, r, http.StatusUnauthorized, api.CodeUserNotFound, message)
}

func (app *application) userNotFoundResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusNotFound, api.CodeUserNotFound, "User not found")
}

func (app *application) insufficientCreditsResponse(w http.ResponseWriter, r *http.Request) {
	message := "You do not have enough credits for this operation"
	app.errorResponse(w, r, http.StatusPaymentRequired, api.CodeInsufficientCredits, message)
}

func (app *application) invalidPackageResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusBadRequest, api.CodeInvalidPackage, "Unknown credit package")
}

func (app *application) providerNotConfiguredResponse(w http.ResponseWriter, r *http.Request) {
	message := "The requested payment provider is not available"
	app.errorResponse(w, r, http.StatusServiceUnavailable, api.CodeProviderNotConfigured, message)
}

func (app *application) captureFailedResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logError(r, err)

	message := "The payment could not be captured"
	app.errorResponse(w, r, http.StatusBadGateway, api.CodeCaptureFailed, message)
}

func (app *application) readingNotFoundResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusNotFound, api.CodeReadingNotFound, "Reading not found")
}

// deductionFailedResponse reports a failure that happened after a committed
// deduction, together with the outcome of the compensating refund.
func (app *application) deductionFailedResponse(w http.ResponseWriter, r *http.Request, err error, refunded bool) {
	app.logError(r, err)

	message := "Your credits were deducted but the operation failed; the deduction has been refunded"
	if !refunded {
		message = "Your credits were deducted and the operation failed; the refund also failed, contact support"
	}

	resp := api.ErrorResponse{
		Code:      api.CodeCreditDeductionFailed,
		Message:   message,
		RequestId: middleware.GetReqID(r.Context()),
		Timestamp: time.Now(),
		Refunded:  &refunded,
	}

	writeErr := app.writeJSON(w, http.StatusInternalServerError, resp, nil)
	if writeErr != nil {
		app.logError(r, writeErr)
		w.WriteHeader(500)
	}
}

func (app *application) failedValidationResponse(w http.ResponseWriter, r *http.Request, err error) {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		app.badRequestResponse(w, r, err)
		return
	}

	fieldErrors := make([]api.ValidationError, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		fieldErrors = append(fieldErrors, api.ValidationError{
			Field: fieldErr.Field(),
			Issue: appvalidator.ValidationMessage(fieldErr),
		})
	}

	resp := api.ValidationErrorResponse{
		Code:             api.CodeValidationError,
		Message:          "The request contains invalid fields",
		ValidationErrors: fieldErrors,
		RequestId:        middleware.GetReqID(r.Context()),
		Timestamp:        time.Now(),
	}

	writeErr := app.writeJSON(w, http.StatusUnprocessableEntity, resp, nil)
	if writeErr != nil {
		app.logError(r, writeErr)
		w.WriteHeader(500)
	}
}
