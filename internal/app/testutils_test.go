package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arcanalabs/arcana/api"
	"github.com/arcanalabs/arcana/internal/domain"
	"github.com/arcanalabs/arcana/internal/mailer"
	"github.com/arcanalabs/arcana/internal/mocks"
	"github.com/arcanalabs/arcana/internal/reconciler"
	appvalidator "github.com/arcanalabs/arcana/internal/validator"
	"github.com/go-chi/chi/v5"
)

const testUserId = 1

func newTestApplication(opts ...func(*application)) *application {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	app := &application{
		validator:   appvalidator.NewValidator(),
		logger:      logger,
		mailer:      mailer.NewMockMailer(),
		userRepo:    &mocks.MockUserRepo{},
		ledgerRepo:  &mocks.MockLedgerRepo{},
		readingRepo: &mocks.MockReadingRepo{},
		credits:     &mocks.MockCreditService{},
		providers:   map[string]domain.PaymentProvider{},
	}

	for _, opt := range opts {
		opt(app)
	}

	return app
}

func executeRequest(t *testing.T, method, url string, body any) (*httptest.ResponseRecorder, *http.Request) {
	var reader io.Reader

	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(jsonData)
	}

	r := httptest.NewRequest(method, url, reader)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	return w, r
}

func authenticatedRequest(r *http.Request, userId int) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userIdContextKey, userId))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)

	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func checkErrorResponse(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	if wantStatus >= 200 && wantStatus < 300 {
		return
	}

	switch wantStatus {
	case http.StatusUnprocessableEntity:
		var validationResp api.ValidationErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&validationResp); err != nil {
			t.Fatalf("Failed to decode validation error response: %v", err)
		}

		if validationResp.Code != wantCode {
			t.Errorf("Error code = %v, want %v", validationResp.Code, wantCode)
		}

	default:
		var errorResp api.ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&errorResp); err != nil {
			t.Fatalf("Failed to decode error response: %v", err)
		}

		if wantCode != "" && errorResp.Code != wantCode {
			t.Errorf("Error code = %v, want %v", errorResp.Code, wantCode)
		}
	}
}

func newTestReconciler(
	credits *mocks.MockCreditService,
	ledgerRepo *mocks.MockLedgerRepo,
	userRepo *mocks.MockUserRepo) *reconciler.Reconciler {

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return reconciler.New(credits, ledgerRepo, userRepo, nil, mailer.NewMockMailer(), logger)
}

func ptr[T any](v T) *T {
	return &v
}
