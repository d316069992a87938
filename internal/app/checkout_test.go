package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/arcanalabs/arcana/api"
	"github.com/arcanalabs/arcana/internal/domain"
	"github.com/arcanalabs/arcana/internal/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

var testUser = &domain.User{ID: testUserId, Email: "rhiannon@example.com", Username: "rhiannon", Credits: 2}

type CheckoutTestSuite struct {
	suite.Suite
	app      *application
	userRepo *mocks.MockUserRepo
	ledger   *mocks.MockLedgerRepo
	credits  *mocks.MockCreditService
	stripe   *mocks.MockPaymentProvider
	paypal   *mocks.MockPaymentProvider
}

func (s *CheckoutTestSuite) SetupTest() {
	s.userRepo = new(mocks.MockUserRepo)
	s.ledger = new(mocks.MockLedgerRepo)
	s.credits = new(mocks.MockCreditService)
	s.stripe = &mocks.MockPaymentProvider{ProviderName: "stripe", Configured: true}
	s.paypal = &mocks.MockPaymentProvider{ProviderName: "paypal", Configured: true}

	s.app = newTestApplication(func(a *application) {
		a.userRepo = s.userRepo
		a.ledgerRepo = s.ledger
		a.credits = s.credits
		a.reconciler = newTestReconciler(s.credits, s.ledger, s.userRepo)
		a.providers = map[string]domain.PaymentProvider{
			"stripe": s.stripe,
			"paypal": s.paypal,
		}
	})
}

func TestCheckoutSuite(t *testing.T) {
	suite.Run(t, new(CheckoutTestSuite))
}

func (s *CheckoutTestSuite) TestCreateCheckoutSessionHandler() {
	tests := []struct {
		name       string
		input      api.CreateCheckoutRequest
		setupMocks func()
		wantStatus int
		wantCode   string
	}{
		{
			name:       "should fail when provider is unsupported",
			input:      api.CreateCheckoutRequest{PackageId: "seeker", Provider: "venmo"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   api.CodeValidationError,
		},
		{
			name:       "should fail when package id is missing",
			input:      api.CreateCheckoutRequest{Provider: "stripe"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   api.CodeValidationError,
		},
		{
			name:  "should fail when provider is not configured",
			input: api.CreateCheckoutRequest{PackageId: "seeker", Provider: "paypal"},
			setupMocks: func() {
				s.paypal.Configured = false
			},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   api.CodeProviderNotConfigured,
		},
		{
			name:  "should fail when user does not exist",
			input: api.CreateCheckoutRequest{PackageId: "seeker", Provider: "stripe"},
			setupMocks: func() {
				s.userRepo.On("GetById", mock.Anything, testUserId).Return(nil, domain.ErrRecordNotFound)
			},
			wantStatus: http.StatusNotFound,
			wantCode:   api.CodeUserNotFound,
		},
		{
			name:       "should fail when package is unknown",
			input:      api.CreateCheckoutRequest{PackageId: "cosmic", Provider: "stripe"},
			wantStatus: http.StatusBadRequest,
			wantCode:   api.CodeInvalidPackage,
		},
		{
			name:  "should fail when provider session creation fails",
			input: api.CreateCheckoutRequest{PackageId: "seeker", Provider: "stripe"},
			setupMocks: func() {
				s.userRepo.On("GetById", mock.Anything, testUserId).Return(testUser, nil)
				s.stripe.On("CreateCheckoutSession", mock.Anything, mock.Anything).
					Return(nil, errors.New("gateway timeout"))
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   api.CodeInternalError,
		},
		{
			name:  "should fail when the pending entry cannot be written",
			input: api.CreateCheckoutRequest{PackageId: "seeker", Provider: "stripe"},
			setupMocks: func() {
				s.userRepo.On("GetById", mock.Anything, testUserId).Return(testUser, nil)
				s.stripe.On("CreateCheckoutSession", mock.Anything, mock.Anything).
					Return(&domain.CheckoutSession{ID: "cs_123", URL: "https://stripe.test/cs_123", Provider: "stripe"}, nil)
				s.credits.On("CreatePendingPurchase", mock.Anything, mock.Anything).
					Return(uuid.Nil, errors.New("database error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   api.CodeInternalError,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()
			if tt.setupMocks != nil {
				tt.setupMocks()
			}

			w, r := executeRequest(s.T(), http.MethodPost, "/checkout/sessions", tt.input)
			r = authenticatedRequest(r, testUserId)

			s.app.CreateCheckoutSessionHandler(w, r)

			s.Equal(tt.wantStatus, w.Code)
			checkErrorResponse(s.T(), w, tt.wantStatus, tt.wantCode)
		})
	}
}

func (s *CheckoutTestSuite) TestCreateCheckoutSessionHandler_Success() {
	s.userRepo.On("GetById", mock.Anything, testUserId).Return(testUser, nil)

	s.stripe.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(params domain.CheckoutParams) bool {
		return params.User.ID == testUserId && params.Package.ID == "seeker"
	})).Return(&domain.CheckoutSession{ID: "cs_123", URL: "https://stripe.test/cs_123", Provider: "stripe"}, nil)

	// Seeker carries 25 credits plus a 3 credit bonus.
	s.credits.On("CreatePendingPurchase", mock.Anything, domain.PendingPurchase{
		UserID:    testUserId,
		Provider:  "stripe",
		PaymentID: "cs_123",
		Credits:   28,
		PackageID: "seeker",
	}).Return(uuid.New(), nil)

	input := api.CreateCheckoutRequest{PackageId: "seeker", Provider: "stripe"}
	w, r := executeRequest(s.T(), http.MethodPost, "/checkout/sessions", input)
	r = authenticatedRequest(r, testUserId)

	s.app.CreateCheckoutSessionHandler(w, r)

	s.Equal(http.StatusCreated, w.Code)

	var resp api.CheckoutSessionResponse
	s.NoError(json.NewDecoder(w.Body).Decode(&resp))
	s.Equal("cs_123", resp.SessionId)
	s.Equal("https://stripe.test/cs_123", resp.RedirectUrl)
	s.Equal("stripe", resp.Provider)

	s.credits.AssertExpectations(s.T())
}

func (s *CheckoutTestSuite) TestCapturePaymentHandler() {
	pendingStatus := domain.PaymentStatusPending
	completedStatus := domain.PaymentStatusCompleted

	pendingEntry := &domain.LedgerEntry{
		ID:            uuid.New(),
		UserID:        testUserId,
		Type:          domain.TransactionPurchase,
		Amount:        28,
		PaymentStatus: &pendingStatus,
	}

	tests := []struct {
		name       string
		provider   string
		input      api.CapturePaymentRequest
		setupMocks func()
		wantStatus int
		wantCode   string
	}{
		{
			name:       "should fail when provider is unknown",
			provider:   "venmo",
			input:      api.CapturePaymentRequest{OrderId: "ORDER-1"},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   api.CodeProviderNotConfigured,
		},
		{
			name:       "should fail when order id is missing",
			provider:   "paypal",
			input:      api.CapturePaymentRequest{},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   api.CodeValidationError,
		},
		{
			name:     "should fail when order does not exist",
			provider: "paypal",
			input:    api.CapturePaymentRequest{OrderId: "ORDER-1"},
			setupMocks: func() {
				s.ledger.On("GetEntryByPaymentId", mock.Anything, "ORDER-1").Return(nil, domain.ErrRecordNotFound)
			},
			wantStatus: http.StatusNotFound,
			wantCode:   api.CodeNotFound,
		},
		{
			name:     "should fail when order belongs to another user",
			provider: "paypal",
			input:    api.CapturePaymentRequest{OrderId: "ORDER-1"},
			setupMocks: func() {
				other := *pendingEntry
				other.UserID = 42
				s.ledger.On("GetEntryByPaymentId", mock.Anything, "ORDER-1").Return(&other, nil)
			},
			wantStatus: http.StatusNotFound,
			wantCode:   api.CodeNotFound,
		},
		{
			name:     "should fail when provider does not support capture",
			provider: "stripe",
			input:    api.CapturePaymentRequest{OrderId: "cs_123"},
			setupMocks: func() {
				s.ledger.On("GetEntryByPaymentId", mock.Anything, "cs_123").Return(pendingEntry, nil)
				s.stripe.On("CapturePayment", mock.Anything, mock.Anything).Return(nil, domain.ErrCaptureNotSupported)
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   api.CodeValidationError,
		},
		{
			name:     "should fail when the provider rejects the capture",
			provider: "paypal",
			input:    api.CapturePaymentRequest{OrderId: "ORDER-1"},
			setupMocks: func() {
				s.ledger.On("GetEntryByPaymentId", mock.Anything, "ORDER-1").Return(pendingEntry, nil)
				s.paypal.On("CapturePayment", mock.Anything, mock.Anything).Return(nil, domain.ErrCaptureFailed)
			},
			wantStatus: http.StatusBadGateway,
			wantCode:   api.CodeCaptureFailed,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()
			if tt.setupMocks != nil {
				tt.setupMocks()
			}

			w, r := executeRequest(s.T(), http.MethodPost, "/payments/"+tt.provider+"/capture", tt.input)
			r = authenticatedRequest(r, testUserId)
			r = withURLParam(r, "provider", tt.provider)

			s.app.CapturePaymentHandler(w, r)

			s.Equal(tt.wantStatus, w.Code)
			checkErrorResponse(s.T(), w, tt.wantStatus, tt.wantCode)
		})
	}

	s.Run("should settle an approved order", func() {
		s.SetupTest()

		s.ledger.On("GetEntryByPaymentId", mock.Anything, "ORDER-1").Return(pendingEntry, nil)
		s.paypal.On("CapturePayment", mock.Anything, domain.CaptureParams{OrderID: "ORDER-1"}).
			Return(&domain.CaptureResult{Succeeded: true, CaptureID: "CAP-1"}, nil)
		s.credits.On("CompletePurchase", mock.Anything, "ORDER-1").Return(&domain.CompletedPurchase{
			Entry:      pendingEntry,
			NewBalance: 30,
		}, nil)

		w, r := executeRequest(s.T(), http.MethodPost, "/payments/paypal/capture", api.CapturePaymentRequest{OrderId: "ORDER-1"})
		r = authenticatedRequest(r, testUserId)
		r = withURLParam(r, "provider", "paypal")

		s.app.CapturePaymentHandler(w, r)

		s.Equal(http.StatusOK, w.Code)

		var resp api.CapturePaymentResponse
		s.NoError(json.NewDecoder(w.Body).Decode(&resp))
		s.True(resp.Success)
		s.Equal(28, resp.Credits)
		s.Equal("CAP-1", resp.CaptureId)
		s.Equal(30, resp.NewBalance)
	})

	s.Run("should answer a duplicate capture with the settled state", func() {
		s.SetupTest()

		settled := *pendingEntry
		settled.PaymentStatus = &completedStatus

		s.ledger.On("GetEntryByPaymentId", mock.Anything, "ORDER-1").Return(&settled, nil)
		s.userRepo.On("GetById", mock.Anything, testUserId).Return(&domain.User{ID: testUserId, Credits: 30}, nil)

		w, r := executeRequest(s.T(), http.MethodPost, "/payments/paypal/capture", api.CapturePaymentRequest{OrderId: "ORDER-1"})
		r = authenticatedRequest(r, testUserId)
		r = withURLParam(r, "provider", "paypal")

		s.app.CapturePaymentHandler(w, r)

		s.Equal(http.StatusOK, w.Code)

		var resp api.CapturePaymentResponse
		s.NoError(json.NewDecoder(w.Body).Decode(&resp))
		s.True(resp.Success)
		s.Equal(28, resp.Credits)
		s.Equal(30, resp.NewBalance)
		s.paypal.AssertNotCalled(s.T(), "CapturePayment", mock.Anything, mock.Anything)
	})
}

func (s *CheckoutTestSuite) TestVerifyPaymentHandler() {
	pendingStatus := domain.PaymentStatusPending
	completedStatus := domain.PaymentStatusCompleted

	pendingEntry := &domain.LedgerEntry{
		ID:            uuid.New(),
		UserID:        testUserId,
		Type:          domain.TransactionPurchase,
		Amount:        28,
		PaymentStatus: &pendingStatus,
	}

	s.Run("should fail without query parameters", func() {
		s.SetupTest()

		w, r := executeRequest(s.T(), http.MethodGet, "/payments/verify", nil)
		r = authenticatedRequest(r, testUserId)

		s.app.VerifyPaymentHandler(w, r)

		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("should hide other users' sessions", func() {
		s.SetupTest()

		other := *pendingEntry
		other.UserID = 42
		s.ledger.On("GetEntryByPaymentId", mock.Anything, "cs_123").Return(&other, nil)

		w, r := executeRequest(s.T(), http.MethodGet, "/payments/verify?session_id=cs_123&provider=stripe", nil)
		r = authenticatedRequest(r, testUserId)

		s.app.VerifyPaymentHandler(w, r)

		s.Equal(http.StatusNotFound, w.Code)
	})

	s.Run("should report an unpaid session without crediting", func() {
		s.SetupTest()

		s.ledger.On("GetEntryByPaymentId", mock.Anything, "cs_123").Return(pendingEntry, nil)
		s.stripe.On("VerifyPayment", mock.Anything, "cs_123").
			Return(&domain.PaymentVerification{Succeeded: false, Status: "unpaid"}, nil)

		w, r := executeRequest(s.T(), http.MethodGet, "/payments/verify?session_id=cs_123&provider=stripe", nil)
		r = authenticatedRequest(r, testUserId)

		s.app.VerifyPaymentHandler(w, r)

		s.Equal(http.StatusOK, w.Code)

		var resp api.VerifyPaymentResponse
		s.NoError(json.NewDecoder(w.Body).Decode(&resp))
		s.False(resp.Success)
		s.Equal("PENDING", resp.Status)
		s.credits.AssertNotCalled(s.T(), "CompletePurchase", mock.Anything, mock.Anything)
	})

	s.Run("should complete a paid session", func() {
		s.SetupTest()

		s.ledger.On("GetEntryByPaymentId", mock.Anything, "cs_123").Return(pendingEntry, nil)
		s.stripe.On("VerifyPayment", mock.Anything, "cs_123").
			Return(&domain.PaymentVerification{Succeeded: true, Credits: 28, Status: "paid"}, nil)
		s.credits.On("CompletePurchase", mock.Anything, "cs_123").Return(&domain.CompletedPurchase{
			Entry:      pendingEntry,
			NewBalance: 30,
		}, nil)

		w, r := executeRequest(s.T(), http.MethodGet, "/payments/verify?session_id=cs_123&provider=stripe", nil)
		r = authenticatedRequest(r, testUserId)

		s.app.VerifyPaymentHandler(w, r)

		s.Equal(http.StatusOK, w.Code)

		var resp api.VerifyPaymentResponse
		s.NoError(json.NewDecoder(w.Body).Decode(&resp))
		s.True(resp.Success)
		s.Equal(28, resp.Credits)
		s.Equal(30, resp.NewBalance)
		s.Equal("COMPLETED", resp.Status)
	})

	s.Run("should answer a repeated poll from the settled entry", func() {
		s.SetupTest()

		settled := *pendingEntry
		settled.PaymentStatus = &completedStatus

		s.ledger.On("GetEntryByPaymentId", mock.Anything, "cs_123").Return(&settled, nil)
		s.userRepo.On("GetById", mock.Anything, testUserId).Return(&domain.User{ID: testUserId, Credits: 30}, nil)

		w, r := executeRequest(s.T(), http.MethodGet, "/payments/verify?session_id=cs_123&provider=stripe", nil)
		r = authenticatedRequest(r, testUserId)

		s.app.VerifyPaymentHandler(w, r)

		s.Equal(http.StatusOK, w.Code)

		var resp api.VerifyPaymentResponse
		s.NoError(json.NewDecoder(w.Body).Decode(&resp))
		s.True(resp.Success)
		s.Equal(30, resp.NewBalance)
		s.stripe.AssertNotCalled(s.T(), "VerifyPayment", mock.Anything, mock.Anything)
	})
}
