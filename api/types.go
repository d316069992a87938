// Package api defines the request and response shapes of the HTTP surface,
// including the stable error-code vocabulary shared with API consumers.
package api

import "time"

// Stable error codes. These are part of the external contract and must not be
// renamed.
const (
	CodeUserNotFound          = "USER_NOT_FOUND"
	CodeInsufficientCredits   = "INSUFFICIENT_CREDITS"
	CodeValidationError       = "VALIDATION_ERROR"
	CodeInvalidPackage        = "INVALID_PACKAGE"
	CodeProviderNotConfigured = "PROVIDER_NOT_CONFIGURED"
	CodeCaptureFailed         = "CAPTURE_FAILED"
	CodeCreditDeductionFailed = "CREDIT_DEDUCTION_FAILED"
	CodeReadingNotFound       = "READING_NOT_FOUND"
	CodeNotFound              = "NOT_FOUND"
	CodeInternalError         = "INTERNAL_ERROR"
)

type ErrorResponse struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	RequestId string    `json:"requestId,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Refunded reports, for failures after a committed deduction, whether the
	// compensating refund went through. Absent otherwise.
	Refunded *bool `json:"refunded,omitempty"`
}

type ValidationError struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

type ValidationErrorResponse struct {
	Code             string            `json:"code"`
	Message          string            `json:"message"`
	ValidationErrors []ValidationError `json:"validationErrors"`
	RequestId        string            `json:"requestId,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
}

type SystemInfo struct {
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

type HealthcheckResponse struct {
	Status     string     `json:"status"`
	SystemInfo SystemInfo `json:"systemInfo"`
}

type Metadata struct {
	CurrentPage  int `json:"currentPage"`
	FirstPage    int `json:"firstPage"`
	LastPage     int `json:"lastPage"`
	PageSize     int `json:"pageSize"`
	TotalRecords int `json:"totalRecords"`
}

type CreditPackage struct {
	Id           string `json:"id"`
	Name         string `json:"name"`
	Credits      int    `json:"credits"`
	BonusCredits int    `json:"bonusCredits"`
	PriceEur     string `json:"priceEur"`
}

type PackagesResponse struct {
	Packages []CreditPackage `json:"packages"`
}

type BalanceResponse struct {
	Balance int `json:"balance"`
}

type LedgerEntry struct {
	Id              string    `json:"id"`
	Type            string    `json:"type"`
	Amount          int       `json:"amount"`
	Description     string    `json:"description"`
	PaymentProvider *string   `json:"paymentProvider,omitempty"`
	PaymentId       *string   `json:"paymentId,omitempty"`
	PaymentStatus   *string   `json:"paymentStatus,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

type LedgerResponse struct {
	Entries  []LedgerEntry `json:"entries"`
	Metadata Metadata      `json:"metadata"`
}

type CreateCheckoutRequest struct {
	PackageId string `json:"packageId" validate:"required"`
	Provider  string `json:"provider" validate:"required,provider"`
}

type CheckoutSessionResponse struct {
	SessionId   string `json:"sessionId"`
	RedirectUrl string `json:"redirectUrl"`
	Provider    string `json:"provider"`
}

type CapturePaymentRequest struct {
	OrderId string `json:"orderId" validate:"required"`
}

type CapturePaymentResponse struct {
	Success    bool   `json:"success"`
	Credits    int    `json:"credits"`
	CaptureId  string `json:"captureId,omitempty"`
	NewBalance int    `json:"newBalance"`
}

type VerifyPaymentResponse struct {
	Success    bool   `json:"success"`
	Credits    int    `json:"credits"`
	NewBalance int    `json:"newBalance"`
	Status     string `json:"status"`
}

type CostBreakdown struct {
	BaseCost     int `json:"baseCost"`
	StyleCost    int `json:"styleCost"`
	ExtendedCost int `json:"extendedCost"`
	TotalCost    int `json:"totalCost"`
}

type CreateReadingRequest struct {
	SpreadType string   `json:"spreadType" validate:"required,spread_type"`
	Styles     []string `json:"styles" validate:"omitempty,max=4,dive,interpretation_style"`
	Question   string   `json:"question" validate:"max=500"`
	Extended   bool     `json:"extended"`
}

type Reading struct {
	Id         int       `json:"id"`
	SpreadType string    `json:"spreadType"`
	Styles     []string  `json:"styles"`
	Question   string    `json:"question,omitempty"`
	Extended   bool      `json:"extended"`
	CreatedAt  time.Time `json:"createdAt"`
}

type ReadingResponse struct {
	Reading       Reading       `json:"reading"`
	TransactionId string        `json:"transactionId"`
	Cost          CostBreakdown `json:"cost"`
	NewBalance    int           `json:"newBalance"`
}

type AddQuestionRequest struct {
	Question string `json:"question" validate:"required,min=5,max=500"`
}

type FollowUpQuestionResponse struct {
	Id            int       `json:"id"`
	ReadingId     int       `json:"readingId"`
	Question      string    `json:"question"`
	TransactionId string    `json:"transactionId"`
	Cost          int       `json:"cost"`
	NewBalance    int       `json:"newBalance"`
	CreatedAt     time.Time `json:"createdAt"`
}
