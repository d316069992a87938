package domain

import "errors"

var (
	ErrRecordNotFound          = errors.New("record not found")
	ErrEditConflict            = errors.New("edit conflict")
	ErrInsufficientCredits     = errors.New("insufficient credits")
	ErrInvalidPackage          = errors.New("unknown credit package")
	ErrProviderNotConfigured   = errors.New("payment provider is not configured")
	ErrCaptureNotSupported     = errors.New("capture is not supported by this provider")
	ErrCaptureFailed           = errors.New("payment capture failed")
	ErrAlreadyProcessed        = errors.New("payment already processed")
	ErrAlreadyRefunded         = errors.New("payment already refunded")
	ErrInvalidStatusTransition = errors.New("illegal payment status transition")
	ErrInvalidWebhookSignature = errors.New("webhook signature verification failed")
	ErrUnknownWebhookEvent     = errors.New("unrecognized webhook event type")
	ErrPaymentNotCompleted     = errors.New("payment has not been completed")
	ErrInvalidSpreadType       = errors.New("unknown spread type")
)
