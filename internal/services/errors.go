package services

import (
	"errors"
	"fmt"

	"sekolah_app_echo/internal/models"
)

// ValidationCode identifies why a payment request was rejected before any
// gateway call was made.
type ValidationCode string

const (
	ValidationAmountTooLow    ValidationCode = "AmountTooLow"
	ValidationAmountTooHigh   ValidationCode = "AmountTooHigh"
	ValidationMissingItems    ValidationCode = "MissingItems"
	ValidationInvalidCustomer ValidationCode = "InvalidCustomer"
	ValidationAmountMismatch  ValidationCode = "AmountMismatch"
)

// ValidationError means the caller's request was malformed. It is never
// retried automatically; the caller corrects the input.
type ValidationError struct {
	Code    ValidationCode
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// GatewayError means the upstream gateway rejected or failed the call. The
// upstream message is carried through when the gateway provided one.
type GatewayError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gateway error (%d): transaction failed", e.StatusCode)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// AnomalousTransitionError means a notification tried to move a terminal
// status somewhere invalid. The record is left unchanged.
type AnomalousTransitionError struct {
	OrderID string
	From    models.PaymentStatus
	To      models.PaymentStatus
}

func (e *AnomalousTransitionError) Error() string {
	return fmt.Sprintf("anomalous transition %s -> %s for order %s", e.From, e.To, e.OrderID)
}

var (
	// ErrVerificationFailed is a webhook signature mismatch. Logged as a
	// security event, no state change.
	ErrVerificationFailed = errors.New("notification signature mismatch")

	// ErrUnknownStatus is an unrecognized gateway status code. Logged,
	// state unchanged.
	ErrUnknownStatus = errors.New("unrecognized gateway transaction status")

	// ErrOrderNotFound is returned by status queries for order ids the
	// gateway has never seen.
	ErrOrderNotFound = errors.New("order not found at gateway")

	// ErrPaymentNotFound means no local record exists for the order id.
	ErrPaymentNotFound = errors.New("payment record not found")

	// ErrMethodIneligible means amount plus fee falls outside the
	// configured transaction bounds for that method.
	ErrMethodIneligible = errors.New("payment method not eligible for amount")

	// ErrNotCancelable: cancel is only valid while the record is PENDING.
	ErrNotCancelable = errors.New("payment is not in a cancelable state")

	// ErrNotRefundable: refunds only apply to PAID or PARTIAL_REFUND records.
	ErrNotRefundable = errors.New("payment is not in a refundable state")
)
