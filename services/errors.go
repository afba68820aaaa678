package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a ServiceError for transport mapping
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindSignature
	KindUpstream
	KindInternal
)

// ServiceError is the typed error returned by the order workflow. Code and
// Message are safe to show to API clients; Err carries the cause.
type ServiceError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is matches on Code so callers can compare against the sentinel values
// below even when a cause or custom message was attached.
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	return ok && t.Code == e.Code
}

var (
	ErrValidation        = &ServiceError{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: "Invalid request data"}
	ErrInvalidStatus     = &ServiceError{Kind: KindValidation, Code: "INVALID_STATUS", Message: "Invalid status"}
	ErrInvalidTransition = &ServiceError{Kind: KindValidation, Code: "INVALID_TRANSITION", Message: "Order cannot move to the requested status"}
	ErrInvalidOTP        = &ServiceError{Kind: KindValidation, Code: "INVALID_OTP", Message: "Invalid OTP"}
	ErrNotCancellable    = &ServiceError{Kind: KindValidation, Code: "NOT_CANCELLABLE", Message: "Order cannot be cancelled"}
	ErrInsufficientStock = &ServiceError{Kind: KindValidation, Code: "INSUFFICIENT_STOCK", Message: "Not enough stock for one or more items"}
	ErrPaymentReused     = &ServiceError{Kind: KindValidation, Code: "PAYMENT_ALREADY_USED", Message: "Payment has already been applied to a different order"}
	ErrInvalidSignature  = &ServiceError{Kind: KindSignature, Code: "INVALID_SIGNATURE", Message: "Invalid payment signature"}
	ErrOrderNotFound     = &ServiceError{Kind: KindNotFound, Code: "ORDER_NOT_FOUND", Message: "Order not found"}
	ErrProductNotFound   = &ServiceError{Kind: KindNotFound, Code: "PRODUCT_NOT_FOUND", Message: "Product not found"}
	ErrUserNotFound      = &ServiceError{Kind: KindNotFound, Code: "USER_NOT_FOUND", Message: "User not found"}
	ErrForbidden         = &ServiceError{Kind: KindForbidden, Code: "FORBIDDEN", Message: "You do not have permission to access this order"}
	ErrPaymentGateway    = &ServiceError{Kind: KindUpstream, Code: "PAYMENT_GATEWAY_ERROR", Message: "Payment gateway request failed"}
	ErrInternal          = &ServiceError{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: "Internal server error"}
)

// withCause copies base and attaches err as the cause
func withCause(base *ServiceError, err error) *ServiceError {
	e := *base
	e.Err = err
	return &e
}

// withMessage copies base with a more specific client message
func withMessage(base *ServiceError, format string, args ...interface{}) *ServiceError {
	e := *base
	e.Message = fmt.Sprintf(format, args...)
	return &e
}

// internal wraps an unexpected failure, passing ServiceErrors through
func internal(err error) error {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return err
	}
	return withCause(ErrInternal, err)
}

// AsServiceError extracts a ServiceError from err, classifying anything
// else as internal
func AsServiceError(err error) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return withCause(ErrInternal, err)
}
