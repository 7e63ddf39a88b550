package services

import (
	"fmt"
	"net/http"

	"storefront-service/models"
)

type ErrorKind string

const (
	KindValidation        ErrorKind = "VALIDATION_ERROR"
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindInvalidTransition ErrorKind = "INVALID_TRANSITION"
	KindInsufficientStock ErrorKind = "INSUFFICIENT_STOCK"
	KindUnauthorized      ErrorKind = "UNAUTHORIZED"
	KindConflict          ErrorKind = "CONFLICT"
	KindInternal          ErrorKind = "INTERNAL"
)

// Reason refines a VALIDATION_ERROR.
type Reason string

const (
	ReasonMissingField  Reason = "MISSING_FIELD"
	ReasonMissingFilter Reason = "MISSING_FILTER"
	ReasonInvalidField  Reason = "INVALID_FIELD"
)

// ServiceError represents a typed error with an HTTP status code.
type ServiceError struct {
	StatusCode int
	Kind       ErrorKind
	Reason     Reason
	Field      string
	Message    string
}

func (e *ServiceError) Error() string {
	return e.Message
}

func NewMissingFieldError(field string) *ServiceError {
	return &ServiceError{
		StatusCode: http.StatusBadRequest,
		Kind:       KindValidation,
		Reason:     ReasonMissingField,
		Field:      field,
		Message:    fmt.Sprintf("Missing required field: %s", field),
	}
}

func NewInvalidFieldError(field, message string) *ServiceError {
	return &ServiceError{
		StatusCode: http.StatusBadRequest,
		Kind:       KindValidation,
		Reason:     ReasonInvalidField,
		Field:      field,
		Message:    message,
	}
}

func NewMissingFilterError(message string) *ServiceError {
	return &ServiceError{
		StatusCode: http.StatusBadRequest,
		Kind:       KindValidation,
		Reason:     ReasonMissingFilter,
		Message:    message,
	}
}

func NewNotFoundError(message string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusNotFound, Kind: KindNotFound, Message: message}
}

func NewInvalidTransitionError(from, to models.OrderStatus) *ServiceError {
	return &ServiceError{
		StatusCode: http.StatusBadRequest,
		Kind:       KindInvalidTransition,
		Message:    fmt.Sprintf("Cannot transition order from %s to %s", from, to),
	}
}

func NewInsufficientStockError(message string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusBadRequest, Kind: KindInsufficientStock, Message: message}
}

func NewUnauthorizedError() *ServiceError {
	return &ServiceError{StatusCode: http.StatusUnauthorized, Kind: KindUnauthorized, Message: "Unauthorized"}
}

func NewConflictError(message string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusConflict, Kind: KindConflict, Message: message}
}

func NewInternalError(message string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusInternalServerError, Kind: KindInternal, Message: message}
}
