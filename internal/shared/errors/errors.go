package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error types
var (
	ErrNotFound                = errors.New("resource not found")
	ErrInvalidInput            = errors.New("invalid input")
	ErrForbidden               = errors.New("forbidden")
	ErrAmbulanceUnavailable    = errors.New("ambulance unavailable")
	ErrHospitalLocationMissing = errors.New("hospital location missing")
	ErrIllegalTransition       = errors.New("illegal status transition")
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	ErrInternal                = errors.New("internal error")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	HTTPStatus int               `json:"-"`
	Details    map[string]string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a not found error
func NotFound(resource string, id string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		Code:       "NOT_FOUND",
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]string{"resource": resource, "id": id},
	}
}

// InvalidInput creates a validation error, rejected before any side effect
func InvalidInput(message string) *AppError {
	return &AppError{
		Err:        ErrInvalidInput,
		Message:    message,
		Code:       "INVALID_INPUT",
		HTTPStatus: http.StatusBadRequest,
	}
}

// Forbidden creates a forbidden error
func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Message:    message,
		Code:       "FORBIDDEN",
		HTTPStatus: http.StatusForbidden,
	}
}

// AmbulanceUnavailable signals that a dispatch lost the race for an ambulance
// or that the ambulance was already committed to another emergency.
func AmbulanceUnavailable(ambulanceID string) *AppError {
	return &AppError{
		Err:        ErrAmbulanceUnavailable,
		Message:    "ambulance is not available for dispatch",
		Code:       "AMBULANCE_UNAVAILABLE",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]string{"ambulance_id": ambulanceID},
	}
}

// HospitalLocationMissing signals that a hospital has no resolvable location.
func HospitalLocationMissing(hospitalID string) *AppError {
	return &AppError{
		Err:        ErrHospitalLocationMissing,
		Message:    "hospital has no resolvable location",
		Code:       "HOSPITAL_LOCATION_MISSING",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]string{"hospital_id": hospitalID},
	}
}

// IllegalTransition signals a rejected emergency status change.
func IllegalTransition(from, to string) *AppError {
	return &AppError{
		Err:        ErrIllegalTransition,
		Message:    fmt.Sprintf("cannot transition emergency from %s to %s", from, to),
		Code:       "ILLEGAL_TRANSITION",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]string{"from": from, "to": to},
	}
}

// CollaboratorUnavailable signals an unreachable external collaborator.
func CollaboratorUnavailable(name string, err error) *AppError {
	return &AppError{
		Err:        fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err),
		Message:    fmt.Sprintf("%s unavailable", name),
		Code:       "COLLABORATOR_UNAVAILABLE",
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]string{"collaborator": name},
	}
}

// Internal creates an internal error
func Internal(err error) *AppError {
	return &AppError{
		Err:        err,
		Message:    "internal server error",
		Code:       "INTERNAL_ERROR",
		HTTPStatus: http.StatusInternalServerError,
	}
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) *AppError {
	if appErr, ok := err.(*AppError); ok {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "INTERNAL_ERROR",
		HTTPStatus: http.StatusInternalServerError,
	}
}
