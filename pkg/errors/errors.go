package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/almoxsms/almox-backend/pkg/i18n"
)

// Standard error types
var (
	ErrNotFound            = errors.New("resource not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrBadRequest          = errors.New("bad request")
	ErrConflict            = errors.New("resource conflict")
	ErrInternal            = errors.New("internal server error")
	ErrValidation          = errors.New("validation error")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrTokenExpired        = errors.New("token expired")
	ErrTokenInvalid        = errors.New("invalid token")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	MessageKey string            `json:"-"` // i18n key for localization
	Params     map[string]string `json:"-"` // Parameters for i18n interpolation
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Localize returns a localized version of the error message
func (e *AppError) Localize(ctx context.Context) string {
	if e.MessageKey == "" {
		return e.Message
	}
	return i18n.TFromContext(ctx, e.MessageKey, e.Params)
}

// LocalizeWith returns a localized version using a specific localizer
func (e *AppError) LocalizeWith(l *i18n.Localizer) string {
	if e.MessageKey == "" {
		return e.Message
	}
	return l.T(e.MessageKey, e.Params)
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// keyed builds an AppError whose default message is the pt-BR rendering of key.
func keyed(sentinel error, code, key string, status int, params map[string]string) *AppError {
	return &AppError{
		Err:        sentinel,
		Code:       code,
		Message:    i18n.T(key, params),
		MessageKey: key,
		Params:     params,
		StatusCode: status,
	}
}

// Common error constructors

// NotFound reports a missing resource; resource is a resources.* i18n key suffix
// (produto, almoxarifado, demanda, ...).
func NotFound(resource string) *AppError {
	name := i18n.T("resources." + resource)
	return keyed(ErrNotFound, "NOT_FOUND", "errors.not_found", http.StatusNotFound,
		map[string]string{"resource": name})
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
		MessageKey: "errors.unauthorized",
		StatusCode: http.StatusUnauthorized,
	}
}

// Forbidden reports an access decision that went against the actor. reason is the
// human readable explanation carried by the policy decision.
func Forbidden(reason string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Code:       "FORBIDDEN",
		Message:    reason,
		MessageKey: "errors.forbidden",
		Params:     map[string]string{"reason": reason},
		StatusCode: http.StatusForbidden,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// ConflictWithKey builds a conflict whose message comes from the catalog.
func ConflictWithKey(key string, params map[string]string) *AppError {
	return keyed(ErrConflict, "CONFLICT", key, http.StatusConflict, params)
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		MessageKey: "errors.internal",
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    i18n.T("errors.validation_failed"),
		MessageKey: "errors.validation_failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// InvalidField is a Validation error for a single field.
func InvalidField(field, message string) *AppError {
	return Validation(map[string]string{field: message})
}

// InsufficientBalance reports a debit larger than the available quantity.
func InsufficientBalance(available, requested string) *AppError {
	return keyed(ErrInsufficientBalance, "INSUFFICIENT_BALANCE", "errors.insufficient_balance",
		http.StatusConflict, map[string]string{"available": available, "requested": requested})
}

func InvalidCredentials() *AppError {
	return keyed(ErrInvalidCredentials, "INVALID_CREDENTIALS", "errors.invalid_credentials",
		http.StatusUnauthorized, nil)
}

func TokenExpired() *AppError {
	return keyed(ErrTokenExpired, "TOKEN_EXPIRED", "errors.token_expired", http.StatusUnauthorized, nil)
}

func TokenInvalid() *AppError {
	return keyed(ErrTokenInvalid, "TOKEN_INVALID", "errors.token_invalid", http.StatusUnauthorized, nil)
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
