package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

var (
	ErrNotFound       = NewAppError("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrBadRequest     = NewAppError("BAD_REQUEST", "Invalid request", http.StatusBadRequest)
	ErrInternalServer = NewAppError("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
	ErrValidation     = NewAppError("VALIDATION_ERROR", "Validation failed", http.StatusBadRequest)
	ErrBusinessRule   = NewAppError("BUSINESS_RULE", "Operation not allowed", http.StatusUnprocessableEntity)
	ErrProtected      = NewAppError("PROTECTED", "Record is protected", http.StatusConflict)
	ErrDatabase       = NewAppError("DATABASE_ERROR", "Database operation failed", http.StatusInternalServerError)

	ErrAccountNotFound     = NewNotFoundError("account")
	ErrCategoryNotFound    = NewNotFoundError("category")
	ErrVendorNotFound      = NewNotFoundError("vendor")
	ErrTransactionNotFound = NewNotFoundError("transaction")
	ErrBatchNotFound       = NewNotFoundError("import batch")
	ErrGroupNotFound       = NewNotFoundError("transfer group")
	ErrInvoiceNotFound     = NewNotFoundError("invoice")
	ErrBillNotFound        = NewNotFoundError("bill")
	ErrPaymentNotFound     = NewNotFoundError("payment")
)

// AppError is the error every service returns. Reasons is never empty for a
// rejected operation so callers can show each one.
type AppError struct {
	Code       string
	Message    string
	StatusCode int
	Reasons    []string
	Details    map[string]interface{}
	Err        error
}

func (e *AppError) Error() string {
	msg := e.Message
	if len(e.Reasons) > 0 {
		msg = strings.Join(e.Reasons, "; ")
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on Code so that errors.Is(err, ErrNotFound) holds for every
// not-found variant.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	clone := e.clone()
	clone.Details = make(map[string]interface{}, len(details))
	for k, v := range details {
		clone.Details[k] = v
	}
	return clone
}

func (e *AppError) WithError(err error) *AppError {
	clone := e.clone()
	clone.Err = err
	return clone
}

func (e *AppError) WithReasons(reasons ...string) *AppError {
	clone := e.clone()
	clone.Reasons = append([]string(nil), reasons...)
	return clone
}

func NewAppError(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Reasons:    []string{message},
		Details:    make(map[string]interface{}),
	}
}

func WrapError(err error, code, message string, statusCode int) *AppError {
	e := NewAppError(code, message, statusCode)
	e.Err = err
	return e
}

func (e *AppError) clone() *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Reasons = append([]string(nil), e.Reasons...)
	clone.Details = make(map[string]interface{}, len(e.Details))
	for k, v := range e.Details {
		clone.Details[k] = v
	}
	return &clone
}

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// FromError classifies any error into the taxonomy. Raw gorm errors never
// reach a caller untranslated.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound.WithError(err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return WrapError(err, "REQUEST_CANCELED", "Request canceled", http.StatusRequestTimeout)
	}
	return NewDatabaseError(err)
}

// NewValidationError reports a structural violation on a single field.
func NewValidationError(field, message string) *AppError {
	e := NewAppError("VALIDATION_ERROR", message, http.StatusBadRequest)
	if field != "" {
		e.Details["field"] = field
	}
	return e
}

// NewValidationErrors collects several mapping or configuration problems.
func NewValidationErrors(reasons []string) *AppError {
	return ErrValidation.WithReasons(reasons...)
}

// NewBusinessRuleError rejects an operation that would break a ledger rule.
func NewBusinessRuleError(reasons ...string) *AppError {
	return ErrBusinessRule.WithReasons(reasons...)
}

func NewProtectedError(message string) *AppError {
	return ErrProtected.WithReasons(message)
}

func NewDatabaseError(err error) *AppError {
	return WrapError(err, "DATABASE_ERROR", "Database operation failed", http.StatusInternalServerError)
}

func NewNotFoundError(resource string) *AppError {
	e := NewAppError("NOT_FOUND", fmt.Sprintf("%s not found", resource), http.StatusNotFound)
	e.Details["resource"] = resource
	return e
}

// TranslateDB maps a gorm error to notFound or a database error.
func TranslateDB(err error, notFound *AppError) error {
	if err == nil {
		return nil
	}
	if _, ok := AsAppError(err); ok {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound.WithError(err)
	}
	return NewDatabaseError(err)
}

func ParseValidationErrors(err error) *AppError {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return ErrBadRequest.WithReasons(err.Error()).WithError(err)
	}

	reasons := make([]string, 0, len(validationErrors))
	fieldErrors := make([]map[string]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		msg := translateValidationError(fieldErr)
		reasons = append(reasons, msg)
		fieldErrors = append(fieldErrors, map[string]string{
			"field":   fieldErr.Field(),
			"message": msg,
		})
	}

	e := ErrValidation.WithReasons(reasons...)
	e.Details["fields"] = fieldErrors
	return e
}

func translateValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must be a date (%s)", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed '%s' validation", fe.Field(), fe.Tag())
	}
}
