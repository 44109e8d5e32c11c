// Package errors provides the standardized error values used across the bot.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Conversation turn errors
const (
	ErrCodeMalformedInput         ErrorCode = "MALFORMED_INPUT"
	ErrCodeInvalidDateTime        ErrorCode = "INVALID_DATETIME"
	ErrCodeCalendarGatewayFailure ErrorCode = "CALENDAR_GATEWAY_FAILURE"
	ErrCodeCalendarTimeout        ErrorCode = "CALENDAR_TIMEOUT"

	ErrCodeTransportSendFailed ErrorCode = "TRANSPORT_SEND_FAILED"
	ErrCodeSessionStoreFailure ErrorCode = "SESSION_STORE_FAILURE"

	ErrCodeWebhookPayloadInvalid   ErrorCode = "WEBHOOK_PAYLOAD_INVALID"
	ErrCodeWebhookSignatureInvalid ErrorCode = "WEBHOOK_SIGNATURE_INVALID"
	ErrCodeDispatcherClosed        ErrorCode = "DISPATCHER_CLOSED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeJournalWriteFailed     ErrorCode = "JOURNAL_WRITE_FAILED"

	ErrCodeConfigurationInvalid ErrorCode = "CONFIGURATION_INVALID"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
	Cause     error     `json:"-"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.Cause
}

// Is matches any *StandardError carrying the same code, so callers can write
// errors.Is(err, errors.ErrMalformedInput).
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrMalformedInput         = &StandardError{Code: ErrCodeMalformedInput}
	ErrInvalidDateTime        = &StandardError{Code: ErrCodeInvalidDateTime}
	ErrCalendarGatewayFailure = &StandardError{Code: ErrCodeCalendarGatewayFailure}
	ErrCalendarTimeout        = &StandardError{Code: ErrCodeCalendarTimeout}
	ErrTransportSendFailed    = &StandardError{Code: ErrCodeTransportSendFailed}
	ErrSessionStoreFailure    = &StandardError{Code: ErrCodeSessionStoreFailure}
	ErrDispatcherClosed       = &StandardError{Code: ErrCodeDispatcherClosed}
)

// ==========================
// 2. Error Constructors
// ==========================

// NewMalformedInputError reports a date/time reply missing tokens or fields.
func NewMalformedInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedInput,
		Message:   "Date/time text is missing required fields",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidDateTimeError reports fields that do not form a real calendar moment.
func NewInvalidDateTimeError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidDateTime,
		Message:   "Date/time is not a valid calendar moment",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCalendarGatewayError wraps a failed or empty calendar booking.
func NewCalendarGatewayError(err error) *StandardError {
	details := "calendar returned no confirmation link"
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeCalendarGatewayFailure,
		Message:   "Calendar booking failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// NewCalendarTimeoutError reports a calendar call that exceeded its deadline.
func NewCalendarTimeoutError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCalendarTimeout,
		Message:   "Calendar booking timed out",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// NewTransportSendError wraps a failed outbound message or typing signal.
func NewTransportSendError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransportSendFailed,
		Message:   fmt.Sprintf("Transport operation '%s' failed", operation),
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// NewSessionStoreError wraps a session backend failure.
func NewSessionStoreError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionStoreFailure,
		Message:   fmt.Sprintf("Session store operation '%s' failed", operation),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// NewWebhookPayloadError reports an inbound webhook body that failed validation.
func NewWebhookPayloadError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeWebhookPayloadInvalid,
		Message:   "Webhook payload rejected",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewWebhookSignatureError reports a webhook whose signature does not match.
func NewWebhookSignatureError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeWebhookSignatureInvalid,
		Message:   "Webhook signature mismatch",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDispatcherClosedError reports an enqueue after shutdown began.
func NewDispatcherClosedError() *StandardError {
	return &StandardError{
		Code:      ErrCodeDispatcherClosed,
		Message:   "Dispatcher is not accepting messages",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError wraps an owner notification failure.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   fmt.Sprintf("Notification via '%s' failed", channel),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// NewJournalWriteFailedError wraps a journal insert failure.
func NewJournalWriteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeJournalWriteFailed,
		Message:   "Turn journal write failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// NewConfigurationError reports a missing or inconsistent setting.
func NewConfigurationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigurationInvalid,
		Message:   "Invalid configuration",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// CodeOf returns the error code of err, or "" for nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return Normalize(err).Code
}

// IsParseError reports whether err is one of the date/time parse failures.
func IsParseError(err error) bool {
	return stderrors.Is(err, ErrMalformedInput) || stderrors.Is(err, ErrInvalidDateTime)
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case code == ErrCodeMalformedInput || code == ErrCodeInvalidDateTime:
		return "USER_INPUT"
	case strings.HasPrefix(codeStr, "CALENDAR"):
		return "CALENDAR"
	case strings.HasPrefix(codeStr, "TRANSPORT") || strings.HasPrefix(codeStr, "WEBHOOK") || strings.HasPrefix(codeStr, "DISPATCHER"):
		return "TRANSPORT"
	case strings.HasPrefix(codeStr, "SESSION"):
		return "SESSION"
	case strings.HasPrefix(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.HasPrefix(codeStr, "JOURNAL"):
		return "DATABASE"
	case strings.HasPrefix(codeStr, "CONFIGURATION"):
		return "CONFIGURATION"
	default:
		return "OTHER"
	}
}
