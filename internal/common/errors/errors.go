// Package errors provides the standardized error taxonomy shared by the source
// clients, the pipeline and the BPMN job workers.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Per-source failures. Never fatal to an orchestration pass.
	ErrCodeSourceTimeout           ErrorCode = "SOURCE_TIMEOUT"
	ErrCodeSourceTransportError    ErrorCode = "SOURCE_TRANSPORT_ERROR"
	ErrCodeSourceMalformedResponse ErrorCode = "SOURCE_MALFORMED_RESPONSE"
	ErrCodeSourceNotConfigured     ErrorCode = "SOURCE_NOT_CONFIGURED"

	// Configuration errors surfaced at startup.
	ErrCodeInvalidRuleTable ErrorCode = "INVALID_RULE_TABLE"
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"

	// Collaborator failures.
	ErrCodeInventoryQueryFailed ErrorCode = "INVENTORY_QUERY_FAILED"
	ErrCodeKeyDatePersistFailed ErrorCode = "KEY_DATE_PERSIST_FAILED"
	ErrCodeIndexFailed          ErrorCode = "INDEX_FAILED"
	ErrCodePriceUpdateFailed    ErrorCode = "PRICE_UPDATE_FAILED"
	ErrCodeMarketplaceAuth      ErrorCode = "MARKETPLACE_AUTH_FAILED"
	ErrCodeNotificationFailed   ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeCalendarSyncFailed   ErrorCode = "CALENDAR_SYNC_FAILED"
	ErrCodeBatchAborted         ErrorCode = "BATCH_ABORTED"

	// Worker input errors.
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches another *StandardError by code so errors.Is works against the
// sentinel values below.
func (e *StandardError) Is(target error) bool {
	var t *StandardError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func newError(code ErrorCode, message string, retryable bool, cause error) *StandardError {
	se := &StandardError{
		Code:      code,
		Message:   message,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
	if cause != nil {
		se.Details = cause.Error()
	}
	return se
}

// Sentinels for errors.Is checks.
var (
	ErrSourceTimeout           = &StandardError{Code: ErrCodeSourceTimeout}
	ErrSourceTransport         = &StandardError{Code: ErrCodeSourceTransportError}
	ErrSourceMalformedResponse = &StandardError{Code: ErrCodeSourceMalformedResponse}
	ErrSourceNotConfigured     = &StandardError{Code: ErrCodeSourceNotConfigured}
	ErrInvalidRuleTable        = &StandardError{Code: ErrCodeInvalidRuleTable}
	ErrBatchAborted            = &StandardError{Code: ErrCodeBatchAborted}
	ErrInventoryQueryFailed    = &StandardError{Code: ErrCodeInventoryQueryFailed}
	ErrMarketplaceAuth         = &StandardError{Code: ErrCodeMarketplaceAuth}
	ErrPriceUpdateFailed       = &StandardError{Code: ErrCodePriceUpdateFailed}
	ErrInvalidConfig           = &StandardError{Code: ErrCodeInvalidConfig}
)

// NewSourceTimeoutError reports that a source did not answer within its budget.
func NewSourceTimeoutError(source string, cause error) *StandardError {
	e := newError(ErrCodeSourceTimeout, "source timed out", true, cause)
	e.Metadata = map[string]interface{}{"source": source}
	return e
}

// NewSourceTransportError covers network, auth, rate-limit and non-2xx failures.
func NewSourceTransportError(source string, cause error) *StandardError {
	e := newError(ErrCodeSourceTransportError, "source request failed", true, cause)
	e.Metadata = map[string]interface{}{"source": source}
	return e
}

func NewSourceMalformedResponseError(source string, cause error) *StandardError {
	e := newError(ErrCodeSourceMalformedResponse, "source returned an unparseable payload", false, cause)
	e.Metadata = map[string]interface{}{"source": source}
	return e
}

func NewSourceNotConfiguredError(source string) *StandardError {
	e := newError(ErrCodeSourceNotConfigured, "source API key not configured", false, nil)
	e.Metadata = map[string]interface{}{"source": source}
	return e
}

// NewInvalidRuleTableError is raised when a pricing rule table overlaps or has gaps.
func NewInvalidRuleTableError(details string) *StandardError {
	e := newError(ErrCodeInvalidRuleTable, "pricing rule table is invalid", false, nil)
	e.Details = details
	return e
}

func NewInvalidConfigError(details string) *StandardError {
	e := newError(ErrCodeInvalidConfig, "configuration is invalid", false, nil)
	e.Details = details
	return e
}

func NewInventoryQueryFailedError(err error) *StandardError {
	return newError(ErrCodeInventoryQueryFailed, "inventory query failed", true, err)
}

func NewKeyDatePersistFailedError(itemID string, err error) *StandardError {
	e := newError(ErrCodeKeyDatePersistFailed, "failed to persist key dates", true, err)
	e.Metadata = map[string]interface{}{"itemId": itemID}
	return e
}

func NewIndexFailedError(itemID string, err error) *StandardError {
	e := newError(ErrCodeIndexFailed, "failed to index key dates", true, err)
	e.Metadata = map[string]interface{}{"itemId": itemID}
	return e
}

func NewPriceUpdateFailedError(err error) *StandardError {
	return newError(ErrCodePriceUpdateFailed, "marketplace price update failed", true, err)
}

func NewMarketplaceAuthError(err error) *StandardError {
	return newError(ErrCodeMarketplaceAuth, "marketplace authentication failed", false, err)
}

func NewNotificationFailedError(channel string, err error) *StandardError {
	e := newError(ErrCodeNotificationFailed, "notification send failed", true, err)
	e.Metadata = map[string]interface{}{"channel": channel}
	return e
}

func NewCalendarSyncFailedError(err error) *StandardError {
	return newError(ErrCodeCalendarSyncFailed, "calendar sync failed", true, err)
}

// NewBatchAbortedError is returned by the pipeline when the source error rate of a
// batch exceeds its configured threshold.
func NewBatchAbortedError(rate, threshold float64) *StandardError {
	e := newError(ErrCodeBatchAborted, "batch aborted: source error rate above threshold", false, nil)
	e.Details = fmt.Sprintf("rate=%.2f threshold=%.2f", rate, threshold)
	return e
}

func NewInvalidInputError(details string) *StandardError {
	e := newError(ErrCodeInvalidInput, "invalid job input", false, nil)
	e.Details = details
	return e
}

// BPMNError is thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeSourceTimeout, ErrCodeSourceTransportError:
		return 2
	case ErrCodeInventoryQueryFailed, ErrCodeKeyDatePersistFailed, ErrCodeIndexFailed,
		ErrCodePriceUpdateFailed, ErrCodeNotificationFailed, ErrCodeCalendarSyncFailed:
		return 3
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        GetRetryCount(stdErr.Code),
		ErrorVariables: stdErr.Metadata,
	}
}

// GetErrorCategory groups codes for log aggregation.
func GetErrorCategory(code ErrorCode) string {
	c := string(code)
	switch {
	case strings.HasPrefix(c, "SOURCE_"):
		return "SOURCE"
	case strings.HasPrefix(c, "INVALID_"):
		return "CONFIGURATION"
	case code == ErrCodePriceUpdateFailed, code == ErrCodeMarketplaceAuth:
		return "MARKETPLACE"
	case code == ErrCodeInventoryQueryFailed, code == ErrCodeKeyDatePersistFailed, code == ErrCodeIndexFailed:
		return "STORAGE"
	default:
		return "INTERNAL"
	}
}

// Normalize ensures a StandardError is always available for logging.
func Normalize(err error) *StandardError {
	var se *StandardError
	if errors.As(err, &se) {
		return se
	}
	return newError(ErrCodeInternalError, "unexpected error", false, err)
}
