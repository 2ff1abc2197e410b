package helpers

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"quote-relay/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type RelayError struct {
	Message string
	Cause   error
}

func (e *RelayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *RelayError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As
type ConfigurationError struct{ RelayError }
type ConnectionError struct{ RelayError }
type SnapshotFetchError struct{ RelayError }
type MalformedEventError struct{ RelayError }
type ValidationError struct{ RelayError }

// SubscriptionCallError is a failed subscribe or unsubscribe call on a live connection.
type SubscriptionCallError struct {
	RelayError
	Op      string
	Symbols []string
}

// -----------------------------------------------------------------------------

func NewConfigurationError(message string, cause error) error {
	return &ConfigurationError{RelayError{Message: message, Cause: cause}}
}

func NewConnectionError(message string, cause error) error {
	return &ConnectionError{RelayError{Message: message, Cause: cause}}
}

func NewSnapshotFetchError(message string, cause error) error {
	return &SnapshotFetchError{RelayError{Message: message, Cause: cause}}
}

func NewMalformedEventError(message string, cause error) error {
	return &MalformedEventError{RelayError{Message: message, Cause: cause}}
}

func NewValidationError(message string) error {
	return &ValidationError{RelayError{Message: message}}
}

func NewSubscriptionCallError(op string, symbols []string, cause error) error {
	return &SubscriptionCallError{
		RelayError: RelayError{
			Message: fmt.Sprintf("%s %s failed", op, strings.Join(symbols, ",")),
			Cause:   cause,
		},
		Op:      op,
		Symbols: symbols,
	}
}

// -----------------------------------------------------------------------------
// Client facing messages
// -----------------------------------------------------------------------------

const (
	MsgNotConfigured  = "Market data service is not configured."
	MsgStreamFailed   = "Unable to connect to market data stream."
	MsgSnapshotFailed = "Failed to retrieve market snapshot."
	MsgBadRequest     = "Invalid quote request."
	MsgInternal       = "Unexpected market data error."
)

// ClientMessage maps an error to the text shown to downstream clients.
func ClientMessage(err error) string {
	var (
		cfgErr  *ConfigurationError
		connErr *ConnectionError
		snapErr *SnapshotFetchError
		valErr  *ValidationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cfgErr):
		return MsgNotConfigured
	case errors.As(err, &connErr):
		return MsgStreamFailed
	case errors.As(err, &snapErr):
		return MsgSnapshotFailed
	case errors.As(err, &valErr):
		if valErr.Message != "" {
			return valErr.Message
		}
		return MsgBadRequest
	default:
		return MsgInternal
	}
}

// -----------------------------------------------------------------------------
// Error Handler
// -----------------------------------------------------------------------------

// ErrorHandler logs and counts errors at log-and-continue sites.
type ErrorHandler struct {
	Logger     *logger.Logger
	errorCount atomic.Int64
}

func NewErrorHandler(log *logger.Logger) *ErrorHandler {
	if log == nil {
		log = logger.NewLogger(nil, "ErrorHandler")
	}
	return &ErrorHandler{Logger: log}
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) ErrorCount() int64 {
	return e.errorCount.Load()
}

func (e *ErrorHandler) ResetErrorCount() {
	e.errorCount.Store(0)
}

// -----------------------------------------------------------------------------

// Handle logs err with its context. Malformed events are noisy and go to debug.
func (e *ErrorHandler) Handle(err error, context string) {
	if err == nil {
		return
	}
	e.errorCount.Add(1)

	var malformed *MalformedEventError
	if errors.As(err, &malformed) {
		e.Logger.Debug("Discarded event in %s: %v", context, err)
		return
	}
	e.Logger.Error("Error in %s: %v", context, err)
}
