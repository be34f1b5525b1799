package helpers

import (
	"fmt"
	"time"

	"stock-trader/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type TradingError struct {
	Message string
	Cause   error
}

func (e *TradingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *TradingError) Unwrap() error {
	return e.Cause
}

// Distinct error types for type assertions across layers.
type ConnectionError struct{ TradingError }
type ProtocolError struct{ TradingError }
type SubscriptionError struct{ TradingError }
type QuoteError struct{ TradingError }
type ExecutionError struct{ TradingError }

// -----------------------------------------------------------------------------

func NewConnectionError(message string, cause error) *ConnectionError {
	return &ConnectionError{TradingError{Message: message, Cause: cause}}
}

func NewProtocolError(message string, cause error) *ProtocolError {
	return &ProtocolError{TradingError{Message: message, Cause: cause}}
}

func NewSubscriptionError(message string, cause error) *SubscriptionError {
	return &SubscriptionError{TradingError{Message: message, Cause: cause}}
}

func NewQuoteError(message string, cause error) *QuoteError {
	return &QuoteError{TradingError{Message: message, Cause: cause}}
}

func NewExecutionError(message string, cause error) *ExecutionError {
	return &ExecutionError{TradingError{Message: message, Cause: cause}}
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts to execute the operation up to maxRetries times with exponential backoff.
func RetryWithBackoff(log *logger.Logger, operation string, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxRetries, operation, err, delay)
		time.Sleep(delay)
	}

	return lastErr
}
