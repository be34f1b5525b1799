package interfaces

import "time"

// -----------------------------------------------------------------------------
// ITradingCalendar answers exchange-session questions.
// -----------------------------------------------------------------------------

type ITradingCalendar interface {

	// -----------------------------------------------------------------------------

	// IsTradingDay reports whether the exchange is open on the given date.
	IsTradingDay(t time.Time) bool
}
