package utils

import (
	"log"
	"time"

	"github.com/scmhub/calendar"
)

// TradingCalendar answers KRX session questions using scmhub/calendar.
type TradingCalendar struct {
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// -----------------------------------------------------------------------------

// GetKRXCalendar loads the Korea Exchange calendar (MIC xkrx, ISO 10383).
func GetKRXCalendar() *TradingCalendar {
	cal := calendar.GetCalendar("xkrx")
	if cal == nil {
		log.Printf("WARNING: Failed to load calendar for MIC 'xkrx'. Using simple fallback (Mon-Fri, Asia/Seoul).")
		seoulLoc, _ := time.LoadLocation("Asia/Seoul")
		if seoulLoc == nil {
			seoulLoc = time.UTC // Worst case
		}
		return &TradingCalendar{Fallback: true, Timezone: seoulLoc}
	}

	return &TradingCalendar{Calendar: cal, Fallback: false, Timezone: cal.Loc}
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	// Normalize to timezone if available
	if tc.Timezone != nil {
		date = date.In(tc.Timezone)
	}

	if tc.Fallback {
		// Simple fallback: Mon-Fri
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	// Library handles IsHoliday / IsBusinessDay
	return tc.Calendar.IsBusinessDay(date)
}

// -----------------------------------------------------------------------------

// IsOpenOnMinute checks if the market is open at a specific minute.
func (tc *TradingCalendar) IsOpenOnMinute(t time.Time) bool {
	// Normalize to timezone if available
	if tc.Timezone != nil {
		t = t.In(tc.Timezone)
	}

	if tc.Fallback {
		if !tc.IsTradingDay(t) {
			return false
		}

		hour := t.Hour()
		minute := t.Minute()

		// 09:00 - 15:30 KST
		if hour >= 9 && (hour < 15 || (hour == 15 && minute <= 30)) {
			return true
		}
		return false
	}

	return tc.Calendar.IsOpen(t)
}
