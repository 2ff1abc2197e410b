package utils

import (
	"strings"
	"time"

	"quote-relay/src/models"

	"github.com/scmhub/calendar"
)

// TradingCalendar answers session questions for one exchange using scmhub/calendar.
type TradingCalendar struct {
	MIC      string
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// suffix -> ISO 10383 MIC, US listings carry no suffix
var micBySuffix = map[string]string{
	".L":  "xlon",
	".PA": "xpar",
	".DE": "xfra",
	".AS": "xams",
	".MI": "xmil",
	".TO": "xtse",
	".T":  "xtks",
	".HK": "xhkg",
	".AX": "xasx",
}

// -----------------------------------------------------------------------------

// GetCalendar resolves the exchange calendar for a symbol, defaulting to NYSE.
func GetCalendar(symbol string) *TradingCalendar {
	mic := "xnys"
	if idx := strings.LastIndex(symbol, "."); idx > 0 {
		if m, ok := micBySuffix[strings.ToUpper(symbol[idx:])]; ok {
			mic = m
		}
	}

	cal := calendar.GetCalendar(mic)
	if cal == nil && mic != "xnys" {
		mic = "xnys"
		cal = calendar.GetCalendar(mic)
	}
	if cal == nil {
		nyLoc, err := time.LoadLocation("America/New_York")
		if err != nil {
			nyLoc = time.UTC
		}
		return &TradingCalendar{MIC: mic, Fallback: true, Timezone: nyLoc}
	}

	return &TradingCalendar{MIC: mic, Calendar: cal, Timezone: cal.Loc}
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	if tc.Timezone != nil {
		date = date.In(tc.Timezone)
	}

	if tc.Fallback {
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	return tc.Calendar.IsBusinessDay(date)
}

// -----------------------------------------------------------------------------

// IsOpenAt reports whether the regular session is open at t.
func (tc *TradingCalendar) IsOpenAt(t time.Time) bool {
	if tc.Timezone != nil {
		t = t.In(tc.Timezone)
	}

	if tc.Fallback {
		if !tc.IsTradingDay(t) {
			return false
		}
		minutes := t.Hour()*60 + t.Minute()
		// 09:30 - 16:00 New York
		return minutes >= 9*60+30 && minutes < 16*60
	}

	return tc.Calendar.IsOpen(t)
}

// -----------------------------------------------------------------------------

// Session is informational only and never feeds a quote's marketState.
func (tc *TradingCalendar) Session(t time.Time) models.MMarketSession {
	return models.MMarketSession{
		Exchange:     tc.MIC,
		IsTradingDay: tc.IsTradingDay(t),
		IsOpen:       tc.IsOpenAt(t),
	}
}
