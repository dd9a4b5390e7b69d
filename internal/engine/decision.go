package engine

import (
	"fmt"
	"time"
)

// Reason identifies the decisive branch of the access check.
type Reason string

const (
	ReasonUnknownUser       Reason = "unknown-user"
	ReasonOverrideDay       Reason = "override-day"
	ReasonOverride          Reason = "override"
	ReasonNoSchedule        Reason = "no-schedule"
	ReasonOutsideTime       Reason = "outside-time"
	ReasonNoDailyMinutes    Reason = "no-daily-minutes"
	ReasonDailyLimitReached Reason = "daily-limit-reached"
	ReasonSchedule          Reason = "schedule"
)

// Decision is the access verdict consumed by the client check API and the
// admin trace view. Field presence is reason-conditional: only Allow and
// Reason are always set, every other field appears when the decisive
// branch produced it. Callers must not assume optional fields exist.
type Decision struct {
	Allow  bool   `json:"allow"`
	Reason Reason `json:"reason"`

	// Timed-override fields.
	Until               *time.Time `json:"until,omitempty"`
	OverrideSecondsLeft *int       `json:"override_seconds_left,omitempty"`
	OverrideText        string     `json:"override_text,omitempty"`

	// Schedule and budget fields.
	Warn              *bool  `json:"warn,omitempty"`
	MinutesLeftWindow *int   `json:"minutes_left_window,omitempty"`
	WindowEndHM       string `json:"window_end_hm,omitempty"`
	DailyUsed         *int   `json:"daily_used,omitempty"`
	DailyLimit        *int   `json:"daily_limit,omitempty"`
	DailyRemaining    *int   `json:"daily_remaining,omitempty"`

	// Debug carries the raw inputs examined on the taken branch, enough
	// to reconstruct the verdict without re-running the engine.
	Debug map[string]any `json:"debug,omitempty"`
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

// FormatHM renders minutes-since-midnight as HH:MM.
func FormatHM(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// formatRemaining renders a second count as "2h 5min" or "5min".
func formatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	m := seconds / 60
	h := m / 60
	mm := m % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dmin", h, mm)
	}
	return fmt.Sprintf("%dmin", mm)
}
