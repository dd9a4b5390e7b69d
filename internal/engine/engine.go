// Package engine implements the access decision for a child account: a
// strict precedence chain over day overrides, timed overrides, the weekly
// schedule window and the daily minute budget, with polling-heartbeat
// usage accounting and a one-shot pre-warning near the window end.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Goitonthefloor/Kids-Control/internal/model"
)

const dayLayout = "2006-01-02"

// Store is the persistence surface the engine needs. Lookups return nil
// when the row does not exist; any error means the store is unavailable
// and the decision fails closed.
type Store interface {
	GetChild(ctx context.Context, username string) (*model.Child, error)
	GetDayOverride(ctx context.Context, username string) (*model.DayOverride, error)
	LatestTimedOverride(ctx context.Context, username string) (*model.TimedOverride, error)
	GetSchedule(ctx context.Context, username string, weekday int) (*model.Schedule, error)
	GetPolicy(ctx context.Context, username string) (*model.ChildPolicy, error)
	UpsertUsage(ctx context.Context, username, day string, now time.Time, mutate func(*model.DailyUsage) bool) (model.DailyUsage, error)
	RecordPrewarn(ctx context.Context, username, day, mode string, shownAt time.Time) (bool, error)
	PurgeUsageBefore(ctx context.Context, cutoffDay string) error
}

// Notifier receives engine events for asynchronous delivery to parents.
// Implementations must not block; the engine calls them on the decision
// path.
type Notifier interface {
	PrewarnShown(username string, minutesLeft int)
	DailyLimitReached(username string, usedMinutes int)
}

// Options tune the engine's time accounting.
type Options struct {
	// MaxHeartbeatGapMinutes is the largest poll gap still billed as
	// usage. Gaps beyond it mean the client was absent, not using the
	// device, so they are not charged. Must match the client agent's
	// poll interval.
	MaxHeartbeatGapMinutes int
	// UsageRetentionDays controls the best-effort purge of old counters.
	UsageRetentionDays int
	// DefaultWarnMinutes applies when a child has no policy row.
	DefaultWarnMinutes int
}

// Engine decides whether a child may use a device right now.
type Engine struct {
	store    Store
	loc      *time.Location
	notifier Notifier

	maxGapMinutes      int
	retentionDays      int
	defaultWarnMinutes int
}

// New creates an engine operating in the given household time zone. A nil
// notifier disables event emission.
func New(s Store, loc *time.Location, notifier Notifier, opts Options) *Engine {
	if opts.MaxHeartbeatGapMinutes <= 0 {
		opts.MaxHeartbeatGapMinutes = 2
	}
	if opts.UsageRetentionDays <= 0 {
		opts.UsageRetentionDays = 14
	}
	if opts.DefaultWarnMinutes <= 0 {
		opts.DefaultWarnMinutes = 10
	}
	return &Engine{
		store:              s,
		loc:                loc,
		notifier:           notifier,
		maxGapMinutes:      opts.MaxHeartbeatGapMinutes,
		retentionDays:      opts.UsageRetentionDays,
		defaultWarnMinutes: opts.DefaultWarnMinutes,
	}
}

// mondayWeekday maps time.Weekday (0=Sunday) to the schedule convention
// 0=Monday .. 6=Sunday.
func mondayWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// Decide runs the precedence chain for one child at the given instant.
// Every input combination maps to a terminal decision; the only returned
// error is store unavailability, which callers must treat as "access
// unknown" rather than allowed.
func (e *Engine) Decide(ctx context.Context, username string, now time.Time, includeDebug bool) (Decision, error) {
	child, err := e.store.GetChild(ctx, username)
	if err != nil {
		return Decision{}, fmt.Errorf("decide %q: %w", username, err)
	}
	if child == nil {
		return Decision{Allow: false, Reason: ReasonUnknownUser}, nil
	}

	nowLoc := now.In(e.loc)
	day := nowLoc.Format(dayLayout)
	weekday := mondayWeekday(nowLoc)
	minuteOfDay := nowLoc.Hour()*60 + nowLoc.Minute()
	nowUTC := now.UTC()

	dbg := map[string]any{
		"tz_now":   nowLoc.Format(time.RFC3339),
		"weekday":  weekday,
		"mins_now": minuteOfDay,
		"day":      day,
	}
	finish := func(d Decision) Decision {
		if includeDebug {
			d.Debug = dbg
		}
		return d
	}

	// 1. Day override beats everything, including a zero-minute schedule.
	dayOvr, err := e.store.GetDayOverride(ctx, username)
	if err != nil {
		return Decision{}, fmt.Errorf("decide %q: %w", username, err)
	}
	if dayOvr != nil && dayOvr.Enabled && dayOvr.Day == day {
		return finish(Decision{
			Allow:        true,
			Reason:       ReasonOverrideDay,
			OverrideText: "unlimited today",
		}), nil
	}

	// 2. Timed override: the grant with the latest granted_until wins.
	grant, err := e.store.LatestTimedOverride(ctx, username)
	if err != nil {
		return Decision{}, fmt.Errorf("decide %q: %w", username, err)
	}
	if grant != nil && grant.GrantedUntil.After(nowUTC) {
		until := grant.GrantedUntil.UTC()
		secondsLeft := int(until.Sub(nowUTC).Seconds())
		dbg["override_until"] = until.Format(time.RFC3339)
		dbg["override_seconds_left"] = secondsLeft
		return finish(Decision{
			Allow:               true,
			Reason:              ReasonOverride,
			Until:               &until,
			OverrideSecondsLeft: &secondsLeft,
			OverrideText:        "remaining " + formatRemaining(secondsLeft),
		}), nil
	}

	// 3. Schedule lookup for the current weekday.
	sched, err := e.store.GetSchedule(ctx, username, weekday)
	if err != nil {
		return Decision{}, fmt.Errorf("decide %q: %w", username, err)
	}
	if sched == nil {
		return finish(Decision{Allow: false, Reason: ReasonNoSchedule}), nil
	}

	limit := sched.DailyMinutes
	dbg["start_min"] = sched.StartMin
	dbg["end_min"] = sched.EndMin
	dbg["daily_minutes"] = limit

	// 4. Window check, boundaries inclusive.
	if minuteOfDay < sched.StartMin || minuteOfDay > sched.EndMin {
		return finish(Decision{Allow: false, Reason: ReasonOutsideTime}), nil
	}

	// 5. A zero budget denies even inside the window.
	if limit <= 0 {
		return finish(Decision{
			Allow:          false,
			Reason:         ReasonNoDailyMinutes,
			DailyLimit:     intPtr(0),
			DailyRemaining: intPtr(0),
			DailyUsed:      intPtr(0),
		}), nil
	}

	// Retention cleanup rides along on the check; its failure never
	// aborts the decision.
	cutoff := nowLoc.AddDate(0, 0, -e.retentionDays).Format(dayLayout)
	if err := e.store.PurgeUsageBefore(ctx, cutoff); err != nil {
		log.Printf("usage retention purge: %v", err)
	}

	// 6. Heartbeat accounting. Polling is the only usage signal: the gap
	// since the last check is billed as usage, clamped against clock
	// skew (negative) and absence (gap beyond the configured maximum).
	var previousUsed int
	usage, err := e.store.UpsertUsage(ctx, username, day, nowUTC, func(u *model.DailyUsage) bool {
		previousUsed = u.UsedMinutes
		delta := int(nowUTC.Sub(u.LastSeenAt).Minutes())
		switch {
		case delta < 0:
			// Clock skew. Leave the row alone rather than moving the
			// meter backwards.
			return false
		case delta > e.maxGapMinutes:
			// The client was absent, not using the device. The gap is
			// not billed, but the meter restarts here so contiguous
			// polling accrues again.
			u.LastSeenAt = nowUTC
			return true
		case delta == 0:
			return false
		default:
			u.UsedMinutes += delta
			u.LastSeenAt = nowUTC
			return true
		}
	})
	if err != nil {
		return Decision{}, fmt.Errorf("decide %q: %w", username, err)
	}

	remaining := limit - usage.UsedMinutes
	dbg["daily_used"] = usage.UsedMinutes

	// 7. Daily limit.
	if remaining <= 0 {
		if e.notifier != nil && limit-previousUsed > 0 {
			// This call crossed the limit.
			e.notifier.DailyLimitReached(username, usage.UsedMinutes)
		}
		dbg["daily_remaining"] = 0
		return finish(Decision{
			Allow:          false,
			Reason:         ReasonDailyLimitReached,
			DailyUsed:      intPtr(usage.UsedMinutes),
			DailyLimit:     intPtr(limit),
			DailyRemaining: intPtr(0),
		}), nil
	}

	// 8. Pre-warning near the end of the window, recorded at most once
	// per day and mode.
	warnMinutes := e.defaultWarnMinutes
	mode := model.ModeLock
	pol, err := e.store.GetPolicy(ctx, username)
	if err != nil {
		return Decision{}, fmt.Errorf("decide %q: %w", username, err)
	}
	if pol != nil {
		warnMinutes = pol.WarnMinutes
		mode = pol.AfterExpiryMode
	}

	minutesLeftWindow := sched.EndMin - minuteOfDay
	warn := false
	if warnMinutes > 0 && minutesLeftWindow >= 0 && minutesLeftWindow <= warnMinutes {
		warn = true
		inserted, err := e.store.RecordPrewarn(ctx, username, day, mode, nowUTC)
		if err != nil {
			return Decision{}, fmt.Errorf("decide %q: %w", username, err)
		}
		if inserted && e.notifier != nil {
			e.notifier.PrewarnShown(username, minutesLeftWindow)
		}
	}

	dbg["daily_remaining"] = remaining
	dbg["warn_minutes"] = warnMinutes
	dbg["warn"] = warn

	// 9. Allow.
	return finish(Decision{
		Allow:             true,
		Reason:            ReasonSchedule,
		Warn:              boolPtr(warn),
		MinutesLeftWindow: &minutesLeftWindow,
		WindowEndHM:       FormatHM(sched.EndMin),
		DailyUsed:         intPtr(usage.UsedMinutes),
		DailyLimit:        intPtr(limit),
		DailyRemaining:    intPtr(remaining),
	}), nil
}
