package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Goitonthefloor/Kids-Control/internal/engine"
	"github.com/Goitonthefloor/Kids-Control/internal/model"
	"github.com/Goitonthefloor/Kids-Control/internal/store"
)

// 2025-03-03 is a Monday, weekday 0 in the schedule convention.
const testDay = "2025-03-03"

// at returns an instant on the test day. Tests run in UTC so the local
// minute-of-day is hour*60+min.
func at(hour, min int) time.Time {
	return time.Date(2025, time.March, 3, hour, min, 0, 0, time.UTC)
}

func newTestEngine(mem *store.Memory, notifier engine.Notifier) *engine.Engine {
	return engine.New(mem, time.UTC, notifier, engine.Options{})
}

// seedChild creates a child with the default Monday window 15:00-18:30
// and the given budget.
func seedChild(mem *store.Memory, username string, dailyMinutes int) {
	mem.AddChild(username, "Test Child")
	mem.SetSchedule(username, 0, 900, 1110, dailyMinutes)
}

type recordingNotifier struct {
	prewarns []int
	limits   []int
}

func (n *recordingNotifier) PrewarnShown(_ string, minutesLeft int) {
	n.prewarns = append(n.prewarns, minutesLeft)
}

func (n *recordingNotifier) DailyLimitReached(_ string, usedMinutes int) {
	n.limits = append(n.limits, usedMinutes)
}

func TestDecideUnknownUser(t *testing.T) {
	eng := newTestEngine(store.NewMemory(), nil)

	d, err := eng.Decide(context.Background(), "nobody", at(15, 0), false)
	require.NoError(t, err)
	assert.False(t, d.Allow)
	assert.Equal(t, engine.ReasonUnknownUser, d.Reason)
}

func TestDecideNoSchedule(t *testing.T) {
	mem := store.NewMemory()
	mem.AddChild("kid1", "Kid One")
	eng := newTestEngine(mem, nil)

	d, err := eng.Decide(context.Background(), "kid1", at(15, 0), false)
	require.NoError(t, err)
	assert.False(t, d.Allow)
	assert.Equal(t, engine.ReasonNoSchedule, d.Reason)
}

func TestOverridesBeatMissingSchedule(t *testing.T) {
	t.Run("day override", func(t *testing.T) {
		mem := store.NewMemory()
		mem.AddChild("kid1", "Kid One")
		mem.SetDayOverride("kid1", testDay, true)
		eng := newTestEngine(mem, nil)

		d, err := eng.Decide(context.Background(), "kid1", at(15, 0), false)
		require.NoError(t, err)
		assert.True(t, d.Allow)
		assert.Equal(t, engine.ReasonOverrideDay, d.Reason)
	})

	t.Run("timed override", func(t *testing.T) {
		mem := store.NewMemory()
		mem.AddChild("kid1", "Kid One")
		_, err := mem.ExtendTimedOverride(context.Background(), "kid1", "parent", at(14, 30), time.Hour)
		require.NoError(t, err)
		eng := newTestEngine(mem, nil)

		d, err := eng.Decide(context.Background(), "kid1", at(15, 0), false)
		require.NoError(t, err)
		assert.True(t, d.Allow)
		assert.Equal(t, engine.ReasonOverride, d.Reason)
	})
}

func TestDayOverridePrecedence(t *testing.T) {
	mem := store.NewMemory()
	seedChild(mem, "kid1", 0) // zero budget: schedule alone would deny
	mem.SetDayOverride("kid1", testDay, true)
	eng := newTestEngine(mem, nil)

	d, err := eng.Decide(context.Background(), "kid1", at(16, 0), false)
	require.NoError(t, err)
	assert.True(t, d.Allow)
	assert.Equal(t, engine.ReasonOverrideDay, d.Reason)
}

func TestStaleDayOverrideIgnored(t *testing.T) {
	mem := store.NewMemory()
	seedChild(mem, "kid1", 0)
	mem.SetDayOverride("kid1", "2025-03-02", true) // yesterday
	eng := newTestEngine(mem, nil)

	d, err := eng.Decide(context.Background(), "kid1", at(16, 0), false)
	require.NoError(t, err)
	assert.False(t, d.Allow)
	assert.Equal(t, engine.ReasonNoDailyMinutes, d.Reason)
}

func TestTimedOverride(t *testing.T) {
	mem := store.NewMemory()
	seedChild(mem, "kid1", 120)
	_, err := mem.ExtendTimedOverride(context.Background(), "kid1", "parent", at(19, 30), time.Hour)
	require.NoError(t, err)
	eng := newTestEngine(mem, nil)

	// Inside the grant, outside the schedule window.
	d, err := eng.Decide(context.Background(), "kid1", at(20, 0), false)
	require.NoError(t, err)
	assert.True(t, d.Allow)
	assert.Equal(t, engine.ReasonOverride, d.Reason)
	require.NotNil(t, d.OverrideSecondsLeft)
	assert.Equal(t, 30*60, *d.OverrideSecondsLeft)
	require.NotNil(t, d.Until)
	assert.Equal(t, at(20, 30), d.Until.UTC())
	assert.Equal(t, "remaining 30min", d.OverrideText)

	// After expiry the schedule takes over again.
	d, err = eng.Decide(context.Background(), "kid1", at(20, 31), false)
	require.NoError(t, err)
	assert.False(t, d.Allow)
	assert.Equal(t, engine.ReasonOutsideTime, d.Reason)
}

func TestGrantsStack(t *testing.T) {
	mem := store.NewMemory()
	now := at(15, 0)

	first, err := mem.ExtendTimedOverride(context.Background(), "kid1", "parent", now, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), first)

	// Second grant issued before the first expires extends from the
	// first grant's end, not from now.
	second, err := mem.ExtendTimedOverride(context.Background(), "kid1", "parent", now.Add(time.Minute), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, first.Add(time.Hour), second)
}

func TestWindowBoundaries(t *testing.T) {
	// Window 900..1110 (15:00..18:30), inclusive on both ends.
	cases := []struct {
		name   string
		hour   int
		min    int
		allow  bool
		reason engine.Reason
	}{
		{"one minute before start", 14, 59, false, engine.ReasonOutsideTime},
		{"at start", 15, 0, true, engine.ReasonSchedule},
		{"at end", 18, 30, true, engine.ReasonSchedule},
		{"one minute after end", 18, 31, false, engine.ReasonOutsideTime},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mem := store.NewMemory()
			seedChild(mem, "kid1", 120)
			eng := newTestEngine(mem, nil)

			d, err := eng.Decide(context.Background(), "kid1", at(tc.hour, tc.min), false)
			require.NoError(t, err)
			assert.Equal(t, tc.allow, d.Allow)
			assert.Equal(t, tc.reason, d.Reason)
		})
	}
}

func TestZeroBudgetDeniesInsideWindow(t *testing.T) {
	mem := store.NewMemory()
	seedChild(mem, "kid1", 0)
	eng := newTestEngine(mem, nil)

	d, err := eng.Decide(context.Background(), "kid1", at(16, 0), false)
	require.NoError(t, err)
	assert.False(t, d.Allow)
	assert.Equal(t, engine.ReasonNoDailyMinutes, d.Reason)
	require.NotNil(t, d.DailyLimit)
	assert.Equal(t, 0, *d.DailyLimit)
	require.NotNil(t, d.DailyRemaining)
	assert.Equal(t, 0, *d.DailyRemaining)
	require.NotNil(t, d.DailyUsed)
	assert.Equal(t, 0, *d.DailyUsed)
}

func decideOK(t *testing.T, eng *engine.Engine, user string, now time.Time) engine.Decision {
	t.Helper()
	d, err := eng.Decide(context.Background(), user, now, false)
	require.NoError(t, err)
	return d
}

func TestHeartbeatAccounting(t *testing.T) {
	mem := store.NewMemory()
	seedChild(mem, "kid1", 120)
	eng := newTestEngine(mem, nil)

	// First call of the day creates the counter at zero.
	decideOK(t, eng, "kid1", at(15, 0))
	u, ok := mem.Usage("kid1", testDay)
	require.True(t, ok)
	assert.Equal(t, 0, u.UsedMinutes)

	// One minute of contiguous polling bills one minute.
	decideOK(t, eng, "kid1", at(15, 1))
	u, _ = mem.Usage("kid1", testDay)
	assert.Equal(t, 1, u.UsedMinutes)

	// A five-minute gap exceeds the billing clamp: nothing billed.
	decideOK(t, eng, "kid1", at(15, 6))
	u, _ = mem.Usage("kid1", testDay)
	assert.Equal(t, 1, u.UsedMinutes)

	// Polling resumed, so the next minute is billed again.
	decideOK(t, eng, "kid1", at(15, 7))
	u, _ = mem.Usage("kid1", testDay)
	assert.Equal(t, 2, u.UsedMinutes)

	// Clock skew: an apparent negative gap bills nothing and does not
	// move the meter backwards.
	decideOK(t, eng, "kid1", at(15, 3))
	u, _ = mem.Usage("kid1", testDay)
	assert.Equal(t, 2, u.UsedMinutes)
	assert.Equal(t, at(15, 7), u.LastSeenAt)
}

func TestIdempotentSameInstant(t *testing.T) {
	mem := store.NewMemory()
	seedChild(mem, "kid1", 120)
	eng := newTestEngine(mem, nil)

	now := at(15, 30)
	first := decideOK(t, eng, "kid1", now)
	second := decideOK(t, eng, "kid1", now)

	assert.Equal(t, first.Allow, second.Allow)
	assert.Equal(t, first.Reason, second.Reason)
	u, _ := mem.Usage("kid1", testDay)
	assert.Equal(t, 0, u.UsedMinutes)
}

func TestDailyLimitReached(t *testing.T) {
	mem := store.NewMemory()
	seedChild(mem, "kid1", 2)
	notifier := &recordingNotifier{}
	eng := newTestEngine(mem, notifier)

	decideOK(t, eng, "kid1", at(15, 0))
	decideOK(t, eng, "kid1", at(15, 1))

	// Third poll crosses the two-minute budget.
	d := decideOK(t, eng, "kid1", at(15, 2))
	assert.False(t, d.Allow)
	assert.Equal(t, engine.ReasonDailyLimitReached, d.Reason)
	require.NotNil(t, d.DailyRemaining)
	assert.Equal(t, 0, *d.DailyRemaining)
	require.NotNil(t, d.DailyUsed)
	assert.Equal(t, 2, *d.DailyUsed)

	// Still denied on the next poll, but the crossing event fired once.
	d = decideOK(t, eng, "kid1", at(15, 3))
	assert.Equal(t, engine.ReasonDailyLimitReached, d.Reason)
	assert.Len(t, notifier.limits, 1)

	// A new day starts with a fresh counter.
	nextDay := time.Date(2025, time.March, 4, 15, 0, 0, 0, time.UTC)
	mem.SetSchedule("kid1", 1, 900, 1110, 2)
	d = decideOK(t, eng, "kid1", nextDay)
	assert.True(t, d.Allow)
	assert.Equal(t, engine.ReasonSchedule, d.Reason)
}

func TestPrewarnOncePerDay(t *testing.T) {
	mem := store.NewMemory()
	seedChild(mem, "kid1", 120)
	mem.SetPolicy(model.ChildPolicy{Username: "kid1", AfterExpiryMode: model.ModeLock, WarnMinutes: 10})
	notifier := &recordingNotifier{}
	eng := newTestEngine(mem, notifier)

	// 18:23 leaves 7 minutes of window.
	d := decideOK(t, eng, "kid1", at(18, 23))
	assert.True(t, d.Allow)
	require.NotNil(t, d.Warn)
	assert.True(t, *d.Warn)
	require.NotNil(t, d.MinutesLeftWindow)
	assert.Equal(t, 7, *d.MinutesLeftWindow)
	assert.Equal(t, 1, mem.PrewarnCount("kid1", testDay))

	// Repeated call still warns but records no second marker.
	d = decideOK(t, eng, "kid1", at(18, 23))
	require.NotNil(t, d.Warn)
	assert.True(t, *d.Warn)
	assert.Equal(t, 1, mem.PrewarnCount("kid1", testDay))
	assert.Equal(t, []int{7}, notifier.prewarns)
}

func TestNoWarnOutsideThreshold(t *testing.T) {
	mem := store.NewMemory()
	seedChild(mem, "kid1", 120)
	eng := newTestEngine(mem, nil)

	// 18:00 leaves 30 minutes, beyond the default 10-minute threshold.
	d := decideOK(t, eng, "kid1", at(18, 0))
	assert.True(t, d.Allow)
	require.NotNil(t, d.Warn)
	assert.False(t, *d.Warn)
	assert.Equal(t, 0, mem.PrewarnCount("kid1", testDay))
}

func TestScheduleAllowPayload(t *testing.T) {
	mem := store.NewMemory()
	seedChild(mem, "kid1", 120)
	eng := newTestEngine(mem, nil)

	d := decideOK(t, eng, "kid1", at(15, 0))
	assert.True(t, d.Allow)
	assert.Equal(t, engine.ReasonSchedule, d.Reason)
	assert.Equal(t, "18:30", d.WindowEndHM)
	require.NotNil(t, d.MinutesLeftWindow)
	assert.Equal(t, 210, *d.MinutesLeftWindow)
	require.NotNil(t, d.DailyLimit)
	assert.Equal(t, 120, *d.DailyLimit)
	require.NotNil(t, d.DailyRemaining)
	assert.Equal(t, 120, *d.DailyRemaining)
}

func TestRetentionPurge(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seedChild(mem, "kid1", 120)
	eng := newTestEngine(mem, nil)

	// Seed an old counter beyond the 14-day retention window and a
	// recent one inside it.
	_, err := mem.UpsertUsage(ctx, "kid1", "2025-02-01", at(15, 0), func(u *model.DailyUsage) bool { return false })
	require.NoError(t, err)
	_, err = mem.UpsertUsage(ctx, "kid1", "2025-03-01", at(15, 0), func(u *model.DailyUsage) bool { return false })
	require.NoError(t, err)

	decideOK(t, eng, "kid1", at(15, 0))

	_, ok := mem.Usage("kid1", "2025-02-01")
	assert.False(t, ok, "counter beyond retention should be purged")
	_, ok = mem.Usage("kid1", "2025-03-01")
	assert.True(t, ok, "recent counter must survive the purge")
}

func TestDebugTrace(t *testing.T) {
	mem := store.NewMemory()
	seedChild(mem, "kid1", 120)
	eng := newTestEngine(mem, nil)

	d, err := eng.Decide(context.Background(), "kid1", at(15, 30), true)
	require.NoError(t, err)
	require.NotNil(t, d.Debug)
	assert.Equal(t, 0, d.Debug["weekday"])
	assert.Equal(t, 930, d.Debug["mins_now"])
	assert.Equal(t, testDay, d.Debug["day"])
	assert.Equal(t, 900, d.Debug["start_min"])
	assert.Equal(t, 1110, d.Debug["end_min"])
	assert.Equal(t, 120, d.Debug["daily_minutes"])

	d, err = eng.Decide(context.Background(), "kid1", at(15, 30), false)
	require.NoError(t, err)
	assert.Nil(t, d.Debug)
}

func TestStoreFailureFailsClosed(t *testing.T) {
	mem := store.NewMemory()
	seedChild(mem, "kid1", 120)
	eng := newTestEngine(mem, nil)

	mem.Err = errors.New("store down")
	_, err := eng.Decide(context.Background(), "kid1", at(15, 0), false)
	assert.Error(t, err)
}
