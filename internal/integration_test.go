package internal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Goitonthefloor/Kids-Control/internal/db"
	"github.com/Goitonthefloor/Kids-Control/internal/engine"
	"github.com/Goitonthefloor/Kids-Control/internal/model"
	"github.com/Goitonthefloor/Kids-Control/internal/store"
)

// TestAccessDayLifecycle walks one child through a full day against a
// real database: blocked before the window, allowed inside it, burning
// down the budget poll by poll, warned near the end, blocked at the
// limit, and rescued by a parent grant.
func TestAccessDayLifecycle(t *testing.T) {
	ctx := context.Background()

	testDB, err := gorm.Open(sqlite.Open("file:lifecycle?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	require.NoError(t, db.Migrate(testDB))

	s := store.NewGormStore(testDB)
	eng := engine.New(s, time.UTC, nil, engine.Options{})

	require.NoError(t, s.CreateChild(ctx, &model.Child{Username: "kid1", DisplayName: "Kid One"}))

	// Monday window 15:00-18:30 with a 3 minute budget so the limit is
	// reachable in a few polls.
	week := make([]store.WeekDay, 0, 7)
	for wd := 0; wd < 7; wd++ {
		week = append(week, store.WeekDay{Weekday: wd, StartMin: 900, EndMin: 1110, DailyMinutes: 3})
	}
	require.NoError(t, s.ApplyWeek(ctx, "kid1", week))
	require.NoError(t, s.UpsertPolicy(ctx, &model.ChildPolicy{
		Username: "kid1", AfterExpiryMode: model.ModeLock, HardLock: true, WarnMinutes: 10,
	}))

	// 2025-03-03 is a Monday.
	at := func(hour, min int) time.Time {
		return time.Date(2025, time.March, 3, hour, min, 0, 0, time.UTC)
	}
	decide := func(now time.Time) engine.Decision {
		d, err := eng.Decide(ctx, "kid1", now, false)
		require.NoError(t, err)
		return d
	}

	// Before the window.
	d := decide(at(14, 0))
	assert.False(t, d.Allow)
	assert.Equal(t, engine.ReasonOutsideTime, d.Reason)

	// First poll inside the window starts the meter at zero.
	d = decide(at(15, 0))
	assert.True(t, d.Allow)
	assert.Equal(t, engine.ReasonSchedule, d.Reason)
	require.NotNil(t, d.DailyRemaining)
	assert.Equal(t, 3, *d.DailyRemaining)

	// Contiguous polling burns the budget down.
	d = decide(at(15, 1))
	require.NotNil(t, d.DailyRemaining)
	assert.Equal(t, 2, *d.DailyRemaining)
	d = decide(at(15, 2))
	require.NotNil(t, d.DailyRemaining)
	assert.Equal(t, 1, *d.DailyRemaining)

	// Budget exhausted.
	d = decide(at(15, 3))
	assert.False(t, d.Allow)
	assert.Equal(t, engine.ReasonDailyLimitReached, d.Reason)

	// A parent grant rescues the rest of the afternoon.
	until, err := s.ExtendTimedOverride(ctx, "kid1", "administrator", at(15, 5), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, at(16, 5), until.UTC())

	d = decide(at(15, 6))
	assert.True(t, d.Allow)
	assert.Equal(t, engine.ReasonOverride, d.Reason)

	// The grant expires and the limit bites again.
	d = decide(at(16, 10))
	assert.False(t, d.Allow)
	assert.Equal(t, engine.ReasonDailyLimitReached, d.Reason)

	// Resetting the day's counter restores the schedule allowance.
	require.NoError(t, s.ResetDailyUsage(ctx, "kid1", "2025-03-03"))
	d = decide(at(16, 11))
	assert.True(t, d.Allow)
	assert.Equal(t, engine.ReasonSchedule, d.Reason)

	// Near the end of the window the pre-warning fires exactly once.
	d = decide(at(18, 25))
	assert.True(t, d.Allow)
	require.NotNil(t, d.Warn)
	assert.True(t, *d.Warn)

	history, err := s.UsageHistory(ctx, "kid1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "2025-03-03", history[0].Day)

	// After the window closes the child is outside again.
	d = decide(at(19, 0))
	assert.False(t, d.Allow)
	assert.Equal(t, engine.ReasonOutsideTime, d.Reason)

	// Next morning starts fresh; Tuesday shares the same window.
	d = decide(time.Date(2025, time.March, 4, 15, 0, 0, 0, time.UTC))
	assert.True(t, d.Allow)
	assert.Equal(t, engine.ReasonSchedule, d.Reason)
}
