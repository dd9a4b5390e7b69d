package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Goitonthefloor/Kids-Control/internal/model"
)

// Sentinel errors. Callers check these with errors.Is.
var (
	// ErrChildExists is returned when creating a child whose username is taken.
	ErrChildExists = errors.New("child already exists")
)

// WeekDay is one weekday entry of a full-week schedule write.
type WeekDay struct {
	Weekday      int `json:"weekday"`
	StartMin     int `json:"start_min"`
	EndMin       int `json:"end_min"`
	DailyMinutes int `json:"daily_minutes"`
}

// Store defines the interface for all database operations.
//
// The lookup methods return nil (not an error) when no row exists: for the
// decision engine a missing row is a decision input, not a failure. Every
// returned error means the store itself is unavailable and the caller must
// fail closed.
type Store interface {
	// Lookups used by the decision engine.
	GetChild(ctx context.Context, username string) (*model.Child, error)
	GetDayOverride(ctx context.Context, username string) (*model.DayOverride, error)
	LatestTimedOverride(ctx context.Context, username string) (*model.TimedOverride, error)
	GetSchedule(ctx context.Context, username string, weekday int) (*model.Schedule, error)
	GetPolicy(ctx context.Context, username string) (*model.ChildPolicy, error)

	// Engine side effects.
	UpsertUsage(ctx context.Context, username, day string, now time.Time, mutate func(*model.DailyUsage) bool) (model.DailyUsage, error)
	RecordPrewarn(ctx context.Context, username, day, mode string, shownAt time.Time) (bool, error)
	PurgeUsageBefore(ctx context.Context, cutoffDay string) error

	// Admin operations.
	ListChildren(ctx context.Context) ([]model.Child, error)
	CreateChild(ctx context.Context, child *model.Child) error
	ExtendTimedOverride(ctx context.Context, username, grantedBy string, now time.Time, extend time.Duration) (time.Time, error)
	ToggleDayOverride(ctx context.Context, username, day string, now time.Time) (model.DayOverride, error)
	ResetDailyUsage(ctx context.Context, username, day string) error
	UsageHistory(ctx context.Context, username string, limit int) ([]model.DailyUsage, error)
	WeekSchedule(ctx context.Context, username string) ([]model.Schedule, error)
	ApplyWeek(ctx context.Context, username string, days []WeekDay) error
	UpsertPolicy(ctx context.Context, policy *model.ChildPolicy) error
	AppendAudit(ctx context.Context, entry model.AuditLog) error
	RecentAudit(ctx context.Context, limit int) ([]model.AuditLog, error)

	// DB exposes the underlying gorm handle for plain CRUD in handlers.
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) GetChild(ctx context.Context, username string) (*model.Child, error) {
	var child model.Child
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&child).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch child %q: %w", username, err)
	}
	return &child, nil
}

func (s *gormStore) GetDayOverride(ctx context.Context, username string) (*model.DayOverride, error) {
	var do model.DayOverride
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&do).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch day override for %q: %w", username, err)
	}
	return &do, nil
}

// LatestTimedOverride returns the grant with the maximum GrantedUntil,
// regardless of creation order. Expired grants are kept as audit trail, so
// the returned row may lie in the past; the caller compares against now.
func (s *gormStore) LatestTimedOverride(ctx context.Context, username string) (*model.TimedOverride, error) {
	var ov model.TimedOverride
	err := s.db.WithContext(ctx).
		Where("username = ?", username).
		Order("granted_until DESC").
		First(&ov).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch timed override for %q: %w", username, err)
	}
	return &ov, nil
}

func (s *gormStore) GetSchedule(ctx context.Context, username string, weekday int) (*model.Schedule, error) {
	var sched model.Schedule
	err := s.db.WithContext(ctx).
		Where("username = ? AND weekday = ?", username, weekday).
		First(&sched).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch schedule for %q weekday %d: %w", username, weekday, err)
	}
	return &sched, nil
}

func (s *gormStore) GetPolicy(ctx context.Context, username string) (*model.ChildPolicy, error) {
	var pol model.ChildPolicy
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&pol).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch policy for %q: %w", username, err)
	}
	return &pol, nil
}

// UpsertUsage runs a transactional read-modify-write on the child's usage
// counter for the given day. The row is created on first use with
// used_minutes=0 and last_seen_at=now. The mutate closure reports whether
// it changed the row; unchanged rows are not written back.
func (s *gormStore) UpsertUsage(ctx context.Context, username, day string, now time.Time, mutate func(*model.DailyUsage) bool) (model.DailyUsage, error) {
	var out model.DailyUsage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var usage model.DailyUsage
		err := tx.Where("username = ? AND day = ?", username, day).First(&usage).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			usage = model.DailyUsage{Username: username, Day: day, UsedMinutes: 0, LastSeenAt: now}
			if err := tx.Create(&usage).Error; err != nil {
				return fmt.Errorf("create usage row for %q day %s: %w", username, day, err)
			}
		} else if err != nil {
			return fmt.Errorf("fetch usage row for %q day %s: %w", username, day, err)
		}

		if mutate(&usage) {
			if err := tx.Save(&usage).Error; err != nil {
				return fmt.Errorf("update usage row for %q day %s: %w", username, day, err)
			}
		}
		out = usage
		return nil
	})
	return out, err
}

// RecordPrewarn inserts the write-once pre-warning marker. A conflict on
// the (username, day, mode) unique key is not an error: it reports that
// the warning was already recorded. Returns true when this call inserted
// the row.
func (s *gormStore) RecordPrewarn(ctx context.Context, username, day, mode string, shownAt time.Time) (bool, error) {
	entry := model.PrewarnLog{Username: username, Day: day, Mode: mode, ShownAt: shownAt}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}, {Name: "day"}, {Name: "mode"}},
		DoNothing: true,
	}).Create(&entry)
	if res.Error != nil {
		return false, fmt.Errorf("record prewarn for %q day %s: %w", username, day, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// PurgeUsageBefore deletes usage counters for days strictly before the
// cutoff. Day strings are ISO dates, so string comparison orders them.
func (s *gormStore) PurgeUsageBefore(ctx context.Context, cutoffDay string) error {
	if err := s.db.WithContext(ctx).Where("day < ?", cutoffDay).Delete(&model.DailyUsage{}).Error; err != nil {
		return fmt.Errorf("purge usage rows before %s: %w", cutoffDay, err)
	}
	return nil
}

func (s *gormStore) ListChildren(ctx context.Context) ([]model.Child, error) {
	var children []model.Child
	if err := s.db.WithContext(ctx).Order("username ASC").Find(&children).Error; err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return children, nil
}

func (s *gormStore) CreateChild(ctx context.Context, child *model.Child) error {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoNothing: true,
	}).Create(child)
	if res.Error != nil {
		return fmt.Errorf("create child %q: %w", child.Username, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("create child %q: %w", child.Username, ErrChildExists)
	}
	return nil
}

// ExtendTimedOverride appends a new grant whose GrantedUntil extends from
// the later of now and the current maximum. Consecutive grants therefore
// stack instead of resetting. The read and the append run in one
// transaction so two concurrent grants serialize.
func (s *gormStore) ExtendTimedOverride(ctx context.Context, username, grantedBy string, now time.Time, extend time.Duration) (time.Time, error) {
	var until time.Time
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		base := now
		var last model.TimedOverride
		err := tx.Where("username = ? AND kind = ?", username, model.GrantKindHour).
			Order("granted_until DESC").
			First(&last).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("fetch latest grant for %q: %w", username, err)
		}
		if err == nil && last.GrantedUntil.After(now) {
			base = last.GrantedUntil
		}

		until = base.Add(extend)
		grant := model.TimedOverride{
			Username:     username,
			GrantedUntil: until,
			Kind:         model.GrantKindHour,
			GrantedBy:    grantedBy,
			CreatedAt:    now,
		}
		if err := tx.Create(&grant).Error; err != nil {
			return fmt.Errorf("append grant for %q: %w", username, err)
		}
		return nil
	})
	return until, err
}

// ToggleDayOverride flips the "unlimited today" toggle. A stale record
// (previous day) is rolled over to today and enabled rather than flipped.
func (s *gormStore) ToggleDayOverride(ctx context.Context, username, day string, now time.Time) (model.DayOverride, error) {
	var out model.DayOverride
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var do model.DayOverride
		err := tx.Where("username = ?", username).First(&do).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			do = model.DayOverride{Username: username, Day: day, Enabled: true}
		case err != nil:
			return fmt.Errorf("fetch day override for %q: %w", username, err)
		case do.Day != day:
			do.Day = day
			do.Enabled = true
		default:
			do.Enabled = !do.Enabled
		}
		do.UpdatedAt = now
		if err := tx.Save(&do).Error; err != nil {
			return fmt.Errorf("save day override for %q: %w", username, err)
		}
		out = do
		return nil
	})
	return out, err
}

func (s *gormStore) ResetDailyUsage(ctx context.Context, username, day string) error {
	if err := s.db.WithContext(ctx).
		Where("username = ? AND day = ?", username, day).
		Delete(&model.DailyUsage{}).Error; err != nil {
		return fmt.Errorf("reset usage for %q day %s: %w", username, day, err)
	}
	return nil
}

func (s *gormStore) UsageHistory(ctx context.Context, username string, limit int) ([]model.DailyUsage, error) {
	var rows []model.DailyUsage
	if err := s.db.WithContext(ctx).
		Where("username = ?", username).
		Order("day DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("usage history for %q: %w", username, err)
	}
	return rows, nil
}

// WeekSchedule returns the child's full week, materializing missing
// weekdays with the default window so the admin UI always sees seven rows.
func (s *gormStore) WeekSchedule(ctx context.Context, username string) ([]model.Schedule, error) {
	week := make([]model.Schedule, 0, 7)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for wd := 0; wd < 7; wd++ {
			sched := model.Schedule{
				Username: username,
				Weekday:  wd,
			}
			if err := tx.Where("username = ? AND weekday = ?", username, wd).
				Attrs(model.Schedule{StartMin: 900, EndMin: 1110, DailyMinutes: 120}).
				FirstOrCreate(&sched).Error; err != nil {
				return fmt.Errorf("materialize schedule for %q weekday %d: %w", username, wd, err)
			}
			week = append(week, sched)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return week, nil
}

// ApplyWeek upserts the given weekday windows for a child in one
// transaction.
func (s *gormStore) ApplyWeek(ctx context.Context, username string, days []WeekDay) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, d := range days {
			sched := model.Schedule{
				Username:     username,
				Weekday:      d.Weekday,
				StartMin:     d.StartMin,
				EndMin:       d.EndMin,
				DailyMinutes: d.DailyMinutes,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "username"}, {Name: "weekday"}},
				DoUpdates: clause.AssignmentColumns([]string{"start_min", "end_min", "daily_minutes", "updated_at"}),
			}).Create(&sched).Error; err != nil {
				return fmt.Errorf("apply schedule for %q weekday %d: %w", username, d.Weekday, err)
			}
		}
		return nil
	})
}

func (s *gormStore) UpsertPolicy(ctx context.Context, policy *model.ChildPolicy) error {
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"after_expiry_mode", "hard_lock", "warn_minutes"}),
	}).Create(policy).Error; err != nil {
		return fmt.Errorf("upsert policy for %q: %w", policy.Username, err)
	}
	return nil
}

func (s *gormStore) AppendAudit(ctx context.Context, entry model.AuditLog) error {
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *gormStore) RecentAudit(ctx context.Context, limit int) ([]model.AuditLog, error) {
	var entries []model.AuditLog
	if err := s.db.WithContext(ctx).Order("at DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("recent audit entries: %w", err)
	}
	return entries, nil
}
