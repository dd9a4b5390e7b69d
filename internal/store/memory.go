package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Goitonthefloor/Kids-Control/internal/model"
)

// Memory is an in-memory store for unit-testing the decision engine
// without a database. It implements the engine-facing subset of Store
// semantics: nil for missing rows, transactional-looking usage mutation
// under a mutex, idempotent prewarn insert, grant stacking.
type Memory struct {
	mu sync.Mutex

	children  map[string]model.Child
	schedules map[string]map[int]model.Schedule
	dayOvr    map[string]model.DayOverride
	timedOvr  map[string][]model.TimedOverride
	policies  map[string]model.ChildPolicy
	usage     map[string]model.DailyUsage // username + "|" + day
	prewarns  map[string]model.PrewarnLog // username + "|" + day + "|" + mode

	// Err, when set, is returned by every operation. Used to verify
	// fail-closed behavior.
	Err error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		children:  make(map[string]model.Child),
		schedules: make(map[string]map[int]model.Schedule),
		dayOvr:    make(map[string]model.DayOverride),
		timedOvr:  make(map[string][]model.TimedOverride),
		policies:  make(map[string]model.ChildPolicy),
		usage:     make(map[string]model.DailyUsage),
		prewarns:  make(map[string]model.PrewarnLog),
	}
}

func usageKey(username, day string) string { return username + "|" + day }

// --- seeding helpers ---

func (m *Memory) AddChild(username, displayName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.children[username] = model.Child{ID: int64(len(m.children) + 1), Username: username, DisplayName: displayName}
}

func (m *Memory) SetSchedule(username string, weekday, startMin, endMin, dailyMinutes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.schedules[username] == nil {
		m.schedules[username] = make(map[int]model.Schedule)
	}
	m.schedules[username][weekday] = model.Schedule{
		Username: username, Weekday: weekday,
		StartMin: startMin, EndMin: endMin, DailyMinutes: dailyMinutes,
	}
}

func (m *Memory) SetPolicy(pol model.ChildPolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[pol.Username] = pol
}

func (m *Memory) SetDayOverride(username, day string, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dayOvr[username] = model.DayOverride{Username: username, Day: day, Enabled: enabled}
}

// Usage returns the stored usage counter for assertions.
func (m *Memory) Usage(username, day string) (model.DailyUsage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.usage[usageKey(username, day)]
	return u, ok
}

// PrewarnCount reports how many prewarn markers exist for a child and day.
func (m *Memory) PrewarnCount(username, day string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.prewarns {
		if p.Username == username && p.Day == day {
			n++
		}
	}
	return n
}

// --- engine-facing operations ---

func (m *Memory) GetChild(_ context.Context, username string) (*model.Child, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if c, ok := m.children[username]; ok {
		return &c, nil
	}
	return nil, nil
}

func (m *Memory) GetDayOverride(_ context.Context, username string) (*model.DayOverride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if do, ok := m.dayOvr[username]; ok {
		return &do, nil
	}
	return nil, nil
}

func (m *Memory) LatestTimedOverride(_ context.Context, username string) (*model.TimedOverride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	grants := m.timedOvr[username]
	if len(grants) == 0 {
		return nil, nil
	}
	latest := grants[0]
	for _, g := range grants[1:] {
		if g.GrantedUntil.After(latest.GrantedUntil) {
			latest = g
		}
	}
	return &latest, nil
}

func (m *Memory) GetSchedule(_ context.Context, username string, weekday int) (*model.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if week, ok := m.schedules[username]; ok {
		if s, ok := week[weekday]; ok {
			return &s, nil
		}
	}
	return nil, nil
}

func (m *Memory) GetPolicy(_ context.Context, username string) (*model.ChildPolicy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if p, ok := m.policies[username]; ok {
		return &p, nil
	}
	return nil, nil
}

func (m *Memory) UpsertUsage(_ context.Context, username, day string, now time.Time, mutate func(*model.DailyUsage) bool) (model.DailyUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return model.DailyUsage{}, m.Err
	}
	key := usageKey(username, day)
	usage, ok := m.usage[key]
	if !ok {
		usage = model.DailyUsage{Username: username, Day: day, UsedMinutes: 0, LastSeenAt: now}
	}
	if mutate(&usage) || !ok {
		m.usage[key] = usage
	}
	return usage, nil
}

func (m *Memory) RecordPrewarn(_ context.Context, username, day, mode string, shownAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	key := username + "|" + day + "|" + mode
	if _, ok := m.prewarns[key]; ok {
		return false, nil
	}
	m.prewarns[key] = model.PrewarnLog{Username: username, Day: day, Mode: mode, ShownAt: shownAt}
	return true, nil
}

func (m *Memory) PurgeUsageBefore(_ context.Context, cutoffDay string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for key, u := range m.usage {
		if u.Day < cutoffDay {
			delete(m.usage, key)
		}
	}
	return nil
}

// ExtendTimedOverride mirrors the stacking semantics of the gorm store.
func (m *Memory) ExtendTimedOverride(_ context.Context, username, grantedBy string, now time.Time, extend time.Duration) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return time.Time{}, m.Err
	}
	base := now
	grants := m.timedOvr[username]
	sort.Slice(grants, func(i, j int) bool { return grants[i].GrantedUntil.After(grants[j].GrantedUntil) })
	if len(grants) > 0 && grants[0].GrantedUntil.After(now) {
		base = grants[0].GrantedUntil
	}
	until := base.Add(extend)
	m.timedOvr[username] = append(m.timedOvr[username], model.TimedOverride{
		Username:     username,
		GrantedUntil: until,
		Kind:         model.GrantKindHour,
		GrantedBy:    grantedBy,
		CreatedAt:    now,
	})
	return until, nil
}
