// Package profile manages named weekly-schedule presets: a fixed set of
// built-ins plus admin-saved profiles stored as JSON files under the data
// directory.
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ErrNotFound is returned when a named profile does not exist.
var ErrNotFound = errors.New("profile not found")

// Day is one weekday window of a profile.
type Day struct {
	StartMin     int `json:"start_min"`
	EndMin       int `json:"end_min"`
	DailyMinutes int `json:"daily_minutes"`
}

// Profile is a full-week schedule keyed by weekday ("0"=Monday .. "6").
type Profile struct {
	Week map[string]Day `json:"week"`
}

// Days flattens the profile into weekday order, filling absent weekdays
// with the default window.
func (p Profile) Days() [7]Day {
	var out [7]Day
	for wd := 0; wd < 7; wd++ {
		d, ok := p.Week[strconv.Itoa(wd)]
		if !ok {
			d = Day{StartMin: 900, EndMin: 1110, DailyMinutes: 120}
		}
		out[wd] = d
	}
	return out
}

func uniformWeek(d Day) map[string]Day {
	week := make(map[string]Day, 7)
	for wd := 0; wd < 7; wd++ {
		week[strconv.Itoa(wd)] = d
	}
	return week
}

// Presets are the built-in profiles offered alongside saved ones.
var Presets = map[string]Profile{
	"school-default": {Week: map[string]Day{
		"0": {StartMin: 900, EndMin: 1110, DailyMinutes: 120},
		"1": {StartMin: 900, EndMin: 1110, DailyMinutes: 120},
		"2": {StartMin: 900, EndMin: 1110, DailyMinutes: 120},
		"3": {StartMin: 900, EndMin: 1110, DailyMinutes: 120},
		"4": {StartMin: 900, EndMin: 1200, DailyMinutes: 180},
		"5": {StartMin: 900, EndMin: 1320, DailyMinutes: 240},
		"6": {StartMin: 900, EndMin: 1200, DailyMinutes: 180},
	}},
	"holidays": {Week: map[string]Day{
		"0": {StartMin: 600, EndMin: 1320, DailyMinutes: 240},
		"1": {StartMin: 600, EndMin: 1320, DailyMinutes: 240},
		"2": {StartMin: 600, EndMin: 1320, DailyMinutes: 240},
		"3": {StartMin: 600, EndMin: 1320, DailyMinutes: 240},
		"4": {StartMin: 600, EndMin: 1320, DailyMinutes: 240},
		"5": {StartMin: 600, EndMin: 1380, DailyMinutes: 300},
		"6": {StartMin: 600, EndMin: 1320, DailyMinutes: 240},
	}},
	"locked": {Week: uniformWeek(Day{})},
}

// Manager stores saved profiles as JSON files under a directory.
type Manager struct {
	dir string
}

// NewManager creates a profile manager rooted at dir, creating it if
// needed.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create profile dir %s: %w", dir, err)
	}
	return &Manager{dir: dir}, nil
}

// safeName reduces a user-supplied profile name to a filesystem-safe slug.
// Returns "" when nothing survives.
func safeName(name string) string {
	var b strings.Builder
	for _, ch := range strings.TrimSpace(name) {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
			b.WriteRune(ch)
		case ch == '-' || ch == '_' || ch == ' ':
			b.WriteRune(ch)
		}
	}
	s := strings.ReplaceAll(strings.TrimSpace(b.String()), " ", "_")
	if len(s) > 60 {
		s = s[:60]
	}
	return s
}

// List returns the saved profile names, sorted.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		base := strings.TrimSuffix(e.Name(), ".json")
		names = append(names, strings.ReplaceAll(base, "_", " "))
	}
	sort.Strings(names)
	return names, nil
}

// Save writes a named profile. Invalid names are rejected.
func (m *Manager) Save(name string, p Profile) error {
	safe := safeName(name)
	if safe == "" {
		return fmt.Errorf("invalid profile name %q", name)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profile %q: %w", name, err)
	}
	path := filepath.Join(m.dir, safe+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write profile %q: %w", name, err)
	}
	return nil
}

// Load reads a named profile.
func (m *Manager) Load(name string) (Profile, error) {
	safe := safeName(name)
	if safe == "" {
		return Profile{}, ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(m.dir, safe+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("read profile %q: %w", name, err)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("decode profile %q: %w", name, err)
	}
	return p, nil
}
