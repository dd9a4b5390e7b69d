package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	p := Profile{Week: map[string]Day{
		"0": {StartMin: 600, EndMin: 1200, DailyMinutes: 90},
		"6": {StartMin: 600, EndMin: 1320, DailyMinutes: 180},
	}}
	require.NoError(t, m.Save("Weekend Special", p))

	got, err := m.Load("Weekend Special")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	names, err := m.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"Weekend Special"}, names)
}

func TestLoadMissing(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	_, err = m.Load("does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRejectsHostileNames(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)

	// Path traversal characters are stripped; the file lands inside the
	// profile directory under the surviving characters.
	require.NoError(t, m.Save("../../etc/passwd", Profile{}))
	names, err := m.List()
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.Equal(t, "etcpasswd", names[0])

	// A name with nothing safe left is rejected outright.
	assert.Error(t, m.Save("///...", Profile{}))
	assert.Error(t, m.Save("   ", Profile{}))
}

func TestDaysFillsDefaults(t *testing.T) {
	p := Profile{Week: map[string]Day{
		"2": {StartMin: 600, EndMin: 720, DailyMinutes: 60},
	}}

	days := p.Days()
	assert.Equal(t, Day{StartMin: 600, EndMin: 720, DailyMinutes: 60}, days[2])
	for _, wd := range []int{0, 1, 3, 4, 5, 6} {
		assert.Equal(t, Day{StartMin: 900, EndMin: 1110, DailyMinutes: 120}, days[wd])
	}
}

func TestPresets(t *testing.T) {
	for _, name := range []string{"school-default", "holidays", "locked"} {
		p, ok := Presets[name]
		require.True(t, ok, name)
		assert.Len(t, p.Week, 7)
	}

	// The locked preset must deny every day.
	for _, d := range Presets["locked"].Days() {
		assert.Equal(t, 0, d.DailyMinutes)
	}
}
