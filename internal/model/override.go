package model

import "time"

// Grant kinds for TimedOverride.
const (
	GrantKindHour = "HOUR"
)

// TimedOverride is one time-limited access grant. Records are append-only:
// they form the audit trail of who granted what, and they expire by time
// comparison rather than deletion. Only the row with the latest
// GrantedUntil is consulted by the decision engine.
type TimedOverride struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"index;size:64;not null" json:"username"`
	GrantedUntil time.Time `gorm:"not null;index" json:"granted_until"` // UTC instant
	Kind         string    `gorm:"size:16;not null" json:"kind"`
	GrantedBy    string    `gorm:"size:64;not null" json:"granted_by"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}

// DayOverride is the single mutable "unlimited access for today" toggle
// per child. It is stale (and treated as absent) when Day is not the
// current local calendar day.
type DayOverride struct {
	Username  string    `gorm:"primaryKey;size:64" json:"username"`
	Day       string    `gorm:"size:10;not null" json:"day"` // YYYY-MM-DD, local
	Enabled   bool      `gorm:"not null" json:"enabled"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
