package model

import "time"

// AuditLog is an append-only record of administrator actions.
type AuditLog struct {
	ID      int64     `gorm:"primaryKey" json:"id"`
	At      time.Time `gorm:"not null;index" json:"at"`
	Actor   string    `gorm:"size:64;not null" json:"actor"`
	Child   string    `gorm:"size:64" json:"child,omitempty"`
	Action  string    `gorm:"size:64;not null" json:"action"` // e.g. GRANT_HOUR, SCHEDULE_UPDATE
	Details string    `gorm:"size:512" json:"details,omitempty"`
}
