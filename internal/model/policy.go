package model

// After-expiry modes. Informational to the decision engine; the client
// agent decides what "expired" looks like on the device.
const (
	ModeLock   = "LOCK"
	ModeSchool = "SCHOOL"
)

// ChildPolicy holds per-child policy knobs outside the weekly schedule.
type ChildPolicy struct {
	Username        string `gorm:"primaryKey;size:64" json:"username"`
	AfterExpiryMode string `gorm:"size:16;not null;default:LOCK" json:"after_expiry_mode"`
	HardLock        bool   `gorm:"not null;default:true" json:"hard_lock"`
	WarnMinutes     int    `gorm:"not null;default:10" json:"warn_minutes"`
}
