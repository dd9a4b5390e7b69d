package model

import "time"

// DailyUsage tracks elapsed screen time per child and local day. It is
// created lazily by the decision engine on the first check of a day and
// advanced by the polling heartbeat; UsedMinutes never decreases within
// a day. Rows older than the retention window are purged best-effort.
type DailyUsage struct {
	ID          int64     `gorm:"primaryKey" json:"-"`
	Username    string    `gorm:"size:64;not null;uniqueIndex:uq_daily_usage_user_day" json:"username"`
	Day         string    `gorm:"size:10;not null;index;uniqueIndex:uq_daily_usage_user_day" json:"day"` // YYYY-MM-DD, local
	UsedMinutes int       `gorm:"not null" json:"used_minutes"`
	LastSeenAt  time.Time `gorm:"not null" json:"last_seen_at"` // UTC instant
}

// PrewarnLog records that the pre-warning was shown to a child on a given
// day. The unique constraint makes the insert idempotent: a second insert
// for the same (child, day, mode) conflicts and is swallowed, so the
// warning is emitted at most once per day and mode.
type PrewarnLog struct {
	ID       int64     `gorm:"primaryKey" json:"-"`
	Username string    `gorm:"size:64;not null;uniqueIndex:uq_prewarn_user_day_mode" json:"username"`
	Day      string    `gorm:"size:10;not null;uniqueIndex:uq_prewarn_user_day_mode" json:"day"`
	Mode     string    `gorm:"size:16;not null;uniqueIndex:uq_prewarn_user_day_mode" json:"mode"`
	ShownAt  time.Time `gorm:"not null" json:"shown_at"`
}
