package model

import "time"

// Schedule is one access window per child and weekday.
//
// Weekday follows the household convention 0=Monday .. 6=Sunday.
// StartMin/EndMin are minutes since local midnight (15:00 => 900); the
// window is inclusive on both ends. DailyMinutes is the allowed minute
// budget for the day; 0 means no access regardless of the window.
type Schedule struct {
	ID           int64     `gorm:"primaryKey" json:"-"`
	Username     string    `gorm:"size:64;not null;uniqueIndex:uq_schedule_user_weekday" json:"username"`
	Weekday      int       `gorm:"not null;uniqueIndex:uq_schedule_user_weekday" json:"weekday"`
	StartMin     int       `gorm:"not null;default:900" json:"start_min"`
	EndMin       int       `gorm:"not null;default:1110" json:"end_min"`
	DailyMinutes int       `gorm:"not null;default:120" json:"daily_minutes"`
	CreatedAt    time.Time `gorm:"not null" json:"-"`
	UpdatedAt    time.Time `gorm:"not null" json:"-"`
}
