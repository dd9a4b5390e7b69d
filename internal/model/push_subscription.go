package model

import "time"

// PushSubscription holds the information for a parent browser push
// subscription, plus which children it wants pre-warning pushes for.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Children []*Child `gorm:"many2many:subscription_child_mapping;"`
}
