package model

import "time"

// PushSubscription holds a staff browser's web push subscription.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	StaffName string    `gorm:"size:128"`
	CreatedAt time.Time `gorm:"not null"`
}
