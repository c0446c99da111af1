package model

import "time"

// PushSubscription holds a browser push subscription for one floor's alerts.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	Piso      int       `gorm:"index;not null"`
	CreatedAt time.Time `gorm:"not null"`
}
