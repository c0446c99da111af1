package model

import "time"

// Session is the locally persisted authentication state of the desk.
// There is at most one row.
type Session struct {
	ID        int64  `gorm:"primaryKey"`
	Username  string `gorm:"size:150;not null"`
	Role      string `gorm:"size:20"`
	Token     string `gorm:"size:512"`
	Cookie    string `gorm:"size:1024"`
	PushToken string `gorm:"size:500"`
	Platform  string `gorm:"size:20"`
	UpdatedAt time.Time
}

// SessionRowID is the primary key of the single session row.
const SessionRowID int64 = 1
