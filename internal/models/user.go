package models

import "time"

// User is an account in the self-hosted store's auth table.
// Hosted backends keep their own users; this row is only used by the gorm store.
type User struct {
	ID           string `gorm:"primaryKey;size:36"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Username     string `gorm:"size:20"`
	CreatedAt    time.Time
}
