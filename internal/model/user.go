package model

import "time"

// User stores Telegram user metadata and the viewer's time zone.
type User struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex"`
	FirstName  string
	LastName   string
	Username   string
	Timezone   string // IANA name, empty means the configured default
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
