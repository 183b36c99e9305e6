package model

import "time"

// TimeBlock reserves a slot of the day for one open task. Times are stored
// in UTC. NotificationSent is set once the upcoming-task alert went out and
// cleared when the block moves.
type TimeBlock struct {
	ID               uint      `gorm:"primaryKey"`
	UserID           uint      `gorm:"index"`
	TaskID           uint      `gorm:"uniqueIndex"`
	Task             Task      `gorm:"foreignKey:TaskID"`
	StartAt          time.Time `gorm:"index;not null"`
	EndAt            time.Time `gorm:"not null"`
	NotificationSent bool      `gorm:"default:false"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
