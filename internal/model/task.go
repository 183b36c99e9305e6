package model

import "time"

// Task represents a single to-do item. Hashtag is a free-form label; an empty
// hashtag means the task is uncategorized.
type Task struct {
	ID          uint       `gorm:"primaryKey"`
	UserID      uint       `gorm:"index"`
	Text        string     `gorm:"not null"`
	Hashtag     string     `gorm:"index"`
	IsCompleted bool       `gorm:"default:false"`
	IsPriority  bool       `gorm:"default:false"`
	IsVisible   bool       `gorm:"default:true"`
	CompletedAt *time.Time `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Uncategorized reports whether the task carries no hashtag.
func (t Task) Uncategorized() bool {
	return t.Hashtag == ""
}
