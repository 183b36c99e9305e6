package model

import "time"

// TaskGroup is a reusable template of tasks (for example a morning routine)
// that can be copied into the task list in one step.
type TaskGroup struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      uint   `gorm:"index"`
	Name        string `gorm:"not null"`
	Description string
	Items       []TaskGroupItem `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskGroupItem is one task template inside a group.
type TaskGroupItem struct {
	ID        uint `gorm:"primaryKey"`
	GroupID   uint `gorm:"index"`
	Text      string
	Hashtag   string
	CreatedAt time.Time
}
