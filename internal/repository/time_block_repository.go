package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"habit-tracker/internal/model"
)

// TimeBlockRepository stores scheduled slots of tasks. Listings skip blocks
// whose task no longer exists.
type TimeBlockRepository struct {
	db *gorm.DB
}

func NewTimeBlockRepository(db *gorm.DB) *TimeBlockRepository {
	return &TimeBlockRepository{db: db}
}

func (r *TimeBlockRepository) Create(ctx context.Context, block *model.TimeBlock) error {
	block.StartAt = block.StartAt.UTC()
	block.EndAt = block.EndAt.UTC()
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(block).Error; err != nil {
		return fmt.Errorf("create time block: %w", err)
	}
	return nil
}

func (r *TimeBlockRepository) FindByID(ctx context.Context, userID, blockID uint) (*model.TimeBlock, error) {
	return r.first(ctx, "time_blocks.user_id = ? AND time_blocks.id = ?", userID, blockID)
}

// FindByTask returns the block of a task; a task has at most one.
func (r *TimeBlockRepository) FindByTask(ctx context.Context, userID, taskID uint) (*model.TimeBlock, error) {
	return r.first(ctx, "time_blocks.user_id = ? AND time_blocks.task_id = ?", userID, taskID)
}

// Reschedule moves the block and re-arms its alert.
func (r *TimeBlockRepository) Reschedule(ctx context.Context, block *model.TimeBlock, start, end time.Time) error {
	start, end = start.UTC(), end.UTC()
	if err := r.db.WithContext(ctx).Model(block).Updates(map[string]interface{}{
		"start_at":          start,
		"end_at":            end,
		"notification_sent": false,
	}).Error; err != nil {
		return fmt.Errorf("reschedule time block: %w", err)
	}
	block.StartAt, block.EndAt, block.NotificationSent = start, end, false
	return nil
}

func (r *TimeBlockRepository) Delete(ctx context.Context, userID, blockID uint) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, blockID).Delete(&model.TimeBlock{})
	if res.Error != nil {
		return fmt.Errorf("delete time block: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListBetween returns the user's blocks starting in [from, to), earliest first.
func (r *TimeBlockRepository) ListBetween(ctx context.Context, userID uint, from, to time.Time) ([]model.TimeBlock, error) {
	var blocks []model.TimeBlock
	if err := r.withTask(ctx).
		Where("time_blocks.user_id = ? AND time_blocks.start_at >= ? AND time_blocks.start_at < ?", userID, from.UTC(), to.UTC()).
		Order("time_blocks.start_at ASC, time_blocks.id ASC").
		Find(&blocks).Error; err != nil {
		return nil, fmt.Errorf("list time blocks: %w", err)
	}
	return blocks, nil
}

// ListPendingAlerts returns blocks of every user that start in (after, until],
// have not been alerted yet and belong to an open task.
func (r *TimeBlockRepository) ListPendingAlerts(ctx context.Context, after, until time.Time) ([]model.TimeBlock, error) {
	var blocks []model.TimeBlock
	if err := r.withTask(ctx).
		Where("time_blocks.notification_sent = ? AND tasks.is_completed = ?", false, false).
		Where("time_blocks.start_at > ? AND time_blocks.start_at <= ?", after.UTC(), until.UTC()).
		Order("time_blocks.start_at ASC, time_blocks.id ASC").
		Find(&blocks).Error; err != nil {
		return nil, fmt.Errorf("list pending alerts: %w", err)
	}
	return blocks, nil
}

// MarkNotified sets NotificationSent. It reports false when another run got
// there first, so an alert is sent at most once.
func (r *TimeBlockRepository) MarkNotified(ctx context.Context, block *model.TimeBlock) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.TimeBlock{}).
		Where("id = ? AND notification_sent = ?", block.ID, false).
		Update("notification_sent", true)
	if res.Error != nil {
		return false, fmt.Errorf("mark time block notified: %w", res.Error)
	}
	block.NotificationSent = true
	return res.RowsAffected == 1, nil
}

func (r *TimeBlockRepository) withTask(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Joins("JOIN tasks ON tasks.id = time_blocks.task_id").
		Preload("Task")
}

func (r *TimeBlockRepository) first(ctx context.Context, query string, args ...interface{}) (*model.TimeBlock, error) {
	var block model.TimeBlock
	if err := r.withTask(ctx).Where(query, args...).First(&block).Error; err != nil {
		return nil, err
	}
	return &block, nil
}
