package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"habit-tracker/internal/model"
)

// TaskFilter narrows List results. Nil fields are not applied.
type TaskFilter struct {
	Hashtag       *string
	Completed     *bool
	VisibleOnly   bool
	CompletedFrom *time.Time // inclusive
	CompletedTo   *time.Time // exclusive
}

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	task.IsVisible = true
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// List returns the user's tasks, priority tasks first, newest first.
func (r *TaskRepository) List(ctx context.Context, userID uint, filter TaskFilter) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.Hashtag != nil {
		q = q.Where("hashtag = ?", *filter.Hashtag)
	}
	if filter.Completed != nil {
		q = q.Where("is_completed = ?", *filter.Completed)
	}
	if filter.VisibleOnly {
		q = q.Where("is_visible = ?", true)
	}
	if filter.CompletedFrom != nil {
		q = q.Where("completed_at >= ?", filter.CompletedFrom.UTC())
	}
	if filter.CompletedTo != nil {
		q = q.Where("completed_at < ?", filter.CompletedTo.UTC())
	}

	var tasks []model.Task
	if err := q.Order("is_priority DESC, created_at DESC, id DESC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) UpdateText(ctx context.Context, task *model.Task, text, hashtag string) error {
	task.Text = text
	task.Hashtag = hashtag
	if err := r.db.WithContext(ctx).Model(task).
		Updates(map[string]interface{}{"text": text, "hashtag": hashtag}).Error; err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// SetCompleted flips the completion flag. The completion time is stored in
// UTC when completing and cleared when reopening.
func (r *TaskRepository) SetCompleted(ctx context.Context, task *model.Task, completed bool, at time.Time) error {
	var completedAt *time.Time
	if completed {
		utc := at.UTC()
		completedAt = &utc
	}
	task.IsCompleted = completed
	task.CompletedAt = completedAt

	if err := r.db.WithContext(ctx).Model(task).
		Updates(map[string]interface{}{"is_completed": completed, "completed_at": completedAt}).Error; err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return nil
}

func (r *TaskRepository) SetPriority(ctx context.Context, task *model.Task, priority bool) error {
	task.IsPriority = priority
	if err := r.db.WithContext(ctx).Model(task).Update("is_priority", priority).Error; err != nil {
		return fmt.Errorf("set priority: %w", err)
	}
	return nil
}

// Delete removes a task for the given user together with its time block.
func (r *TaskRepository) Delete(ctx context.Context, userID, taskID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND task_id = ?", userID, taskID).
			Delete(&model.TimeBlock{}).Error; err != nil {
			return fmt.Errorf("delete task time block: %w", err)
		}
		if err := tx.Where("user_id = ? AND id = ?", userID, taskID).
			Delete(&model.Task{}).Error; err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return nil
	})
}

// DeleteActive removes every incomplete task of the user and their time blocks.
func (r *TaskRepository) DeleteActive(ctx context.Context, userID uint) (int64, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		open := tx.Model(&model.Task{}).Select("id").Where("user_id = ? AND is_completed = ?", userID, false)
		if err := tx.Where("task_id IN (?)", open).Delete(&model.TimeBlock{}).Error; err != nil {
			return fmt.Errorf("delete active time blocks: %w", err)
		}
		res := tx.Where("user_id = ? AND is_completed = ?", userID, false).Delete(&model.Task{})
		if res.Error != nil {
			return fmt.Errorf("delete active tasks: %w", res.Error)
		}
		removed = res.RowsAffected
		return nil
	})
	return removed, err
}

// HideCompleted archives completed tasks. They stay in the statistics.
func (r *TaskRepository) HideCompleted(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("user_id = ? AND is_completed = ? AND is_visible = ?", userID, true, true).
		Update("is_visible", false)
	if res.Error != nil {
		return 0, fmt.Errorf("hide completed tasks: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ListHashtags returns the distinct non-empty hashtags of the user.
func (r *TaskRepository) ListHashtags(ctx context.Context, userID uint) ([]string, error) {
	var tags []string
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("user_id = ? AND hashtag <> ''", userID).
		Distinct("hashtag").Order("hashtag ASC").Pluck("hashtag", &tags).Error; err != nil {
		return nil, fmt.Errorf("list hashtags: %w", err)
	}
	return tags, nil
}
