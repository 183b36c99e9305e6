package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"habit-tracker/internal/model"
)

// TaskGroupRepository manages task groups and their items.
type TaskGroupRepository struct {
	db *gorm.DB
}

func NewTaskGroupRepository(db *gorm.DB) *TaskGroupRepository {
	return &TaskGroupRepository{db: db}
}

// Create stores the group together with its items.
func (r *TaskGroupRepository) Create(ctx context.Context, group *model.TaskGroup) error {
	if err := r.db.WithContext(ctx).Create(group).Error; err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

func (r *TaskGroupRepository) ListByUser(ctx context.Context, userID uint) ([]model.TaskGroup, error) {
	var groups []model.TaskGroup
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

func (r *TaskGroupRepository) FindByID(ctx context.Context, userID, groupID uint) (*model.TaskGroup, error) {
	var group model.TaskGroup
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("user_id = ? AND id = ?", userID, groupID).
		First(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *TaskGroupRepository) Update(ctx context.Context, group *model.TaskGroup, name, description string) error {
	group.Name = name
	group.Description = description
	if err := r.db.WithContext(ctx).Model(group).
		Updates(map[string]interface{}{"name": name, "description": description}).Error; err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	return nil
}

// Delete removes the group and its items in one transaction.
func (r *TaskGroupRepository) Delete(ctx context.Context, userID, groupID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND id = ?", userID, groupID).Delete(&model.TaskGroup{})
		if res.Error != nil {
			return fmt.Errorf("delete group: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&model.TaskGroupItem{}).Error; err != nil {
			return fmt.Errorf("delete group items: %w", err)
		}
		return nil
	})
}

func (r *TaskGroupRepository) AddItem(ctx context.Context, item *model.TaskGroupItem) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("add group item: %w", err)
	}
	return nil
}

// FindItem returns an item only if its group belongs to userID.
func (r *TaskGroupRepository) FindItem(ctx context.Context, userID, itemID uint) (*model.TaskGroupItem, error) {
	var item model.TaskGroupItem
	if err := r.db.WithContext(ctx).
		Joins("JOIN task_groups ON task_groups.id = task_group_items.group_id").
		Where("task_groups.user_id = ? AND task_group_items.id = ?", userID, itemID).
		First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *TaskGroupRepository) UpdateItem(ctx context.Context, item *model.TaskGroupItem, text, hashtag string) error {
	item.Text = text
	item.Hashtag = hashtag
	if err := r.db.WithContext(ctx).Model(item).
		Updates(map[string]interface{}{"text": text, "hashtag": hashtag}).Error; err != nil {
		return fmt.Errorf("update group item: %w", err)
	}
	return nil
}

func (r *TaskGroupRepository) DeleteItem(ctx context.Context, itemID uint) error {
	if err := r.db.WithContext(ctx).Delete(&model.TaskGroupItem{}, itemID).Error; err != nil {
		return fmt.Errorf("delete group item: %w", err)
	}
	return nil
}
