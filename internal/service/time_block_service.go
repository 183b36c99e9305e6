package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"habit-tracker/internal/model"
	"habit-tracker/internal/realtime"
	"habit-tracker/internal/repository"
)

// DefaultAlertLead is how long before a block starts its alert goes out.
const DefaultAlertLead = 15 * time.Minute

// TimeBlockInput is the slot a task is scheduled into.
type TimeBlockInput struct {
	Start time.Time `validate:"required"`
	End   time.Time `validate:"required,gtfield=Start"`
}

// TimeBlockService schedules open tasks into slots of the day and finds
// the blocks whose start is close enough to alert about.
type TimeBlockService struct {
	blockRepo *repository.TimeBlockRepository
	taskRepo  *repository.TaskRepository
	feed      realtime.Feed
}

func NewTimeBlockService(blockRepo *repository.TimeBlockRepository, taskRepo *repository.TaskRepository, feed realtime.Feed) *TimeBlockService {
	if feed == nil {
		feed = realtime.Discard{}
	}
	return &TimeBlockService{blockRepo: blockRepo, taskRepo: taskRepo, feed: feed}
}

// Schedule puts an open task into a slot. A task that already has a block
// is moved instead, which re-arms its alert.
func (s *TimeBlockService) Schedule(ctx context.Context, user *model.User, taskID uint, input TimeBlockInput) (*model.TimeBlock, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	task, err := s.taskRepo.FindByID(ctx, user.ID, taskID)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("task %d", taskID))
	}
	if task.IsCompleted {
		return nil, fmt.Errorf("%w: task %d is already done", ErrInvalidInput, taskID)
	}

	existing, err := s.blockRepo.FindByTask(ctx, user.ID, taskID)
	switch {
	case err == nil:
		return s.move(ctx, user, existing, input)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("find time block: %w", err)
	}

	block := model.TimeBlock{
		UserID:  user.ID,
		TaskID:  task.ID,
		StartAt: input.Start,
		EndAt:   input.End,
	}
	if err := s.blockRepo.Create(ctx, &block); err != nil {
		return nil, err
	}
	block.Task = *task

	s.publish(realtime.ChangeInsert, user.ID, block.ID)
	return &block, nil
}

// Update moves an existing block.
func (s *TimeBlockService) Update(ctx context.Context, user *model.User, blockID uint, input TimeBlockInput) (*model.TimeBlock, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	block, err := s.blockRepo.FindByID(ctx, user.ID, blockID)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("time block %d", blockID))
	}
	return s.move(ctx, user, block, input)
}

func (s *TimeBlockService) Delete(ctx context.Context, user *model.User, blockID uint) error {
	if err := s.blockRepo.Delete(ctx, user.ID, blockID); err != nil {
		return notFound(err, fmt.Sprintf("time block %d", blockID))
	}
	s.publish(realtime.ChangeDelete, user.ID, blockID)
	return nil
}

// ForTask returns the block a task is scheduled into.
func (s *TimeBlockService) ForTask(ctx context.Context, user *model.User, taskID uint) (*model.TimeBlock, error) {
	block, err := s.blockRepo.FindByTask(ctx, user.ID, taskID)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("time block of task %d", taskID))
	}
	return block, nil
}

// ListForDay returns the blocks starting on the calendar day of day, taken
// in day's location.
func (s *TimeBlockService) ListForDay(ctx context.Context, user *model.User, day time.Time) ([]model.TimeBlock, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return s.blockRepo.ListBetween(ctx, user.ID, from, from.AddDate(0, 0, 1))
}

// DueSoon returns blocks of every user starting within lead after now whose
// alert has not gone out yet.
func (s *TimeBlockService) DueSoon(ctx context.Context, now time.Time, lead time.Duration) ([]model.TimeBlock, error) {
	if lead <= 0 {
		lead = DefaultAlertLead
	}
	return s.blockRepo.ListPendingAlerts(ctx, now, now.Add(lead))
}

// MarkNotified records that the alert of block was sent. It reports false
// when the block had already been marked.
func (s *TimeBlockService) MarkNotified(ctx context.Context, block *model.TimeBlock) (bool, error) {
	marked, err := s.blockRepo.MarkNotified(ctx, block)
	if err != nil {
		return false, err
	}
	if marked {
		s.publish(realtime.ChangeUpdate, block.UserID, block.ID)
	}
	return marked, nil
}

func (s *TimeBlockService) move(ctx context.Context, user *model.User, block *model.TimeBlock, input TimeBlockInput) (*model.TimeBlock, error) {
	if err := s.blockRepo.Reschedule(ctx, block, input.Start, input.End); err != nil {
		return nil, err
	}
	s.publish(realtime.ChangeUpdate, user.ID, block.ID)
	return block, nil
}

func (s *TimeBlockService) publish(typ realtime.ChangeType, userID, blockID uint) {
	s.feed.Publish(realtime.NewChange(typ, realtime.TableTimeBlocks, userID, blockID))
}
