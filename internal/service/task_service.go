package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"habit-tracker/internal/model"
	"habit-tracker/internal/realtime"
	"habit-tracker/internal/repository"
)

// TaskInput represents data required to create or edit a task.
type TaskInput struct {
	Text       string `validate:"required,max=500"`
	Hashtag    string `validate:"max=50,hashtag"`
	IsPriority bool
}

func (in TaskInput) normalized() TaskInput {
	in.Text = strings.TrimSpace(in.Text)
	in.Hashtag = NormalizeHashtag(in.Hashtag)
	return in
}

// TaskService wraps task-related business logic.
type TaskService struct {
	taskRepo *repository.TaskRepository
	feed     realtime.Feed
}

func NewTaskService(taskRepo *repository.TaskRepository, feed realtime.Feed) *TaskService {
	if feed == nil {
		feed = realtime.Discard{}
	}
	return &TaskService{taskRepo: taskRepo, feed: feed}
}

func (s *TaskService) CreateTask(ctx context.Context, user *model.User, input TaskInput) (*model.Task, error) {
	input = input.normalized()
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	task := model.Task{
		UserID:     user.ID,
		Text:       input.Text,
		Hashtag:    input.Hashtag,
		IsPriority: input.IsPriority,
	}
	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}

	s.publish(realtime.ChangeInsert, user.ID, task.ID)
	return &task, nil
}

// ListTasks returns the user's tasks matching filter.
func (s *TaskService) ListTasks(ctx context.Context, user *model.User, filter repository.TaskFilter) ([]model.Task, error) {
	return s.taskRepo.List(ctx, user.ID, filter)
}

// ListOpen returns visible incomplete tasks.
func (s *TaskService) ListOpen(ctx context.Context, user *model.User) ([]model.Task, error) {
	open := false
	return s.taskRepo.List(ctx, user.ID, repository.TaskFilter{Completed: &open, VisibleOnly: true})
}

// ListCompleted returns visible completed tasks, most recently completed first.
func (s *TaskService) ListCompleted(ctx context.Context, user *model.User) ([]model.Task, error) {
	done := true
	tasks, err := s.taskRepo.List(ctx, user.ID, repository.TaskFilter{Completed: &done, VisibleOnly: true})
	if err != nil {
		return nil, err
	}
	sortByCompletedAtDesc(tasks)
	return tasks, nil
}

func (s *TaskService) GetTask(ctx context.Context, user *model.User, taskID uint) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, user.ID, taskID)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("task %d", taskID))
	}
	return task, nil
}

// UpdateTask replaces the text and hashtag of a task. Priority is untouched.
func (s *TaskService) UpdateTask(ctx context.Context, user *model.User, taskID uint, input TaskInput) (*model.Task, error) {
	input = input.normalized()
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	task, err := s.GetTask(ctx, user, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.taskRepo.UpdateText(ctx, task, input.Text, input.Hashtag); err != nil {
		return nil, err
	}
	s.publish(realtime.ChangeUpdate, user.ID, task.ID)
	return task, nil
}

// SetComplete marks a task done or reopens it. Completing an already
// completed task keeps its original completion time.
func (s *TaskService) SetComplete(ctx context.Context, user *model.User, taskID uint, completed bool, now time.Time) (*model.Task, error) {
	task, err := s.GetTask(ctx, user, taskID)
	if err != nil {
		return nil, err
	}
	if task.IsCompleted == completed {
		return task, nil
	}
	if err := s.taskRepo.SetCompleted(ctx, task, completed, now); err != nil {
		return nil, err
	}
	s.publish(realtime.ChangeUpdate, user.ID, task.ID)
	return task, nil
}

// ToggleComplete flips the completion flag of a task.
func (s *TaskService) ToggleComplete(ctx context.Context, user *model.User, taskID uint, now time.Time) (*model.Task, error) {
	task, err := s.GetTask(ctx, user, taskID)
	if err != nil {
		return nil, err
	}
	return s.SetComplete(ctx, user, taskID, !task.IsCompleted, now)
}

func (s *TaskService) TogglePriority(ctx context.Context, user *model.User, taskID uint) (*model.Task, error) {
	task, err := s.GetTask(ctx, user, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.taskRepo.SetPriority(ctx, task, !task.IsPriority); err != nil {
		return nil, err
	}
	s.publish(realtime.ChangeUpdate, user.ID, task.ID)
	return task, nil
}

// DeleteTask removes a task completely.
func (s *TaskService) DeleteTask(ctx context.Context, user *model.User, taskID uint) error {
	if _, err := s.GetTask(ctx, user, taskID); err != nil {
		return err
	}
	if err := s.taskRepo.Delete(ctx, user.ID, taskID); err != nil {
		return err
	}
	s.publish(realtime.ChangeDelete, user.ID, taskID)
	return nil
}

// ClearActive deletes every incomplete task.
func (s *TaskService) ClearActive(ctx context.Context, user *model.User) (int64, error) {
	n, err := s.taskRepo.DeleteActive(ctx, user.ID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.publish(realtime.ChangeDelete, user.ID, 0)
	}
	return n, nil
}

// ClearCompleted hides completed tasks from the lists; they keep counting
// towards statistics and the heatmap.
func (s *TaskService) ClearCompleted(ctx context.Context, user *model.User) (int64, error) {
	n, err := s.taskRepo.HideCompleted(ctx, user.ID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.publish(realtime.ChangeUpdate, user.ID, 0)
	}
	return n, nil
}

// Hashtags lists the distinct hashtags the user has used.
func (s *TaskService) Hashtags(ctx context.Context, user *model.User) ([]string, error) {
	return s.taskRepo.ListHashtags(ctx, user.ID)
}

func (s *TaskService) publish(typ realtime.ChangeType, userID, taskID uint) {
	s.feed.Publish(realtime.NewChange(typ, realtime.TableTasks, userID, taskID))
}

func sortByCompletedAtDesc(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].CompletedAt, tasks[j].CompletedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}
