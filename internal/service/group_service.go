package service

import (
	"context"
	"fmt"
	"strings"

	"habit-tracker/internal/model"
	"habit-tracker/internal/realtime"
	"habit-tracker/internal/repository"
)

// GroupInput describes a new task group.
type GroupInput struct {
	Name        string `validate:"required,max=100"`
	Description string `validate:"max=500"`
	Items       []TaskInput
}

// GroupService manages task groups and copies them into the task list.
type GroupService struct {
	groupRepo *repository.TaskGroupRepository
	tasks     *TaskService
	feed      realtime.Feed
}

func NewGroupService(groupRepo *repository.TaskGroupRepository, tasks *TaskService, feed realtime.Feed) *GroupService {
	if feed == nil {
		feed = realtime.Discard{}
	}
	return &GroupService{groupRepo: groupRepo, tasks: tasks, feed: feed}
}

func (s *GroupService) CreateGroup(ctx context.Context, user *model.User, input GroupInput) (*model.TaskGroup, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	group := model.TaskGroup{UserID: user.ID, Name: input.Name, Description: input.Description}
	for _, raw := range input.Items {
		item := raw.normalized()
		if err := validateStruct(item); err != nil {
			return nil, err
		}
		group.Items = append(group.Items, model.TaskGroupItem{Text: item.Text, Hashtag: item.Hashtag})
	}

	if err := s.groupRepo.Create(ctx, &group); err != nil {
		return nil, err
	}
	s.publish(realtime.ChangeInsert, user.ID, group.ID)
	return &group, nil
}

func (s *GroupService) ListGroups(ctx context.Context, user *model.User) ([]model.TaskGroup, error) {
	return s.groupRepo.ListByUser(ctx, user.ID)
}

func (s *GroupService) GetGroup(ctx context.Context, user *model.User, groupID uint) (*model.TaskGroup, error) {
	group, err := s.groupRepo.FindByID(ctx, user.ID, groupID)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("group %d", groupID))
	}
	return group, nil
}

func (s *GroupService) RenameGroup(ctx context.Context, user *model.User, groupID uint, name, description string) (*model.TaskGroup, error) {
	input := GroupInput{Name: strings.TrimSpace(name), Description: strings.TrimSpace(description)}
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	group, err := s.GetGroup(ctx, user, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.groupRepo.Update(ctx, group, input.Name, input.Description); err != nil {
		return nil, err
	}
	s.publish(realtime.ChangeUpdate, user.ID, group.ID)
	return group, nil
}

func (s *GroupService) DeleteGroup(ctx context.Context, user *model.User, groupID uint) error {
	if err := s.groupRepo.Delete(ctx, user.ID, groupID); err != nil {
		return notFound(err, fmt.Sprintf("group %d", groupID))
	}
	s.publish(realtime.ChangeDelete, user.ID, groupID)
	return nil
}

func (s *GroupService) AddItem(ctx context.Context, user *model.User, groupID uint, input TaskInput) (*model.TaskGroupItem, error) {
	input = input.normalized()
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if _, err := s.GetGroup(ctx, user, groupID); err != nil {
		return nil, err
	}
	item := model.TaskGroupItem{GroupID: groupID, Text: input.Text, Hashtag: input.Hashtag}
	if err := s.groupRepo.AddItem(ctx, &item); err != nil {
		return nil, err
	}
	s.publish(realtime.ChangeUpdate, user.ID, groupID)
	return &item, nil
}

func (s *GroupService) UpdateItem(ctx context.Context, user *model.User, itemID uint, input TaskInput) (*model.TaskGroupItem, error) {
	input = input.normalized()
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	item, err := s.groupRepo.FindItem(ctx, user.ID, itemID)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("group item %d", itemID))
	}
	if err := s.groupRepo.UpdateItem(ctx, item, input.Text, input.Hashtag); err != nil {
		return nil, err
	}
	s.publish(realtime.ChangeUpdate, user.ID, item.GroupID)
	return item, nil
}

func (s *GroupService) DeleteItem(ctx context.Context, user *model.User, itemID uint) error {
	item, err := s.groupRepo.FindItem(ctx, user.ID, itemID)
	if err != nil {
		return notFound(err, fmt.Sprintf("group item %d", itemID))
	}
	if err := s.groupRepo.DeleteItem(ctx, item.ID); err != nil {
		return err
	}
	s.publish(realtime.ChangeUpdate, user.ID, item.GroupID)
	return nil
}

// AddGroupToTasks creates one task per group item, in item order.
func (s *GroupService) AddGroupToTasks(ctx context.Context, user *model.User, groupID uint) ([]model.Task, error) {
	group, err := s.GetGroup(ctx, user, groupID)
	if err != nil {
		return nil, err
	}

	created := make([]model.Task, 0, len(group.Items))
	for _, item := range group.Items {
		task, err := s.tasks.CreateTask(ctx, user, TaskInput{Text: item.Text, Hashtag: item.Hashtag})
		if err != nil {
			return created, fmt.Errorf("add %q from group %d: %w", item.Text, group.ID, err)
		}
		created = append(created, *task)
	}
	return created, nil
}

// ParseGroupSpec parses the one-line form used by the bot:
//
//	Morning routine: stretch #health; read 10 pages #study; plan the day
//
// Items are separated by ';'. A trailing '#word' on an item is its hashtag.
func ParseGroupSpec(spec string) (GroupInput, error) {
	name, rest, found := strings.Cut(spec, ":")
	input := GroupInput{Name: strings.TrimSpace(name)}
	if input.Name == "" {
		return GroupInput{}, fmt.Errorf("%w: group name is required", ErrInvalidInput)
	}
	if !found {
		return input, nil
	}
	for _, raw := range strings.Split(rest, ";") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		input.Items = append(input.Items, ParseTaskLine(raw))
	}
	return input, nil
}

// ParseTaskLine splits "text #tag" into a TaskInput. Only the last word is
// treated as a hashtag.
func ParseTaskLine(line string) TaskInput {
	line = strings.TrimSpace(line)
	fields := strings.Fields(line)
	if len(fields) > 1 && strings.HasPrefix(fields[len(fields)-1], "#") {
		tag := fields[len(fields)-1]
		text := strings.TrimSpace(strings.TrimSuffix(line, tag))
		return TaskInput{Text: text, Hashtag: tag}
	}
	return TaskInput{Text: line}
}

func (s *GroupService) publish(typ realtime.ChangeType, userID, groupID uint) {
	s.feed.Publish(realtime.NewChange(typ, realtime.TableTaskGroups, userID, groupID))
}
