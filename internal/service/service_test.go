package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"habit-tracker/internal/model"
	"habit-tracker/internal/realtime"
	"habit-tracker/internal/repository"
)

type testEnv struct {
	db       *gorm.DB
	feed     *realtime.MemoryFeed
	users    *repository.UserRepository
	tasks    *TaskService
	groups   *GroupService
	stats    *StatsService
	reminder *ReminderService
	blocks   *TimeBlockService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.NewDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	feed := realtime.NewMemoryFeed()
	t.Cleanup(feed.Close)

	taskRepo := repository.NewTaskRepository(db)
	tasks := NewTaskService(taskRepo, feed)
	statsService := NewStatsService(taskRepo, feed, time.Minute, time.UTC)
	return &testEnv{
		db:       db,
		feed:     feed,
		users:    repository.NewUserRepository(db),
		tasks:    tasks,
		groups:   NewGroupService(repository.NewTaskGroupRepository(db), tasks, feed),
		stats:    statsService,
		reminder: NewReminderService(taskRepo, statsService),
		blocks:   NewTimeBlockService(repository.NewTimeBlockRepository(db), taskRepo, feed),
	}
}

func (e *testEnv) user(t *testing.T, telegramID int64) *model.User {
	t.Helper()
	user, err := e.users.UpsertFromTelegram(context.Background(), telegramID, "Ada", "", "ada")
	require.NoError(t, err)
	return user
}

func (e *testEnv) completedTask(t *testing.T, user *model.User, text, tag string, at time.Time) *model.Task {
	t.Helper()
	ctx := context.Background()
	task, err := e.tasks.CreateTask(ctx, user, TaskInput{Text: text, Hashtag: tag})
	require.NoError(t, err)
	task, err = e.tasks.SetComplete(ctx, user, task.ID, true, at)
	require.NoError(t, err)
	return task
}
