package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habit-tracker/internal/realtime"
)

func TestTaskService_CreateValidatesAndNormalizes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.user(t, 1)

	task, err := env.tasks.CreateTask(ctx, user, TaskInput{Text: "  read a chapter ", Hashtag: " #Study"})
	require.NoError(t, err)
	assert.Equal(t, "read a chapter", task.Text)
	assert.Equal(t, "study", task.Hashtag)
	assert.True(t, task.IsVisible)

	_, err = env.tasks.CreateTask(ctx, user, TaskInput{Text: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.tasks.CreateTask(ctx, user, TaskInput{Text: "x", Hashtag: "two words"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "single word")
}

func TestTaskService_ToggleComplete(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.user(t, 1)
	now := time.Date(2024, time.March, 6, 12, 0, 0, 0, time.UTC)

	task, err := env.tasks.CreateTask(ctx, user, TaskInput{Text: "stretch", Hashtag: "health"})
	require.NoError(t, err)

	task, err = env.tasks.ToggleComplete(ctx, user, task.ID, now)
	require.NoError(t, err)
	assert.True(t, task.IsCompleted)
	require.NotNil(t, task.CompletedAt)
	assert.True(t, task.CompletedAt.Equal(now))

	again, err := env.tasks.SetComplete(ctx, user, task.ID, true, now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, again.CompletedAt.Equal(now), "completing twice keeps the first time")

	task, err = env.tasks.ToggleComplete(ctx, user, task.ID, now)
	require.NoError(t, err)
	assert.False(t, task.IsCompleted)
	assert.Nil(t, task.CompletedAt)
}

func TestTaskService_ScopedByUser(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.user(t, 1)
	stranger := env.user(t, 2)

	task, err := env.tasks.CreateTask(ctx, owner, TaskInput{Text: "private"})
	require.NoError(t, err)

	_, err = env.tasks.GetTask(ctx, stranger, task.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, env.tasks.DeleteTask(ctx, stranger, task.ID), ErrNotFound)
	_, err = env.tasks.ToggleComplete(ctx, stranger, task.ID, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, env.tasks.DeleteTask(ctx, owner, task.ID))
	_, err = env.tasks.GetTask(ctx, owner, task.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskService_EditAndPriority(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.user(t, 1)

	first, err := env.tasks.CreateTask(ctx, user, TaskInput{Text: "first"})
	require.NoError(t, err)
	second, err := env.tasks.CreateTask(ctx, user, TaskInput{Text: "second"})
	require.NoError(t, err)

	_, err = env.tasks.TogglePriority(ctx, user, first.ID)
	require.NoError(t, err)
	updated, err := env.tasks.UpdateTask(ctx, user, second.ID, TaskInput{Text: "second, edited", Hashtag: "#Home"})
	require.NoError(t, err)
	assert.Equal(t, "home", updated.Hashtag)

	open, err := env.tasks.ListOpen(ctx, user)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, first.ID, open[0].ID)
	assert.True(t, open[0].IsPriority)

	tags, err := env.tasks.Hashtags(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []string{"home"}, tags)
}

func TestTaskService_ClearActiveAndCompleted(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.user(t, 1)
	base := time.Date(2024, time.March, 6, 8, 0, 0, 0, time.UTC)

	env.completedTask(t, user, "old", "work", base)
	env.completedTask(t, user, "new", "work", base.Add(2*time.Hour))
	_, err := env.tasks.CreateTask(ctx, user, TaskInput{Text: "open"})
	require.NoError(t, err)

	completed, err := env.tasks.ListCompleted(ctx, user)
	require.NoError(t, err)
	require.Len(t, completed, 2)
	assert.Equal(t, "new", completed[0].Text)

	removed, err := env.tasks.ClearActive(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	hidden, err := env.tasks.ClearCompleted(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(2), hidden)

	completed, err = env.tasks.ListCompleted(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, completed)

	stats, err := env.stats.Statistics(ctx, user)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 2, stats[0].CompletedTasks, "archived tasks still count")
}

func TestTaskService_PublishesChanges(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.user(t, 1)
	changes := env.feed.Subscribe(user.ID)

	task, err := env.tasks.CreateTask(ctx, user, TaskInput{Text: "publish me"})
	require.NoError(t, err)
	_, err = env.tasks.ToggleComplete(ctx, user, task.ID, time.Now())
	require.NoError(t, err)
	require.NoError(t, env.tasks.DeleteTask(ctx, user, task.ID))

	var got []realtime.ChangeType
	for i := 0; i < 3; i++ {
		select {
		case c := <-changes:
			assert.Equal(t, realtime.TableTasks, c.Table)
			assert.Equal(t, task.ID, c.RowID)
			got = append(got, c.Type)
		case <-time.After(time.Second):
			t.Fatal("change not delivered")
		}
	}
	assert.Equal(t, []realtime.ChangeType{realtime.ChangeInsert, realtime.ChangeUpdate, realtime.ChangeDelete}, got)
}
