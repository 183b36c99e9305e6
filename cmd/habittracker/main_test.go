package main

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habit-tracker/internal/config"
	"habit-tracker/internal/model"
	"habit-tracker/internal/repository"
)

func seedDatabase(t *testing.T) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "data", "habits.db")
	t.Setenv("DATABASE_URL", dsn)
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("TIMEZONE", "UTC")

	db, err := repository.NewDB(dsn)
	require.NoError(t, err)
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	ctx := context.Background()
	user, err := repository.NewUserRepository(db).UpsertFromTelegram(ctx, 42, "Ada", "", "ada")
	require.NoError(t, err)

	tasks := repository.NewTaskRepository(db)
	for _, text := range []string{"run", "swim"} {
		task := &model.Task{UserID: user.ID, Text: text, Hashtag: "gym"}
		require.NoError(t, tasks.Create(ctx, task))
		require.NoError(t, tasks.SetCompleted(ctx, task, true, time.Now()))
	}
	require.NoError(t, tasks.Create(ctx, &model.Task{UserID: user.ID, Text: "journal"}))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStatsCommand(t *testing.T) {
	seedDatabase(t)

	out, err := execute(t, "stats", "--user", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "#gym")
	assert.Contains(t, out, "100%")
	assert.Contains(t, out, "uncategorized")

	_, err = execute(t, "stats", "--user", "7")
	assert.ErrorContains(t, err, "no user with telegram id 7")

	_, err = execute(t, "stats")
	assert.Error(t, err, "--user is required")
}

func TestHeatmapCommand(t *testing.T) {
	seedDatabase(t)

	out, err := execute(t, "heatmap", "-u", "42", "-t", "#GYM")
	require.NoError(t, err)
	assert.Contains(t, out, "#gym")
	assert.Contains(t, out, "2 done on 1 days")

	all, err := execute(t, "heatmap", "-u", "42")
	require.NoError(t, err)
	assert.Contains(t, all, "#gym")
	assert.Contains(t, all, "uncategorized")

	untagged, err := execute(t, "heatmap", "-u", "42", "--untagged")
	require.NoError(t, err)
	assert.Contains(t, untagged, "No completions in this period.")

	_, err = execute(t, "heatmap", "-u", "42", "--untagged", "-t", "gym")
	assert.Error(t, err)
}

func TestBotCommandRequiresToken(t *testing.T) {
	seedDatabase(t)

	_, err := execute(t)
	assert.ErrorContains(t, err, "TELEGRAM_TOKEN is required")
	_, err = execute(t, "bot")
	assert.ErrorContains(t, err, "TELEGRAM_TOKEN is required")
}

func TestNewScheduler(t *testing.T) {
	seedDatabase(t)

	a, err := newApp(config.Config{
		DatabaseURL:    filepath.Join(t.TempDir(), "sched.db"),
		ReportInterval: 5 * time.Hour,
		ReportTime:     "07:30",
		StatsCacheTTL:  5 * time.Minute,
	})
	require.NoError(t, err)
	defer a.Close()

	scheduler, err := newScheduler(a, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, scheduler.Len())

	a.cfg.ReportTime = "7h30"
	_, err = newScheduler(a, nil)
	assert.Error(t, err)
}
