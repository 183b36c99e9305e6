package main

import (
	"gorm.io/gorm"

	"habit-tracker/internal/config"
	"habit-tracker/internal/realtime"
	"habit-tracker/internal/repository"
	"habit-tracker/internal/service"
)

// app holds the wired repositories and services shared by all commands.
type app struct {
	cfg      config.Config
	db       *gorm.DB
	feed     *realtime.MemoryFeed
	users    *repository.UserRepository
	tasks    *service.TaskService
	groups   *service.GroupService
	stats    *service.StatsService
	reminder *service.ReminderService
	blocks   *service.TimeBlockService
}

func newApp(cfg config.Config) (*app, error) {
	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	feed := realtime.NewMemoryFeed()
	taskRepo := repository.NewTaskRepository(db)
	tasks := service.NewTaskService(taskRepo, feed)
	stats := service.NewStatsService(taskRepo, feed, cfg.StatsCacheTTL, cfg.Location())

	return &app{
		cfg:      cfg,
		db:       db,
		feed:     feed,
		users:    repository.NewUserRepository(db),
		tasks:    tasks,
		groups:   service.NewGroupService(repository.NewTaskGroupRepository(db), tasks, feed),
		stats:    stats,
		reminder: service.NewReminderService(taskRepo, stats),
		blocks:   service.NewTimeBlockService(repository.NewTimeBlockRepository(db), taskRepo, feed),
	}, nil
}

func (a *app) Close() {
	a.feed.Close()
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}
