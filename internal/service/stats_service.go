package service

import (
	"context"
	"fmt"
	"log"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"habit-tracker/internal/cache"
	"habit-tracker/internal/model"
	"habit-tracker/internal/realtime"
	"habit-tracker/internal/repository"
	"habit-tracker/internal/stats"
)

// Heatmap is the activity grid of one category.
type Heatmap struct {
	Category  string
	DayCounts []stats.DayCount
	Grid      stats.Grid
	Summary   stats.Summary
}

// StatsService serves category statistics and heatmaps, caching results per
// user until a change for that user arrives or the TTL runs out.
type StatsService struct {
	taskRepo   *repository.TaskRepository
	feed       realtime.Feed
	defaultLoc *time.Location

	statsCache   *cache.TTL[[]stats.CategoryStat]
	heatmapCache *cache.TTL[Heatmap]
}

func NewStatsService(taskRepo *repository.TaskRepository, feed realtime.Feed, ttl time.Duration, defaultLoc *time.Location) *StatsService {
	if feed == nil {
		feed = realtime.Discard{}
	}
	if defaultLoc == nil {
		defaultLoc = time.Local
	}
	return &StatsService{
		taskRepo:     taskRepo,
		feed:         feed,
		defaultLoc:   defaultLoc,
		statsCache:   cache.New[[]stats.CategoryStat](ttl),
		heatmapCache: cache.New[Heatmap](ttl),
	}
}

// Location returns the zone used to bucket the user's completions.
func (s *StatsService) Location(user *model.User) *time.Location {
	if user != nil && user.Timezone != "" {
		if loc, err := time.LoadLocation(user.Timezone); err == nil {
			return loc
		}
	}
	return s.defaultLoc
}

// Statistics returns per-category totals sorted for display.
func (s *StatsService) Statistics(ctx context.Context, user *model.User) ([]stats.CategoryStat, error) {
	key := statsKey(user.ID)
	if cached, ok := s.statsCache.Get(key); ok {
		return slices.Clone(cached), nil
	}

	tasks, err := s.taskRepo.List(ctx, user.ID, repository.TaskFilter{})
	if err != nil {
		return nil, fmt.Errorf("load tasks for stats: %w", err)
	}
	result := stats.ComputeStatistics(tasks)
	stats.SortByCompleted(result)

	// Callers get their own copy; the cached slice is never handed out.
	s.statsCache.Set(key, slices.Clone(result))
	return result, nil
}

// Heatmap builds the grid for one category as seen in the user's zone at now.
func (s *StatsService) Heatmap(ctx context.Context, user *model.User, category string, now time.Time) (Heatmap, error) {
	category = NormalizeHashtag(category)
	local := now.In(s.Location(user))
	key := heatmapKey(user.ID, stats.DateOf(local), category)
	if cached, ok := s.heatmapCache.Get(key); ok {
		return cached.clone(), nil
	}

	tasks, err := s.completedInWindow(ctx, user, local, &category)
	if err != nil {
		return Heatmap{}, err
	}
	h := buildHeatmap(tasks, category, local)
	s.heatmapCache.Set(key, h.clone())
	return h, nil
}

// Heatmaps builds one heatmap per category, in the order of Statistics.
func (s *StatsService) Heatmaps(ctx context.Context, user *model.User, now time.Time) ([]Heatmap, error) {
	categories, err := s.Statistics(ctx, user)
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return []Heatmap{}, nil
	}

	local := now.In(s.Location(user))
	tasks, err := s.completedInWindow(ctx, user, local, nil)
	if err != nil {
		return nil, err
	}

	result := make([]Heatmap, len(categories))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, cat := range categories {
		i, cat := i, cat
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result[i] = buildHeatmap(tasks, cat.Name, local)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// Watch drops cached results of users whose data changed. It blocks until
// ctx is done or the feed is closed.
func (s *StatsService) Watch(ctx context.Context) {
	changes := s.feed.Subscribe(realtime.AllUsers)
	defer s.feed.Unsubscribe(realtime.AllUsers, changes)

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			s.Invalidate(change.UserID)
		}
	}
}

// Invalidate forgets every cached result of the user.
func (s *StatsService) Invalidate(userID uint) {
	prefix := userPrefix(userID)
	s.statsCache.InvalidatePrefix(prefix)
	s.heatmapCache.InvalidatePrefix(prefix)
}

// Sweep removes expired cache entries.
func (s *StatsService) Sweep() {
	if n := s.statsCache.Sweep() + s.heatmapCache.Sweep(); n > 0 {
		log.Printf("[info] stats cache: swept %d expired entries", n)
	}
}

func (s *StatsService) completedInWindow(ctx context.Context, user *model.User, local time.Time, category *string) ([]model.Task, error) {
	start, end := stats.Window(local)
	from := start.In(local.Location())
	to := end.AddDays(1).In(local.Location())
	done := true

	tasks, err := s.taskRepo.List(ctx, user.ID, repository.TaskFilter{
		Hashtag:       category,
		Completed:     &done,
		CompletedFrom: &from,
		CompletedTo:   &to,
	})
	if err != nil {
		return nil, fmt.Errorf("load completed tasks: %w", err)
	}
	return tasks, nil
}

func buildHeatmap(tasks []model.Task, category string, local time.Time) Heatmap {
	counts := stats.ComputeDayCounts(tasks, category, local.Location())
	return Heatmap{
		Category:  category,
		DayCounts: counts,
		Grid:      stats.BuildGrid(counts, local),
		Summary:   stats.Summarize(counts, stats.DateOf(local)),
	}
}

// clone copies the slices and pointers of h; Grid is an array and copies by value.
func (h Heatmap) clone() Heatmap {
	h.DayCounts = slices.Clone(h.DayCounts)
	if h.Summary.BusiestDay != nil {
		busiest := *h.Summary.BusiestDay
		h.Summary.BusiestDay = &busiest
	}
	return h
}

func userPrefix(userID uint) string {
	return fmt.Sprintf("%d:", userID)
}

func statsKey(userID uint) string {
	return userPrefix(userID) + "stats"
}

func heatmapKey(userID uint, day stats.Date, category string) string {
	return fmt.Sprintf("%sheatmap:%s:%s", userPrefix(userID), day, category)
}
