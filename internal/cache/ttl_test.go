package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestTTL_GetSetExpire(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := New[int](5*time.Minute, WithClock[int](clock.Now))

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", 42)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	clock.Advance(4*time.Minute + 59*time.Second)
	_, ok = c.Get("a")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Zero(t, c.Len(), "stale entry removed on read")
}

func TestTTL_Disabled(t *testing.T) {
	c := New[string](0)
	c.Set("a", "x")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestTTL_Invalidate(t *testing.T) {
	c := New[int](time.Minute)
	c.Set("stats:1", 1)
	c.Set("heatmap:1:work", 2)
	c.Set("heatmap:1:", 3)
	c.Set("heatmap:2:work", 4)

	c.Invalidate("stats:1")
	_, ok := c.Get("stats:1")
	assert.False(t, ok)

	assert.Equal(t, 2, c.InvalidatePrefix("heatmap:1:"))
	_, ok = c.Get("heatmap:2:work")
	assert.True(t, ok)
}

func TestTTL_Sweep(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := New[int](time.Minute, WithClock[int](clock.Now))

	c.Set("old", 1)
	clock.Advance(2 * time.Minute)
	c.Set("new", 2)

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())
}

func TestTTL_ConcurrentAccess(t *testing.T) {
	c := New[int](time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%5))
			c.Set(key, i)
			c.Get(key)
			c.InvalidatePrefix("z")
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 5)
}
