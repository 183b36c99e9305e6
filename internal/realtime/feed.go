// Package realtime carries row change notifications from writers to
// whoever needs to recompute derived views.
package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ChangeType says what happened to a row.
type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// Tables that publish changes.
const (
	TableTasks      = "tasks"
	TableTaskGroups = "task_groups"
	TableTimeBlocks = "time_blocks"
)

// AllUsers subscribes to changes of every user.
const AllUsers uint = 0

// Change is a notification that a row of Table owned by UserID changed.
// It deliberately carries no row contents.
type Change struct {
	ID     uuid.UUID
	Type   ChangeType
	Table  string
	UserID uint
	RowID  uint
	At     time.Time
}

// NewChange builds a Change stamped with a fresh ID and the current time.
func NewChange(typ ChangeType, table string, userID, rowID uint) Change {
	return Change{
		ID:     uuid.New(),
		Type:   typ,
		Table:  table,
		UserID: userID,
		RowID:  rowID,
		At:     time.Now(),
	}
}

// Feed publishes changes to subscribers.
type Feed interface {
	// Publish delivers c to subscribers of c.UserID and of AllUsers.
	Publish(c Change)
	// Subscribe returns a channel of changes for userID, or for everyone
	// when userID is AllUsers.
	Subscribe(userID uint) <-chan Change
	// Unsubscribe removes and closes a subscription.
	Unsubscribe(userID uint, ch <-chan Change)
	// Close closes every subscription.
	Close()
}

// MemoryFeed is an in-process Feed. Publishing never blocks: a subscriber
// whose buffer is full misses the change.
type MemoryFeed struct {
	mu          sync.RWMutex
	subscribers map[uint][]chan Change
	bufferSize  int
	closed      bool
}

// FeedOption configures a MemoryFeed.
type FeedOption func(*MemoryFeed)

// WithBufferSize sets the per-subscriber channel buffer.
func WithBufferSize(size int) FeedOption {
	return func(f *MemoryFeed) {
		f.bufferSize = size
	}
}

// NewMemoryFeed creates an empty feed.
func NewMemoryFeed(opts ...FeedOption) *MemoryFeed {
	f := &MemoryFeed{
		subscribers: make(map[uint][]chan Change),
		bufferSize:  64,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *MemoryFeed) Publish(c Change) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return
	}

	deliver(f.subscribers[c.UserID], c)
	if c.UserID != AllUsers {
		deliver(f.subscribers[AllUsers], c)
	}
}

func deliver(subs []chan Change, c Change) {
	for _, ch := range subs {
		select {
		case ch <- c:
		default:
		}
	}
}

func (f *MemoryFeed) Subscribe(userID uint) <-chan Change {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan Change, f.bufferSize)
	if f.closed {
		close(ch)
		return ch
	}
	f.subscribers[userID] = append(f.subscribers[userID], ch)
	return ch
}

func (f *MemoryFeed) Unsubscribe(userID uint, ch <-chan Change) {
	f.mu.Lock()
	defer f.mu.Unlock()

	subs := f.subscribers[userID]
	for i, sub := range subs {
		if sub == ch {
			close(sub)
			f.subscribers[userID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(f.subscribers[userID]) == 0 {
		delete(f.subscribers, userID)
	}
}

func (f *MemoryFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for userID, subs := range f.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(f.subscribers, userID)
	}
}

// SubscriberCount returns the number of subscriptions for userID.
func (f *MemoryFeed) SubscriberCount(userID uint) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers[userID])
}

// Discard is a Feed that drops everything.
type Discard struct{}

func (Discard) Publish(Change) {}

func (Discard) Subscribe(uint) <-chan Change {
	ch := make(chan Change)
	close(ch)
	return ch
}

func (Discard) Unsubscribe(uint, <-chan Change) {}

func (Discard) Close() {}
