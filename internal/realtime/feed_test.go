package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Change) Change {
	t.Helper()
	select {
	case c, ok := <-ch:
		require.True(t, ok, "channel closed")
		return c
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change")
		return Change{}
	}
}

func assertEmpty(t *testing.T, ch <-chan Change) {
	t.Helper()
	select {
	case c := <-ch:
		t.Fatalf("unexpected change %+v", c)
	default:
	}
}

func TestMemoryFeed_RoutesByUser(t *testing.T) {
	feed := NewMemoryFeed()
	defer feed.Close()

	alice := feed.Subscribe(1)
	bob := feed.Subscribe(2)
	all := feed.Subscribe(AllUsers)

	change := NewChange(ChangeInsert, TableTasks, 1, 10)
	feed.Publish(change)

	got := receive(t, alice)
	assert.Equal(t, change.ID, got.ID)
	assert.Equal(t, ChangeInsert, got.Type)
	assert.Equal(t, TableTasks, got.Table)
	assert.Equal(t, uint(10), got.RowID)

	assert.Equal(t, change.ID, receive(t, all).ID)
	assertEmpty(t, bob)
}

func TestMemoryFeed_NonBlockingWhenFull(t *testing.T) {
	feed := NewMemoryFeed(WithBufferSize(1))
	defer feed.Close()

	ch := feed.Subscribe(1)
	feed.Publish(NewChange(ChangeUpdate, TableTasks, 1, 1))
	feed.Publish(NewChange(ChangeUpdate, TableTasks, 1, 2))

	assert.Equal(t, uint(1), receive(t, ch).RowID)
	assertEmpty(t, ch)
}

func TestMemoryFeed_Unsubscribe(t *testing.T) {
	feed := NewMemoryFeed()
	defer feed.Close()

	ch := feed.Subscribe(3)
	require.Equal(t, 1, feed.SubscriberCount(3))

	feed.Unsubscribe(3, ch)
	assert.Zero(t, feed.SubscriberCount(3))

	_, ok := <-ch
	assert.False(t, ok)

	feed.Publish(NewChange(ChangeDelete, TableTasks, 3, 1))
}

func TestMemoryFeed_Close(t *testing.T) {
	feed := NewMemoryFeed()
	ch := feed.Subscribe(1)
	feed.Close()
	feed.Close()

	_, ok := <-ch
	assert.False(t, ok)

	late := feed.Subscribe(1)
	_, ok = <-late
	assert.False(t, ok)

	feed.Publish(NewChange(ChangeInsert, TableTasks, 1, 1))
}

func TestDiscard(t *testing.T) {
	var feed Feed = Discard{}
	feed.Publish(NewChange(ChangeInsert, TableTasks, 1, 1))
	_, ok := <-feed.Subscribe(1)
	assert.False(t, ok)
}
