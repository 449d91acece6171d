package services

import (
	"context"
	"errors"
	"pi360-service/internal/domain"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeNotifications struct {
	mu      sync.Mutex
	items   []domain.Notification
	lists   int
	marked  []string
	markErr error
}

func (f *fakeNotifications) ListNotifications(context.Context) ([]domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	return append([]domain.Notification(nil), f.items...), nil
}

func (f *fakeNotifications) MarkNotificationRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	f.marked = append(f.marked, id)
	return nil
}

func (f *fakeNotifications) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

func feedIDs(ns []domain.Notification) []string {
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.ID)
	}
	return out
}

// startFeed runs the drain loop and stops it at test cleanup.
func startFeed(t *testing.T, f *NotificationFeed) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestNotificationFeed_IncrementalUpdates(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &fakeNotifications{items: []domain.Notification{{ID: "1", Title: "old"}}}
	feed := NewNotificationFeed(src, nil, 0)
	require.NoError(t, feed.Load(context.Background()))

	t.Run("drain", func(t *testing.T) {
		startFeed(t, feed)

		require.True(t, feed.Enqueue(domain.NotificationEvent{
			Kind:         domain.NotificationCreated,
			Notification: &domain.Notification{ID: "2", Title: "new"},
		}))
		require.True(t, feed.Enqueue(domain.NotificationEvent{Kind: domain.NotificationRead, NotificationID: "1"}))

		require.Eventually(t, func() bool {
			s := feed.Snapshot()
			return len(s) == 2 && s[1].IsRead
		}, 2*time.Second, 5*time.Millisecond)
	})

	assert.Equal(t, []string{"2", "1"}, feedIDs(feed.Snapshot()))
	assert.Equal(t, 1, feed.UnreadCount())
	// Incremental events never hit the backend.
	assert.Equal(t, 1, src.listCount())
}

func TestNotificationFeed_DuplicateCreateReplaces(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &fakeNotifications{items: []domain.Notification{{ID: "1", Title: "v1"}}}
	feed := NewNotificationFeed(src, nil, 4)
	require.NoError(t, feed.Load(context.Background()))

	t.Run("drain", func(t *testing.T) {
		startFeed(t, feed)
		feed.Enqueue(domain.NotificationEvent{
			Kind:         domain.NotificationCreated,
			Notification: &domain.Notification{ID: "1", Title: "v2"},
		})
		require.Eventually(t, func() bool {
			s := feed.Snapshot()
			return len(s) == 1 && s[0].Title == "v2"
		}, 2*time.Second, 5*time.Millisecond)
	})
}

func TestNotificationFeed_FallsBackToReload(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &fakeNotifications{items: []domain.Notification{{ID: "1"}}}
	feed := NewNotificationFeed(src, nil, 4)
	require.NoError(t, feed.Load(context.Background()))

	// The backend has moved on; the push events are not applicable locally.
	src.mu.Lock()
	src.items = []domain.Notification{{ID: "3"}, {ID: "1", IsRead: true}}
	src.mu.Unlock()

	t.Run("drain", func(t *testing.T) {
		startFeed(t, feed)

		feed.Enqueue(domain.NotificationEvent{Kind: domain.NotificationRead, NotificationID: "unknown"})
		require.Eventually(t, func() bool { return src.listCount() == 2 }, 2*time.Second, 5*time.Millisecond)

		feed.Enqueue(domain.NotificationEvent{Kind: domain.NotificationCreated})
		require.Eventually(t, func() bool { return src.listCount() == 3 }, 2*time.Second, 5*time.Millisecond)

		feed.Enqueue(domain.NotificationEvent{Kind: domain.NotificationResync})
		require.Eventually(t, func() bool { return src.listCount() == 4 }, 2*time.Second, 5*time.Millisecond)
	})

	assert.Equal(t, []string{"3", "1"}, feedIDs(feed.Snapshot()))
	assert.Equal(t, 1, feed.UnreadCount())
}

func TestNotificationFeed_OverflowTriggersReload(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &fakeNotifications{items: []domain.Notification{{ID: "1"}}}
	feed := NewNotificationFeed(src, nil, 1)
	require.NoError(t, feed.Load(context.Background()))

	created := func(id string) domain.NotificationEvent {
		return domain.NotificationEvent{Kind: domain.NotificationCreated, Notification: &domain.Notification{ID: id}}
	}
	require.True(t, feed.Enqueue(created("2")))
	assert.False(t, feed.Enqueue(created("3")))

	t.Run("drain", func(t *testing.T) {
		startFeed(t, feed)
		require.Eventually(t, func() bool { return src.listCount() == 2 }, 2*time.Second, 5*time.Millisecond)
	})

	// The reload replaced the incremental state with the backend's list.
	assert.Equal(t, []string{"1"}, feedIDs(feed.Snapshot()))
}

func TestNotificationFeed_MarkRead(t *testing.T) {
	src := &fakeNotifications{items: []domain.Notification{{ID: "1"}, {ID: "2"}}}
	feed := NewNotificationFeed(src, nil, 0)
	require.NoError(t, feed.Load(context.Background()))

	require.NoError(t, feed.MarkRead(context.Background(), "2"))
	assert.Equal(t, []string{"2"}, src.marked)
	assert.Equal(t, 1, feed.UnreadCount())

	assert.Error(t, feed.MarkRead(context.Background(), ""))

	src.markErr = errors.New("boom")
	assert.Error(t, feed.MarkRead(context.Background(), "1"))
	assert.Equal(t, 1, feed.UnreadCount())
}

func TestNotificationFeed_Reset(t *testing.T) {
	src := &fakeNotifications{items: []domain.Notification{{ID: "1"}}}
	feed := NewNotificationFeed(src, nil, 1)
	require.NoError(t, feed.Load(context.Background()))

	feed.Enqueue(domain.NotificationEvent{Kind: domain.NotificationResync})
	feed.Enqueue(domain.NotificationEvent{Kind: domain.NotificationResync}) // overflows

	feed.Reset()

	assert.Empty(t, feed.Snapshot())
	assert.Equal(t, 0, feed.UnreadCount())
	// Queue was drained, so there is room again.
	assert.True(t, feed.Enqueue(domain.NotificationEvent{Kind: domain.NotificationResync}))
	assert.False(t, feed.overflowed.Load())
}

// blockingNotifications holds ListNotifications until release is closed.
type blockingNotifications struct {
	fakeNotifications
	entered chan struct{}
	release chan struct{}
}

func (b *blockingNotifications) ListNotifications(ctx context.Context) ([]domain.Notification, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.fakeNotifications.ListNotifications(ctx)
}

func TestNotificationFeed_ResetDiscardsInFlightReload(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &blockingNotifications{
		fakeNotifications: fakeNotifications{items: []domain.Notification{{ID: "1", Title: "previous user"}}},
		entered:           make(chan struct{}, 1),
		release:           make(chan struct{}),
	}
	feed := NewNotificationFeed(src, nil, 4)

	t.Run("drain", func(t *testing.T) {
		startFeed(t, feed)

		require.True(t, feed.Enqueue(domain.NotificationEvent{Kind: domain.NotificationResync}))
		select {
		case <-src.entered:
		case <-time.After(2 * time.Second):
			t.Fatal("reload never reached the source")
		}

		feed.Reset()
		close(src.release)

		require.Eventually(t, func() bool { return src.listCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	})

	assert.Empty(t, feed.Snapshot())
	assert.Equal(t, 0, feed.UnreadCount())

	// Loads started after the reset apply normally.
	src.entered = make(chan struct{}, 1)
	require.NoError(t, feed.Load(context.Background()))
	assert.Equal(t, []string{"1"}, feedIDs(feed.Snapshot()))
}

func TestNotificationFeed_NoSource(t *testing.T) {
	feed := NewNotificationFeed(nil, nil, 0)

	assert.ErrorIs(t, feed.Load(context.Background()), ErrFeedUnavailable)
	assert.ErrorIs(t, feed.MarkRead(context.Background(), "1"), ErrFeedUnavailable)
	assert.Empty(t, feed.Snapshot())
}
