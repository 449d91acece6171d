package services

import (
	"context"
	"errors"
	"fmt"
	"pi360-service/internal/domain"
	"pi360-service/internal/ports"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

const defaultFeedQueueSize = 64

// ErrFeedUnavailable is returned when the feed has no notification backend.
var ErrFeedUnavailable = errors.New("notification feed unavailable")

// NotificationFeed keeps the signed-in user's notifications current.
//
// Push events are queued by Enqueue and applied one at a time by Run as
// incremental updates (append / mark read). Events that cannot be applied
// incrementally, and queue overflow, fall back to a full reload from the
// source. State is newest first.
type NotificationFeed struct {
	source ports.NotificationSource
	logger *zap.Logger
	events chan domain.NotificationEvent

	// Set when an event was dropped; the drain loop reloads once.
	overflowed atomic.Bool

	mu    sync.RWMutex
	items []domain.Notification
	// Bumped by Reset; a Load started under an older generation is discarded.
	gen uint64
}

func NewNotificationFeed(source ports.NotificationSource, logger *zap.Logger, queueSize int) *NotificationFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = defaultFeedQueueSize
	}
	return &NotificationFeed{
		source: source,
		logger: logger,
		events: make(chan domain.NotificationEvent, queueSize),
	}
}

// Load replaces the feed with the full list from the source.
func (f *NotificationFeed) Load(ctx context.Context) error {
	if f.source == nil {
		return fmt.Errorf("notification feed: load: %w", ErrFeedUnavailable)
	}

	f.mu.RLock()
	gen := f.gen
	f.mu.RUnlock()

	items, err := f.source.ListNotifications(ctx)
	if err != nil {
		return fmt.Errorf("notification feed: load: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gen != gen {
		f.logger.Debug("discarding notifications loaded before reset")
		return nil
	}
	f.items = slices.Clone(items)

	return nil
}

// Enqueue queues an event without blocking. It reports false when the queue
// is full; the next drained event then triggers a full reload.
func (f *NotificationFeed) Enqueue(evt domain.NotificationEvent) bool {
	select {
	case f.events <- evt:
		return true
	default:
		f.overflowed.Store(true)
		f.logger.Warn("notification queue full, scheduling reload", zap.String("kind", string(evt.Kind)))
		return false
	}
}

// Run drains the event queue until ctx is cancelled.
func (f *NotificationFeed) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt := <-f.events:
			f.mu.RLock()
			gen := f.gen
			f.mu.RUnlock()
			f.apply(ctx, evt, gen)
			if f.overflowed.Swap(false) {
				f.reload(ctx)
			}
		}
	}
}

func (f *NotificationFeed) apply(ctx context.Context, evt domain.NotificationEvent, gen uint64) {
	switch evt.Kind {
	case domain.NotificationCreated:
		if evt.Notification == nil || evt.Notification.ID == "" {
			f.reload(ctx)
			return
		}
		f.prepend(*evt.Notification, gen)
	case domain.NotificationRead:
		if !f.markLocal(evt.NotificationID) {
			f.reload(ctx)
		}
	default:
		f.reload(ctx)
	}
}

func (f *NotificationFeed) reload(ctx context.Context) {
	if err := f.Load(ctx); err != nil {
		f.logger.Error("notification feed reload failed", zap.Error(err))
	}
}

func (f *NotificationFeed) prepend(n domain.Notification, gen uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.gen != gen {
		return
	}

	for i := range f.items {
		if f.items[i].ID == n.ID {
			f.items[i] = n
			return
		}
	}
	f.items = append([]domain.Notification{n}, f.items...)
}

func (f *NotificationFeed) markLocal(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].IsRead = true
			return true
		}
	}
	return false
}

// MarkRead marks a notification read remotely, then locally.
func (f *NotificationFeed) MarkRead(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("notification feed: mark read: id must be non-empty")
	}
	if f.source == nil {
		return fmt.Errorf("notification feed: mark read: %w", ErrFeedUnavailable)
	}
	if err := f.source.MarkNotificationRead(ctx, id); err != nil {
		return fmt.Errorf("notification feed: mark read %q: %w", id, err)
	}
	f.markLocal(id)
	return nil
}

// Snapshot returns a copy of the current feed, newest first.
func (f *NotificationFeed) Snapshot() []domain.Notification {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.items)
}

func (f *NotificationFeed) UnreadCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := 0
	for _, it := range f.items {
		if !it.IsRead {
			n++
		}
	}
	return n
}

// Reset empties the feed and discards queued events (used on logout).
func (f *NotificationFeed) Reset() {
	f.mu.Lock()
	f.items = nil
	f.gen++
	f.mu.Unlock()

	for {
		select {
		case <-f.events:
		default:
			f.overflowed.Store(false)
			return
		}
	}
}
