package main

import (
	"context"
	"errors"
	"pi360-service/internal/adapters/pusher"
	"pi360-service/internal/config"
	"pi360-service/internal/services"
	"sync"
	"time"

	"go.uber.org/zap"
)

// realtime owns the push subscription for the signed-in user. Login starts
// it (replacing any previous one); logout stops it.
type realtime struct {
	parent  context.Context
	cfg     config.PusherConfig
	feed    *services.NotificationFeed
	enabled bool
	logger  *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

func newRealtime(
	ctx context.Context,
	cfg config.PusherConfig,
	feed *services.NotificationFeed,
	enabled bool,
	logger *zap.Logger,
) *realtime {
	return &realtime{parent: ctx, cfg: cfg, feed: feed, enabled: enabled, logger: logger}
}

func (rt *realtime) start(userID string) {
	if !rt.enabled {
		return
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.cancel != nil {
		rt.cancel()
	}
	ctx, cancel := context.WithCancel(rt.parent)
	rt.cancel = cancel

	go func() {
		loadCtx, done := context.WithTimeout(ctx, 30*time.Second)
		defer done()
		if err := rt.feed.Load(loadCtx); err != nil {
			rt.logger.Warn("initial notification load failed", zap.Error(err))
		}
	}()

	if rt.cfg.Key == "" || userID == "" {
		rt.logger.Info("push relay disabled",
			zap.Bool("key_set", rt.cfg.Key != ""),
			zap.String("user_id", userID),
		)
		return
	}

	sub, err := pusher.NewSubscriber(rt.cfg.Key, rt.cfg.Cluster, rt.feed,
		pusher.WithChannelPrefix(rt.cfg.ChannelPrefix),
		pusher.WithLogger(rt.logger),
	)
	if err != nil {
		rt.logger.Error("push relay subscriber", zap.Error(err))
		return
	}

	go func() {
		err := sub.Run(ctx, userID)
		if err != nil && !errors.Is(err, context.Canceled) {
			rt.logger.Error("push relay stopped", zap.Error(err))
		}
	}()
}

func (rt *realtime) stop() {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.cancel != nil {
		rt.cancel()
		rt.cancel = nil
	}
}
