package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"pi360-service/internal/api"
	"pi360-service/internal/api/handlers"
	"pi360-service/internal/app"
	"pi360-service/internal/config"
	"pi360-service/internal/domain"
	"pi360-service/internal/platform/logging"
	"pi360-service/internal/ports"
	"pi360-service/internal/services"
	"pi360-service/internal/session"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// main is the application composition root.
// It wires concrete adapters (PHP API, SQLite/postgres, ORS, Pusher) behind ports and starts the HTTP server.
func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load(config.Get("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Info("no .env file found (using environment variables)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	comps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	locator := services.NewLocator(comps.Facilities, comps.Geocoder, logger)

	// The feed only has a backend when the PHP API is configured.
	var notifications ports.NotificationSource
	if comps.Client != nil {
		notifications = comps.Client
	}
	feed := services.NewNotificationFeed(notifications, logger, 0)
	go func() {
		if err := feed.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("notification feed stopped", zap.Error(err))
		}
	}()

	rt := newRealtime(ctx, cfg.Pusher, feed, notifications != nil, logger)
	comps.Session.OnLogout(func() {
		rt.stop()
		feed.Reset()
	})
	if comps.Session.IsAuthenticated(time.Now()) {
		rt.start(comps.Session.UserID())
	}

	var auth handlers.Authenticator = offlineAuth{sess: comps.Session}
	if comps.Client != nil {
		auth = comps.Client
	} else {
		logger.Warn("PI360_API_BASE_URL not set; login is unavailable")
	}

	router := api.NewRouter(api.Deps{
		Logger:        logger,
		Session:       comps.Session,
		Auth:          auth,
		Locator:       locator,
		Feed:          feed,
		DefaultPolicy: domain.NewProximityPolicy(cfg.Locator.RadiusMiles, cfg.Locator.MaxResults),
		OnLogin:       rt.start,
	})

	// Geocoding plus the facility fetch can be slow on a cold cache.
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	rt.stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// offlineAuth backs /session when no PHP API is configured. A token may
// still be supplied through PI360_TOKEN.
type offlineAuth struct{ sess *session.Session }

func (offlineAuth) Login(context.Context, string, string) error {
	return fmt.Errorf("login: %w", handlers.ErrUnavailable)
}

func (a offlineAuth) Logout() { a.sess.Logout() }
