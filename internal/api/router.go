package api

import (
	"net/http"
	"pi360-service/internal/api/handlers"
	"pi360-service/internal/domain"
	"pi360-service/internal/session"

	"go.uber.org/zap"
)

type Deps struct {
	Logger        *zap.Logger
	Session       *session.Session
	Auth          handlers.Authenticator
	Locator       handlers.Locator
	Feed          handlers.Feed
	DefaultPolicy domain.ProximityPolicy
	// Optional; see handlers.SessionHandler.OnLogin.
	OnLogin func(userID string)
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	mux := http.NewServeMux()

	sessHandler := &handlers.SessionHandler{Session: d.Session, Auth: d.Auth, OnLogin: d.OnLogin}
	locHandler := &handlers.LocationHandler{Locator: d.Locator, DefaultPolicy: d.DefaultPolicy}
	notifHandler := &handlers.NotificationHandler{Feed: d.Feed}

	mux.HandleFunc("/health", handlers.Health)
	mux.Handle("/session", sessHandler)
	mux.HandleFunc("/locations", locHandler.List)
	mux.HandleFunc("/locations/export", locHandler.Export)
	mux.HandleFunc("/notifications", notifHandler.List)
	mux.HandleFunc("/notifications/{id}/read", notifHandler.MarkRead)

	var h http.Handler = mux
	h = requireAuth(d.Session, []string{"/health", "/session"}, h)
	h = loggingMiddleware(h)
	h = requestIDMiddleware(d.Logger, h)
	return h
}
