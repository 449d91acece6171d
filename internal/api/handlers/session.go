package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"pi360-service/internal/adapters/pi360"
	"pi360-service/internal/api/dto"
	"pi360-service/internal/session"
	"time"
)

// Authenticator exchanges credentials with the backend and ends the session.
type Authenticator interface {
	Login(ctx context.Context, email, password string) error
	Logout()
}

// SessionHandler exposes login, logout and session status.
type SessionHandler struct {
	Session *session.Session
	Auth    Authenticator
	// Called after a successful login with the signed-in user's id.
	OnLogin func(userID string)
	Now     func() time.Time
}

func (h *SessionHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.status(w, r)
	case http.MethodPost:
		h.login(w, r)
	case http.MethodDelete:
		h.logout(w, r)
	default:
		methodNotAllowed(w, r, "GET, POST, DELETE")
	}
}

func (h *SessionHandler) status(w http.ResponseWriter, r *http.Request) {
	res := dto.SessionResponse{Authenticated: h.Session.IsAuthenticated(h.now())}
	if res.Authenticated {
		res.UserID = h.Session.UserID()
	}
	WriteJSON(w, r, http.StatusOK, res)
}

func (h *SessionHandler) login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest

	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		WriteError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return
	}

	if err := h.Auth.Login(r.Context(), req.Email, req.Password); err != nil {
		// Rejected credentials come back as an API envelope failure.
		var apiErr *pi360.APIError
		if errors.As(err, &apiErr) {
			WriteError(w, r, http.StatusUnauthorized, apiErr.Message)
			return
		}
		writeFailure(w, r, "login", err)
		return
	}

	userID := h.Session.UserID()
	if h.OnLogin != nil {
		h.OnLogin(userID)
	}

	WriteJSON(w, r, http.StatusOK, dto.SessionResponse{Authenticated: true, UserID: userID})
}

func (h *SessionHandler) logout(w http.ResponseWriter, r *http.Request) {
	h.Auth.Logout()
	WriteJSON(w, r, http.StatusOK, dto.SessionResponse{Authenticated: false})
}
