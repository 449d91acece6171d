package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"pi360-service/internal/adapters/pi360"
	"pi360-service/internal/domain"
	"pi360-service/internal/platform/httpx"
	"pi360-service/internal/platform/obs"
	"pi360-service/internal/services"

	"go.uber.org/zap"
)

// ErrUnavailable marks features that are not configured on this instance.
var ErrUnavailable = errors.New("not available")

func WriteJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		obs.Logger(r.Context()).Error("encode failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	WriteJSON(w, r, status, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allow string) {
	w.Header().Set("Allow", allow)
	WriteError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

// statusFor maps service and adapter errors onto HTTP statuses.
func statusFor(err error) int {
	var (
		apiErr    *pi360.APIError
		statusErr *httpx.StatusError
		urlErr    *url.Error
	)
	switch {
	case errors.Is(err, domain.ErrInvalidPolicy),
		errors.Is(err, domain.ErrInvalidPoint),
		errors.Is(err, pi360.ErrMissingCredentials):
		return http.StatusBadRequest
	case errors.Is(err, pi360.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrAddressNotFound), errors.Is(err, pi360.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnavailable), errors.Is(err, services.ErrFeedUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &apiErr), errors.As(err, &statusErr), errors.As(err, &urlErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeFailure logs err and responds with its mapped status. Server-side
// failures get a generic message.
func writeFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	obs.Logger(r.Context()).Warn(op+" failed",
		zap.Int("status", status),
		zap.Error(err),
	)

	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		msg = "internal server error"
	case http.StatusBadGateway:
		msg = "upstream service error"
	case http.StatusUnauthorized:
		msg = "unauthorized"
	}
	WriteError(w, r, status, msg)
}
