package handlers

import (
	"context"
	"net/http"
	"pi360-service/internal/api/dto"
	"pi360-service/internal/domain"
	"strings"
)

type Feed interface {
	Snapshot() []domain.Notification
	UnreadCount() int
	MarkRead(ctx context.Context, id string) error
}

type NotificationHandler struct {
	Feed Feed
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	items := h.Feed.Snapshot()
	res := dto.ListNotificationsResponse{
		Notifications: make([]dto.NotificationResponse, 0, len(items)),
		UnreadCount:   h.Feed.UnreadCount(),
	}
	for _, n := range items {
		item := dto.NotificationResponse{
			ID:      n.ID,
			Title:   n.Title,
			Message: n.Message,
			Link:    n.Link,
			IsRead:  n.IsRead,
		}
		if !n.CreatedAt.IsZero() {
			t := n.CreatedAt
			item.CreatedAt = &t
		}
		res.Notifications = append(res.Notifications, item)
	}

	WriteJSON(w, r, http.StatusOK, res)
}

// MarkRead handles POST /notifications/{id}/read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		WriteError(w, r, http.StatusBadRequest, "notification id is required")
		return
	}

	if err := h.Feed.MarkRead(r.Context(), id); err != nil {
		writeFailure(w, r, "mark notification read", err)
		return
	}

	WriteJSON(w, r, http.StatusOK, map[string]any{"id": id, "unread_count": h.Feed.UnreadCount()})
}
