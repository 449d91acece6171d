package pi360

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"pi360-service/internal/domain"
	"strings"
	"time"
)

const (
	listNotificationsEndpoint = "get_notifications.php"
	markReadEndpoint          = "mark_notification_read.php"
)

// NotificationPayload is one notification as sent by the backend and the push relay.
type NotificationPayload struct {
	ID        flexString `json:"id"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Link      string     `json:"link"`
	IsRead    flexBool   `json:"is_read"`
	CreatedAt flexTime   `json:"created_at"`
}

func (p NotificationPayload) ToNotification() domain.Notification {
	return domain.Notification{
		ID:        string(p.ID),
		Title:     strings.TrimSpace(p.Title),
		Message:   strings.TrimSpace(p.Message),
		Link:      p.Link,
		IsRead:    bool(p.IsRead),
		CreatedAt: time.Time(p.CreatedAt),
	}
}

type notificationsResponse struct {
	Notifications []NotificationPayload `json:"notifications"`
}

// ListNotifications returns the signed-in user's notifications, newest first as sent.
func (c *Client) ListNotifications(ctx context.Context) ([]domain.Notification, error) {
	var res notificationsResponse
	if err := c.Do(ctx, http.MethodGet, listNotificationsEndpoint, nil, &res); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	out := make([]domain.Notification, 0, len(res.Notifications))
	for _, n := range res.Notifications {
		out = append(out, n.ToNotification())
	}
	return out, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("mark notification read: id must be non-empty")
	}
	body := map[string]string{"notification_id": id}
	if err := c.Do(ctx, http.MethodPost, markReadEndpoint, body, nil); err != nil {
		return fmt.Errorf("mark notification read %q: %w", id, err)
	}
	return nil
}
