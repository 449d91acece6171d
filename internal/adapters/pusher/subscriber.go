package pusher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"pi360-service/internal/adapters/pi360"
	"pi360-service/internal/domain"
	"pi360-service/internal/ports"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	eventConnectionEstablished = "pusher:connection_established"
	eventSubscribe             = "pusher:subscribe"
	eventSubscribed            = "pusher_internal:subscription_succeeded"
	eventPing                  = "pusher:ping"
	eventPong                  = "pusher:pong"
	eventError                 = "pusher:error"

	EventNewNotification  = "new-notification"
	EventNotificationRead = "notification-read"

	defaultChannelPrefix   = "user-"
	defaultActivityTimeout = 120 * time.Second
	pongGrace              = 30 * time.Second
)

// frame is a single Pusher protocol message. Data is either a JSON object
// or a JSON string carrying an encoded object.
type frame struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ProtocolError is a pusher:error sent by the relay.
type ProtocolError struct {
	Code    int
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("pusher error %d: %s", e.Code, e.Message)
}

// Fatal reports whether the relay asked the client not to reconnect.
func (e *ProtocolError) Fatal() bool { return e.Code >= 4000 && e.Code < 4100 }

// Subscriber listens on the user's notification channel and forwards events
// to a sink. It reconnects with exponential backoff and requests a resync
// after every reconnect, since events may have been missed while offline.
type Subscriber struct {
	endpoint      string
	channelPrefix string
	sink          ports.NotificationSink
	dialer        *websocket.Dialer
	logger        *zap.Logger
	minBackoff    time.Duration
	maxBackoff    time.Duration
}

type Option func(*Subscriber)

// WithEndpoint overrides the websocket URL derived from key and cluster.
func WithEndpoint(u string) Option { return func(s *Subscriber) { s.endpoint = u } }

func WithChannelPrefix(p string) Option {
	return func(s *Subscriber) {
		if p != "" {
			s.channelPrefix = p
		}
	}
}

func WithLogger(l *zap.Logger) Option { return func(s *Subscriber) { s.logger = l } }

func WithBackoff(minDelay, maxDelay time.Duration) Option {
	return func(s *Subscriber) { s.minBackoff, s.maxBackoff = minDelay, maxDelay }
}

func NewSubscriber(key, cluster string, sink ports.NotificationSink, opts ...Option) (*Subscriber, error) {
	if sink == nil {
		return nil, errors.New("new pusher subscriber: sink is nil")
	}

	s := &Subscriber{
		channelPrefix: defaultChannelPrefix,
		sink:          sink,
		dialer:        websocket.DefaultDialer,
		logger:        zap.NewNop(),
		minBackoff:    time.Second,
		maxBackoff:    time.Minute,
	}
	for _, o := range opts {
		o(s)
	}

	if s.endpoint == "" {
		if key == "" || cluster == "" {
			return nil, errors.New("new pusher subscriber: key and cluster are required")
		}
		s.endpoint = fmt.Sprintf(
			"wss://ws-%s.pusher.com/app/%s?protocol=7&client=pi360-service&version=1.0",
			url.PathEscape(cluster), url.PathEscape(key),
		)
	}

	return s, nil
}

// Channel returns the channel name for a user.
func (s *Subscriber) Channel(userID string) string { return s.channelPrefix + userID }

// Run keeps a subscription open until ctx is cancelled or the relay reports
// a fatal protocol error.
func (s *Subscriber) Run(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("pusher subscriber: user id must be non-empty")
	}
	channel := s.Channel(userID)

	backoff := s.minBackoff
	connectedBefore := false
	for {
		err := s.listen(ctx, channel, func() {
			if connectedBefore {
				s.sink.Enqueue(domain.NotificationEvent{Kind: domain.NotificationResync})
			}
			connectedBefore = true
			backoff = s.minBackoff
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var perr *ProtocolError
		if errors.As(err, &perr) && perr.Fatal() {
			return fmt.Errorf("pusher subscriber %s: %w", channel, err)
		}

		s.logger.Warn("pusher connection lost, reconnecting",
			zap.String("channel", channel),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		backoff = min(backoff*2, s.maxBackoff)
	}
}

// listen runs one connection until it fails or ctx is cancelled.
func (s *Subscriber) listen(ctx context.Context, channel string, onSubscribed func()) error {
	conn, _, err := s.dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	activity, err := awaitEstablished(conn)
	if err != nil {
		return err
	}

	var writeMu sync.Mutex
	write := func(f frame) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(f)
	}

	sub, _ := json.Marshal(map[string]string{"channel": channel})
	if err := write(frame{Event: eventSubscribe, Data: sub}); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	onSubscribed()

	// Keep the connection alive when the relay is quiet.
	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		tick := time.NewTicker(activity)
		defer tick.Stop()
		for {
			select {
			case <-pingDone:
				return
			case <-tick.C:
				if err := write(frame{Event: eventPing, Data: json.RawMessage(`{}`)}); err != nil {
					return
				}
			}
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(activity + pongGrace))

		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		switch f.Event {
		case eventPing:
			if err := write(frame{Event: eventPong, Data: json.RawMessage(`{}`)}); err != nil {
				return fmt.Errorf("pong: %w", err)
			}
		case eventPong:
		case eventSubscribed:
			s.logger.Debug("pusher subscribed", zap.String("channel", f.Channel))
		case eventError:
			return decodeProtocolError(f.Data)
		case EventNewNotification, EventNotificationRead:
			if f.Channel != "" && f.Channel != channel {
				continue
			}
			evt := translate(f)
			if evt.Kind == domain.NotificationResync {
				s.logger.Warn("undecodable pusher payload, requesting resync",
					zap.String("event", f.Event),
					zap.ByteString("data", f.Data),
				)
			}
			s.sink.Enqueue(evt)
		default:
			s.logger.Debug("ignoring pusher event", zap.String("event", f.Event))
		}
	}
}

func awaitEstablished(conn *websocket.Conn) (time.Duration, error) {
	_ = conn.SetReadDeadline(time.Now().Add(defaultActivityTimeout))

	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		return 0, fmt.Errorf("await connection: %w", err)
	}
	if f.Event == eventError {
		return 0, decodeProtocolError(f.Data)
	}
	if f.Event != eventConnectionEstablished {
		return 0, fmt.Errorf("await connection: unexpected event %q", f.Event)
	}

	var est struct {
		SocketID        string `json:"socket_id"`
		ActivityTimeout int    `json:"activity_timeout"`
	}
	if err := json.Unmarshal(unwrapData(f.Data), &est); err != nil {
		return 0, fmt.Errorf("await connection: decode: %w", err)
	}
	if est.ActivityTimeout <= 0 {
		return defaultActivityTimeout, nil
	}
	return time.Duration(est.ActivityTimeout) * time.Second, nil
}

func decodeProtocolError(raw json.RawMessage) error {
	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(unwrapData(raw), &body)
	return &ProtocolError{Code: body.Code, Message: body.Message}
}

// unwrapData returns the object bytes whether data was sent as an object or
// as a JSON-encoded string.
func unwrapData(raw json.RawMessage) []byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return []byte(s)
		}
	}
	return raw
}

// translate maps a channel event onto a feed event. Anything that cannot be
// decoded becomes a resync.
func translate(f frame) domain.NotificationEvent {
	resync := domain.NotificationEvent{Kind: domain.NotificationResync}
	data := unwrapData(f.Data)

	switch f.Event {
	case EventNewNotification:
		var p pi360.NotificationPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return resync
		}
		n := p.ToNotification()
		if n.ID == "" {
			return resync
		}
		return domain.NotificationEvent{Kind: domain.NotificationCreated, Notification: &n}

	case EventNotificationRead:
		var p struct {
			NotificationID json.RawMessage `json:"notification_id"`
			ID             json.RawMessage `json:"id"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return resync
		}
		id := rawID(p.NotificationID)
		if id == "" {
			id = rawID(p.ID)
		}
		if id == "" {
			return resync
		}
		return domain.NotificationEvent{Kind: domain.NotificationRead, NotificationID: id}
	}

	return resync
}

func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
