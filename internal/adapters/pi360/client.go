package pi360

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"pi360-service/internal/platform/httpx"
	"pi360-service/internal/platform/obs"
	"pi360-service/internal/session"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	ErrUnauthorized = errors.New("pi360: unauthorized")
	ErrNotFound     = errors.New("pi360: not found")
)

// APIError is a 2xx response whose envelope reports success=false.
type APIError struct {
	Endpoint string
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pi360 %s: %s", e.Endpoint, e.Message)
}

// FormData is sent as multipart/form-data instead of JSON.
type FormData struct {
	Fields map[string]string
	Files  []FormFile
}

type FormFile struct {
	Field    string
	Filename string
	Content  []byte
}

// Client talks to the PHP backend. The bearer token is read from the injected
// session on every request; a 401 logs the session out.
//
// The client is safe for concurrent use.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	session     *session.Session
	logger      *zap.Logger
	maxAttempts int
	backoff     time.Duration
	retrier     *httpx.Retrier
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.logger = l } }

// WithRetry sets the attempt count and the first backoff delay.
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxAttempts = maxAttempts
		c.backoff = backoff
	}
}

func NewClient(baseURL string, sess *session.Session, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("pi360 client: base url is empty")
	}
	if sess == nil {
		return nil, errors.New("pi360 client: session is nil")
	}

	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("pi360 client: parse base url: %w", err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		baseURL:     u,
		session:     sess,
		logger:      zap.NewNop(),
		maxAttempts: 4,
		backoff:     200 * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}
	c.retrier = httpx.NewRetrier(c.httpClient, c.maxAttempts, c.backoff, c.logger)

	return c, nil
}

func (c *Client) endpointURL(endpoint string) (string, error) {
	ref, err := url.Parse(strings.TrimPrefix(endpoint, "/"))
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	return c.baseURL.ResolveReference(ref).String(), nil
}

// encodeBody returns a fresh reader and content type for each attempt.
func encodeBody(body any) (func() (io.Reader, string, error), error) {
	switch b := body.(type) {
	case nil:
		return func() (io.Reader, string, error) { return nil, "", nil }, nil
	case *FormData:
		return func() (io.Reader, string, error) { return encodeForm(b) }, nil
	case FormData:
		return func() (io.Reader, string, error) { return encodeForm(&b) }, nil
	default:
		payload, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		return func() (io.Reader, string, error) {
			return bytes.NewReader(payload), "application/json", nil
		}, nil
	}
}

func encodeForm(f *FormData) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range f.Fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write form field %q: %w", k, err)
		}
	}
	for _, file := range f.Files {
		part, err := w.CreateFormFile(file.Field, file.Filename)
		if err != nil {
			return nil, "", fmt.Errorf("create form file %q: %w", file.Field, err)
		}
		if _, err := part.Write(file.Content); err != nil {
			return nil, "", fmt.Errorf("write form file %q: %w", file.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}

func (c *Client) newRequest(
	ctx context.Context,
	method string,
	endpoint string,
	body io.Reader,
	contentType string,
) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if tok, err := c.session.Token(); err == nil {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if id := obs.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	return req, nil
}

type envelope struct {
	Success *bool  `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Do sends body (nil, FormData or any JSON-encodable value) to endpoint and
// decodes the JSON response into out when out is non-nil.
func (c *Client) Do(ctx context.Context, method, endpoint string, body any, out any) (err error) {
	defer obs.Time(ctx, "pi360."+endpoint)(&err)

	target, err := c.endpointURL(endpoint)
	if err != nil {
		return err
	}

	newBody, err := encodeBody(body)
	if err != nil {
		return fmt.Errorf("pi360 %s: %w", endpoint, err)
	}

	resp, err := c.retrier.Do(ctx, func() (*http.Request, error) {
		r, ct, err := newBody()
		if err != nil {
			return nil, err
		}
		return c.newRequest(ctx, method, target, r, ct)
	})
	if err != nil {
		switch httpx.StatusCode(err) {
		case http.StatusUnauthorized:
			c.session.Logout()
			return fmt.Errorf("pi360 %s: %w", endpoint, ErrUnauthorized)
		case http.StatusNotFound:
			return fmt.Errorf("pi360 %s: %w", endpoint, ErrNotFound)
		}
		return fmt.Errorf("pi360 %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("pi360 %s: read response: %w", endpoint, err)
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil {
		failed := (env.Success != nil && !*env.Success) || strings.EqualFold(env.Status, "error")
		if failed {
			msg := env.Message
			if msg == "" {
				msg = env.Error
			}
			if msg == "" {
				msg = "request failed"
			}
			return &APIError{Endpoint: endpoint, Message: msg}
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("pi360 %s: decode response: %w", endpoint, err)
	}

	return nil
}
