package pi360

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"pi360-service/internal/session"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc, sess *session.Session) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL+"/lawyer/api", sess, WithRetry(3, time.Millisecond))
	require.NoError(t, err)
	return c
}

func TestListFacilities_ParsesStringCoordinates(t *testing.T) {
	var gotAuth, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		io.WriteString(w, `{"locations":[
			{"id":"1","name":" North Clinic ","address":"1 Main St","lat":"39.9","lng":"-98.6","specialities":"MRI, Chiro"},
			{"id":2,"name":"South","address":"2 Main St","lat":40.1,"lng":-98.2},
			{"id":"3","name":"Broken","address":"?","lat":"n/a","lng":""}
		]}`)
	}, session.New("tok"))

	fs, err := c.ListFacilities(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "/lawyer/api/service_locations.php", gotPath)

	require.Len(t, fs, 3)
	assert.Equal(t, "1", fs[0].ID)
	assert.Equal(t, "North Clinic", fs[0].Name)
	assert.InDelta(t, 39.9, fs[0].Latitude, 1e-9)
	assert.InDelta(t, -98.6, fs[0].Longitude, 1e-9)
	assert.Equal(t, []string{"MRI", "Chiro"}, fs[0].Specialties)

	assert.Equal(t, "2", fs[1].ID)
	assert.Nil(t, fs[1].Specialties)

	assert.True(t, math.IsNaN(fs[2].Latitude))
	assert.True(t, math.IsNaN(fs[2].Longitude))
}

func TestDo_UnauthorizedLogsOut(t *testing.T) {
	sess := session.New("tok")
	loggedOut := false
	sess.OnLogout(func() { loggedOut = true })

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, sess)

	_, err := c.ListFacilities(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.True(t, loggedOut)
	assert.False(t, sess.IsAuthenticated(time.Now()))
}

func TestDo_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `{"locations":[]}`)
	}, session.New("tok"))

	fs, err := c.ListFacilities(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fs)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}, session.New("tok"))

	_, err := c.ListFacilities(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_EnvelopeFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":false,"message":"Invalid credentials"}`)
	}, session.New(""))

	err := c.Login(context.Background(), "a@b.c", "pw")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid credentials", apiErr.Message)
}

func TestLogin_StoresToken(t *testing.T) {
	sess := session.New("")
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("Authorization"))

		var body loginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "staff@example.com", body.Email)

		io.WriteString(w, `{"success":true,"token":"new-token"}`)
	}, sess)

	require.NoError(t, c.Login(context.Background(), " staff@example.com ", "secret"))
	tok, err := sess.Token()
	require.NoError(t, err)
	assert.Equal(t, "new-token", tok)
}

func TestDo_FormData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "42", r.FormValue("case_id"))

		f, hdr, err := r.FormFile("document")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		assert.Equal(t, "report.pdf", hdr.Filename)
		assert.Equal(t, "%PDF", string(b))

		io.WriteString(w, `{"success":true}`)
	}, session.New("tok"))

	form := &FormData{
		Fields: map[string]string{"case_id": "42"},
		Files:  []FormFile{{Field: "document", Filename: "report.pdf", Content: []byte("%PDF")}},
	}
	require.NoError(t, c.Do(context.Background(), http.MethodPost, "upload_document.php", form, nil))
}

func TestNotifications(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/lawyer/api/get_notifications.php", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"notifications":[
			{"id":7,"title":"New referral","message":"Case 12","is_read":"0","created_at":"2026-03-01 10:00:00"},
			{"id":"6","title":"Task due","is_read":1}
		]}`)
	})
	var marked string
	mux.HandleFunc("/lawyer/api/mark_notification_read.php", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		marked = body["notification_id"]
		io.WriteString(w, `{"success":true}`)
	})

	c := newTestClient(t, mux.ServeHTTP, session.New("tok"))

	ns, err := c.ListNotifications(context.Background())
	require.NoError(t, err)
	require.Len(t, ns, 2)
	assert.Equal(t, "7", ns[0].ID)
	assert.False(t, ns[0].IsRead)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), ns[0].CreatedAt)
	assert.True(t, ns[1].IsRead)

	require.NoError(t, c.MarkNotificationRead(context.Background(), "7"))
	assert.Equal(t, "7", marked)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient("", session.New("x"))
	assert.Error(t, err)
	_, err = NewClient("https://example.test", nil)
	assert.Error(t, err)
}
