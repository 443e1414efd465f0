package webhook

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jacfogel/MHM-sub009/internal/core"
)

type fakeNotifier struct {
	accept bool
	calls  []string
	text   string
}

func (f *fakeNotifier) SendNotification(userID, text string, rich *core.RichPayload, suggestions []string) bool {
	f.calls = append(f.calls, userID)
	f.text = text
	return f.accept
}

type fakeStatus struct {
	snap core.ConnectionSnapshot
}

func (f *fakeStatus) Snapshot() core.ConnectionSnapshot { return f.snap }

func newTestServer(t *testing.T, notifier Notifier, status StatusSource) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return NewServer("test-secret", notifier, status)
}

func doRequest(srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	w := doRequest(srv, "GET", "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestStatusEndpoint(t *testing.T) {
	status := &fakeStatus{snap: core.ConnectionSnapshot{
		Status:             core.StatusConnected,
		OnReadyFired:       true,
		EventsRegistered:   true,
		CommandsRegistered: true,
		ReconnectAttempts:  2,
	}}
	srv := newTestServer(t, nil, status)

	w := doRequest(srv, "GET", "/api/status", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		Healthy    bool                    `json:"healthy"`
		Connection core.ConnectionSnapshot `json:"connection"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.Healthy)
	assert.Equal(t, core.StatusConnected, got.Connection.Status)
	assert.Equal(t, 2, got.Connection.ReconnectAttempts)
}

func TestStatusEndpointWithoutSource(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	w := doRequest(srv, "GET", "/api/status", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestNotifyRequiresAuth(t *testing.T) {
	notifier := &fakeNotifier{accept: true}
	srv := newTestServer(t, notifier, nil)

	w := doRequest(srv, "POST", "/api/notify", "", map[string]string{
		"user_id": "u1", "message": "hi",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, notifier.calls)
}

func TestNotifyRejectsBadToken(t *testing.T) {
	notifier := &fakeNotifier{accept: true}
	srv := newTestServer(t, notifier, nil)

	w := doRequest(srv, "POST", "/api/notify", "not-a-token", map[string]string{
		"user_id": "u1", "message": "hi",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, notifier.calls)
}

func TestNotifyRejectsTokenFromOtherSecret(t *testing.T) {
	notifier := &fakeNotifier{accept: true}
	srv := newTestServer(t, notifier, nil)

	other, err := NewTokenManager("other-secret").GenerateToken("intruder")
	require.NoError(t, err)

	w := doRequest(srv, "POST", "/api/notify", other, map[string]string{
		"user_id": "u1", "message": "hi",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, notifier.calls)
}

func TestNotifyDelivers(t *testing.T) {
	notifier := &fakeNotifier{accept: true}
	srv := newTestServer(t, notifier, nil)

	token, err := srv.Tokens().GenerateToken("scheduler")
	require.NoError(t, err)

	w := doRequest(srv, "POST", "/api/notify", token, map[string]any{
		"user_id":     "u1",
		"message":     "time to check in",
		"suggestions": []string{"start checkin"},
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"u1"}, notifier.calls)
	assert.Equal(t, "time to check in", notifier.text)
	assert.Contains(t, w.Body.String(), "true")
}

func TestNotifyReportsQueueRefusal(t *testing.T) {
	notifier := &fakeNotifier{accept: false}
	srv := newTestServer(t, notifier, nil)

	token, err := srv.Tokens().GenerateToken("scheduler")
	require.NoError(t, err)

	w := doRequest(srv, "POST", "/api/notify", token, map[string]string{
		"user_id": "u1", "message": "hi",
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, []string{"u1"}, notifier.calls)
}

func TestNotifyValidatesBody(t *testing.T) {
	notifier := &fakeNotifier{accept: true}
	srv := newTestServer(t, notifier, nil)

	token, err := srv.Tokens().GenerateToken("scheduler")
	require.NoError(t, err)

	// Missing message.
	w := doRequest(srv, "POST", "/api/notify", token, map[string]string{"user_id": "u1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing user_id.
	w = doRequest(srv, "POST", "/api/notify", token, map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, notifier.calls)
}

func TestTokenRoundTrip(t *testing.T) {
	mgr := NewTokenManager("secret")
	token, err := mgr.GenerateToken("cli")
	require.NoError(t, err)

	claims, err := mgr.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "cli", claims.Caller)
	assert.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestValidateBearerFormat(t *testing.T) {
	mgr := NewTokenManager("secret")
	token, err := mgr.GenerateToken("cli")
	require.NoError(t, err)

	_, err = mgr.ValidateBearer("Bearer " + token)
	assert.NoError(t, err)

	_, err = mgr.ValidateBearer(token)
	assert.Error(t, err)

	_, err = mgr.ValidateBearer("Basic " + token)
	assert.Error(t, err)
}
