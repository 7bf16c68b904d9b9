package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/directchat/internal/chat"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, opts chat.Options) *chat.Service {
	t.Helper()
	svc := chat.NewService(opts, quietLogger())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return svc
}

func postRegister(t *testing.T, handler http.Handler, body string) (*httptest.ResponseRecorder, chat.RegisterResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var resp chat.RegisterResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return rr, resp
}

// TestRegisterHandler verifies status codes and payloads for the registration endpoint.
func TestRegisterHandler(t *testing.T) {
	svc := newTestService(t, chat.Options{})
	handler := RegisterHandler(svc, quietLogger())

	rr, resp := postRegister(t, handler, `{"username":"alice"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.True(t, resp.Accepted)
	assert.Equal(t, []string{}, resp.OnlineUsers)

	rr, resp = postRegister(t, handler, `{"username":"bob"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"alice"}, resp.OnlineUsers)

	rr, resp = postRegister(t, handler, `{"username":"alice"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.False(t, resp.Accepted)
	assert.Equal(t, "name already taken", resp.Reason)
	assert.Equal(t, []string{"alice", "bob"}, resp.OnlineUsers)

	rr, resp = postRegister(t, handler, `{"username":"/exit"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.False(t, resp.Accepted)

	rr, resp = postRegister(t, handler, `not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid request body", resp.Reason)
}

// TestRegisterHandlerMethods verifies that only POST is accepted.
func TestRegisterHandlerMethods(t *testing.T) {
	svc := newTestService(t, chat.Options{})
	handler := RegisterHandler(svc, quietLogger())

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/register", http.NoBody)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
		})
	}
}

// TestRegisterHandlerAfterShutdown verifies registrations are refused once the service stops.
func TestRegisterHandlerAfterShutdown(t *testing.T) {
	svc := chat.NewService(chat.Options{}, quietLogger())
	require.NoError(t, svc.Shutdown(context.Background()))

	rr, resp := postRegister(t, RegisterHandler(svc, quietLogger()), `{"username":"late"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.False(t, resp.Accepted)
}

// TestHealthHandler verifies the health endpoint reports service counters.
func TestHealthHandler(t *testing.T) {
	svc := newTestService(t, chat.Options{})
	_, err := svc.Register(context.Background(), "alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	rr := httptest.NewRecorder()
	HealthHandler(svc, quietLogger()).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var health struct {
		Status string     `json:"status"`
		Stats  chat.Stats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 1, health.Stats.Online)
	assert.Equal(t, int64(1), health.Stats.Registrations)
}

// TestChatHandlerRejectsNonGet verifies the chat endpoint only upgrades GET requests.
func TestChatHandlerRejectsNonGet(t *testing.T) {
	svc := newTestService(t, chat.Options{})

	req := httptest.NewRequest(http.MethodPost, "/chat", http.NoBody)
	rr := httptest.NewRecorder()
	ChatHandler(svc, quietLogger()).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestCloseReasonTruncates(t *testing.T) {
	long := bytes.Repeat([]byte("x"), 300)
	assert.Len(t, closeReason(io.ErrUnexpectedEOF), len(io.ErrUnexpectedEOF.Error()))
	assert.Len(t, closeReason(errString(long)), 123)
}

type errString string

func (e errString) Error() string { return string(e) }
