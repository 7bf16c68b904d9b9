// Package testhelpers provides common utilities and helper functions for testing the chat relay.
//
// It contains reusable test utilities shared across package tests: creating test
// servers, making HTTP requests, registering users and driving chat WebSockets.
package testhelpers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/directchat/internal/chat"
)

// TestOrigin is the browser origin allowed by the default configuration.
const TestOrigin = "http://localhost:8080"

// CreateTestServer creates a test HTTP server with the given handler.
// It returns a running httptest.Server that is closed when the test ends.
func CreateTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// WebSocketURL converts an http:// test server URL into the ws:// chat URL.
func WebSocketURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + "/chat"
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

// Register posts a registration for username and returns the decoded response
// along with the HTTP status code.
func Register(t *testing.T, serverURL, username string) (chat.RegisterResponse, int) {
	t.Helper()

	body, err := json.Marshal(chat.RegisterRequest{Username: username})
	if err != nil {
		t.Fatalf("Failed to encode registration: %v", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(serverURL+"/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to register %q: %v", username, err)
	}
	defer resp.Body.Close()

	var out chat.RegisterResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("Failed to decode registration response: %v", err)
	}
	return out, resp.StatusCode
}

// ConnectWebSocket creates a WebSocket connection to the specified URL with
// the given Origin header. An empty origin sends no header.
func ConnectWebSocket(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// OpenChat dials the chat endpoint for an already registered username, sends
// the handshake and consumes the welcome notice and initial presence update.
func OpenChat(t *testing.T, serverURL, username string) *websocket.Conn {
	t.Helper()

	conn, err := ConnectWebSocket(WebSocketURL(serverURL), TestOrigin)
	if err != nil {
		t.Fatalf("Failed to connect %q: %v", username, err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	if err := SendChat(conn, username, "", ""); err != nil {
		t.Fatalf("Failed to send handshake for %q: %v", username, err)
	}

	welcome := ExpectMessage(t, conn, 2*time.Second)
	if welcome.Kind != chat.KindNotice || welcome.Event != chat.EventWelcome {
		t.Fatalf("Expected welcome notice, got %+v", welcome)
	}
	if presence := ExpectMessage(t, conn, 2*time.Second); presence.Kind != chat.KindPresence {
		t.Fatalf("Expected presence update, got %+v", presence)
	}
	return conn
}

// SendChat writes one client frame.
func SendChat(conn *websocket.Conn, sender, recipient, content string) error {
	return conn.WriteJSON(chat.ClientMessage{
		Sender:    sender,
		Recipient: recipient,
		Content:   content,
	})
}

// ReceiveMessage reads one server frame with a deadline.
func ReceiveMessage(conn *websocket.Conn, timeout time.Duration) (chat.ServerMessage, error) {
	var msg chat.ServerMessage
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return msg, err
	}
	err := conn.ReadJSON(&msg)
	return msg, err
}

// ExpectMessage reads one server frame or fails the test.
func ExpectMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) chat.ServerMessage {
	t.Helper()
	msg, err := ReceiveMessage(conn, timeout)
	if err != nil {
		t.Fatalf("Failed to receive server message: %v", err)
	}
	return msg
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
