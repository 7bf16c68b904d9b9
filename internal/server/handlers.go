// Package server exposes HTTP handlers for registration, the WebSocket chat
// stream and health checks.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/directchat/internal/chat"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// RegisterHandler reserves a username. It answers 200 when accepted, 409 when
// the name is taken and 400 for malformed requests or invalid names.
func RegisterHandler(svc *chat.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed. Registration only accepts POST requests.", http.StatusMethodNotAllowed)
			return
		}

		var req chat.RegisterRequest
		body := http.MaxBytesReader(w, r.Body, 4096)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			writeJSON(w, logger, http.StatusBadRequest, chat.RegisterResponse{
				Reason:      "invalid request body",
				OnlineUsers: svc.Online(),
			})
			return
		}

		res, err := svc.Register(r.Context(), req.Username)
		resp := chat.RegisterResponse{
			Accepted:    res.Accepted,
			Reason:      res.Reason,
			OnlineUsers: res.Online,
		}
		if resp.OnlineUsers == nil {
			resp.OnlineUsers = []string{}
		}

		switch {
		case err == nil:
			writeJSON(w, logger, http.StatusOK, resp)
		case errors.Is(err, chat.ErrNameTaken):
			writeJSON(w, logger, http.StatusConflict, resp)
		case errors.Is(err, chat.ErrInvalidName):
			writeJSON(w, logger, http.StatusBadRequest, resp)
		case errors.Is(err, chat.ErrShuttingDown):
			resp.Reason = err.Error()
			writeJSON(w, logger, http.StatusServiceUnavailable, resp)
		default:
			logger.Error("registration failed", "error", err)
			resp.Reason = "internal error"
			writeJSON(w, logger, http.StatusInternalServerError, resp)
		}
	}
}

// ChatHandler upgrades the request to a WebSocket and serves one chat
// stream on it until the stream ends.
func ChatHandler(svc *chat.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}

		cfg := CurrentConfig()
		stream := newWSStream(conn, r.RemoteAddr, cfg.MaxMessageSize, logger)
		go stream.keepAlive()

		err = svc.Chat(r.Context(), stream)
		switch {
		case err == nil:
			stream.Close(websocket.CloseNormalClosure, "bye")
		case errors.Is(err, chat.ErrServerBusy), errors.Is(err, chat.ErrShuttingDown):
			stream.Close(websocket.CloseTryAgainLater, closeReason(err))
		case errors.Is(err, io.EOF):
			stream.Close(websocket.CloseNormalClosure, "")
		default:
			stream.Close(websocket.ClosePolicyViolation, closeReason(err))
		}
	}
}

// HealthHandler reports service status and counters as JSON.
func HealthHandler(svc *chat.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		health := struct {
			Status string     `json:"status"`
			Stats  chat.Stats `json:"stats"`
		}{
			Status: "healthy",
			Stats:  svc.Stats(),
		}
		writeJSON(w, logger, http.StatusOK, health)
	}
}

// closeReason fits an error into the 123 bytes a close frame can carry.
func closeReason(err error) string {
	const maxReason = 123
	reason := err.Error()
	if len(reason) > maxReason {
		reason = reason[:maxReason]
	}
	return reason
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("error writing JSON response", "error", err)
	}
}
