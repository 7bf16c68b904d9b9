// Package server adapts gorilla WebSocket connections to the chat stream
// interface, handling deadlines, keepalive pings and close classification.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/directchat/internal/chat"
)

// wsStream carries chat frames as JSON text messages over one connection.
// gorilla allows one concurrent reader and one concurrent writer, so writes
// from the handler and the ping loop share writeMu.
type wsStream struct {
	conn   *websocket.Conn
	addr   string
	logger *slog.Logger

	writeMu      sync.Mutex
	pongWait     time.Duration
	pingInterval time.Duration
	writeWait    time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

func newWSStream(conn *websocket.Conn, addr string, maxMessageSize int64, logger *slog.Logger) *wsStream {
	if logger == nil {
		logger = slog.Default()
	}
	s := &wsStream{
		conn:         conn,
		addr:         addr,
		logger:       logger.With("remote", addr),
		pongWait:     DefaultPongWait,
		pingInterval: DefaultPingInterval,
		writeWait:    DefaultWriteWait,
		done:         make(chan struct{}),
	}
	conn.SetReadLimit(maxMessageSize)
	s.setupReadConnection()
	return s
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (s *wsStream) setupReadConnection() {
	if err := s.conn.SetReadDeadline(time.Now().Add(s.pongWait)); err != nil {
		s.logger.Debug("error setting initial read deadline", "error", err)
	}
	s.conn.SetPongHandler(func(string) error {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.pongWait)); err != nil {
			s.logger.Debug("error setting read deadline in pong handler", "error", err)
		}
		return nil
	})
}

// Recv reads the next client frame. Cancelling ctx unblocks a pending read
// by moving the read deadline into the past.
func (s *wsStream) Recv(ctx context.Context) (chat.ClientMessage, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return chat.ClientMessage{}, ctxErr
			}
			return chat.ClientMessage{}, s.classifyReadError(err)
		}

		msg, err := decodeClientMessage(raw)
		if err != nil {
			s.logger.Info("invalid chat frame", "error", err)
			reply := chat.ErrorNotice("", chat.CodeMalformed, "")
			reply.Content = err.Error()
			if sendErr := s.Send(ctx, reply); sendErr != nil {
				return chat.ClientMessage{}, sendErr
			}
			continue
		}
		return msg, nil
	}
}

// Send writes one server frame.
func (s *wsStream) Send(ctx context.Context, msg chat.ServerMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		if isExpectedCloseError(err) {
			return io.EOF
		}
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// keepAlive pings the peer until the stream is closed.
func (s *wsStream) keepAlive() {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if !s.ping() {
				return
			}
		}
	}
}

// ping sends a ping message to keep the connection alive
func (s *wsStream) ping() bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deadline := time.Now().Add(s.writeWait)
	if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
		if !isExpectedCloseError(err) {
			s.logger.Debug("error writing ping", "error", err)
		}
		return false
	}
	return true
}

// Close sends a close frame with the given reason and closes the connection.
func (s *wsStream) Close(code int, reason string) {
	s.closeOnce.Do(func() {
		close(s.done)

		s.writeMu.Lock()
		deadline := time.Now().Add(s.writeWait)
		if err := s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline); err != nil {
			if !isExpectedCloseError(err) {
				s.logger.Debug("error writing close message", "error", err)
			}
		}
		s.writeMu.Unlock()

		if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
			s.logger.Debug("error closing connection", "error", err)
		}
	})
}

// classifyReadError maps normal closures to io.EOF and logs the rest.
func (s *wsStream) classifyReadError(err error) error {
	if errors.Is(err, websocket.ErrReadLimit) {
		s.logger.Info("message exceeded maximum size")
		return err
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived) {
		s.logger.Debug("client disconnected", "error", err)
		return io.EOF
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || isExpectedCloseError(err) {
		s.logger.Debug("client connection closed", "error", err)
		return io.EOF
	}

	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		s.logger.Info("unexpected websocket close", "error", err)
		return err
	}

	s.logger.Info("websocket read error", "error", err)
	return err
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer")
}
