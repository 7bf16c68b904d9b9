package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Stream is the transport side of one client connection. Recv blocks until
// the next client frame arrives or ctx is done and returns io.EOF once the
// peer has closed normally.
type Stream interface {
	Recv(ctx context.Context) (ClientMessage, error)
	Send(ctx context.Context, msg ServerMessage) error
}

// Default timings for the connection handler.
const (
	DefaultPollInterval     = 100 * time.Millisecond
	DefaultHandshakeTimeout = 10 * time.Second
)

var (
	errLoggedOut = errors.New("logged out")
	errInvariant = errors.New("internal invariant violated")
)

// Handler drives one client connection from handshake to cleanup.
type Handler struct {
	dir              *Directory
	router           *Router
	presence         *Presence
	logger           *slog.Logger
	pollInterval     time.Duration
	handshakeTimeout time.Duration
	onAttach         func(*Session)
	onClose          func(*Session)
}

// HandlerConfig holds the timings used by a Handler.
type HandlerConfig struct {
	PollInterval     time.Duration
	HandshakeTimeout time.Duration

	// Optional hooks run after a stream binds to a session and after the
	// session has been cleaned up.
	OnAttach func(*Session)
	OnClose  func(*Session)
}

// NewHandler creates a connection handler.
func NewHandler(dir *Directory, router *Router, presence *Presence, cfg HandlerConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	return &Handler{
		dir:              dir,
		router:           router,
		presence:         presence,
		logger:           logger,
		pollInterval:     cfg.PollInterval,
		handshakeTimeout: cfg.HandshakeTimeout,
		onAttach:         cfg.OnAttach,
		onClose:          cfg.OnClose,
	}
}

// Serve runs the connection until logout, end of stream, transport failure
// or cancellation of ctx. Normal endings return nil.
func (h *Handler) Serve(ctx context.Context, stream Stream) error {
	session, err := h.handshake(ctx, stream)
	if err != nil {
		h.logger.Warn("chat handshake rejected", "error", err)
		reply := ErrorNotice("", CodeBadHandshake, "")
		reply.Content = err.Error()
		if sendErr := stream.Send(ctx, reply); sendErr != nil {
			h.logger.Debug("could not report handshake failure", "error", sendErr)
		}
		return err
	}

	logger := h.logger.With("user", session.Name, "session", session.ID)
	if h.onAttach != nil {
		h.onAttach(session)
	}
	defer h.close(session, logger)

	logger.Info("chat stream opened")
	h.presence.Join(session)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.inbound(gctx, session, stream) })
	g.Go(func() error { return h.outbound(ctx, gctx, session, stream) })

	err = g.Wait()
	switch {
	case err == nil, errors.Is(err, errLoggedOut), errors.Is(err, io.EOF), errors.Is(err, context.Canceled):
		logger.Info("chat stream ended")
		return nil
	default:
		logger.Warn("chat stream failed", "error", err)
		return err
	}
}

func (h *Handler) handshake(ctx context.Context, stream Stream) (*Session, error) {
	hctx, cancel := context.WithTimeout(ctx, h.handshakeTimeout)
	defer cancel()

	first, err := stream.Recv(hctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHandshake, err)
	}

	name := strings.TrimSpace(first.Sender)
	if name == "" {
		return nil, fmt.Errorf("%w: sender is empty", ErrBadHandshake)
	}
	if first.Recipient != "" || first.Content != "" {
		h.logger.Debug("ignoring payload on handshake frame", "user", name)
	}

	session, ok := h.dir.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUser, name)
	}
	if err := session.Attach(); err != nil {
		return nil, fmt.Errorf("attach %q: %w", name, err)
	}
	return session, nil
}

func (h *Handler) inbound(ctx context.Context, s *Session, stream Stream) error {
	for {
		if s.Terminated() {
			return errLoggedOut
		}

		msg, err := stream.Recv(ctx)
		if err != nil {
			return err
		}

		action, err := h.route(s, msg)
		if err != nil {
			return err
		}
		if action == Logout {
			return errLoggedOut
		}
	}
}

// route contains panics from routing to this connection.
func (h *Handler) route(s *Session, msg ClientMessage) (action Action, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errInvariant, r)
		}
	}()
	return h.router.Route(s, msg), nil
}

func (h *Handler) outbound(parent, ctx context.Context, s *Session, stream Stream) error {
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if s.Terminated() {
				h.flush(parent, s, stream)
			}
			return ctx.Err()
		case <-s.Done():
			h.flush(parent, s, stream)
			return errLoggedOut
		case <-s.Mailbox().Ready():
		case <-ticker.C:
			if s.Terminated() {
				h.flush(parent, s, stream)
				return errLoggedOut
			}
		}

		// Drained messages go out under parent; a logout cancels ctx.
		if err := h.send(parent, s, stream); err != nil {
			return err
		}
	}
}

func (h *Handler) send(ctx context.Context, s *Session, stream Stream) error {
	for _, msg := range s.Mailbox().Drain() {
		if err := stream.Send(ctx, msg); err != nil {
			return fmt.Errorf("send to %s: %w", s.Name, err)
		}
	}
	return nil
}

// flush makes one best-effort attempt to deliver what is still queued.
func (h *Handler) flush(ctx context.Context, s *Session, stream Stream) {
	if err := h.send(ctx, s, stream); err != nil {
		h.logger.Debug("dropped trailing messages", "user", s.Name, "error", err)
	}
}

func (h *Handler) close(s *Session, logger *slog.Logger) {
	s.setState(StateClosing)
	s.Terminate()
	if h.presence.Leave(s) {
		logger.Debug("presence leave announced")
	}
	s.setState(StateClosed)
	if h.onClose != nil {
		h.onClose(s)
	}
	logger.Info("chat stream closed", "pending_dropped", s.Mailbox().Len())
}
