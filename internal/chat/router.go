package chat

import (
	"log/slog"
	"strings"
	"sync/atomic"
)

// Action tells the connection handler what to do after a message was routed.
type Action int

// Routing outcomes.
const (
	Continue Action = iota
	Logout
)

// Router turns one inbound client message into mailbox side effects. It
// never touches the transport.
type Router struct {
	dir    *Directory
	logger *slog.Logger

	routed   atomic.Int64
	rejected atomic.Int64
}

// NewRouter creates a router over dir.
func NewRouter(dir *Directory, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{dir: dir, logger: logger}
}

// Route applies msg on behalf of sender.
func (r *Router) Route(sender *Session, msg ClientMessage) Action {
	switch {
	case msg.Recipient == LogoutToken:
		sender.Terminate()
		r.logger.Info("user requested logout", "user", sender.Name)
		return Logout

	case msg.Recipient == BroadcastToken:
		r.broadcast(sender, msg.Content)

	case msg.Recipient == "" || strings.HasPrefix(msg.Recipient, "/"):
		r.reject(sender, CodeMalformed, msg.Recipient)

	default:
		r.private(sender, msg.Recipient, msg.Content)
	}
	return Continue
}

func (r *Router) broadcast(sender *Session, content string) {
	if content == "" {
		r.reject(sender, CodeEmptyContent, BroadcastToken)
		return
	}

	delivered := 0
	for _, name := range r.dir.Snapshot() {
		if name == sender.Name {
			continue
		}
		target, ok := r.dir.Lookup(name)
		if !ok || !target.Active() {
			continue
		}
		if target.deliver(BroadcastRelay(sender.Name, name, content)) {
			delivered++
		}
	}
	r.routed.Add(1)

	r.logger.Debug("broadcast delivered", "user", sender.Name, "recipients", delivered)
	r.notify(sender, Confirmation(sender.Name, content, delivered))
}

func (r *Router) private(sender *Session, recipient, content string) {
	if content == "" {
		r.reject(sender, CodeEmptyContent, recipient)
		return
	}

	target, ok := r.dir.Lookup(recipient)
	if !ok || !target.Active() || !target.deliver(PrivateRelay(sender.Name, recipient, content)) {
		r.reject(sender, CodeRecipientOffline, recipient)
		return
	}
	r.routed.Add(1)
	r.logger.Debug("private message delivered", "user", sender.Name, "recipient", recipient)
}

func (r *Router) reject(sender *Session, code, subject string) {
	r.rejected.Add(1)
	r.logger.Debug("message rejected", "user", sender.Name, "code", code, "subject", subject)
	r.notify(sender, ErrorNotice(sender.Name, code, subject))
}

// notify is the single path for server replies into the sender's own mailbox.
func (r *Router) notify(s *Session, msg ServerMessage) {
	if !s.deliver(msg) {
		r.logger.Debug("dropped reply to closing session", "user", s.Name, "kind", msg.Kind)
	}
}

// Routed returns the number of messages delivered to at least the routing stage.
func (r *Router) Routed() int64 {
	return r.routed.Load()
}

// Rejected returns the number of messages answered with an error notice.
func (r *Router) Rejected() int64 {
	return r.rejected.Load()
}
