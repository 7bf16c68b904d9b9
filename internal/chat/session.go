package chat

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle stage of a chat connection.
type State int32

// Connection states.
const (
	StateConnecting State = iota
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the server-side state of one registered user: identity,
// outbound mailbox and termination flag. It lives for at most one stream.
type Session struct {
	ID           string
	Name         string
	RegisteredAt time.Time

	mailbox *Mailbox

	attached   atomic.Bool
	state      atomic.Int32
	terminated atomic.Bool
	done       chan struct{}
	closeOnce  sync.Once
}

func newSession(name string, mailboxCapacity int) *Session {
	return &Session{
		ID:           uuid.NewString(),
		Name:         name,
		RegisteredAt: time.Now(),
		mailbox:      NewMailbox(mailboxCapacity),
		done:         make(chan struct{}),
	}
}

// Mailbox returns the session's outbound queue.
func (s *Session) Mailbox() *Mailbox {
	return s.mailbox
}

// Attach binds the session to a stream. Only the first call succeeds.
func (s *Session) Attach() error {
	if s.Terminated() {
		return ErrUnknownUser
	}
	if !s.attached.CompareAndSwap(false, true) {
		return ErrAlreadyAttached
	}
	return nil
}

// expire terminates a session that never got a stream. It fails if a
// stream has already attached.
func (s *Session) expire() bool {
	if !s.attached.CompareAndSwap(false, true) {
		return false
	}
	return s.Terminate()
}

// Active reports whether the session has been greeted on its stream and not
// yet begun closing. Only active sessions receive traffic from other users.
func (s *Session) Active() bool {
	return s.State() == StateActive
}

// Attached reports whether a stream has claimed the session.
func (s *Session) Attached() bool {
	return s.attached.Load()
}

// Terminate flags the session for shutdown and closes its mailbox to new
// messages. It returns true only for the call that performed the transition.
func (s *Session) Terminate() bool {
	if !s.terminated.CompareAndSwap(false, true) {
		return false
	}
	s.closeOnce.Do(func() {
		s.mailbox.Close()
		close(s.done)
	})
	return true
}

// Terminated reports whether Terminate has been called.
func (s *Session) Terminated() bool {
	return s.terminated.Load()
}

// Done is closed once the session is terminated.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// State returns the connection state last recorded for the session.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// deliver pushes msg into the session's mailbox unless the session is closing.
func (s *Session) deliver(msg ServerMessage) bool {
	if s.Terminated() {
		return false
	}
	return s.mailbox.Push(msg)
}
