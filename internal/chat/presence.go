package chat

import (
	"log/slog"
	"sync"
)

// Presence fans out join and leave notices to active users. Joins and leaves
// are serialized so a joining user either sees an event in its first snapshot
// or receives it after its welcome.
type Presence struct {
	mu     sync.Mutex
	dir    *Directory
	logger *slog.Logger
}

// NewPresence creates a presence broadcaster over dir.
func NewPresence(dir *Directory, logger *slog.Logger) *Presence {
	if logger == nil {
		logger = slog.Default()
	}
	return &Presence{dir: dir, logger: logger}
}

// Join greets s directly, marks it active, then tells every other active
// user that s joined.
func (p *Presence) Join(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()

	online := p.dir.Snapshot()
	s.deliver(Notice(s.Name, EventWelcome, s.Name))
	s.deliver(PresenceUpdate(s.Name, online))
	s.setState(StateActive)

	p.fanOut(s.Name, EventJoined)
	p.logger.Info("user joined", "user", s.Name, "online", len(online))
}

// Leave removes s from the directory and, if this call removed it, tells the
// remaining users. Reports whether the leave was announced.
func (p *Presence) Leave(s *Session) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.dir.Remove(s) {
		return false
	}

	p.fanOut(s.Name, EventLeft)
	p.logger.Info("user left", "user", s.Name, "online", p.dir.Len())
	return true
}

func (p *Presence) fanOut(subject, event string) {
	for _, target := range p.dir.Sessions() {
		if target.Name == subject || !target.Active() {
			continue
		}
		target.deliver(Notice(target.Name, event, subject))
		target.deliver(PresenceUpdate(target.Name, p.dir.Snapshot()))
	}
}
