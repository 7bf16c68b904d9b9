package chat

import "sync"

// Directory is the authoritative mapping of online usernames to sessions.
// A name is present exactly while its user is online. All operations share
// one mutex, which is never held across network I/O.
type Directory struct {
	mu              sync.Mutex
	sessions        map[string]*Session
	order           []string
	mailboxCapacity int
}

// NewDirectory creates an empty directory whose sessions get mailboxes of
// the given capacity.
func NewDirectory(mailboxCapacity int) *Directory {
	return &Directory{
		sessions:        make(map[string]*Session),
		mailboxCapacity: mailboxCapacity,
	}
}

// Register creates and inserts a session for name, or returns ErrNameTaken.
func (d *Directory) Register(name string) (*Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.sessions[name]; exists {
		return nil, ErrNameTaken
	}

	session := newSession(name, d.mailboxCapacity)
	d.sessions[name] = session
	d.order = append(d.order, name)
	return session, nil
}

// Unregister removes name if present and reports whether it did.
func (d *Directory) Unregister(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.sessions[name]; !exists {
		return false
	}
	d.removeLocked(name)
	return true
}

// Remove deletes the entry for s.Name only if it still refers to s, so a
// stale session can never evict a newer registration of the same name.
func (d *Directory) Remove(s *Session) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	current, exists := d.sessions[s.Name]
	if !exists || current != s {
		return false
	}
	d.removeLocked(s.Name)
	return true
}

func (d *Directory) removeLocked(name string) {
	delete(d.sessions, name)
	for i, n := range d.order {
		if n == name {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Lookup returns the session registered under name.
func (d *Directory) Lookup(name string) (*Session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	session, ok := d.sessions[name]
	return session, ok
}

// Snapshot returns the registered names in registration order. The slice is
// a copy and goes stale as soon as the directory changes.
func (d *Directory) Snapshot() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]string{}, d.order...)
}

// Sessions returns the registered sessions in registration order.
func (d *Directory) Sessions() []*Session {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]*Session, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.sessions[name])
	}
	return out
}

// Len returns the number of registered users.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}
