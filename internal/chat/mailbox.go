package chat

import "sync"

// Mailbox is a per-user FIFO of pending outbound messages. Any number of
// goroutines may Push while a single consumer waits on Ready and Drains.
//
// A positive capacity bounds the queue: when it is full the oldest pending
// message is discarded to make room. Zero means unbounded.
type Mailbox struct {
	mu       sync.Mutex
	queue    []ServerMessage
	capacity int
	closed   bool
	ready    chan struct{}

	// Stats
	pushed  int64
	dropped int64
}

// NewMailbox creates an empty mailbox with the given capacity.
func NewMailbox(capacity int) *Mailbox {
	if capacity < 0 {
		capacity = 0
	}
	return &Mailbox{
		capacity: capacity,
		ready:    make(chan struct{}, 1),
	}
}

// Push appends msg. Returns false if the mailbox is closed.
func (m *Mailbox) Push(msg ServerMessage) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}

	if m.capacity > 0 && len(m.queue) >= m.capacity {
		m.queue[0] = ServerMessage{}
		m.queue = m.queue[1:]
		m.dropped++
	}
	m.queue = append(m.queue, msg)
	m.pushed++
	m.mu.Unlock()

	m.signal()
	return true
}

func (m *Mailbox) signal() {
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// Ready returns a channel that receives a value whenever messages may be
// waiting. Spurious wake-ups are possible; Drain may return nothing.
func (m *Mailbox) Ready() <-chan struct{} {
	return m.ready
}

// Drain removes and returns every queued message in enqueue order.
func (m *Mailbox) Drain() []ServerMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) == 0 {
		return nil
	}
	out := m.queue
	m.queue = nil
	return out
}

// Len returns the number of pending messages.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Close stops the mailbox from accepting messages. Already queued messages
// remain drainable. Close is idempotent.
func (m *Mailbox) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.signal()
}

// Closed reports whether Close has been called.
func (m *Mailbox) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Dropped returns how many messages were discarded because the mailbox was full.
func (m *Mailbox) Dropped() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// Pushed returns how many messages were accepted in total.
func (m *Mailbox) Pushed() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pushed
}
