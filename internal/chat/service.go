package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Default service limits.
const (
	DefaultMaxWorkers      = 10
	DefaultMailboxCapacity = 1024
	DefaultAttachTimeout   = 30 * time.Second
)

// Options configures a Service. Zero values select the defaults.
type Options struct {
	MaxWorkers       int
	MailboxCapacity  int
	MaxNameLength    int
	PollInterval     time.Duration
	HandshakeTimeout time.Duration
	AttachTimeout    time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = DefaultMaxWorkers
	}
	if o.MailboxCapacity < 0 {
		o.MailboxCapacity = 0
	}
	if o.MaxNameLength <= 0 {
		o.MaxNameLength = DefaultMaxNameLength
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if o.AttachTimeout <= 0 {
		o.AttachTimeout = DefaultAttachTimeout
	}
	return o
}

// RegisterResult is the outcome of Service.Register.
type RegisterResult struct {
	Accepted bool
	Reason   string
	Online   []string
}

// Stats is a point-in-time view of service counters.
type Stats struct {
	Online          int   `json:"online"`
	ActiveStreams   int64 `json:"active_streams"`
	Registrations   int64 `json:"registrations"`
	Rejections      int64 `json:"rejections"`
	RoutedMessages  int64 `json:"routed_messages"`
	RejectedRoutes  int64 `json:"rejected_routes"`
	DroppedMessages int64 `json:"dropped_messages"`
}

// Service is the entry point used by the transport: registration plus the
// streaming chat call. It owns the directory for its whole lifetime.
type Service struct {
	opts     Options
	logger   *slog.Logger
	dir      *Directory
	router   *Router
	presence *Presence
	handler  *Handler
	workers  *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	reapers  map[*Session]*time.Timer
	closing  atomic.Bool
	active   atomic.Int64
	accepted atomic.Int64
	refused  atomic.Int64
	dropped  atomic.Int64
}

// NewService creates a chat service with an empty directory.
func NewService(opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()

	dir := NewDirectory(opts.MailboxCapacity)
	router := NewRouter(dir, logger)
	presence := NewPresence(dir, logger)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		opts:     opts,
		logger:   logger,
		dir:      dir,
		router:   router,
		presence: presence,
		workers:  semaphore.NewWeighted(int64(opts.MaxWorkers)),
		ctx:      ctx,
		cancel:   cancel,
		reapers:  make(map[*Session]*time.Timer),
	}
	s.handler = NewHandler(dir, router, presence, HandlerConfig{
		PollInterval:     opts.PollInterval,
		HandshakeTimeout: opts.HandshakeTimeout,
		OnAttach:         s.stopReap,
		OnClose:          s.retire,
	}, logger)
	return s
}

// Register reserves name. Online lists the users that were already online.
func (s *Service) Register(_ context.Context, name string) (RegisterResult, error) {
	if s.closing.Load() {
		return RegisterResult{}, ErrShuttingDown
	}

	normalized, err := NormalizeName(name, s.opts.MaxNameLength)
	if err != nil {
		s.refused.Add(1)
		return RegisterResult{Reason: err.Error(), Online: s.dir.Snapshot()}, err
	}

	session, err := s.dir.Register(normalized)
	if errors.Is(err, ErrNameTaken) {
		s.refused.Add(1)
		s.logger.Info("registration rejected", "user", normalized, "reason", err)
		return RegisterResult{Reason: err.Error(), Online: s.dir.Snapshot()}, err
	}
	if err != nil {
		return RegisterResult{}, err
	}

	s.accepted.Add(1)
	s.scheduleReap(session)
	s.logger.Info("user registered", "user", normalized, "session", session.ID)

	return RegisterResult{Accepted: true, Online: without(s.dir.Snapshot(), normalized)}, nil
}

// scheduleReap frees name if no stream attaches to the session in time.
func (s *Service) scheduleReap(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reapers[session] = time.AfterFunc(s.opts.AttachTimeout, func() {
		s.mu.Lock()
		delete(s.reapers, session)
		s.mu.Unlock()

		if !session.expire() {
			return
		}
		if s.dir.Remove(session) {
			s.retire(session)
			s.logger.Info("registration expired without a chat stream", "user", session.Name)
		}
	})
}

// retire folds a departed session's drop count into the service total.
func (s *Service) retire(session *Session) {
	s.dropped.Add(session.Mailbox().Dropped())
}

func (s *Service) stopReap(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.reapers[session]; ok {
		t.Stop()
		delete(s.reapers, session)
	}
}

// Chat serves one bidirectional stream until it ends.
func (s *Service) Chat(ctx context.Context, stream Stream) error {
	// Shutdown flips closing under mu, so no stream joins wg after Wait starts.
	s.mu.Lock()
	if s.closing.Load() {
		s.mu.Unlock()
		return ErrShuttingDown
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	if !s.workers.TryAcquire(1) {
		s.logger.Warn("rejecting chat stream, worker limit reached", "max_workers", s.opts.MaxWorkers)
		return ErrServerBusy
	}
	defer s.workers.Release(1)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	s.active.Add(1)
	defer s.active.Add(-1)

	return s.handler.Serve(ctx, stream)
}

// Online returns a snapshot of the registered users.
func (s *Service) Online() []string {
	return s.dir.Snapshot()
}

// Stats returns the current counters.
func (s *Service) Stats() Stats {
	var dropped int64
	for _, session := range s.dir.Sessions() {
		dropped += session.Mailbox().Dropped()
	}
	return Stats{
		Online:          s.dir.Len(),
		ActiveStreams:   s.active.Load(),
		Registrations:   s.accepted.Load(),
		Rejections:      s.refused.Load(),
		RoutedMessages:  s.router.Routed(),
		RejectedRoutes:  s.router.Rejected(),
		DroppedMessages: s.dropped.Load() + dropped,
	}
}

// Shutdown cancels every live stream and waits for the handlers to finish
// or for ctx to expire.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.closing.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return nil
	}
	for session, t := range s.reapers {
		t.Stop()
		delete(s.reapers, session)
	}
	s.mu.Unlock()

	s.logger.Info("shutting down chat service", "active_streams", s.active.Load())
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("chat service stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("chat service shutdown timed out", "active_streams", s.active.Load())
		return ctx.Err()
	}
}

func without(names []string, name string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}
