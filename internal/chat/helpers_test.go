package chat

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

const waitTimeout = 2 * time.Second

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStream is an in-memory Stream. Closing in simulates the peer hanging up.
type fakeStream struct {
	in  chan ClientMessage
	out chan ServerMessage

	mu      sync.Mutex
	sendErr error
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		in:  make(chan ClientMessage, 16),
		out: make(chan ServerMessage, 256),
	}
}

func (f *fakeStream) Recv(ctx context.Context) (ClientMessage, error) {
	select {
	case msg, ok := <-f.in:
		if !ok {
			return ClientMessage{}, io.EOF
		}
		return msg, nil
	case <-ctx.Done():
		return ClientMessage{}, ctx.Err()
	}
}

// Send refuses to write once ctx is done, like the WebSocket stream does.
func (f *fakeStream) Send(ctx context.Context, msg ServerMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	err := f.sendErr
	f.mu.Unlock()
	if err != nil {
		return err
	}

	select {
	case f.out <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeStream) failSends(err error) {
	f.mu.Lock()
	f.sendErr = err
	f.mu.Unlock()
}

func (f *fakeStream) hangUp() {
	close(f.in)
}

// next returns the next frame delivered to the stream or fails the test.
func (f *fakeStream) next(t *testing.T) ServerMessage {
	t.Helper()
	select {
	case msg := <-f.out:
		return msg
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for server message")
		return ServerMessage{}
	}
}

// expectQuiet fails if any frame arrives within d.
func (f *fakeStream) expectQuiet(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case msg := <-f.out:
		t.Fatalf("unexpected server message: %+v", msg)
	case <-time.After(d):
	}
}

// drainMailbox returns everything currently queued for s.
func drainMailbox(s *Session) []ServerMessage {
	return s.Mailbox().Drain()
}

// connect starts a chat stream for name on svc and consumes the welcome frames.
func connect(t *testing.T, ctx context.Context, svc *Service, name string) (*fakeStream, <-chan error) {
	t.Helper()

	stream := newFakeStream()
	done := make(chan error, 1)
	go func() { done <- svc.Chat(ctx, stream) }()

	stream.in <- ClientMessage{Sender: name}

	welcome := stream.next(t)
	if welcome.Kind != KindNotice || welcome.Event != EventWelcome {
		t.Fatalf("first frame = %+v, want welcome notice", welcome)
	}
	presence := stream.next(t)
	if presence.Kind != KindPresence {
		t.Fatalf("second frame = %+v, want presence update", presence)
	}
	return stream, done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for chat stream to end")
		return nil
	}
}
