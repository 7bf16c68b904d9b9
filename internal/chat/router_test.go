package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoutingFixture(t *testing.T, names ...string) (*Directory, *Router, map[string]*Session) {
	t.Helper()
	dir := NewDirectory(0)
	sessions := make(map[string]*Session, len(names))
	for _, name := range names {
		s, err := dir.Register(name)
		require.NoError(t, err)
		s.setState(StateActive)
		sessions[name] = s
	}
	return dir, NewRouter(dir, quietLogger()), sessions
}

func TestRouterPrivateMessage(t *testing.T) {
	_, router, s := newRoutingFixture(t, "alice", "bob")

	action := router.Route(s["alice"], ClientMessage{Sender: "alice", Recipient: "bob", Content: "hi"})
	assert.Equal(t, Continue, action)

	got := drainMailbox(s["bob"])
	require.Len(t, got, 1)
	assert.Equal(t, KindRelay, got[0].Kind)
	assert.Equal(t, "alice", got[0].Sender)
	assert.Equal(t, "alice", got[0].From)
	assert.Equal(t, "bob", got[0].Recipient)
	assert.Equal(t, "hi", got[0].Content)
	assert.False(t, got[0].Broadcast)

	assert.Empty(t, drainMailbox(s["alice"]), "private sends are not confirmed")
	assert.Equal(t, int64(1), router.Routed())
}

func TestRouterPrivateMessageFIFO(t *testing.T) {
	_, router, s := newRoutingFixture(t, "alice", "bob")

	router.Route(s["alice"], ClientMessage{Recipient: "bob", Content: "m1"})
	router.Route(s["alice"], ClientMessage{Recipient: "bob", Content: "m2"})

	got := drainMailbox(s["bob"])
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].Content)
	assert.Equal(t, "m2", got[1].Content)
}

func TestRouterPrivateToOfflineUser(t *testing.T) {
	_, router, s := newRoutingFixture(t, "alice")

	action := router.Route(s["alice"], ClientMessage{Recipient: "ghost", Content: "anyone?"})
	assert.Equal(t, Continue, action)

	got := drainMailbox(s["alice"])
	require.Len(t, got, 1, "exactly one error notice")
	assert.Equal(t, KindError, got[0].Kind)
	assert.Equal(t, ServerName, got[0].Sender)
	assert.Equal(t, CodeRecipientOffline, got[0].Code)
	assert.Equal(t, "ghost", got[0].Subject)
}

func TestRouterPrivateToClosingUser(t *testing.T) {
	_, router, s := newRoutingFixture(t, "alice", "bob")
	s["bob"].Terminate()

	router.Route(s["alice"], ClientMessage{Recipient: "bob", Content: "late"})

	got := drainMailbox(s["alice"])
	require.Len(t, got, 1)
	assert.Equal(t, CodeRecipientOffline, got[0].Code)
	assert.Empty(t, drainMailbox(s["bob"]))
}

func TestRouterSkipsSessionsWithoutStream(t *testing.T) {
	dir, router, s := newRoutingFixture(t, "alice")
	pending, err := dir.Register("bob")
	require.NoError(t, err)

	router.Route(s["alice"], ClientMessage{Recipient: "bob", Content: "too early"})
	router.Route(s["alice"], ClientMessage{Recipient: BroadcastToken, Content: "anyone?"})

	got := drainMailbox(s["alice"])
	require.Len(t, got, 2)
	assert.Equal(t, CodeRecipientOffline, got[0].Code)
	assert.Equal(t, "bob", got[0].Subject)
	assert.Equal(t, KindConfirmation, got[1].Kind)
	assert.Equal(t, 0, got[1].Delivered)
	assert.Empty(t, drainMailbox(pending))
}

func TestRouterBroadcast(t *testing.T) {
	_, router, s := newRoutingFixture(t, "alice", "bob", "carol")

	action := router.Route(s["bob"], ClientMessage{Sender: "bob", Recipient: BroadcastToken, Content: "hello all"})
	assert.Equal(t, Continue, action)

	for _, name := range []string{"alice", "carol"} {
		got := drainMailbox(s[name])
		require.Len(t, got, 1, name)
		assert.Equal(t, KindRelay, got[0].Kind)
		assert.Equal(t, ServerName, got[0].Sender)
		assert.Equal(t, "bob", got[0].From)
		assert.True(t, got[0].Broadcast)
		assert.Equal(t, "hello all", got[0].Content)
		assert.Equal(t, name, got[0].Recipient)
	}

	confirm := drainMailbox(s["bob"])
	require.Len(t, confirm, 1)
	assert.Equal(t, KindConfirmation, confirm[0].Kind)
	assert.Equal(t, 2, confirm[0].Delivered)
}

func TestRouterBroadcastSkipsDepartedRecipients(t *testing.T) {
	dir, router, s := newRoutingFixture(t, "alice", "bob", "carol")
	s["carol"].Terminate()
	dir.Remove(s["carol"])
	s["alice"].Terminate()

	router.Route(s["bob"], ClientMessage{Recipient: BroadcastToken, Content: "still here?"})

	confirm := drainMailbox(s["bob"])
	require.Len(t, confirm, 1)
	assert.Equal(t, KindConfirmation, confirm[0].Kind)
	assert.Equal(t, 0, confirm[0].Delivered)
}

func TestRouterLogout(t *testing.T) {
	_, router, s := newRoutingFixture(t, "alice", "bob")

	action := router.Route(s["alice"], ClientMessage{Recipient: LogoutToken})
	assert.Equal(t, Logout, action)
	assert.True(t, s["alice"].Terminated())
	assert.Empty(t, drainMailbox(s["bob"]), "logout writes nothing itself")
}

func TestRouterRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name     string
		msg      ClientMessage
		wantCode string
	}{
		{name: "empty recipient", msg: ClientMessage{Content: "hi"}, wantCode: CodeMalformed},
		{name: "unknown command", msg: ClientMessage{Recipient: "/kick", Content: "bob"}, wantCode: CodeMalformed},
		{name: "empty private content", msg: ClientMessage{Recipient: "bob"}, wantCode: CodeEmptyContent},
		{name: "empty broadcast", msg: ClientMessage{Recipient: BroadcastToken}, wantCode: CodeEmptyContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, router, s := newRoutingFixture(t, "alice", "bob")

			action := router.Route(s["alice"], tt.msg)
			assert.Equal(t, Continue, action)

			got := drainMailbox(s["alice"])
			require.Len(t, got, 1)
			assert.Equal(t, KindError, got[0].Kind)
			assert.Equal(t, tt.wantCode, got[0].Code)
			assert.Empty(t, drainMailbox(s["bob"]))
			assert.Equal(t, int64(1), router.Rejected())
		})
	}
}
