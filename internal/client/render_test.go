package client

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Tyrowin/directchat/internal/chat"
)

func TestRender(t *testing.T) {
	offline := chat.ErrorNotice("alice", chat.CodeRecipientOffline, "carol")
	handshake := chat.ErrorNotice("", chat.CodeBadHandshake, "")
	handshake.Content = "unknown user"

	tests := []struct {
		name string
		msg  chat.ServerMessage
		want string
	}{
		{"private relay", chat.PrivateRelay("alice", "bob", "hi"), "[alice] hi"},
		{"broadcast relay", chat.BroadcastRelay("bob", "alice", "hey all"), "[bob to all] hey all"},
		{"presence", chat.PresenceUpdate("alice", []string{"alice", "bob"}), "Online: alice, bob"},
		{"empty presence", chat.PresenceUpdate("alice", nil), "Online: (nobody)"},
		{"welcome", chat.Notice("alice", chat.EventWelcome, "alice"), "Welcome, alice! Type /help for commands."},
		{"joined", chat.Notice("alice", chat.EventJoined, "bob"), "* bob joined"},
		{"left", chat.Notice("alice", chat.EventLeft, "bob"), "* bob left"},
		{"offline", offline, "! carol is offline, message not delivered"},
		{"empty content", chat.ErrorNotice("alice", chat.CodeEmptyContent, "bob"), "! message is empty"},
		{"bad handshake", handshake, "! handshake rejected: unknown user"},
		{"confirmation", chat.Confirmation("bob", "hey all", 3), "(broadcast delivered to 3 users)"},
		{"single confirmation", chat.Confirmation("bob", "hey", 1), "(broadcast delivered to 1 user)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.msg))
		})
	}
}
