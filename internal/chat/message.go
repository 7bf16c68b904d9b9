// Package chat defines the message model exchanged between clients and the
// relay, along with the reserved tokens and sender identities it relies on.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// ServerName is the sender identity carried by every server-originated message.
const ServerName = "Server"

// Reserved recipient tokens understood by the router.
const (
	BroadcastToken = "/all"
	LogoutToken    = "/exit"
)

// Kind discriminates the payload carried by a ServerMessage.
type Kind string

// Message kinds delivered to clients.
const (
	KindRelay        Kind = "relay"
	KindPresence     Kind = "presence"
	KindNotice       Kind = "notice"
	KindError        Kind = "error"
	KindConfirmation Kind = "confirmation"
)

// Notice events.
const (
	EventWelcome = "welcome"
	EventJoined  = "joined"
	EventLeft    = "left"
)

// Error codes reported back to the sender of a rejected message.
const (
	CodeRecipientOffline = "recipient_offline"
	CodeMalformed        = "malformed"
	CodeEmptyContent     = "empty_content"
	CodeBadHandshake     = "bad_handshake"
)

// ClientMessage is the frame a client sends on its chat stream. The first
// frame of a stream is the handshake and only its Sender is meaningful.
type ClientMessage struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
}

// ServerMessage is the frame the relay sends to a client.
type ServerMessage struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Content   string    `json:"content,omitempty"`
	From      string    `json:"from,omitempty"`
	Broadcast bool      `json:"broadcast,omitempty"`
	Event     string    `json:"event,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Code      string    `json:"code,omitempty"`
	Online    []string  `json:"online,omitempty"`
	Delivered int       `json:"delivered,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

// RegisterRequest asks the relay to reserve a username.
type RegisterRequest struct {
	Username string `json:"username"`
}

// RegisterResponse reports the outcome of a registration.
type RegisterResponse struct {
	Accepted    bool     `json:"accepted"`
	Reason      string   `json:"reason,omitempty"`
	OnlineUsers []string `json:"online_users"`
}

func newServerMessage(kind Kind, recipient string) ServerMessage {
	return ServerMessage{
		ID:        uuid.NewString(),
		Kind:      kind,
		Sender:    ServerName,
		Recipient: recipient,
		SentAt:    time.Now().UTC(),
	}
}

// PrivateRelay builds the message delivered to the recipient of a private send.
func PrivateRelay(from, to, content string) ServerMessage {
	msg := newServerMessage(KindRelay, to)
	msg.Sender = from
	msg.From = from
	msg.Content = content
	return msg
}

// BroadcastRelay builds the copy of a broadcast delivered to one recipient.
func BroadcastRelay(from, to, content string) ServerMessage {
	msg := newServerMessage(KindRelay, to)
	msg.From = from
	msg.Broadcast = true
	msg.Content = content
	return msg
}

// PresenceUpdate carries the online list as it was when the message was built.
func PresenceUpdate(to string, online []string) ServerMessage {
	msg := newServerMessage(KindPresence, to)
	msg.Online = append([]string{}, online...)
	return msg
}

// Notice builds a system notice about subject.
func Notice(to, event, subject string) ServerMessage {
	msg := newServerMessage(KindNotice, to)
	msg.Event = event
	msg.Subject = subject
	return msg
}

// ErrorNotice builds an error reply for the sender of a rejected message.
func ErrorNotice(to, code, subject string) ServerMessage {
	msg := newServerMessage(KindError, to)
	msg.Code = code
	msg.Subject = subject
	return msg
}

// Confirmation acknowledges a broadcast back to its author.
func Confirmation(to, content string, delivered int) ServerMessage {
	msg := newServerMessage(KindConfirmation, to)
	msg.Content = content
	msg.Delivered = delivered
	return msg
}
