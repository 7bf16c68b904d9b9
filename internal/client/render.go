package client

import (
	"fmt"
	"strings"

	"github.com/Tyrowin/directchat/internal/chat"
)

// Render formats a server message for the terminal. Unknown kinds fall back
// to the raw content.
func Render(msg chat.ServerMessage) string {
	switch msg.Kind {
	case chat.KindRelay:
		if msg.Broadcast {
			return fmt.Sprintf("[%s to all] %s", msg.From, msg.Content)
		}
		return fmt.Sprintf("[%s] %s", msg.Sender, msg.Content)

	case chat.KindPresence:
		return "Online: " + formatNames(msg.Online)

	case chat.KindNotice:
		switch msg.Event {
		case chat.EventWelcome:
			return fmt.Sprintf("Welcome, %s! Type /help for commands.", msg.Subject)
		case chat.EventJoined:
			return fmt.Sprintf("* %s joined", msg.Subject)
		case chat.EventLeft:
			return fmt.Sprintf("* %s left", msg.Subject)
		}
		return "* " + msg.Content

	case chat.KindError:
		return "! " + describeError(msg)

	case chat.KindConfirmation:
		if msg.Delivered == 1 {
			return "(broadcast delivered to 1 user)"
		}
		return fmt.Sprintf("(broadcast delivered to %d users)", msg.Delivered)
	}
	return msg.Content
}

func describeError(msg chat.ServerMessage) string {
	switch msg.Code {
	case chat.CodeRecipientOffline:
		return fmt.Sprintf("%s is offline, message not delivered", msg.Subject)
	case chat.CodeEmptyContent:
		return "message is empty"
	case chat.CodeMalformed:
		if msg.Content != "" {
			return "malformed message: " + msg.Content
		}
		return fmt.Sprintf("malformed message for recipient %q", msg.Subject)
	case chat.CodeBadHandshake:
		return "handshake rejected: " + msg.Content
	}
	return msg.Code
}

func formatNames(names []string) string {
	if len(names) == 0 {
		return "(nobody)"
	}
	return strings.Join(names, ", ")
}
