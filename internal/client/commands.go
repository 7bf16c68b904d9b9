// Package client implements the interactive terminal client for the chat
// relay: command parsing, the cached online list, message rendering and the
// WebSocket session loop.
package client

import (
	"errors"
	"fmt"
	"strings"
)

// CommandKind identifies a parsed input line.
type CommandKind int

// Input line kinds.
const (
	CmdText CommandKind = iota
	CmdChat
	CmdAll
	CmdList
	CmdExit
	CmdHelp
)

var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrMissingArgument = errors.New("missing argument")
)

// Command is one parsed line of user input. Arg holds the target user for
// CmdChat, an optional inline message for CmdAll and the text for CmdText.
type Command struct {
	Kind CommandKind
	Arg  string
}

// HelpText lists the commands understood by ParseCommand.
const HelpText = `Commands:
  /chat <user>   send following lines to <user>
  /all [text]    broadcast text, or the next line when text is omitted
  /list          show online users
  /exit          log out and quit
  /help          show this help`

// ParseCommand interprets a line typed by the user.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return Command{Kind: CmdText, Arg: line}, nil
	}

	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/chat":
		if arg == "" {
			return Command{}, fmt.Errorf("%w: /chat needs a username", ErrMissingArgument)
		}
		return Command{Kind: CmdChat, Arg: arg}, nil
	case "/all":
		return Command{Kind: CmdAll, Arg: arg}, nil
	case "/list":
		return Command{Kind: CmdList}, nil
	case "/exit", "/quit":
		return Command{Kind: CmdExit}, nil
	case "/help":
		return Command{Kind: CmdHelp}, nil
	default:
		return Command{}, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
}
