package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{"hello there", Command{Kind: CmdText, Arg: "hello there"}},
		{"  padded  ", Command{Kind: CmdText, Arg: "padded"}},
		{"", Command{Kind: CmdText}},
		{"/chat bob", Command{Kind: CmdChat, Arg: "bob"}},
		{"/chat   bob  ", Command{Kind: CmdChat, Arg: "bob"}},
		{"/all", Command{Kind: CmdAll}},
		{"/all hi everyone", Command{Kind: CmdAll, Arg: "hi everyone"}},
		{"/list", Command{Kind: CmdList}},
		{"/exit", Command{Kind: CmdExit}},
		{"/quit", Command{Kind: CmdExit}},
		{"/help", Command{Kind: CmdHelp}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseCommand(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	_, err := ParseCommand("/chat")
	assert.ErrorIs(t, err, ErrMissingArgument)

	_, err = ParseCommand("/dance now")
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.ErrorContains(t, err, "/dance")
}

func TestRoster(t *testing.T) {
	var r Roster
	assert.False(t, r.Contains("alice"))
	assert.Empty(t, r.Names())

	names := []string{"alice", "bob"}
	r.Update(names)
	names[0] = "mallory"

	assert.True(t, r.Contains("alice"))
	assert.False(t, r.Contains("mallory"))
	assert.Equal(t, []string{"alice", "bob"}, r.Names())
}
