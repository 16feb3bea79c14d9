package entities

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelInhabitants(t *testing.T) {
	channel := NewChannel("#go")
	assert.True(t, channel.AddInhabitant("alice"))
	assert.True(t, channel.AddInhabitant("bob"))
	assert.False(t, channel.AddInhabitant("alice"))
	assert.False(t, channel.AddInhabitant(""))
	assert.True(t, channel.RenameInhabitant("bob", "robert"))
	assert.False(t, channel.RenameInhabitant("carol", "caroline"))
	assert.True(t, channel.RemoveInhabitant("alice"))
	assert.False(t, channel.RemoveInhabitant("alice"))
	assert.Equal(t, []string{"robert"}, channel.Inhabitants)
}

func TestChannelArchive(t *testing.T) {
	channel := NewChannel("#go")
	for _, raw := range []string{"one", "two", "three"} {
		channel.Archive(&IrcMessage{Raw: raw}, 2)
	}
	require.Len(t, channel.Messages, 2)
	assert.Equal(t, "two", channel.Messages[0].Raw)
	assert.Equal(t, "three", channel.Messages[1].Raw)

	channel.Archive(&IrcMessage{Raw: "four"}, 0)
	assert.Len(t, channel.Messages, 2)
}

func TestChannelIsPrivate(t *testing.T) {
	assert.False(t, NewChannel("#go").IsPrivate())
	assert.True(t, NewChannel("alice").IsPrivate())
	assert.True(t, (&IrcMessage{Origin: "alice"}).IsPrivate())
	assert.False(t, (&IrcMessage{Origin: "#go"}).IsPrivate())
	assert.False(t, (&IrcMessage{}).IsPrivate())
}

func TestOutboundMessageString(t *testing.T) {
	tests := []struct {
		name     string
		message  *OutboundMessage
		expected string
	}{
		{"privmsg", NewPrivateMessage("#go", "hello world"), "PRIVMSG #go :hello world"},
		{"single word", NewPrivateMessage("#go", "hi"), "PRIVMSG #go hi"},
		{"leading colon", NewPrivateMessage("#go", ":)"), "PRIVMSG #go ::)"},
		{"join", &OutboundMessage{Command: "JOIN", Args: "#go"}, "JOIN #go"},
		{"mode", &OutboundMessage{Command: "MODE", Target: "bot", Args: "+B"}, "MODE bot +B"},
		{"bare", &OutboundMessage{Command: "QUIT"}, "QUIT"},
		{"target only", &OutboundMessage{Command: "PART", Target: "#go"}, "PART #go"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, test.message.String())
		})
	}
}

func TestActionTypeString(t *testing.T) {
	assert.Equal(t, "SendMessage", ActionSendMessage.String())
	assert.Equal(t, "Processing", PluginProcessing.String())
	assert.Equal(t, "Unknown", ActionType(42).String())
}

func TestOutboundMessageRejectsInjection(t *testing.T) {
	tests := []struct {
		name    string
		message *OutboundMessage
	}{
		{"crlf payload", NewPrivateMessage("#go", "hello\r\nQUIT :injected")},
		{"lf payload", NewPrivateMessage("#go", "hello\nQUIT")},
		{"nul payload", NewPrivateMessage("#go", "hello\x00")},
		{"spaced target", NewPrivateMessage("#go QUIT", "hello")},
		{"too long", NewPrivateMessage("#go", strings.Repeat("a", MaxLineLength))},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			line, err := test.message.Line()
			assert.ErrorIs(t, err, ErrInvalidLine)
			assert.Empty(t, line)
			assert.Empty(t, test.message.String())
		})
	}
}
