package entities

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ergochat/irc-go/ircmsg"
)

// MaxLineLength is the protocol limit for a line including its CRLF.
const MaxLineLength int = 512

var ErrInvalidLine error = errors.New("invalid protocol line")

// OutboundMessage is a structured protocol command waiting to be written.
type OutboundMessage struct {
	Args    string
	Command string
	Target  string
}

// Line renders the message as a protocol line without the line terminator.
// Target and Args become separate parameters; Args is sent as a trailing
// parameter when it needs one. Messages carrying CR, LF or NUL, or exceeding
// MaxLineLength, are rejected with ErrInvalidLine.
func (m *OutboundMessage) Line() (string, error) {
	params := make([]string, 0, 2)
	if m.Target != "" {
		params = append(params, m.Target)
	}
	if m.Args != "" {
		params = append(params, m.Args)
	}
	message := ircmsg.MakeMessage(nil, "", m.Command, params...)
	line, err := message.LineBytesStrict(true, MaxLineLength)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidLine, m.Command, err)
	}
	return strings.TrimSuffix(string(line), "\r\n"), nil
}

// String is Line without the error; invalid messages render as "".
func (m *OutboundMessage) String() string {
	line, _ := m.Line()
	return line
}

func NewPrivateMessage(target string, text string) *OutboundMessage {
	return &OutboundMessage{
		Args:    text,
		Command: "PRIVMSG",
		Target:  target,
	}
}
