package entities

import "time"

type IrcMessage struct {
	Args         string
	Command      string
	Hostname     string
	InputCommand string
	IsExtended   bool
	Nickname     string
	Origin       string
	Raw          string
	Realname     string
	SplitArgs    []string
	Tags         map[string]string
	Timestamp    time.Time
}

// IsPrivate reports whether the message was sent directly to a nick rather
// than to a channel.
func (m *IrcMessage) IsPrivate() bool {
	return m.Origin != "" && !IsChannelName(m.Origin)
}

// Arg returns the split argument at index i, or "" when there is none.
func (m *IrcMessage) Arg(i int) string {
	if i < 0 || i >= len(m.SplitArgs) {
		return ""
	}
	return m.SplitArgs[i]
}
