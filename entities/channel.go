package entities

import (
	"slices"
	"strings"
)

const channelPrefix string = "#"

func IsChannelName(name string) bool {
	return strings.HasPrefix(name, channelPrefix)
}

// Channel is the client's view of a channel, a private conversation or the
// server pseudo-channel. It is not safe for concurrent use; the session guards
// every channel behind its own lock.
type Channel struct {
	Connected   bool
	Inhabitants []string
	Messages    []*IrcMessage
	Modes       []string
	Name        string
	Topic       string
}

func (c *Channel) AddInhabitant(nickname string) bool {
	if nickname == "" || slices.Contains(c.Inhabitants, nickname) {
		return false
	}
	c.Inhabitants = append(c.Inhabitants, nickname)
	return true
}

// Archive appends message to the channel history, dropping the oldest entries
// once limit is exceeded. A limit of zero or less keeps nothing.
func (c *Channel) Archive(message *IrcMessage, limit int) {
	if limit <= 0 {
		return
	}
	c.Messages = append(c.Messages, message)
	if overflow := len(c.Messages) - limit; overflow > 0 {
		c.Messages = slices.Delete(c.Messages, 0, overflow)
	}
}

func (c *Channel) IsPrivate() bool {
	return !IsChannelName(c.Name)
}

func (c *Channel) RemoveInhabitant(nickname string) bool {
	index := slices.Index(c.Inhabitants, nickname)
	if index < 0 {
		return false
	}
	c.Inhabitants = slices.Delete(c.Inhabitants, index, index+1)
	return true
}

func (c *Channel) RenameInhabitant(oldNickname string, newNickname string) bool {
	index := slices.Index(c.Inhabitants, oldNickname)
	if index < 0 {
		return false
	}
	c.Inhabitants[index] = newNickname
	return true
}

func NewChannel(name string) *Channel {
	return &Channel{
		Name: name,
	}
}
