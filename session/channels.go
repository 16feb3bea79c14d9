package session

import (
	"slices"
	"strings"

	"github.com/ynotnauk/go-convex/entities"
)

// AddChannel creates the channel unless it already exists and reports whether
// it was created.
func (s *Session) AddChannel(name string) bool {
	if name == "" {
		return false
	}
	s.channelsMu.Lock()
	defer s.channelsMu.Unlock()
	key := channelKey(name)
	if _, ok := s.channels[key]; ok {
		return false
	}
	s.channels[key] = entities.NewChannel(name)
	return true
}

func (s *Session) AddInhabitant(channelName string, nickname string) bool {
	s.channelsMu.Lock()
	defer s.channelsMu.Unlock()
	channel, ok := s.channels[channelKey(channelName)]
	if !ok {
		return false
	}
	return channel.AddInhabitant(nickname)
}

func (s *Session) ChannelExists(name string) bool {
	s.channelsMu.RLock()
	defer s.channelsMu.RUnlock()
	_, ok := s.channels[channelKey(name)]
	return ok
}

// ChannelNames returns the channel names sorted alphabetically.
func (s *Session) ChannelNames() []string {
	s.channelsMu.RLock()
	defer s.channelsMu.RUnlock()
	names := make([]string, 0, len(s.channels))
	for _, channel := range s.channels {
		names = append(names, channel.Name)
	}
	slices.Sort(names)
	return names
}

// GetChannel returns a copy of the channel that is safe to read without
// holding any lock.
func (s *Session) GetChannel(name string) (*entities.Channel, bool) {
	s.channelsMu.RLock()
	defer s.channelsMu.RUnlock()
	channel, ok := s.channels[channelKey(name)]
	if !ok {
		return nil, false
	}
	return &entities.Channel{
		Connected:   channel.Connected,
		Inhabitants: slices.Clone(channel.Inhabitants),
		Messages:    slices.Clone(channel.Messages),
		Modes:       slices.Clone(channel.Modes),
		Name:        channel.Name,
		Topic:       channel.Topic,
	}, true
}

func (s *Session) RemoveChannel(name string) bool {
	s.channelsMu.Lock()
	defer s.channelsMu.Unlock()
	key := channelKey(name)
	if _, ok := s.channels[key]; !ok {
		return false
	}
	delete(s.channels, key)
	return true
}

func (s *Session) RemoveInhabitant(channelName string, nickname string) bool {
	s.channelsMu.Lock()
	defer s.channelsMu.Unlock()
	channel, ok := s.channels[channelKey(channelName)]
	if !ok {
		return false
	}
	return channel.RemoveInhabitant(nickname)
}

// RemoveInhabitantEverywhere drops nickname from every channel, as needed when
// a user quits.
func (s *Session) RemoveInhabitantEverywhere(nickname string) {
	s.channelsMu.Lock()
	defer s.channelsMu.Unlock()
	for _, channel := range s.channels {
		channel.RemoveInhabitant(nickname)
	}
}

func (s *Session) RenameInhabitant(oldNickname string, newNickname string) {
	s.channelsMu.Lock()
	defer s.channelsMu.Unlock()
	for _, channel := range s.channels {
		channel.RenameInhabitant(oldNickname, newNickname)
	}
}

func (s *Session) SetConnected(name string, connected bool) bool {
	s.channelsMu.Lock()
	defer s.channelsMu.Unlock()
	channel, ok := s.channels[channelKey(name)]
	if !ok {
		return false
	}
	channel.Connected = connected
	return true
}

func (s *Session) SetModes(name string, modes []string) bool {
	s.channelsMu.Lock()
	defer s.channelsMu.Unlock()
	channel, ok := s.channels[channelKey(name)]
	if !ok {
		return false
	}
	channel.Modes = modes
	return true
}

func (s *Session) SetTopic(name string, topic string) bool {
	s.channelsMu.Lock()
	defer s.channelsMu.Unlock()
	channel, ok := s.channels[channelKey(name)]
	if !ok {
		return false
	}
	channel.Topic = topic
	return true
}

// UnconnectedChannels lists public channels that have not been joined yet.
func (s *Session) UnconnectedChannels() []string {
	s.channelsMu.RLock()
	defer s.channelsMu.RUnlock()
	var names []string
	for _, channel := range s.channels {
		if !channel.Connected && !channel.IsPrivate() {
			names = append(names, channel.Name)
		}
	}
	slices.Sort(names)
	return names
}

func (s *Session) markAllDisconnected() {
	s.channelsMu.Lock()
	defer s.channelsMu.Unlock()
	for _, channel := range s.channels {
		channel.Connected = false
	}
}

func channelKey(name string) string {
	return strings.ToLower(name)
}
