// Package parser turns raw protocol lines into structured messages.
package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/ergochat/irc-go/ircmsg"

	"github.com/ynotnauk/go-convex/entities"
)

const (
	errorCommand string = "ERROR"
	maxSplitArgs int    = 4
)

var (
	messageRegex = regexp.MustCompile(`^:(?P<Sender>\S+)\s(?P<Command>\S+)\s(?P<Recipient>\S+)\s?:?(?P<Args>.*)`)
	senderRegex  = regexp.MustCompile(`^(?P<Nickname>\S+)!(?P<Realname>\S+)@(?P<Hostname>\S+)`)
	spacesRegex  = regexp.MustCompile(` {2,}`)
)

// Parse never fails. A line that does not match the message grammar produces
// a message with only Raw, Timestamp and possibly Tags populated.
func Parse(rawIrcMessage string) *entities.IrcMessage {
	// Create parsed message
	parsedIrcMessage := &entities.IrcMessage{
		Raw:       rawIrcMessage,
		Timestamp: time.Now(),
	}
	line := strings.TrimSpace(rawIrcMessage)
	// Tags prefix
	if strings.HasPrefix(line, "@") {
		_, rest, _ := strings.Cut(line, " ")
		parsedIrcMessage.Tags = parseTags(line)
		parsedIrcMessage.IsExtended = true
		line = strings.TrimLeft(rest, " ")
	}
	// Fatal notice from the server
	if line == errorCommand || strings.HasPrefix(line, errorCommand+" ") {
		parsedIrcMessage.Command = errorCommand
		_, args, _ := strings.Cut(line, " ")
		parsedIrcMessage.Args = strings.TrimPrefix(args, ":")
		return parsedIrcMessage
	}
	match := messageRegex.FindStringSubmatch(line)
	if match == nil {
		return parsedIrcMessage
	}
	sender := match[messageRegex.SubexpIndex("Sender")]
	recipient := match[messageRegex.SubexpIndex("Recipient")]
	parsedIrcMessage.Command = match[messageRegex.SubexpIndex("Command")]
	parsedIrcMessage.Origin = strings.TrimPrefix(recipient, ":")
	parsedIrcMessage.Args = spacesRegex.ReplaceAllString(match[messageRegex.SubexpIndex("Args")], " ")
	parsedIrcMessage.SplitArgs = splitArgs(parsedIrcMessage.Args)
	// Sender falls back to the raw token when it is not nick!user@host
	parsedIrcMessage.Nickname = sender
	parsedIrcMessage.Realname = sender
	parsedIrcMessage.Hostname = sender
	if senderMatch := senderRegex.FindStringSubmatch(sender); senderMatch != nil {
		parsedIrcMessage.Nickname = senderMatch[senderRegex.SubexpIndex("Nickname")]
		parsedIrcMessage.Realname = strings.TrimPrefix(senderMatch[senderRegex.SubexpIndex("Realname")], "~")
		parsedIrcMessage.Hostname = senderMatch[senderRegex.SubexpIndex("Hostname")]
	}
	return parsedIrcMessage
}

// parseTags returns the unescaped IRCv3 tags of line. A line the tag grammar
// rejects yields an empty map.
func parseTags(line string) map[string]string {
	message, err := ircmsg.ParseLine(line)
	if err != nil {
		return map[string]string{}
	}
	parsedTags := message.AllTags()
	if parsedTags == nil {
		parsedTags = map[string]string{}
	}
	return parsedTags
}

func splitArgs(args string) []string {
	if args == "" {
		return nil
	}
	split := strings.SplitN(args, " ", maxSplitArgs)
	for i, arg := range split {
		split[i] = strings.TrimSpace(arg)
	}
	return split
}
