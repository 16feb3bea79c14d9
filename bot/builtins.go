package bot

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/multierr"

	"github.com/ynotnauk/go-convex/entities"
)

const helpCommand string = "help"

// registerBuiltins wires the protocol handlers that keep channel state in
// sync and answer help queries.
func (b *Bot) registerBuiltins() error {
	handlers := map[string]entities.MethodHandler{
		"376":   b.onEndOfMotd,
		"422":   b.onEndOfMotd,
		"324":   b.onChannelModes,
		"332":   b.onTopicReply,
		"353":   b.onNamesReply,
		"JOIN":  b.onJoin,
		"NICK":  b.onNick,
		"PART":  b.onPart,
		"QUIT":  b.onQuit,
		"TOPIC": b.onTopic,
	}
	var errs error
	for command, handler := range handlers {
		errs = multierr.Append(errs, b.engine.Register(&entities.MethodRegistration{
			Command: command,
			Handler: handler,
		}))
	}
	errs = multierr.Append(errs, b.engine.Register(&entities.MethodRegistration{
		Command:    "PRIVMSG",
		CanExecute: b.addressed,
		Handler:    b.onAddressed,
		Description: &entities.Description{
			Name: helpCommand,
			Help: fmt.Sprintf("Lists my commands, or describes one with '%s help <command>'.", b.session.Nickname()),
		},
	}))
	return errs
}

// onAddressed answers help queries and rejects commands nobody registered.
func (b *Bot) onAddressed(ctx context.Context, message *entities.IrcMessage) error {
	command := message.InputCommand
	if command == helpCommand {
		return b.reply(ctx, message, b.help(message.Arg(2)))
	}
	if command == "" || !b.engine.HasCommand(command) {
		return b.reply(ctx, message, fmt.Sprintf("Invalid command. Type '%s help' to view my command list.", b.session.Nickname()))
	}
	return nil
}

func (b *Bot) help(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		names := b.engine.CommandNames()
		if len(names) == 0 {
			return "No commands currently active."
		}
		return "Active commands: " + strings.Join(names, ", ")
	}
	help, ok := b.engine.Description(name)
	if !ok {
		return "Command not found."
	}
	return fmt.Sprintf("%s: %s", name, help)
}

// onChannelModes handles ":server 324 me #channel +nt".
func (b *Bot) onChannelModes(ctx context.Context, message *entities.IrcMessage) error {
	if len(message.SplitArgs) < 2 {
		return nil
	}
	b.session.SetModes(message.Arg(0), slices.Clone(message.SplitArgs[1:]))
	return nil
}

// onEndOfMotd identifies with NickServ and joins the configured channels once
// per connection.
func (b *Bot) onEndOfMotd(ctx context.Context, message *entities.IrcMessage) error {
	if b.session.Identified() {
		return nil
	}
	var errs error
	if password := b.session.Password(); password != "" {
		errs = multierr.Append(errs, b.session.Send(ctx, entities.NewPrivateMessage("NickServ", "IDENTIFY "+password)))
	}
	nickname := b.session.Nickname()
	errs = multierr.Append(errs, b.session.Send(ctx, &entities.OutboundMessage{Command: "MODE", Target: nickname, Args: "+B"}))
	for _, channel := range b.session.UnconnectedChannels() {
		errs = multierr.Append(errs, b.session.Send(ctx, &entities.OutboundMessage{Command: "JOIN", Args: channel}))
	}
	b.session.SetIdentified(true)
	return errs
}

func (b *Bot) onJoin(ctx context.Context, message *entities.IrcMessage) error {
	channel := message.Origin
	b.session.AddChannel(channel)
	if strings.EqualFold(message.Nickname, b.session.Nickname()) {
		b.session.SetConnected(channel, true)
	}
	b.session.AddInhabitant(channel, message.Nickname)
	return nil
}

// onNamesReply handles ":server 353 me = #channel :nick @op +voice".
func (b *Bot) onNamesReply(ctx context.Context, message *entities.IrcMessage) error {
	channel := message.Arg(1)
	if channel == "" {
		return nil
	}
	_, names, ok := strings.Cut(message.Args, ":")
	if !ok {
		return nil
	}
	b.session.AddChannel(channel)
	for _, name := range strings.Fields(names) {
		b.session.AddInhabitant(channel, strings.TrimLeft(name, "~&@%+"))
	}
	return nil
}

func (b *Bot) onNick(ctx context.Context, message *entities.IrcMessage) error {
	newNickname := message.Origin
	if newNickname == "" {
		return nil
	}
	if strings.EqualFold(message.Nickname, b.session.Nickname()) {
		b.session.SetNickname(newNickname)
	}
	b.session.RenameInhabitant(message.Nickname, newNickname)
	return nil
}

func (b *Bot) onPart(ctx context.Context, message *entities.IrcMessage) error {
	if strings.EqualFold(message.Nickname, b.session.Nickname()) {
		b.session.RemoveChannel(message.Origin)
		return nil
	}
	b.session.RemoveInhabitant(message.Origin, message.Nickname)
	return nil
}

func (b *Bot) onQuit(ctx context.Context, message *entities.IrcMessage) error {
	b.session.RemoveInhabitantEverywhere(message.Nickname)
	return nil
}

func (b *Bot) onTopic(ctx context.Context, message *entities.IrcMessage) error {
	b.session.SetTopic(message.Origin, message.Args)
	return nil
}

// onTopicReply handles ":server 332 me #channel :topic".
func (b *Bot) onTopicReply(ctx context.Context, message *entities.IrcMessage) error {
	_, topic, _ := strings.Cut(message.Args, ":")
	b.session.SetTopic(message.Arg(0), topic)
	return nil
}
