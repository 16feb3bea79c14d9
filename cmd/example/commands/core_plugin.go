// Package commands holds the plugins bundled with the example binary.
package commands

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/ynotnauk/go-convex/dispatch"
	"github.com/ynotnauk/go-convex/entities"
	"github.com/ynotnauk/go-convex/interfaces"
	"github.com/ynotnauk/go-convex/plugin"
)

const CorePluginName string = "core"

func init() {
	plugin.Register(CorePluginName, NewCorePlugin)
}

// CorePlugin provides the basic channel and lifecycle commands.
type CorePlugin struct {
	*plugin.Base
	server interfaces.Server
}

func (p *CorePlugin) Start(ctx context.Context) error {
	methods := []*entities.MethodRegistration{
		p.method("quit", "Shuts me down.", p.quit),
		p.method("join", "Joins a channel: '<nick> join #channel'.", p.join),
		p.method("part", "Leaves a channel: '<nick> part #channel'.", p.part),
		p.method("channels", "Lists the channels I am in.", p.channels),
	}
	for _, method := range methods {
		if err := p.RegisterMethod(ctx, method); err != nil {
			return err
		}
	}
	p.SetStatus(entities.PluginRunning)
	return p.Log(ctx, fmt.Sprintf("%s plugin started", CorePluginName))
}

func (p *CorePlugin) channels(ctx context.Context, message *entities.IrcMessage) error {
	names := slices.DeleteFunc(p.server.ChannelNames(), func(name string) bool {
		return !entities.IsChannelName(name)
	})
	if len(names) == 0 {
		return p.reply(ctx, message, "I am not in any channels.")
	}
	return p.reply(ctx, message, "Channels: "+strings.Join(names, ", "))
}

func (p *CorePlugin) join(ctx context.Context, message *entities.IrcMessage) error {
	channel := message.Arg(2)
	switch {
	case !entities.IsChannelName(channel):
		return p.reply(ctx, message, "Channel names must begin with '#'.")
	case p.server.ChannelExists(channel):
		return p.reply(ctx, message, "I am already in that channel.")
	}
	return p.SendMessage(ctx, &entities.OutboundMessage{Command: "JOIN", Args: channel})
}

func (p *CorePlugin) method(name string, help string, handler entities.MethodHandler) *entities.MethodRegistration {
	return &entities.MethodRegistration{
		Command:     "PRIVMSG",
		CanExecute:  dispatch.InputCommandIs(name),
		Description: &entities.Description{Name: name, Help: help},
		Handler:     p.processing(handler),
	}
}

func (p *CorePlugin) part(ctx context.Context, message *entities.IrcMessage) error {
	channel := message.Arg(2)
	if channel == "" && !message.IsPrivate() {
		channel = message.Origin
	}
	if !p.server.ChannelExists(channel) || !entities.IsChannelName(channel) {
		return p.reply(ctx, message, "I am not in that channel.")
	}
	return p.SendMessage(ctx, &entities.OutboundMessage{Command: "PART", Args: channel})
}

// processing marks the plugin busy while handler runs so the host waits
// before stopping it.
func (p *CorePlugin) processing(handler entities.MethodHandler) entities.MethodHandler {
	return func(ctx context.Context, message *entities.IrcMessage) error {
		p.SetStatus(entities.PluginProcessing)
		defer p.SetStatus(entities.PluginRunning)
		return handler(ctx, message)
	}
}

func (p *CorePlugin) quit(ctx context.Context, message *entities.IrcMessage) error {
	if err := p.reply(ctx, message, "Shutting down."); err != nil {
		return err
	}
	return p.SignalTerminate(ctx)
}

func (p *CorePlugin) reply(ctx context.Context, message *entities.IrcMessage, text string) error {
	target := message.Origin
	if message.IsPrivate() {
		target = message.Nickname
	}
	return p.SendMessage(ctx, entities.NewPrivateMessage(target, text))
}

func NewCorePlugin(server interfaces.Server) (interfaces.Plugin, error) {
	base, err := plugin.NewBase(CorePluginName, "ynotnauk", "1.0.0")
	if err != nil {
		return nil, err
	}
	corePlugin := &CorePlugin{
		Base:   base,
		server: server,
	}
	return corePlugin, nil
}
