package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ynotnauk/go-convex/dispatch"
	"github.com/ynotnauk/go-convex/entities"
	"github.com/ynotnauk/go-convex/interfaces"
)

type echoPlugin struct {
	*Base
	stopCalls  int
	forceCalls int
}

func (p *echoPlugin) Start(ctx context.Context) error {
	p.SetStatus(entities.PluginRunning)
	return p.RegisterMethod(ctx, &entities.MethodRegistration{
		Command:     "PRIVMSG",
		CanExecute:  dispatch.InputCommandIs("echo"),
		Description: &entities.Description{Name: "echo", Help: "repeats what you say"},
		Handler: func(ctx context.Context, message *entities.IrcMessage) error {
			return p.SendMessage(ctx, entities.NewPrivateMessage(message.Origin, message.Arg(2)))
		},
	})
}

func (p *echoPlugin) Stop(ctx context.Context) error {
	p.stopCalls++
	return p.Base.Stop(ctx)
}

func (p *echoPlugin) ForceStop(ctx context.Context) error {
	p.forceCalls++
	return p.Base.ForceStop(ctx)
}

func newEchoPlugin(t *testing.T, name string) *echoPlugin {
	t.Helper()
	base, err := NewBase(name, "tester", "1.0.0")
	require.NoError(t, err)
	return &echoPlugin{Base: base}
}

func newTestHost(t *testing.T, logger *zap.Logger) (*Host, *dispatch.Engine) {
	t.Helper()
	engine := dispatch.New(logger)
	host, err := NewHost(engine,
		WithHostLogger(logger),
		WithStopPolicy(3, func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	)
	require.NoError(t, err)
	return host, engine
}

func TestNewBase(t *testing.T) {
	_, err := NewBase("", "tester", "1.0.0")
	assert.ErrorIs(t, err, ErrBlankName)
	first, err := NewBase("one", "tester", "1.0.0")
	require.NoError(t, err)
	second, err := NewBase("one", "tester", "1.0.0")
	require.NoError(t, err)
	assert.NotEqual(t, first.Id(), second.Id())
	assert.Equal(t, entities.PluginStopped, first.Status())
}

func TestNewHost(t *testing.T) {
	_, err := NewHost(nil)
	assert.ErrorIs(t, err, ErrNilEngine)
}

func TestAdd(t *testing.T) {
	host, _ := newTestHost(t, zap.NewNop())
	assert.ErrorIs(t, host.Add(nil), ErrNilPlugin)
	require.NoError(t, host.Add(newEchoPlugin(t, "echo")))
	assert.ErrorIs(t, host.Add(newEchoPlugin(t, "echo")), ErrDuplicatePlugin)
	assert.Len(t, host.Plugins(), 1)
}

func TestRegisterMethodAndSendMessage(t *testing.T) {
	host, engine := newTestHost(t, zap.NewNop())
	plugin := newEchoPlugin(t, "echo")
	require.NoError(t, host.Add(plugin))
	var sent []string
	host.OnSendMessage(func(ctx context.Context, message *entities.OutboundMessage) error {
		sent = append(sent, message.String())
		return nil
	})
	require.NoError(t, host.StartPlugins(context.Background()))
	assert.Equal(t, entities.PluginRunning, plugin.Status())

	help, ok := engine.Description("echo")
	require.True(t, ok)
	assert.Equal(t, "repeats what you say", help)

	message := &entities.IrcMessage{
		Command:      "PRIVMSG",
		Origin:       "#go",
		SplitArgs:    []string{"bot", "echo", "hello world"},
		InputCommand: "echo",
	}
	require.NoError(t, engine.Invoke(context.Background(), message))
	assert.Equal(t, []string{"PRIVMSG #go :hello world"}, sent)
}

func TestSignalTerminate(t *testing.T) {
	host, _ := newTestHost(t, zap.NewNop())
	plugin := newEchoPlugin(t, "core")
	require.NoError(t, host.Add(plugin))
	var sources []string
	host.OnTerminate(func(ctx context.Context, source string) error {
		sources = append(sources, source)
		return nil
	})
	require.NoError(t, plugin.SignalTerminate(context.Background()))
	assert.Equal(t, []string{"core"}, sources)
}

func TestUnexpectedPayloadIsIgnored(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	host, engine := newTestHost(t, zap.New(core))
	plugin := newEchoPlugin(t, "broken")
	require.NoError(t, host.Add(plugin))
	sent := 0
	host.OnSendMessage(func(ctx context.Context, message *entities.OutboundMessage) error {
		sent++
		return nil
	})
	ctx := context.Background()
	require.NoError(t, plugin.Emit(ctx, &entities.ControlAction{Type: entities.ActionSendMessage, Payload: "PRIVMSG #go :hi"}))
	require.NoError(t, plugin.Emit(ctx, &entities.ControlAction{Type: entities.ActionRegisterMethod, Payload: 42}))
	require.NoError(t, plugin.Emit(ctx, &entities.ControlAction{Type: entities.ActionLog, Payload: []byte("x")}))
	require.NoError(t, plugin.Emit(ctx, &entities.ControlAction{Type: entities.ActionType(99)}))
	assert.Equal(t, 0, sent)
	assert.Empty(t, engine.CommandNames())
	assert.Equal(t, 3, logs.FilterMessage("Unexpected action payload").Len())
	assert.Equal(t, 1, logs.FilterMessage("Unknown action type").Len())
}

func TestLogAction(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	host, _ := newTestHost(t, zap.New(core))
	plugin := newEchoPlugin(t, "chatty")
	require.NoError(t, host.Add(plugin))
	require.NoError(t, plugin.Log(context.Background(), "hello from plugin"))
	entries := logs.FilterMessage("hello from plugin").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "chatty", entries[0].ContextMap()["plugin"])
}

func TestStopPlugins(t *testing.T) {
	host, _ := newTestHost(t, zap.NewNop())
	plugin := newEchoPlugin(t, "echo")
	require.NoError(t, host.Add(plugin))
	require.NoError(t, host.StartPlugins(context.Background()))
	require.NoError(t, host.StopPlugins(context.Background()))
	assert.Equal(t, 1, plugin.stopCalls)
	assert.Equal(t, 0, plugin.forceCalls)
	assert.Equal(t, entities.PluginStopped, plugin.Status())
	assert.True(t, host.ShuttingDown())
}

func TestStopPluginsForceStopsBusyPlugin(t *testing.T) {
	host, _ := newTestHost(t, zap.NewNop())
	plugin := newEchoPlugin(t, "busy")
	require.NoError(t, host.Add(plugin))
	plugin.SetStatus(entities.PluginProcessing)
	require.NoError(t, host.StopPlugins(context.Background()))
	assert.Equal(t, 3, plugin.stopCalls)
	assert.Equal(t, 1, plugin.forceCalls)
	assert.Equal(t, entities.PluginStopped, plugin.Status())
}

func TestActionsIgnoredDuringShutdown(t *testing.T) {
	host, engine := newTestHost(t, zap.NewNop())
	plugin := newEchoPlugin(t, "late")
	require.NoError(t, host.Add(plugin))
	sent := 0
	host.OnSendMessage(func(ctx context.Context, message *entities.OutboundMessage) error {
		sent++
		return nil
	})
	require.NoError(t, host.StopPlugins(context.Background()))
	ctx := context.Background()
	require.NoError(t, plugin.Start(ctx))
	require.NoError(t, plugin.SendMessage(ctx, entities.NewPrivateMessage("#go", "too late")))
	assert.Equal(t, 0, sent)
	assert.Empty(t, engine.CommandNames())
}

func TestLoadRegistered(t *testing.T) {
	Register("test-echo", func(server interfaces.Server) (interfaces.Plugin, error) {
		base, err := NewBase("test-echo", "tester", "1.0.0")
		if err != nil {
			return nil, err
		}
		return &echoPlugin{Base: base}, nil
	})
	Register("test-broken", func(server interfaces.Server) (interfaces.Plugin, error) {
		return nil, errors.New("missing api key")
	})
	t.Cleanup(func() {
		unregister("test-echo")
		unregister("test-broken")
	})
	assert.Subset(t, Registered(), []string{"test-broken", "test-echo"})
	assert.Panics(t, func() {
		Register("test-echo", func(server interfaces.Server) (interfaces.Plugin, error) { return nil, nil })
	})

	host, _ := newTestHost(t, zap.NewNop())
	err := host.LoadRegistered(nil, "test-echo", "test-broken", "test-missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownPlugin)
	assert.ErrorContains(t, err, "missing api key")
	require.Len(t, host.Plugins(), 1)
	assert.Equal(t, "test-echo", host.Plugins()[0].Name())
}

func unregister(name string) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	delete(factories, name)
}
