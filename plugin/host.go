// Package plugin hosts extension modules and carries out the control actions
// they emit.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ynotnauk/go-convex/dispatch"
	"github.com/ynotnauk/go-convex/entities"
	"github.com/ynotnauk/go-convex/event"
	"github.com/ynotnauk/go-convex/interfaces"
)

const (
	DefaultStopAttempts int           = 3
	defaultStopInterval time.Duration = time.Second
)

var (
	ErrDuplicatePlugin error = errors.New("plugin already loaded")
	ErrNilEngine       error = errors.New("engine cannot be nil")
	ErrNilPlugin       error = errors.New("plugin cannot be nil")
	ErrUnknownPlugin   error = errors.New("plugin is not registered")
)

type HostOption func(h *Host)

// WithStopPolicy sets how many times Stop is tried and the delay policy
// between tries before a plugin is force-stopped.
func WithStopPolicy(attempts int, factory func() backoff.BackOff) HostOption {
	return func(h *Host) {
		h.stopAttempts = attempts
		h.newBackOff = factory
	}
}

func WithHostLogger(logger *zap.Logger) HostOption {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

type Host struct {
	engine       *dispatch.Engine
	logger       *zap.Logger
	mu           sync.RWMutex
	newBackOff   func() backoff.BackOff
	plugins      []interfaces.Plugin
	sendMessage  *event.Bus[*entities.OutboundMessage]
	shuttingDown atomic.Bool
	stopAttempts int
	terminate    *event.Bus[string]
}

// Add loads a plugin and starts listening to its control actions.
func (h *Host) Add(plugin interfaces.Plugin) error {
	if plugin == nil {
		return ErrNilPlugin
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, loaded := range h.plugins {
		if loaded.Name() == plugin.Name() || loaded.Id() == plugin.Id() {
			return fmt.Errorf("%w: %s", ErrDuplicatePlugin, plugin.Name())
		}
	}
	plugin.OnAction(h.handleAction)
	h.plugins = append(h.plugins, plugin)
	h.logger.Info("Loaded plugin",
		zap.String("plugin", plugin.Name()),
		zap.String("author", plugin.Author()),
		zap.String("version", plugin.Version()),
		zap.String("id", plugin.Id()),
	)
	return nil
}

// LoadRegistered builds and adds the named plugins from the registry. With no
// names every registered plugin is loaded.
func (h *Host) LoadRegistered(server interfaces.Server, names ...string) error {
	if len(names) == 0 {
		names = Registered()
	}
	var errs error
	for _, name := range names {
		factory, ok := lookup(name)
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s", ErrUnknownPlugin, name))
			continue
		}
		plugin, err := factory(server)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("create plugin %s: %w", name, err))
			continue
		}
		errs = multierr.Append(errs, h.Add(plugin))
	}
	return errs
}

// OnSendMessage subscribes fn to outbound messages requested by plugins.
func (h *Host) OnSendMessage(fn event.Subscriber[*entities.OutboundMessage]) event.Subscription {
	return h.sendMessage.Subscribe(fn)
}

// OnTerminate subscribes fn to terminate requests. The argument is the name of
// the requesting plugin.
func (h *Host) OnTerminate(fn event.Subscriber[string]) event.Subscription {
	return h.terminate.Subscribe(fn)
}

func (h *Host) Plugins() []interfaces.Plugin {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]interfaces.Plugin(nil), h.plugins...)
}

func (h *Host) ShuttingDown() bool {
	return h.shuttingDown.Load()
}

// StartPlugins starts every loaded plugin in load order. A plugin that fails
// to start does not prevent the others from starting.
func (h *Host) StartPlugins(ctx context.Context) error {
	h.shuttingDown.Store(false)
	var errs error
	for _, plugin := range h.Plugins() {
		if err := plugin.Start(ctx); err != nil {
			h.logger.Error("Failed to start plugin", zap.String("plugin", plugin.Name()), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("start plugin %s: %w", plugin.Name(), err))
			continue
		}
		h.logger.Info("Started plugin", zap.String("plugin", plugin.Name()))
	}
	return errs
}

// StopPlugins asks every plugin to stop, retrying while a plugin reports it is
// still processing, and force-stops plugins that never comply. Once called,
// only Log actions are honoured.
func (h *Host) StopPlugins(ctx context.Context) error {
	h.shuttingDown.Store(true)
	var errs error
	for _, plugin := range h.Plugins() {
		policy := backoff.WithContext(backoff.WithMaxRetries(h.newBackOff(), uint64(h.stopAttempts-1)), ctx)
		err := backoff.RetryNotify(func() error {
			return plugin.Stop(ctx)
		}, policy, func(err error, wait time.Duration) {
			h.logger.Info("Plugin is still running", zap.String("plugin", plugin.Name()), zap.Error(err))
		})
		if err == nil {
			h.logger.Info("Stopped plugin", zap.String("plugin", plugin.Name()))
			continue
		}
		h.logger.Warn("Force stopping plugin", zap.String("plugin", plugin.Name()), zap.Error(err))
		if err := plugin.ForceStop(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("force stop plugin %s: %w", plugin.Name(), err))
		}
	}
	return errs
}

// handleAction carries out one control action. Malformed actions are logged
// and ignored; they are never returned to the emitting plugin.
func (h *Host) handleAction(ctx context.Context, action *entities.ControlAction) error {
	logger := h.logger.With(zap.String("plugin", action.Source), zap.Stringer("action", action.Type))
	if h.ShuttingDown() && action.Type != entities.ActionLog {
		logger.Debug("Ignoring action during shutdown")
		return nil
	}
	switch action.Type {
	case entities.ActionLog:
		text, ok := action.Payload.(string)
		if !ok {
			logger.Warn("Unexpected action payload", zap.String("payload", fmt.Sprintf("%T", action.Payload)))
			return nil
		}
		logger.Info(text)
	case entities.ActionRegisterMethod:
		registration, ok := action.Payload.(*entities.MethodRegistration)
		if !ok || registration == nil {
			logger.Warn("Unexpected action payload", zap.String("payload", fmt.Sprintf("%T", action.Payload)))
			return nil
		}
		if err := h.engine.Register(registration); err != nil {
			logger.Warn("Failed to register method", zap.Error(err))
		}
	case entities.ActionSendMessage:
		message, ok := action.Payload.(*entities.OutboundMessage)
		if !ok || message == nil {
			logger.Warn("Unexpected action payload", zap.String("payload", fmt.Sprintf("%T", action.Payload)))
			return nil
		}
		if err := h.sendMessage.Invoke(ctx, message); err != nil {
			logger.Warn("Failed to send message", zap.Error(err))
		}
	case entities.ActionSignalTerminate:
		logger.Info("Terminate requested")
		if err := h.terminate.Invoke(ctx, action.Source); err != nil {
			logger.Warn("Terminate subscriber failed", zap.Error(err))
		}
	default:
		logger.Warn("Unknown action type")
	}
	return nil
}

func NewHost(engine *dispatch.Engine, options ...HostOption) (*Host, error) {
	if engine == nil {
		return nil, ErrNilEngine
	}
	host := &Host{
		engine:       engine,
		logger:       zap.NewNop(),
		newBackOff:   func() backoff.BackOff { return backoff.NewConstantBackOff(defaultStopInterval) },
		sendMessage:  event.New[*entities.OutboundMessage](),
		stopAttempts: DefaultStopAttempts,
		terminate:    event.New[string](),
	}
	for _, option := range options {
		option(host)
	}
	if host.stopAttempts < 1 {
		host.stopAttempts = 1
	}
	host.logger = host.logger.With(zap.String("component", "plugin_host"))
	return host, nil
}
