package plugin

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ynotnauk/go-convex/entities"
	"github.com/ynotnauk/go-convex/event"
)

var (
	ErrBlankName       error = errors.New("name cannot be blank")
	ErrStillProcessing error = errors.New("plugin is still processing")
)

// Base carries the metadata, status and action stream every plugin needs.
// Plugins embed *Base and override Start, Stop or ForceStop as required.
type Base struct {
	actions *event.Bus[*entities.ControlAction]
	author  string
	id      string
	name    string
	status  atomic.Int32
	version string
}

func (b *Base) Author() string {
	return b.author
}

// Emit sends action to every host listening on this plugin.
func (b *Base) Emit(ctx context.Context, action *entities.ControlAction) error {
	action.Source = b.name
	return b.actions.Invoke(ctx, action)
}

func (b *Base) ForceStop(ctx context.Context) error {
	b.SetStatus(entities.PluginStopped)
	return nil
}

func (b *Base) Id() string {
	return b.id
}

func (b *Base) Log(ctx context.Context, text string) error {
	return b.Emit(ctx, &entities.ControlAction{Type: entities.ActionLog, Payload: text})
}

func (b *Base) Name() string {
	return b.name
}

func (b *Base) OnAction(fn event.Subscriber[*entities.ControlAction]) event.Subscription {
	return b.actions.Subscribe(fn)
}

func (b *Base) RegisterMethod(ctx context.Context, registration *entities.MethodRegistration) error {
	return b.Emit(ctx, &entities.ControlAction{Type: entities.ActionRegisterMethod, Payload: registration})
}

func (b *Base) SendMessage(ctx context.Context, message *entities.OutboundMessage) error {
	return b.Emit(ctx, &entities.ControlAction{Type: entities.ActionSendMessage, Payload: message})
}

func (b *Base) SetStatus(status entities.PluginStatus) {
	b.status.Store(int32(status))
}

func (b *Base) SignalTerminate(ctx context.Context) error {
	return b.Emit(ctx, &entities.ControlAction{Type: entities.ActionSignalTerminate})
}

func (b *Base) Start(ctx context.Context) error {
	b.SetStatus(entities.PluginRunning)
	return nil
}

func (b *Base) Status() entities.PluginStatus {
	return entities.PluginStatus(b.status.Load())
}

// Stop refuses while the plugin is processing so the host can retry later.
func (b *Base) Stop(ctx context.Context) error {
	if b.Status() == entities.PluginProcessing {
		return ErrStillProcessing
	}
	b.SetStatus(entities.PluginStopped)
	return nil
}

func (b *Base) Version() string {
	return b.version
}

func NewBase(name string, author string, version string) (*Base, error) {
	// Ensure name is not blank
	if name == "" {
		return nil, ErrBlankName
	}
	base := &Base{
		actions: event.New[*entities.ControlAction](),
		author:  author,
		id:      uuid.NewString(),
		name:    name,
		version: version,
	}
	return base, nil
}
