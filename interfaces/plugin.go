package interfaces

import (
	"context"

	"github.com/ynotnauk/go-convex/entities"
	"github.com/ynotnauk/go-convex/event"
)

// Plugin is an independently authored extension. A plugin manages its own
// status; the host only reads it.
type Plugin interface {
	Author() string
	ForceStop(ctx context.Context) error
	Id() string
	Name() string
	OnAction(fn event.Subscriber[*entities.ControlAction]) event.Subscription
	Start(ctx context.Context) error
	Status() entities.PluginStatus
	// Stop asks the plugin to finish. A plugin that is still working returns
	// an error wrapping a "still processing" condition instead of stopping.
	Stop(ctx context.Context) error
	Version() string
}
