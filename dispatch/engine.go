// Package dispatch routes parsed messages to command-keyed handler groups.
package dispatch

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ynotnauk/go-convex/entities"
	"github.com/ynotnauk/go-convex/event"
)

// DefaultGroup is the key of the group that runs for every message.
const DefaultGroup string = ""

var (
	ErrNilHandler      error = errors.New("handler cannot be nil")
	ErrNilRegistration error = errors.New("registration cannot be nil")
)

// Engine keeps one ordered handler group per command plus a default group.
// Groups only ever grow, so registering while messages are dispatched is safe.
type Engine struct {
	descriptions   map[string]string
	descriptionsMu sync.RWMutex
	groups         map[string]*event.Bus[*entities.IrcMessage]
	groupsMu       sync.RWMutex
	logger         *zap.Logger
}

func (e *Engine) CommandNames() []string {
	e.descriptionsMu.RLock()
	defer e.descriptionsMu.RUnlock()
	names := make([]string, 0, len(e.descriptions))
	for name := range e.descriptions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Describe records help text for name. The first description for a name wins;
// it reports false when name was already described.
func (e *Engine) Describe(name string, help string) bool {
	name = strings.ToLower(name)
	e.descriptionsMu.Lock()
	defer e.descriptionsMu.Unlock()
	if _, ok := e.descriptions[name]; ok {
		e.logger.Warn("Duplicate command description dropped", zap.String("name", name))
		return false
	}
	e.descriptions[name] = help
	return true
}

func (e *Engine) Description(name string) (string, bool) {
	e.descriptionsMu.RLock()
	defer e.descriptionsMu.RUnlock()
	help, ok := e.descriptions[strings.ToLower(name)]
	return help, ok
}

func (e *Engine) HasCommand(name string) bool {
	_, ok := e.Description(name)
	return ok
}

// Invoke runs the default group and then the group for the message's command.
// Handler failures are logged and never reach the caller. Messages with an
// empty command are skipped.
func (e *Engine) Invoke(ctx context.Context, message *entities.IrcMessage) error {
	if message == nil || message.Command == "" {
		return nil
	}
	for _, key := range []string{DefaultGroup, message.Command} {
		group := e.group(key)
		if group == nil {
			continue
		}
		if err := group.Invoke(ctx, message); err != nil {
			e.logger.Error("Handler failed",
				zap.String("command", message.Command),
				zap.String("group", key),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Register appends the registration to its command group, creating the group
// when needed. A description, if any, is recorded first-wins.
func (e *Engine) Register(registration *entities.MethodRegistration) error {
	if registration == nil {
		return ErrNilRegistration
	}
	if registration.Handler == nil {
		return ErrNilHandler
	}
	if registration.Description != nil && registration.Description.Name != "" {
		e.Describe(registration.Description.Name, registration.Description.Help)
	}
	e.groupsMu.Lock()
	group, ok := e.groups[registration.Command]
	if !ok {
		group = event.New[*entities.IrcMessage]()
		e.groups[registration.Command] = group
	}
	e.groupsMu.Unlock()
	group.Subscribe(func(ctx context.Context, message *entities.IrcMessage) error {
		if !registration.Accepts(message) {
			return nil
		}
		return registration.Handler(ctx, message)
	})
	return nil
}

func (e *Engine) group(key string) *event.Bus[*entities.IrcMessage] {
	e.groupsMu.RLock()
	defer e.groupsMu.RUnlock()
	return e.groups[key]
}

func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		descriptions: make(map[string]string),
		groups:       make(map[string]*event.Bus[*entities.IrcMessage]),
		logger:       logger.With(zap.String("component", "dispatch")),
	}
}
