package entities

import "context"

type GuardFunc func(message *IrcMessage) bool

type MethodHandler func(ctx context.Context, message *IrcMessage) error

type Description struct {
	Help string
	Name string
}

// MethodRegistration binds a handler to a protocol command. An empty Command
// places the handler in the default group that sees every message.
type MethodRegistration struct {
	CanExecute  GuardFunc
	Command     string
	Description *Description
	Handler     MethodHandler
}

// Accepts reports whether the guard lets message through. A nil guard
// accepts everything.
func (r *MethodRegistration) Accepts(message *IrcMessage) bool {
	if r.CanExecute == nil {
		return true
	}
	return r.CanExecute(message)
}
