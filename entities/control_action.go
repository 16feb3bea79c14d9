package entities

type ActionType int

const (
	ActionLog ActionType = iota
	ActionRegisterMethod
	ActionSendMessage
	ActionSignalTerminate
)

func (t ActionType) String() string {
	switch t {
	case ActionLog:
		return "Log"
	case ActionRegisterMethod:
		return "RegisterMethod"
	case ActionSendMessage:
		return "SendMessage"
	case ActionSignalTerminate:
		return "SignalTerminate"
	default:
		return "Unknown"
	}
}

// ControlAction is emitted by a plugin to ask the host for a side effect.
// Payload is a string for ActionLog, a *MethodRegistration for
// ActionRegisterMethod, an *OutboundMessage for ActionSendMessage and nil for
// ActionSignalTerminate.
type ControlAction struct {
	Payload any
	Source  string
	Type    ActionType
}
