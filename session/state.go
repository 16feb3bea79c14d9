package session

type State int32

const (
	StateDisconnected State = iota
	StateConnected
	StateRegistered
	// StateTerminal follows a server ERROR or a failed reconnect. The session
	// does not leave it on its own.
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnected:
		return "Connected"
	case StateRegistered:
		return "Registered"
	case StateTerminal:
		return "Terminal"
	default:
		return "Unknown"
	}
}
