package entities

type PluginStatus int32

const (
	PluginStopped PluginStatus = iota
	PluginRunning
	PluginProcessing
)

func (s PluginStatus) String() string {
	switch s {
	case PluginStopped:
		return "Stopped"
	case PluginRunning:
		return "Running"
	case PluginProcessing:
		return "Processing"
	default:
		return "Unknown"
	}
}
