package interfaces

// Server is the read-only view of the running session handed to plugins.
type Server interface {
	// ApiKey returns the configured key for an external service.
	ApiKey(name string) (string, bool)
	ChannelExists(name string) bool
	ChannelNames() []string
	Nickname() string
}
