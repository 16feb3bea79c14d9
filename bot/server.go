package bot

import (
	"strings"

	"github.com/ynotnauk/go-convex/session"
)

// pluginServer is the interfaces.Server handed to plugins: the live session
// plus the configured API keys.
type pluginServer struct {
	*session.Session
	apiKeys map[string]string
}

// ApiKey looks up a configured key by name, ignoring case.
func (s *pluginServer) ApiKey(name string) (string, bool) {
	key, ok := s.apiKeys[strings.ToLower(name)]
	return key, ok
}

func newPluginServer(session *session.Session, apiKeys map[string]string) *pluginServer {
	server := &pluginServer{
		Session: session,
		apiKeys: make(map[string]string, len(apiKeys)),
	}
	for name, key := range apiKeys {
		server.apiKeys[strings.ToLower(name)] = key
	}
	return server
}
