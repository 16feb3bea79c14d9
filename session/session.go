// Package session runs one protocol session on top of a line transport.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ynotnauk/go-convex/entities"
	"github.com/ynotnauk/go-convex/event"
	"github.com/ynotnauk/go-convex/interfaces"
	"github.com/ynotnauk/go-convex/parser"
)

const (
	DefaultArchiveSize int    = 200
	keepaliveProbe     string = "PING"
	keepaliveReply     string = "PONG"
)

var (
	ErrBlankNickname   error = errors.New("nickname cannot be blank")
	ErrBlankRealname   error = errors.New("realname cannot be blank")
	ErrNilConnector    error = errors.New("connector cannot be nil")
	ErrNilIdentity     error = errors.New("identity cannot be nil")
	ErrNotExecuting    error = errors.New("session is not executing")
	ErrReconnectFailed error = errors.New("reconnect failed")
	ErrServerClosed    error = errors.New("server closed the session")
)

type Option func(s *Session)

// WithArchiveSize bounds the number of messages kept per channel.
func WithArchiveSize(size int) Option {
	return func(s *Session) {
		s.archiveSize = size
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

type Session struct {
	archiveSize int
	channels    map[string]*entities.Channel
	channelsMu  sync.RWMutex
	connector   interfaces.Connector
	executing   atomic.Bool
	identified  atomic.Bool
	identity    entities.Identity
	identityMu  sync.RWMutex
	logger      *zap.Logger
	messages    *event.Bus[*entities.IrcMessage]
	state       atomic.Int32
}

func (s *Session) Address() string {
	return s.connector.Address()
}

// Executing reports whether callers should schedule another work cycle.
func (s *Session) Executing() bool {
	return s.executing.Load()
}

func (s *Session) Identified() bool {
	return s.identified.Load()
}

// Initialise registers the server pseudo-channel, connects with retry and
// sends the registration lines.
func (s *Session) Initialise(ctx context.Context) error {
	s.AddChannel(s.connector.Address())
	if err := s.connect(ctx); err != nil {
		return err
	}
	s.executing.Store(true)
	return nil
}

func (s *Session) Nickname() string {
	s.identityMu.RLock()
	defer s.identityMu.RUnlock()
	return s.identity.Nickname
}

// OnMessage subscribes fn to every parsed message the session forwards.
func (s *Session) OnMessage(fn event.Subscriber[*entities.IrcMessage]) event.Subscription {
	return s.messages.Subscribe(fn)
}

func (s *Session) Password() string {
	s.identityMu.RLock()
	defer s.identityMu.RUnlock()
	return s.identity.Password
}

func (s *Session) Realname() string {
	s.identityMu.RLock()
	defer s.identityMu.RUnlock()
	return s.identity.Realname
}

// Send writes message to the connector. Messages that cannot be rendered as a
// single protocol line fail with entities.ErrInvalidLine and are not written.
func (s *Session) Send(ctx context.Context, message *entities.OutboundMessage) error {
	line, err := message.Line()
	if err != nil {
		return err
	}
	return s.connector.WriteLine(ctx, line)
}

func (s *Session) SetIdentified(identified bool) {
	s.identified.Store(identified)
}

func (s *Session) SetNickname(nickname string) {
	s.identityMu.Lock()
	defer s.identityMu.Unlock()
	s.identity.Nickname = nickname
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Stop clears the executing flag so no further work cycles are scheduled.
func (s *Session) Stop() {
	s.executing.Store(false)
}

func (s *Session) Dispose() error {
	s.Stop()
	s.state.Store(int32(StateDisconnected))
	return s.connector.Dispose()
}

// WorkCycle reads one line and handles it. Keepalive probes are answered and
// consumed; every other line is parsed, archived and forwarded to OnMessage
// subscribers. A read failure triggers one reconnect; if that fails the
// session stops executing.
func (s *Session) WorkCycle(ctx context.Context) error {
	if !s.Executing() {
		return ErrNotExecuting
	}
	line, err := s.connector.ReadLine(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return s.reconnect(ctx, err)
	}
	if s.keepalive(ctx, line) {
		return nil
	}
	message := parser.Parse(line)
	if message.Command == "ERROR" {
		s.executing.Store(false)
		s.state.Store(int32(StateTerminal))
		s.logger.Error("Server closed the session", zap.String("reason", message.Args))
		return fmt.Errorf("%w: %s", ErrServerClosed, message.Args)
	}
	s.archive(message)
	if err := s.messages.Invoke(ctx, message); err != nil {
		s.logger.Warn("Message subscriber failed", zap.String("command", message.Command), zap.Error(err))
	}
	return nil
}

func (s *Session) archive(message *entities.IrcMessage) {
	s.channelsMu.Lock()
	defer s.channelsMu.Unlock()
	channel, ok := s.channels[channelKey(message.Origin)]
	if !ok {
		channel = s.channels[channelKey(s.connector.Address())]
	}
	if channel != nil {
		channel.Archive(message, s.archiveSize)
	}
}

func (s *Session) connect(ctx context.Context) error {
	s.state.Store(int32(StateDisconnected))
	if err := s.connector.Connect(ctx); err != nil {
		return err
	}
	s.state.Store(int32(StateConnected))
	// Send the registration lines
	s.identityMu.RLock()
	identity := s.identity
	s.identityMu.RUnlock()
	if err := s.connector.WriteLine(ctx, fmt.Sprintf("USER %s 0 * %s", identity.Nickname, identity.Realname)); err != nil {
		return err
	}
	if err := s.connector.WriteLine(ctx, fmt.Sprintf("NICK %s", identity.Nickname)); err != nil {
		return err
	}
	s.state.Store(int32(StateRegistered))
	return nil
}

// keepalive answers a probe line and reports whether the line was consumed.
// The probe may carry a tag prefix; its token is echoed back verbatim.
func (s *Session) keepalive(ctx context.Context, line string) bool {
	if strings.HasPrefix(line, "@") {
		_, line, _ = strings.Cut(line, " ")
		line = strings.TrimLeft(line, " ")
	}
	rest, found := strings.CutPrefix(line, keepaliveProbe)
	if !found || (rest != "" && !strings.HasPrefix(rest, " ")) {
		return false
	}
	reply := &entities.OutboundMessage{
		Args:    strings.TrimPrefix(strings.TrimLeft(rest, " "), ":"),
		Command: keepaliveReply,
	}
	if err := s.Send(ctx, reply); err != nil {
		s.logger.Warn("Failed to answer keepalive", zap.Error(err))
	}
	return true
}

func (s *Session) reconnect(ctx context.Context, cause error) error {
	s.logger.Warn("Connection lost, reconnecting", zap.Error(cause))
	s.identified.Store(false)
	s.markAllDisconnected()
	if err := s.connect(ctx); err != nil {
		s.executing.Store(false)
		s.state.Store(int32(StateTerminal))
		s.logger.Error("Reconnect failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrReconnectFailed, err)
	}
	s.logger.Info("Reconnected", zap.String("address", s.connector.Address()))
	return nil
}

func New(connector interfaces.Connector, identity *entities.Identity, options ...Option) (*Session, error) {
	if connector == nil {
		return nil, ErrNilConnector
	}
	if identity == nil {
		return nil, ErrNilIdentity
	}
	if identity.Nickname == "" {
		return nil, ErrBlankNickname
	}
	if identity.Realname == "" {
		return nil, ErrBlankRealname
	}
	session := &Session{
		archiveSize: DefaultArchiveSize,
		channels:    make(map[string]*entities.Channel),
		connector:   connector,
		identity:    *identity,
		logger:      zap.NewNop(),
		messages:    event.New[*entities.IrcMessage](),
	}
	for _, option := range options {
		option(session)
	}
	session.logger = session.logger.With(zap.String("component", "session"))
	return session, nil
}
