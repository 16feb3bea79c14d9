// Package connection provides a line oriented transport with bounded connect
// retry and serialized writes.
package connection

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ergochat/irc-go/ircmsg"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ynotnauk/go-convex/entities"
	"github.com/ynotnauk/go-convex/event"
)

const (
	DefaultAttempts int    = 3
	lineTerminator  string = "\r\n"
)

var (
	ErrBlankAddress  error = errors.New("address cannot be blank")
	ErrConnectFailed error = errors.New("connect failed")
	ErrDisconnected  error = errors.New("disconnected")
	ErrDisposed      error = errors.New("connection has been disposed")
	ErrInvalidLine   error = errors.New("invalid protocol line")
	ErrInvalidPort   error = errors.New("port must be between 1 and 65535")
	ErrNotConnected  error = errors.New("not connected")
	ErrZeroAttempts  error = errors.New("attempts must be at least 1")
)

// Dialer is satisfied by *net.Dialer and *tls.Dialer.
type Dialer interface {
	DialContext(ctx context.Context, network string, address string) (net.Conn, error)
}

type Option func(c *Connection)

// WithAttempts sets how many sockets Connect creates before giving up.
func WithAttempts(attempts int) Option {
	return func(c *Connection) {
		c.attempts = attempts
	}
}

// WithBackOff sets the delay policy between connect attempts. The factory is
// called once per Connect.
func WithBackOff(factory func() backoff.BackOff) Option {
	return func(c *Connection) {
		c.newBackOff = factory
	}
}

func WithDialer(dialer Dialer) Option {
	return func(c *Connection) {
		c.dialer = dialer
	}
}

// WithRateLimit throttles outbound lines. A nil limiter disables throttling.
func WithRateLimit(limiter *rate.Limiter) Option {
	return func(c *Connection) {
		c.limiter = limiter
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Connection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithTLS(config *tls.Config) Option {
	return func(c *Connection) {
		c.tlsConfig = config
	}
}

type Connection struct {
	address    string
	attempts   int
	conn       net.Conn
	dialer     Dialer
	disposed   bool
	flushed    *event.Bus[*entities.FlushedLine]
	limiter    *rate.Limiter
	logger     *zap.Logger
	mu         sync.Mutex
	newBackOff func() backoff.BackOff
	port       int
	reader     *textproto.Reader
	tlsConfig  *tls.Config
	writeMu    sync.Mutex
}

func (c *Connection) Address() string {
	return c.address
}

// Connect dials the server, creating a fresh socket on every attempt. Any
// previous socket is closed first. After the last failed attempt the returned
// error wraps ErrConnectFailed; deciding whether that is fatal is up to the
// caller.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	c.closeLocked()
	c.mu.Unlock()

	attempt := 0
	operation := func() error {
		attempt++
		c.logger.Info("Attempting to connect", zap.String("endpoint", c.Endpoint()), zap.Int("attempt", attempt))
		conn, err := c.dialer.DialContext(ctx, "tcp", c.Endpoint())
		if err != nil {
			return err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.disposed {
			conn.Close()
			return backoff.Permanent(ErrDisposed)
		}
		c.conn = conn
		c.reader = textproto.NewReader(bufio.NewReader(conn))
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Connect attempt failed", zap.Error(err), zap.Duration("retryIn", wait))
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.attempts-1)), ctx)
	err := backoff.RetryNotify(operation, policy, notify)
	if err != nil {
		if errors.Is(err, ErrDisposed) {
			return err
		}
		return fmt.Errorf("%w: %s after %d attempts: %v", ErrConnectFailed, c.Endpoint(), attempt, err)
	}
	c.logger.Info("Connected", zap.String("endpoint", c.Endpoint()))
	return nil
}

// Dispose closes the socket. It is safe to call more than once.
func (c *Connection) Dispose() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return nil
	}
	c.disposed = true
	return c.closeLocked()
}

func (c *Connection) Endpoint() string {
	return net.JoinHostPort(c.address, strconv.Itoa(c.port))
}

func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// OnFlushed subscribes fn to every line successfully written.
func (c *Connection) OnFlushed(fn event.Subscriber[*entities.FlushedLine]) event.Subscription {
	return c.flushed.Subscribe(fn)
}

func (c *Connection) Port() int {
	return c.port
}

// ReadLine blocks until a full line arrives, the socket fails or ctx is done.
// Transport failures are reported as ErrDisconnected.
func (c *Connection) ReadLine(ctx context.Context) (string, error) {
	c.mu.Lock()
	conn, reader := c.conn, c.reader
	c.mu.Unlock()
	if conn == nil {
		return "", ErrNotConnected
	}
	// Unblock the read when the context ends
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()
	line, err := reader.ReadLine()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			conn.SetReadDeadline(time.Time{})
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	return line, nil
}

// WriteLine sends line followed by CRLF and then notifies flush subscribers
// with the exact text sent. Concurrent callers are serialized, and flush
// subscribers observe lines in wire order; they must not write themselves.
// Lines carrying CR, LF or NUL, or too long for the protocol, are rejected
// with ErrInvalidLine before anything is sent.
func (c *Connection) WriteLine(ctx context.Context, line string) error {
	if err := validateLine(line); err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	// Send the line
	if _, err := conn.Write([]byte(line + lineTerminator)); err != nil {
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	flushedLine := &entities.FlushedLine{
		Contents:  line,
		Timestamp: time.Now(),
	}
	if err := c.flushed.Invoke(ctx, flushedLine); err != nil {
		c.logger.Warn("Flush subscriber failed", zap.Error(err))
	}
	return nil
}

func validateLine(line string) error {
	// ParseLineStrict accepts a trailing line break
	if strings.ContainsAny(line, "\r\n\x00") {
		return fmt.Errorf("%w: %v", ErrInvalidLine, ircmsg.ErrorLineContainsBadChar)
	}
	if _, err := ircmsg.ParseLineStrict(line, true, entities.MaxLineLength); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLine, err)
	}
	return nil
}

func (c *Connection) closeLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}

func New(address string, port int, options ...Option) (*Connection, error) {
	// Ensure address is not blank
	if address == "" {
		return nil, ErrBlankAddress
	}
	if port < 1 || port > 65535 {
		return nil, ErrInvalidPort
	}
	connection := &Connection{
		address:    address,
		attempts:   DefaultAttempts,
		flushed:    event.New[*entities.FlushedLine](),
		logger:     zap.NewNop(),
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		port:       port,
	}
	for _, option := range options {
		option(connection)
	}
	if connection.attempts < 1 {
		return nil, ErrZeroAttempts
	}
	if connection.dialer == nil {
		// Create a dialer
		netDialer := &net.Dialer{
			KeepAlive: time.Second * 10,
			Timeout:   time.Second * 30,
		}
		connection.dialer = netDialer
		if connection.tlsConfig != nil {
			connection.dialer = &tls.Dialer{
				NetDialer: netDialer,
				Config:    connection.tlsConfig,
			}
		}
	}
	connection.logger = connection.logger.With(zap.String("component", "connection"))
	return connection, nil
}
