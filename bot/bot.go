package bot

import (
	"context"
	"crypto/tls"
	"errors"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ynotnauk/go-convex/config"
	"github.com/ynotnauk/go-convex/connection"
	"github.com/ynotnauk/go-convex/dispatch"
	"github.com/ynotnauk/go-convex/entities"
	"github.com/ynotnauk/go-convex/event"
	"github.com/ynotnauk/go-convex/interfaces"
	"github.com/ynotnauk/go-convex/logging"
	"github.com/ynotnauk/go-convex/plugin"
	"github.com/ynotnauk/go-convex/session"
)

var (
	ErrNilAuthProvider error = errors.New("authProvider cannot be nil")
	ErrNilConfig       error = errors.New("config cannot be nil")
)

type flushNotifier interface {
	OnFlushed(fn event.Subscriber[*entities.FlushedLine]) event.Subscription
}

type Option func(b *Bot)

// WithBacklog makes Start run the backlog flush task and flush it once more on
// shutdown.
func WithBacklog(backlog *logging.Backlog) Option {
	return func(b *Bot) {
		b.backlog = backlog
	}
}

// WithConnector replaces the TCP connection built from the config.
func WithConnector(connector interfaces.Connector) Option {
	return func(b *Bot) {
		b.connector = connector
	}
}

func WithHostOptions(options ...plugin.HostOption) Option {
	return func(b *Bot) {
		b.hostOptions = append(b.hostOptions, options...)
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(b *Bot) {
		if logger != nil {
			b.logger = logger
		}
	}
}

type Bot struct {
	backlog     *logging.Backlog
	cancel      context.CancelFunc
	cancelMu    sync.Mutex
	config      *config.Config
	connector   interfaces.Connector
	engine      *dispatch.Engine
	host        *plugin.Host
	hostOptions []plugin.HostOption
	ignoreList  map[string]struct{}
	logger      *zap.Logger
	session     *session.Session
}

func (b *Bot) Engine() *dispatch.Engine {
	return b.engine
}

func (b *Bot) Host() *plugin.Host {
	return b.host
}

func (b *Bot) Session() *session.Session {
	return b.session
}

// Start connects, starts the plugins and runs work cycles until the session
// stops executing or ctx ends. Plugins are stopped and the connection disposed
// before it returns.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Starting bot...")
	if err := b.session.Initialise(ctx); err != nil {
		return multierr.Append(err, b.shutdown())
	}
	if err := b.host.StartPlugins(ctx); err != nil {
		b.logger.Warn("Some plugins failed to start", zap.Error(err))
	}
	ctx, cancel := context.WithCancel(ctx)
	b.cancelMu.Lock()
	b.cancel = cancel
	b.cancelMu.Unlock()
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		defer cancel()
		for b.session.Executing() {
			err := b.session.WorkCycle(groupCtx)
			if err == nil {
				continue
			}
			if groupCtx.Err() != nil {
				return nil
			}
			b.logger.Warn("Work cycle failed", zap.Error(err))
		}
		return nil
	})
	if b.backlog != nil {
		group.Go(func() error {
			return b.backlog.Run(groupCtx)
		})
	}
	err := group.Wait()
	return multierr.Append(err, b.shutdown())
}

// Terminate stops scheduling work cycles and unblocks a pending read.
func (b *Bot) Terminate() {
	b.session.Stop()
	b.cancelMu.Lock()
	defer b.cancelMu.Unlock()
	if b.cancel != nil {
		b.cancel()
	}
}

func (b *Bot) ignored(message *entities.IrcMessage) bool {
	if strings.EqualFold(message.Nickname, b.session.Nickname()) {
		return true
	}
	_, byRealname := b.ignoreList[strings.ToLower(message.Realname)]
	_, byNickname := b.ignoreList[strings.ToLower(message.Nickname)]
	return byRealname || byNickname
}

// listen receives every parsed message from the session.
func (b *Bot) listen(ctx context.Context, message *entities.IrcMessage) error {
	if message.Command == "" {
		return nil
	}
	switch message.Command {
	case "PRIVMSG", "NOTICE":
		b.logger.Info(message.Args,
			zap.String("command", message.Command),
			zap.String("origin", message.Origin),
			zap.String("nickname", message.Nickname),
		)
		if message.Command == "PRIVMSG" && entities.IsChannelName(message.Origin) {
			b.session.AddChannel(message.Origin)
		}
		if b.ignored(message) {
			return nil
		}
		b.resolveInputCommand(message)
	default:
		b.logger.Debug(message.Raw)
	}
	return b.engine.Invoke(ctx, message)
}

func (b *Bot) onFlushed(ctx context.Context, line *entities.FlushedLine) error {
	contents := line.Contents
	if strings.HasPrefix(contents, "PRIVMSG NickServ :IDENTIFY") {
		contents = "PRIVMSG NickServ :IDENTIFY ********"
	}
	b.logger.Info(" >> " + contents)
	return nil
}

// resolveInputCommand sets InputCommand when the message starts with the
// client's nickname, as in "convex quit".
func (b *Bot) resolveInputCommand(message *entities.IrcMessage) {
	if !b.addressed(message) {
		return
	}
	message.InputCommand = strings.ToLower(message.Arg(1))
}

func (b *Bot) addressed(message *entities.IrcMessage) bool {
	target := strings.Trim(message.Arg(0), ",:")
	return target != "" && strings.EqualFold(target, b.session.Nickname())
}

func (b *Bot) reply(ctx context.Context, message *entities.IrcMessage, text string) error {
	target := message.Origin
	if message.IsPrivate() {
		target = message.Nickname
	}
	return b.session.Send(ctx, entities.NewPrivateMessage(target, text))
}

func (b *Bot) shutdown() error {
	b.logger.Info("Shutting down bot...")
	var errs error
	errs = multierr.Append(errs, b.host.StopPlugins(context.Background()))
	errs = multierr.Append(errs, b.session.Dispose())
	if b.backlog != nil {
		errs = multierr.Append(errs, b.backlog.Flush())
	}
	return errs
}

func New(cfg *config.Config, authProvider interfaces.AuthProvider, options ...Option) (*Bot, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if authProvider == nil {
		return nil, ErrNilAuthProvider
	}
	identity, err := authProvider.GetIdentity()
	if err != nil {
		return nil, err
	}
	// Create bot
	bot := &Bot{
		config:     cfg,
		ignoreList: make(map[string]struct{}),
		logger:     zap.NewNop(),
	}
	for _, option := range options {
		option(bot)
	}
	for _, name := range cfg.IgnoreList {
		bot.ignoreList[strings.ToLower(name)] = struct{}{}
	}
	// Create connection
	if bot.connector == nil {
		connectionOptions := []connection.Option{
			connection.WithAttempts(cfg.Server.ConnectAttempts),
			connection.WithLogger(bot.logger),
		}
		if cfg.Server.TLS {
			connectionOptions = append(connectionOptions, connection.WithTLS(&tls.Config{
				MinVersion: tls.VersionTLS12,
				ServerName: cfg.Server.Address,
			}))
		}
		if cfg.Outbound.Rate > 0 {
			limiter := rate.NewLimiter(rate.Limit(cfg.Outbound.Rate), max(cfg.Outbound.Burst, 1))
			connectionOptions = append(connectionOptions, connection.WithRateLimit(limiter))
		}
		bot.connector, err = connection.New(cfg.Server.Address, cfg.Server.Port, connectionOptions...)
		if err != nil {
			return nil, err
		}
	}
	if notifier, ok := bot.connector.(flushNotifier); ok {
		notifier.OnFlushed(bot.onFlushed)
	}
	// Create session
	bot.session, err = session.New(bot.connector, identity,
		session.WithArchiveSize(cfg.Server.ArchiveSize),
		session.WithLogger(bot.logger),
	)
	if err != nil {
		return nil, err
	}
	for _, channel := range cfg.Channels {
		if entities.IsChannelName(channel) {
			bot.session.AddChannel(channel)
		}
	}
	// Create dispatch and plugin host
	bot.engine = dispatch.New(bot.logger)
	hostOptions := append([]plugin.HostOption{plugin.WithHostLogger(bot.logger)}, bot.hostOptions...)
	bot.host, err = plugin.NewHost(bot.engine, hostOptions...)
	if err != nil {
		return nil, err
	}
	bot.host.OnSendMessage(func(ctx context.Context, message *entities.OutboundMessage) error {
		return bot.session.Send(ctx, message)
	})
	bot.host.OnTerminate(func(ctx context.Context, source string) error {
		bot.logger.Info("Terminate signalled", zap.String("plugin", source))
		bot.Terminate()
		return nil
	})
	if err := bot.registerBuiltins(); err != nil {
		return nil, err
	}
	bot.session.OnMessage(bot.listen)
	// Load plugins
	if err := bot.host.LoadRegistered(newPluginServer(bot.session, cfg.ApiKeys), cfg.Plugins...); err != nil {
		bot.logger.Warn("Some plugins failed to load", zap.Error(err))
	}
	bot.logger = bot.logger.With(zap.String("component", "bot"))
	return bot, nil
}
