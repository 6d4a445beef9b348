// Command bot runs the chat-signal trading bridge: it ingests signal
// messages from the chat gateway, opens the matching orders on the broker
// terminal, and manages the resulting positions until they close.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hamidju/teletrader/internal/broker"
	"github.com/hamidju/teletrader/internal/config"
	"github.com/hamidju/teletrader/internal/feed"
	"github.com/hamidju/teletrader/internal/handler"
	"github.com/hamidju/teletrader/internal/lifecycle"
	"github.com/hamidju/teletrader/internal/metrics"
	"github.com/hamidju/teletrader/internal/notify"
	"github.com/hamidju/teletrader/internal/orders"
	"github.com/hamidju/teletrader/internal/parser"
	"github.com/hamidju/teletrader/internal/retry"
	"github.com/hamidju/teletrader/internal/status"
	"github.com/hamidju/teletrader/internal/storage"
)

// Bot owns every long-lived component and the pools between them.
type Bot struct {
	cfg         *config.Config
	log         *logrus.Logger
	store       storage.Interface
	broker      broker.Broker
	notifier    *notify.Notifier
	parser      *parser.Parser
	dispatcher  *handler.Dispatcher
	router      *handler.Router
	engine      *lifecycle.Engine
	feed        *feed.Client
	status      *status.Server
	metrics     *metrics.Metrics
	orderPool   *handler.Pool
	commandPool *handler.Pool
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to settings file (default: by ENV)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bot, err := newBot(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Startup failed: %v", err)
	}
	defer func() { _ = bot.store.Close() }()

	if err := bot.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("Bot error: %v", err)
	}
	log.Info("bot stopped")
}

// newBot wires every component in dependency order and verifies the
// external surfaces before any loop starts.
func newBot(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*Bot, error) {
	// Notifier first: the log hook forwards warnings from everything that
	// follows.
	notifier := notify.New(cfg.Notification.Token, cfg.Notification.ChatID)
	if notifier.Configured() {
		if err := notifier.Probe(ctx); err != nil {
			return nil, fmt.Errorf("notification probe: %w", err)
		}
		log.AddHook(notify.NewHook(notifier))
	}

	store, err := storage.NewSQLiteStore(cfg.DatabasePath, storage.Options{
		DisableCache: cfg.DisableCache,
		CacheTTL:     cfg.CacheTTL(),
	})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	gateway := broker.NewGatewayClient(cfg.MetaTrader.Gateway, broker.Credentials{
		Server:   cfg.MetaTrader.Server,
		Username: cfg.MetaTrader.Username,
		Password: cfg.MetaTrader.Password,
		Path:     cfg.MetaTrader.Path,
	})
	brk := broker.NewCircuitBreakerBroker(broker.NewSessionBroker(gateway))

	// The terminal may still be starting when the bot comes up; retry the
	// session handshake through the transient window.
	retrier := retry.NewClient(log)
	if err := retrier.Do(ctx, "terminal login", brk.Login); err != nil {
		return nil, fmt.Errorf("terminal login: %w", err)
	}
	var account *broker.AccountInfo
	if err := retrier.Do(ctx, "account read", func() error {
		var err error
		account, err = brk.AccountInfo()
		return err
	}); err != nil {
		return nil, fmt.Errorf("reading account: %w", err)
	}
	log.WithFields(logrus.Fields{
		"login":   account.Login,
		"balance": account.Balance,
	}).Info("terminal session established")

	symbols, err := brk.Symbols()
	if err != nil {
		log.WithError(err).Warn("symbol enumeration failed, using reference file")
		symbols, err = loadSymbolsFile(cfg.SymbolsFile)
		if err != nil {
			return nil, fmt.Errorf("loading symbols reference: %w", err)
		}
	}

	resolver := parser.NewSymbolResolver(symbols, cfg.MetaTrader.SymbolMappings, cfg.MetaTrader.StrictSymbols)
	sigParser := parser.New(resolver, log)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	validator := orders.NewValidator(brk, log)
	sizer := orders.NewSizer(brk, log)
	compiler := orders.NewCompiler(brk, orders.Policy{
		CloserPrice:          cfg.MetaTrader.CloserPrice,
		MarketDistance:       cfg.MetaTrader.MarketDistance,
		ExpirePendingMinutes: cfg.MetaTrader.ExpirePendingMinutes,
	}, log)
	manager := orders.NewManager(brk, log)

	orderPool := handler.NewPool(handler.OrderWorkers, log)
	commandPool := handler.NewPool(handler.CommandWorkers, log)

	bot := &Bot{
		cfg:         cfg,
		log:         log,
		store:       store,
		broker:      brk,
		notifier:    notifier,
		parser:      sigParser,
		metrics:     m,
		orderPool:   orderPool,
		commandPool: commandPool,
	}
	bot.dispatcher = handler.NewDispatcher(cfg, store, brk, validator, sizer, compiler, m, log)
	bot.router = handler.NewRouter(cfg, store, manager, validator, sigParser, commandPool, m, log)
	bot.engine = lifecycle.NewEngine(cfg, store, brk, manager, m, log)
	bot.feed = feed.NewClient(cfg.Telegram.Gateway, log)
	if cfg.StatusAddr != "" {
		bot.status = status.NewServer(cfg.StatusAddr, store, brk, registry, log)
	}
	return bot, nil
}

// Run starts every loop and blocks until shutdown. The feed, the lifecycle
// engine, and the status server supervise under one errgroup; pools drain
// after the loops stop.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.engine.Reconcile(); err != nil {
		b.log.WithError(err).Warn("startup reconcile failed")
	}
	b.notifier.Heartbeat()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.feed.Run(ctx) })
	g.Go(func() error { return b.ingress(ctx) })
	g.Go(func() error { return b.engine.Run(ctx) })
	if b.status != nil {
		g.Go(func() error { return b.status.Run(ctx) })
	}

	err := g.Wait()
	b.orderPool.Drain()
	b.commandPool.Drain()
	if err == context.Canceled {
		return nil
	}
	return err
}

// ingress consumes the gateway event stream in receipt order. Commands go
// to the router's pool; everything else is parsed and, when it is a
// complete signal, dispatched on the order pool.
func (b *Bot) ingress(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-b.feed.Events():
			if !ok {
				return nil
			}
			if b.router.Route(ctx, ev) {
				continue
			}
			if ev.Kind != feed.EventNew {
				continue
			}

			sig, ok := b.parser.Parse(ev.Message.Text)
			if !ok {
				continue
			}
			b.metrics.IncSignalsParsed()

			meta := handler.Meta{
				ChatID:       ev.Message.ChatID,
				MessageID:    ev.Message.ID,
				ChannelTitle: ev.Message.ChannelTitle,
			}
			b.orderPool.Submit(ctx, "dispatch", func() error {
				return b.dispatcher.Dispatch(meta, sig)
			})
		}
	}
}

// loadSymbolsFile reads the {"SymbolList": [...]} reference document used
// when the terminal cannot enumerate symbols.
func loadSymbolsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the config file
	if err != nil {
		return nil, err
	}
	var doc struct {
		SymbolList []string `json:"SymbolList"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(doc.SymbolList) == 0 {
		return nil, fmt.Errorf("%s lists no symbols", path)
	}
	return doc.SymbolList, nil
}
