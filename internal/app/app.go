package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/starshop/core/bootstrap"
	"github.com/m3rciful/starshop/core/buildinfo"
	"github.com/m3rciful/starshop/core/cmd"
	coreconfig "github.com/m3rciful/starshop/core/config"
	coredatabase "github.com/m3rciful/starshop/core/database"
	"github.com/m3rciful/starshop/core/logger"
	tg "github.com/m3rciful/starshop/core/telegram"
	"github.com/m3rciful/starshop/core/telegram/router"
	"github.com/m3rciful/starshop/internal/bot"
	"github.com/m3rciful/starshop/internal/catalog"
	"github.com/m3rciful/starshop/internal/checkout"
	"github.com/m3rciful/starshop/internal/events"
	"github.com/m3rciful/starshop/internal/notify"
	"github.com/m3rciful/starshop/internal/ops"
	"github.com/m3rciful/starshop/internal/shop"
	"github.com/m3rciful/starshop/internal/store/memory"
	"github.com/m3rciful/starshop/internal/store/postgres"
)

const component = "app"

// App owns the storefront's long-lived dependencies.
type App struct {
	cfg *Config

	infra     *bootstrap.Result
	store     shop.Store
	catalog   *catalog.Catalog
	redis     redis.UniversalClient
	sessions  checkout.SessionStore
	publisher events.Publisher
	sender    *bot.TelegramSender
	handlers  *bot.Handlers
	users     *bot.UserRegistry
	ops       *ops.Server
}

// hooks replace infrastructure constructors in tests.
type hooks struct {
	loggerInit func(*coreconfig.Config) error
	connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	migrate    func(context.Context, coredatabase.Config) error
}

// LoadCarrier adapts Load to the command runner.
func LoadCarrier(path string) (cmd.ConfigCarrier, error) {
	return Load(path)
}

// BootstrapCarrier adapts Bootstrap to the command runner.
func BootstrapCarrier(ctx context.Context, carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	return Bootstrap(ctx, cfg)
}

// Bootstrap initializes logging, storage, sessions, events and the handlers.
func Bootstrap(ctx context.Context, cfg *Config) (*App, error) {
	return bootstrapWith(ctx, cfg, hooks{})
}

func bootstrapWith(ctx context.Context, cfg *Config, h hooks) (_ *App, err error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	opts := bootstrap.Options{
		Config:     &cfg.Config,
		LoggerInit: h.loggerInit,
		Connect:    h.connect,
		Migrate:    h.migrate,
	}
	if cfg.Storage.Driver == StorageDriverPostgres {
		opts.Database = &cfg.Database
	}
	infra, err := bootstrap.Run(ctx, opts)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, infra: infra}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	logger.Info(ctx, component, "build",
		slog.String("status", "ok"),
		slog.String("version", buildinfo.Version),
		slog.String("commit", buildinfo.Commit),
		slog.String("date", buildinfo.Date),
		slog.String("storage", cfg.Storage.Driver),
		slog.String("sessions", cfg.Sessions.Driver),
	)

	if infra.DB != nil {
		a.store = postgres.New(infra.DB)
	} else {
		a.store = memory.New()
	}

	if a.catalog, err = catalog.New(cfg.Catalog...); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	if a.sessions, err = a.openSessions(ctx); err != nil {
		return nil, err
	}

	a.publisher = events.Nop{}
	if len(cfg.Events.Brokers) > 0 {
		a.publisher = events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		logger.Info(ctx, component, "events.kafka",
			slog.String("status", "ok"),
			slog.String("topic", cfg.Events.Topic),
			slog.Int("brokers", len(cfg.Events.Brokers)),
		)
	}

	a.sender = bot.NewTelegramSender()
	notifier := notify.New(a.sender, cfg.Telegram.AdminIDs)
	machine := checkout.NewMachine(a.store, a.catalog, a.sessions, bot.NewOrderListener(notifier, a.publisher))
	a.handlers = bot.New(bot.Options{
		Store:    a.store,
		Catalog:  a.catalog,
		Checkout: machine,
		Notifier: notifier,
		Events:   a.publisher,
		IsAdmin:  cfg.Telegram.IsAdmin,
		Title:    cfg.Shop.Title,
		SiteURL:  cfg.Shop.SiteURL,
	})
	a.users = bot.NewUserRegistry(a.store)

	if cfg.Ops.Listen != "" {
		checks := map[string]ops.Pinger{"store": a.store}
		if p, ok := a.sessions.(ops.Pinger); ok {
			checks["sessions"] = p
		}
		a.ops = ops.New(ops.Options{
			Listen: cfg.Ops.Listen,
			Token:  cfg.Ops.Token,
			Orders: a.store,
			Checks: checks,
		})
	}
	return a, nil
}

func (a *App) openSessions(ctx context.Context) (checkout.SessionStore, error) {
	sc := a.cfg.Sessions
	if sc.Driver != SessionsDriverRedis {
		return checkout.NewMemorySessions(), nil
	}
	a.redis = redis.NewClient(&redis.Options{
		Addr:     sc.Redis.Addr,
		Password: sc.Redis.Password,
		DB:       sc.Redis.DB,
	})
	sessions := checkout.NewRedisSessions(a.redis, sc.KeyPrefix, sc.TTL)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sessions.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("app: redis sessions unavailable: %w", err)
	}
	logger.Info(ctx, component, "sessions.redis",
		slog.String("status", "ok"),
		slog.String("addr", sc.Redis.Addr),
		slog.Duration("ttl", sc.TTL),
	)
	return sessions, nil
}

// TelegramRunOptions registers the storefront handlers and builds the runtime options.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	if err := a.handlers.Register(reg); err != nil {
		return tg.RunOptions{}, fmt.Errorf("app: register handlers: %w", err)
	}

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		IsAdmin:       a.cfg.Telegram.IsAdmin,
		OnAdminReject: a.handlers.AccessDenied,
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a.handlers, reg, router.TextOptions{})...)

	return tg.RunOptions{
		Config:      &a.cfg.Config,
		Registry:    reg,
		Middlewares: tg.DefaultMiddlewares(&a.cfg.Config, a.handlers.RateLimited, a.users.Middleware()),
		Routes:      routes,
		OnStart:     a.start,
		OnStop:      a.stop,
	}, nil
}

func (a *App) start(ctx context.Context, rt tg.Runtime) error {
	if rt.Bot != nil {
		a.sender.Bind(rt.Bot)
	}
	if a.ops != nil {
		if err := a.ops.Start(); err != nil {
			return fmt.Errorf("app: ops server: %w", err)
		}
	}
	return nil
}

func (a *App) stop(ctx context.Context, _ tg.Runtime) error {
	var errs []error
	if a.ops != nil {
		if err := a.ops.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("ops shutdown: %w", err))
		}
	}
	a.sender.Bind(nil)
	if err := a.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close releases the publisher, the Redis client and the database handle.
func (a *App) Close() error {
	var errs []error
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("events: %w", err))
		}
		a.publisher = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
		a.redis = nil
	}
	if a.infra != nil {
		if err := a.infra.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
		a.infra = nil
	}
	return errors.Join(errs...)
}
