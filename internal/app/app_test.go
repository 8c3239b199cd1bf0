package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/starshop/core/config"
	coredatabase "github.com/m3rciful/starshop/core/database"
	tg "github.com/m3rciful/starshop/core/telegram"
	"github.com/m3rciful/starshop/internal/catalog"
	"github.com/m3rciful/starshop/internal/checkout"
	"github.com/m3rciful/starshop/internal/events"
	"github.com/m3rciful/starshop/internal/store/memory"
	"github.com/m3rciful/starshop/internal/store/postgres"
)

const sampleConfig = `
telegram:
  token: file-token
  admin_ids: [100]
rate_limit:
  interval_ms: 300
storage:
  driver: memory
sessions:
  driver: memory
shop:
  title: ДОКТОР - ВРАЧ
  site_url: https://inverseofficial.ru
catalog:
  - key: ragvizax
    name: Рагвизакс
    emoji: "🌼"
    price: 11300
    kind: one_time
  - key: ragvizax_year
    name: Подписка на Рагвизакс
    emoji: "📦"
    price: 110000
    kind: subscription
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func noLogger(*coreconfig.Config) error { return nil }

func memoryConfig() *Config {
	cfg := &Config{
		Config: coreconfig.Config{
			Telegram: coreconfig.TelegramConfig{Token: "t", AdminIDs: []int64{100}},
		},
		Storage: StorageConfig{Driver: StorageDriverMemory},
		Catalog: []catalog.Product{{Key: "grazax", Name: "Гразакс", Price: 8300}},
	}
	return cfg
}

func TestLoadReadsSectionsAndEnv(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	t.Setenv("SESSIONS_TTL", "30m")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file-token", cfg.Telegram.Token)
	assert.Equal(t, coreconfig.RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, StorageDriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 30*time.Minute, cfg.Sessions.TTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.Brokers)
	assert.Equal(t, defaultEventsTopic, cfg.Events.Topic)
	require.Len(t, cfg.Catalog, 2)
	assert.Equal(t, catalog.KindSubscription, cfg.Catalog[1].Kind)
	assert.Same(t, &cfg.Config, cfg.CoreConfig())
}

func TestNormalizeRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"storage driver", func(c *Config) { c.Storage.Driver = "sqlite" }, "storage.driver"},
		{"postgres needs name", func(c *Config) { c.Storage.Driver = "" }, "database.name"},
		{"sessions driver", func(c *Config) { c.Sessions.Driver = "etcd" }, "sessions.driver"},
		{"redis addr", func(c *Config) { c.Sessions.Driver = "redis" }, "sessions.redis.addr"},
		{"negative ttl", func(c *Config) { c.Sessions.TTL = -time.Second }, "sessions.ttl"},
		{"site url", func(c *Config) { c.Shop.SiteURL = "inverseofficial.ru" }, "shop.site_url"},
		{"empty catalog", func(c *Config) { c.Catalog = nil }, "catalog"},
		{"bad product", func(c *Config) { c.Catalog[0].Price = 0 }, "positive price"},
		{"core", func(c *Config) { c.Telegram.Token = "" }, "telegram.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig()
			tt.mutate(cfg)
			err := cfg.Normalize()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := memoryConfig()
	require.NoError(t, cfg.Normalize())
	assert.Equal(t, SessionsDriverMemory, cfg.Sessions.Driver)
	assert.Empty(t, cfg.Events.Topic)
}

func TestBootstrapMemory(t *testing.T) {
	cfg := memoryConfig()
	require.NoError(t, cfg.Normalize())

	a, err := bootstrapWith(context.Background(), cfg, hooks{loggerInit: noLogger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.IsType(t, &memory.Store{}, a.store)
	assert.IsType(t, &checkout.MemorySessions{}, a.sessions)
	assert.IsType(t, events.Nop{}, a.publisher)
	assert.Nil(t, a.ops)
	assert.Equal(t, 1, a.catalog.Len())
}

func TestBootstrapPostgresRedisKafka(t *testing.T) {
	mr := miniredis.RunT(t)
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	cfg := memoryConfig()
	cfg.Storage.Driver = StorageDriverPostgres
	cfg.Database = coredatabase.Config{Name: "shop", User: "shop"}
	cfg.Sessions = SessionsConfig{Driver: SessionsDriverRedis, Redis: RedisConfig{Addr: mr.Addr()}}
	cfg.Events = EventsConfig{Brokers: []string{"127.0.0.1:9092"}}
	cfg.Ops = OpsConfig{Listen: "127.0.0.1:0", Token: "secret"}
	require.NoError(t, cfg.Normalize())

	migrated := false
	a, err := bootstrapWith(context.Background(), cfg, hooks{
		loggerInit: noLogger,
		connect: func(context.Context, coredatabase.Config) (*sqlx.DB, error) {
			return sqlx.NewDb(raw, "postgres"), nil
		},
		migrate: func(context.Context, coredatabase.Config) error {
			migrated = true
			return nil
		},
	})
	require.NoError(t, err)

	assert.True(t, migrated)
	assert.IsType(t, &postgres.Store{}, a.store)
	assert.IsType(t, &checkout.RedisSessions{}, a.sessions)
	assert.IsType(t, &events.KafkaPublisher{}, a.publisher)
	require.NotNil(t, a.ops)

	require.NoError(t, a.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBootstrapFailsWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := memoryConfig()
	cfg.Sessions = SessionsConfig{Driver: SessionsDriverRedis, Redis: RedisConfig{Addr: addr}}
	require.NoError(t, cfg.Normalize())

	_, err := bootstrapWith(context.Background(), cfg, hooks{loggerInit: noLogger})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis sessions unavailable")
}

func TestTelegramRunOptions(t *testing.T) {
	cfg := memoryConfig()
	cfg.Ops = OpsConfig{Listen: "127.0.0.1:0"}
	cfg.RateLimit.IntervalMS = 200
	require.NoError(t, cfg.Normalize())
	a, err := bootstrapWith(context.Background(), cfg, hooks{loggerInit: noLogger})
	require.NoError(t, err)

	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)
	assert.Same(t, &cfg.Config, opts.Config)

	endpoints := map[any]bool{}
	for _, r := range opts.Routes {
		endpoints[r.Endpoint] = true
	}
	for _, want := range []any{"/start", "/cart", "/addstars", "/export", tele.OnCallback, tele.OnText} {
		assert.True(t, endpoints[want], "missing route %v", want)
	}

	var names []string
	for _, mw := range opts.Middlewares {
		names = append(names, mw.Name)
	}
	assert.Equal(t, []string{"recover", "logger", "rate_limit", "metrics", "register_user"}, names)

	visible := opts.Registry.ListCommands(true)
	for _, c := range visible {
		assert.NotEqual(t, "/addstars", c.Text)
	}

	require.NoError(t, opts.OnStart(context.Background(), tg.Runtime{}))
	require.NoError(t, opts.OnStop(context.Background(), tg.Runtime{}))
}
