// Package app wires the storefront: configuration, infrastructure and the
// Telegram runtime.
package app

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/starshop/core/config"
	coredatabase "github.com/m3rciful/starshop/core/database"
	"github.com/m3rciful/starshop/internal/catalog"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	SessionsDriverMemory = "memory"
	SessionsDriverRedis  = "redis"

	defaultEventsTopic = "starshop.events"
)

type StorageConfig struct {
	// Driver is "postgres" (default) or "memory" for local runs.
	Driver string `yaml:"driver" envconfig:"STORAGE_DRIVER"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
}

// SessionsConfig selects where checkout conversations live between messages.
// A zero TTL keeps them until they are confirmed or cancelled.
type SessionsConfig struct {
	Driver    string        `yaml:"driver" envconfig:"SESSIONS_DRIVER"`
	TTL       time.Duration `yaml:"ttl" envconfig:"SESSIONS_TTL"`
	KeyPrefix string        `yaml:"key_prefix" envconfig:"SESSIONS_KEY_PREFIX"`
	Redis     RedisConfig   `yaml:"redis"`
}

// EventsConfig enables the Kafka publisher when brokers are set.
type EventsConfig struct {
	Brokers []string `yaml:"brokers" envconfig:"KAFKA_BROKERS"`
	Topic   string   `yaml:"topic" envconfig:"KAFKA_TOPIC"`
}

// OpsConfig enables the operator HTTP server when Listen is set.
type OpsConfig struct {
	Listen string `yaml:"listen" envconfig:"OPS_LISTEN"`
	Token  string `yaml:"token" envconfig:"OPS_TOKEN"`
}

type ShopConfig struct {
	Title   string `yaml:"title" envconfig:"SHOP_TITLE"`
	SiteURL string `yaml:"site_url" envconfig:"SHOP_SITE_URL"`
}

// Config is the full storefront configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Storage  StorageConfig       `yaml:"storage"`
	Sessions SessionsConfig      `yaml:"sessions"`
	Events   EventsConfig        `yaml:"events"`
	Ops      OpsConfig           `yaml:"ops"`
	Shop     ShopConfig          `yaml:"shop"`
	Catalog  []catalog.Product   `yaml:"catalog" ignored:"true"`
}

// CoreConfig exposes the embedded bot core settings.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads path, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults in place.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case "", StorageDriverPostgres:
		c.Storage.Driver = StorageDriverPostgres
		if err := c.Database.Normalize(); err != nil {
			return err
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("invalid storage.driver %q; allowed: postgres, memory", c.Storage.Driver)
	}

	c.Sessions.Driver = strings.ToLower(strings.TrimSpace(c.Sessions.Driver))
	switch c.Sessions.Driver {
	case "", SessionsDriverMemory:
		c.Sessions.Driver = SessionsDriverMemory
	case SessionsDriverRedis:
		if strings.TrimSpace(c.Sessions.Redis.Addr) == "" {
			return errors.New("sessions.redis.addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("invalid sessions.driver %q; allowed: memory, redis", c.Sessions.Driver)
	}
	if c.Sessions.TTL < 0 {
		return errors.New("sessions.ttl must be >= 0")
	}

	brokers := c.Events.Brokers[:0]
	for _, b := range c.Events.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	c.Events.Brokers = brokers
	if len(brokers) > 0 && strings.TrimSpace(c.Events.Topic) == "" {
		c.Events.Topic = defaultEventsTopic
	}

	c.Ops.Listen = strings.TrimSpace(c.Ops.Listen)

	if site := strings.TrimSpace(c.Shop.SiteURL); site != "" {
		u, err := url.Parse(site)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("invalid shop.site_url %q", c.Shop.SiteURL)
		}
		c.Shop.SiteURL = site
	}

	if len(c.Catalog) == 0 {
		return errors.New("catalog must list at least one product")
	}
	if _, err := catalog.New(c.Catalog...); err != nil {
		return err
	}
	return nil
}
