package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"pricetracker/pkg/bybit"
)

type Config struct {
	Asset       AssetConfig       `mapstructure:"asset"`
	Providers   ProvidersConfig   `mapstructure:"providers"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Refresh     RefreshConfig     `mapstructure:"refresh"`
	Placeholder PlaceholderConfig `mapstructure:"placeholder"`
	Table       TableConfig       `mapstructure:"table"`
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Postgres    PostgresConfig    `mapstructure:"postgres"`
}

// AssetConfig names the single tracked asset in each provider's vocabulary.
type AssetConfig struct {
	CoinGeckoID string `mapstructure:"coingecko_id"` // e.g. "bitcoin"
	Symbol      string `mapstructure:"symbol"`       // exchange pair, e.g. "BTCUSDT"
	Base        string `mapstructure:"base"`         // e.g. "BTC"
	Quote       string `mapstructure:"quote"`        // e.g. "USD"
}

type ProvidersConfig struct {
	CurrentOrder      []string      `mapstructure:"current_order"`
	HistoricalOrder   []string      `mapstructure:"historical_order"`
	CurrentTimeout    time.Duration `mapstructure:"current_timeout"`
	HistoricalTimeout time.Duration `mapstructure:"historical_timeout"`
	HistoryDays       int           `mapstructure:"history_days"`

	CoinGecko     ProviderConfig `mapstructure:"coingecko"`
	Binance       ProviderConfig `mapstructure:"binance"`
	Bybit         ProviderConfig `mapstructure:"bybit"`
	CryptoCompare ProviderConfig `mapstructure:"cryptocompare"`
}

type ProviderConfig struct {
	BaseURL       string  `mapstructure:"base_url"`
	APIKey        string  `mapstructure:"api_key"`
	RatePerMinute float64 `mapstructure:"rate_per_minute"` // 0 disables the local limiter
	Burst         int     `mapstructure:"burst"`
	Category      string  `mapstructure:"category"` // bybit only
}

type CacheConfig struct {
	Backend       string        `mapstructure:"backend"` // memory, sqlite or postgres
	SQLitePath    string        `mapstructure:"sqlite_path"`
	CreateDB      bool          `mapstructure:"create_db"`
	CurrentTTL    time.Duration `mapstructure:"current_ttl"`
	HistoricalTTL time.Duration `mapstructure:"historical_ttl"`
}

type RefreshConfig struct {
	CurrentInterval    time.Duration `mapstructure:"current_interval"`
	HistoricalInterval time.Duration `mapstructure:"historical_interval"`
}

type PlaceholderConfig struct {
	BasePrice float64 `mapstructure:"base_price"`
	MinPrice  float64 `mapstructure:"min_price"`
	MaxPrice  float64 `mapstructure:"max_price"`
	Days      int     `mapstructure:"days"`
}

type TableConfig struct {
	Policy string `mapstructure:"policy"` // weekly, month_week or recent
	Weeks  int    `mapstructure:"weeks"`
	Recent int    `mapstructure:"recent"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ChartWidth   int           `mapstructure:"chart_width"`
	ChartHeight  int           `mapstructure:"chart_height"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Options defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

// Provider identifiers accepted in the order lists.
var KnownProviders = []string{"coingecko", "binance", "bybit", "cryptocompare"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("asset.coingecko_id", "bitcoin")
	v.SetDefault("asset.symbol", "BTCUSDT")
	v.SetDefault("asset.base", "BTC")
	v.SetDefault("asset.quote", "USD")

	v.SetDefault("providers.current_order", []string{"coingecko", "binance", "bybit", "cryptocompare"})
	v.SetDefault("providers.historical_order", []string{"coingecko", "binance", "cryptocompare", "bybit"})
	v.SetDefault("providers.current_timeout", 5*time.Second)
	v.SetDefault("providers.historical_timeout", 10*time.Second)
	v.SetDefault("providers.history_days", 180)
	v.SetDefault("providers.coingecko.base_url", "https://api.coingecko.com")
	v.SetDefault("providers.coingecko.api_key", "")
	v.SetDefault("providers.coingecko.rate_per_minute", 25)
	v.SetDefault("providers.coingecko.burst", 5)
	v.SetDefault("providers.binance.base_url", "https://api.binance.com")
	v.SetDefault("providers.binance.rate_per_minute", 0)
	v.SetDefault("providers.bybit.base_url", "https://api.bybit.com")
	v.SetDefault("providers.bybit.category", "spot")
	v.SetDefault("providers.bybit.rate_per_minute", 0)
	v.SetDefault("providers.cryptocompare.base_url", "https://min-api.cryptocompare.com")
	v.SetDefault("providers.cryptocompare.api_key", "")
	v.SetDefault("providers.cryptocompare.rate_per_minute", 0)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.sqlite_path", "data/pricetracker.db")
	v.SetDefault("cache.create_db", false)
	v.SetDefault("cache.current_ttl", 5*time.Minute)
	v.SetDefault("cache.historical_ttl", 24*time.Hour)

	v.SetDefault("refresh.current_interval", 30*time.Second)
	v.SetDefault("refresh.historical_interval", 30*time.Minute)

	v.SetDefault("placeholder.base_price", 80000.0)
	v.SetDefault("placeholder.min_price", 60000.0)
	v.SetDefault("placeholder.max_price", 100000.0)
	v.SetDefault("placeholder.days", 180)

	v.SetDefault("table.policy", "weekly")
	v.SetDefault("table.weeks", 10)
	v.SetDefault("table.recent", 30)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.chart_width", 800)
	v.SetDefault("server.chart_height", 400)
	v.SetDefault("server.write_timeout", 15*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_file", "")
	v.SetDefault("log.environment", "dev")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "pricetracker")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timezone", "UTC")
	v.SetDefault("postgres.max_open_conns", 5)
	v.SetDefault("postgres.max_idle_conns", 2)
	v.SetDefault("postgres.conn_max_lifetime", time.Hour)
}

// Load loads application configuration using Viper.
// A .env file is applied to the process environment first, then config.yaml
// is read and every key can be overridden from the environment
// (e.g. REFRESH_CURRENT_INTERVAL=10s). path, when non-empty, names the
// config file explicitly; a missing config.yaml is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config") // config.yaml
		v.SetConfigType("yaml")
		v.AddConfigPath("config")
		if ex, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
		}
	}

	// Support environment variables with dot notation (e.g., CACHE_BACKEND)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the tracker cannot run with.
func (c *Config) Validate() error {
	var errs []error

	check := func(name string, order []string) {
		if len(order) == 0 {
			errs = append(errs, fmt.Errorf("providers.%s is empty", name))
		}
		seen := map[string]bool{}
		for _, id := range order {
			if !slices.Contains(KnownProviders, id) {
				errs = append(errs, fmt.Errorf("providers.%s: unknown provider %q", name, id))
			}
			if seen[id] {
				errs = append(errs, fmt.Errorf("providers.%s: %q listed twice", name, id))
			}
			seen[id] = true
		}
	}
	check("current_order", c.Providers.CurrentOrder)
	check("historical_order", c.Providers.HistoricalOrder)

	if !bybit.ValidCategory(c.Providers.Bybit.Category) {
		errs = append(errs, fmt.Errorf("providers.bybit.category: unknown category %q", c.Providers.Bybit.Category))
	}

	switch c.Cache.Backend {
	case "memory", "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend))
	}
	if c.Cache.CurrentTTL <= 0 || c.Cache.HistoricalTTL <= 0 {
		errs = append(errs, errors.New("cache ttls must be positive"))
	}
	if c.Refresh.CurrentInterval <= 0 || c.Refresh.HistoricalInterval <= 0 {
		errs = append(errs, errors.New("refresh intervals must be positive"))
	}
	if c.Placeholder.MinPrice >= c.Placeholder.MaxPrice {
		errs = append(errs, errors.New("placeholder.min_price must be below max_price"))
	}
	switch c.Table.Policy {
	case "weekly", "month_week", "recent":
	default:
		errs = append(errs, fmt.Errorf("table.policy: unknown policy %q", c.Table.Policy))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
