package infra

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"paper_trade/pkg/quant"

	"gopkg.in/yaml.v3"
)

var userAgent = GetPlatformUserAgent()

// GetUserAgent returns the User-Agent sent by outbound WebSocket dials.
func GetUserAgent() string {
	return userAgent
}

// GetPlatformUserAgent builds "paper-trade/<os>-<arch>".
func GetPlatformUserAgent() string {
	return fmt.Sprintf("%s/%s-%s", AppName, runtime.GOOS, runtime.GOARCH)
}

// Feed kinds.
const (
	FeedNone      = "none"
	FeedWebSocket = "ws"
	FeedSynthetic = "synthetic"
)

// Config holds every setting of the paper trading service.
// Money is written as decimal strings and converted to fixed-point on use.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Trading struct {
		Mode              string   `yaml:"mode"`
		CashCurrency      string   `yaml:"cash_currency"`
		Assets            []string `yaml:"assets"`
		InitialCash       string   `yaml:"initial_cash"`
		SlippageBps       int64    `yaml:"slippage_bps"`
		AcceptanceDelayMS int      `yaml:"acceptance_delay_ms"`
		StartDisabled     bool     `yaml:"start_disabled"`
	} `yaml:"trading"`

	Feed struct {
		Kind      string   `yaml:"kind"`
		URL       string   `yaml:"url"`
		Symbols   []string `yaml:"symbols"`
		Synthetic struct {
			IntervalMS  int               `yaml:"interval_ms"`
			Seed        int64             `yaml:"seed"`
			Volatility  float64           `yaml:"volatility"`
			SpreadBps   int64             `yaml:"spread_bps"`
			StartPrices map[string]string `yaml:"start_prices"`
		} `yaml:"synthetic"`
	} `yaml:"feed"`

	Strategy struct {
		Enabled     bool   `yaml:"enabled"`
		Symbol      string `yaml:"symbol"`
		ShortWindow int    `yaml:"short_window"`
		LongWindow  int    `yaml:"long_window"`
		Qty         string `yaml:"qty"`
	} `yaml:"strategy"`

	Storage struct {
		Path          string `yaml:"path"`
		SnapshotDir   string `yaml:"snapshot_dir"`
		SnapshotsKept int    `yaml:"snapshots_kept"`
	} `yaml:"storage"`

	API struct {
		Addr         string  `yaml:"addr"`
		OrderBurst   int     `yaml:"order_burst"`
		OrderPerSec  float64 `yaml:"order_per_sec"`
		StreamBuffer int     `yaml:"stream_buffer"`
	} `yaml:"api"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// DefaultConfig returns a runnable configuration: a synthetic BTC/USD feed,
// 100,000 USD of cash and the HTTP API on :8080.
func DefaultConfig() *Config {
	var c Config
	c.App.Name = AppName
	c.App.Version = "dev"

	c.Trading.Mode = "PAPER"
	c.Trading.CashCurrency = "USD"
	c.Trading.Assets = []string{"BTC", "ETH"}
	c.Trading.InitialCash = "100000"
	c.Trading.SlippageBps = 10
	c.Trading.AcceptanceDelayMS = 100

	c.Feed.Kind = FeedSynthetic
	c.Feed.Symbols = []string{"BTC/USD", "ETH/USD"}
	c.Feed.Synthetic.IntervalMS = 1000
	c.Feed.Synthetic.Seed = 1
	c.Feed.Synthetic.Volatility = 0.0005
	c.Feed.Synthetic.SpreadBps = 2
	c.Feed.Synthetic.StartPrices = map[string]string{"BTC/USD": "50000", "ETH/USD": "3000"}

	c.Strategy.ShortWindow = 5
	c.Strategy.LongWindow = 20
	c.Strategy.Qty = "0.01"

	c.Storage.SnapshotsKept = 5

	c.API.Addr = ":8080"
	c.API.OrderBurst = 10
	c.API.OrderPerSec = 5
	c.API.StreamBuffer = 256

	c.Logging.Level = "info"
	c.Logging.Format = "text"
	return &c
}

// LoadConfig reads the YAML file at path on top of DefaultConfig, applies
// environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	var errs []error

	if c.Trading.CashCurrency == "" {
		errs = append(errs, errors.New("trading.cash_currency is required"))
	}
	for _, a := range c.Trading.Assets {
		if a == "" || a == c.Trading.CashCurrency {
			errs = append(errs, fmt.Errorf("trading.assets: invalid asset %q", a))
		}
	}
	if cash, err := c.InitialCashMicros(); err != nil {
		errs = append(errs, err)
	} else if cash < 0 {
		errs = append(errs, errors.New("trading.initial_cash must not be negative"))
	}
	if c.Trading.SlippageBps < 0 || c.Trading.SlippageBps >= quant.BpsScale {
		errs = append(errs, fmt.Errorf("trading.slippage_bps out of range: %d", c.Trading.SlippageBps))
	}
	if c.Trading.AcceptanceDelayMS < 0 {
		errs = append(errs, errors.New("trading.acceptance_delay_ms must not be negative"))
	}

	switch c.Feed.Kind {
	case FeedNone:
	case FeedWebSocket:
		if !hasPrefix(c.Feed.URL, "ws://") && !hasPrefix(c.Feed.URL, "wss://") {
			errs = append(errs, fmt.Errorf("invalid feed URL: %s", c.Feed.URL))
		}
	case FeedSynthetic:
		if c.Feed.Synthetic.IntervalMS <= 0 {
			errs = append(errs, errors.New("feed.synthetic.interval_ms must be positive"))
		}
		for _, sym := range c.Feed.Symbols {
			p, err := quant.ParsePriceMicros(c.Feed.Synthetic.StartPrices[sym])
			if err != nil || p <= 0 {
				errs = append(errs, fmt.Errorf("feed.synthetic.start_prices: %s needs a positive price", sym))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("unknown feed kind %q", c.Feed.Kind))
	}
	if c.Feed.Kind != FeedNone && len(c.Feed.Symbols) == 0 {
		errs = append(errs, errors.New("at least one feed symbol is required"))
	}

	if c.Strategy.Enabled {
		if c.Strategy.Symbol == "" {
			errs = append(errs, errors.New("strategy.symbol is required"))
		}
		if c.Strategy.ShortWindow <= 0 || c.Strategy.LongWindow <= c.Strategy.ShortWindow {
			errs = append(errs, errors.New("strategy windows must satisfy 0 < short < long"))
		}
		if q, err := c.StrategyQtySats(); err != nil || q <= 0 {
			errs = append(errs, errors.New("strategy.qty must be a positive decimal"))
		}
	}

	if c.API.OrderPerSec < 0 || c.API.OrderBurst < 0 {
		errs = append(errs, errors.New("api order rate limits must not be negative"))
	}

	return errors.Join(errs...)
}

// InitialCashMicros parses Trading.InitialCash.
func (c *Config) InitialCashMicros() (int64, error) {
	p, err := quant.ParsePriceMicros(c.Trading.InitialCash)
	if err != nil {
		return 0, fmt.Errorf("trading.initial_cash: %w", err)
	}
	return int64(p), nil
}

// AcceptanceDelay returns Trading.AcceptanceDelayMS as a duration.
func (c *Config) AcceptanceDelay() time.Duration {
	return time.Duration(c.Trading.AcceptanceDelayMS) * time.Millisecond
}

// StrategyQtySats parses Strategy.Qty.
func (c *Config) StrategyQtySats() (quant.QtySats, error) {
	return quant.ParseQtySats(c.Strategy.Qty)
}

func hasPrefix(s, prefix string) bool {
	return strings.HasPrefix(s, prefix)
}

// overrideWithEnv applies PAPER_* environment variables. Env wins over the file.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("PAPER_INITIAL_CASH"); v != "" {
		cfg.Trading.InitialCash = v
	}
	if v := os.Getenv("PAPER_API_ADDR"); v != "" {
		cfg.API.Addr = v
	}
	if v := os.Getenv("PAPER_FEED_URL"); v != "" {
		cfg.Feed.URL = v
		cfg.Feed.Kind = FeedWebSocket
	}
	if v := os.Getenv("PAPER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
