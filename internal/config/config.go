package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Feed   FeedConfig   `mapstructure:"feed"`

	History     HistoryConfig     `mapstructure:"history"`
	Experiments ExperimentsConfig `mapstructure:"experiments"`
	Signals     SignalsConfig     `mapstructure:"signals"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	Refiner     RefinerConfig     `mapstructure:"refiner"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type FeedConfig struct {
	HistoryEndpoint   string        `mapstructure:"history_endpoint"`
	Timeout           time.Duration `mapstructure:"timeout"`
	StreamURL         string        `mapstructure:"stream_url"`
	StreamAssets      []string      `mapstructure:"stream_assets"`
	SentimentEndpoint string        `mapstructure:"sentiment_endpoint"`
	SentimentPoll     time.Duration `mapstructure:"sentiment_poll"`
}

type HistoryConfig struct {
	SignificantIntensity float64 `mapstructure:"significant_intensity"`
}

type ExperimentsConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// MaxRunning bounds how long a dispatched experiment may stay running.
	// Zero keeps the completion poll unbounded.
	MaxRunning   time.Duration `mapstructure:"max_running"`
	LogRetention int           `mapstructure:"log_retention"`
}

type SignalsConfig struct {
	Cooldown         time.Duration `mapstructure:"cooldown"`
	EventRetention   int           `mapstructure:"event_retention"`
	EvaluateInterval time.Duration `mapstructure:"evaluate_interval"`
}

type LedgerConfig struct {
	PositionUSD    float64       `mapstructure:"position_usd"`
	HoldFor        time.Duration `mapstructure:"hold_for"`
	SettleInterval time.Duration `mapstructure:"settle_interval"`
}

type RefinerConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("feed.history_endpoint", "")
	v.SetDefault("feed.timeout", "15s")
	v.SetDefault("feed.stream_url", "wss://stream.binance.com:9443/ws/!ticker@arr")
	v.SetDefault("feed.stream_assets", []string{"BTC", "ETH", "SOL"})
	v.SetDefault("feed.sentiment_endpoint", "https://api.alternative.me/fng/?limit=1")
	v.SetDefault("feed.sentiment_poll", "5m")
	v.SetDefault("history.significant_intensity", 5)
	v.SetDefault("experiments.poll_interval", "5s")
	v.SetDefault("experiments.max_running", "0s")
	v.SetDefault("experiments.log_retention", 200)
	v.SetDefault("signals.cooldown", "1h")
	v.SetDefault("signals.event_retention", 50)
	v.SetDefault("signals.evaluate_interval", "30s")
	v.SetDefault("ledger.position_usd", 1000)
	v.SetDefault("ledger.hold_for", "10m")
	v.SetDefault("ledger.settle_interval", "10s")
	v.SetDefault("refiner.endpoint", "")
	v.SetDefault("refiner.model", "gpt-4o-mini")
	v.SetDefault("refiner.timeout", "30s")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
