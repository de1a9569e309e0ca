package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// MustLoad loads the configuration from environment variables and .env file.
func MustLoad[T any](cfg T) {
	_ = godotenv.Load() // Load environment variables from .env file

	env.Must(cfg, env.Parse(cfg))
}

// Load loads the configuration from environment variables and an optional .env file.
// Variables already set in the environment win over the file.
func Load[T any](cfg T) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "load .env")
	}

	if err := env.Parse(cfg); err != nil {
		return errors.Wrap(err, "parse environment")
	}

	return nil
}

// Config holds the configuration for the simulated exchange
type Config struct {
	LogLevel   string           `env:"LOG_LEVEL" envDefault:"info"`
	Engine     EngineConfig     `envPrefix:"ENGINE_"`
	Analytics  AnalyticsConfig  `envPrefix:"ANALYTICS_"`
	Simulation SimulationConfig `envPrefix:"SIM_"`
}

// EngineConfig holds the configuration of the matching engine and its queue.
type EngineConfig struct {
	OrderIDPrefix string `env:"ORDER_ID_PREFIX" envDefault:"O"`
	TradeIDPrefix string `env:"TRADE_ID_PREFIX" envDefault:"T"`
	QueueSize     int    `env:"QUEUE_SIZE" envDefault:"4096"`     // admitted, not yet executed commands
	ArenaCapacity int    `env:"ARENA_CAPACITY" envDefault:"4096"` // pre-sized resting order slots
}

// AnalyticsConfig holds the depth and imbalance window sizes.
type AnalyticsConfig struct {
	DepthLevels     int `env:"DEPTH_LEVELS" envDefault:"5"`
	ImbalanceLevels int `env:"IMBALANCE_LEVELS" envDefault:"10"`
}

// SimulationConfig drives the bot simulation in main.
type SimulationConfig struct {
	Bots           int             `env:"BOTS" envDefault:"4"`
	Duration       time.Duration   `env:"DURATION" envDefault:"10s"`
	MidPrice       decimal.Decimal `env:"MID_PRICE" envDefault:"100"`
	TickSize       decimal.Decimal `env:"TICK_SIZE" envDefault:"0.01"`
	MaxSize        decimal.Decimal `env:"MAX_SIZE" envDefault:"10"`
	MarketRatio    float64         `env:"MARKET_RATIO" envDefault:"0.1"`
	CancelRatio    float64         `env:"CANCEL_RATIO" envDefault:"0.2"`
	Seed           int64           `env:"SEED" envDefault:"1"`
	ReportInterval time.Duration   `env:"REPORT_INTERVAL" envDefault:"1s"`
}

// NewLogger builds a production zap logger at level ("debug", "info", "warn", "error").
// Unknown levels fall back to info.
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	// change default message key `msg` to `message`
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
