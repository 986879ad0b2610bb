package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const envPrefix = "NEXUS_"

type Config struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`

	Network  NetworkConfig
	Sessions SessionConfig
	Logging  LoggingConfig
}

type NetworkConfig struct {
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envSeparator:","` // empty allows all
	ReadLimitBytes  int64         `env:"READ_LIMIT_BYTES" envDefault:"1048576"`
	PongWait        time.Duration `env:"PONG_WAIT" envDefault:"60s"`
	PingPeriod      time.Duration `env:"PING_PERIOD" envDefault:"25s"`
	WriteWait       time.Duration `env:"WRITE_WAIT" envDefault:"10s"`
	SendQueue       int           `env:"SEND_QUEUE" envDefault:"64"`
	FramesPerSecond float64       `env:"FRAMES_PER_SECOND" envDefault:"40"`
	FrameBurst      int           `env:"FRAME_BURST" envDefault:"80"`
	MaxDecodeErrors int           `env:"MAX_DECODE_ERRORS" envDefault:"3"`
}

type SessionConfig struct {
	DefaultMaxPlayers int           `env:"DEFAULT_MAX_PLAYERS" envDefault:"4"`
	IdleTTL           time.Duration `env:"SESSION_IDLE_TTL" envDefault:"0s"` // 0 disables expiry
	ReapInterval      time.Duration `env:"REAP_INTERVAL" envDefault:"1m"`
}

type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"` // "json" or "console"
}

// InitConfig loads variables from envFile into the process environment. A
// missing file is not an error. Variables already set win.
func InitConfig(envFile string) error {
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	return nil
}

// Load parses NEXUS_* variables into a validated Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	n := c.Network
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if n.PingPeriod >= n.PongWait {
		return fmt.Errorf("ping period %s must be shorter than pong wait %s", n.PingPeriod, n.PongWait)
	}
	if n.SendQueue <= 0 {
		return fmt.Errorf("send queue must be positive, got %d", n.SendQueue)
	}
	if n.FramesPerSecond <= 0 || n.FrameBurst <= 0 {
		return fmt.Errorf("frame rate and burst must be positive")
	}
	if n.ReadLimitBytes <= 0 {
		return fmt.Errorf("read limit must be positive, got %d", n.ReadLimitBytes)
	}
	if c.Sessions.DefaultMaxPlayers <= 0 {
		return fmt.Errorf("default max players must be positive, got %d", c.Sessions.DefaultMaxPlayers)
	}
	if c.Sessions.IdleTTL < 0 {
		return fmt.Errorf("session idle ttl must not be negative")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
