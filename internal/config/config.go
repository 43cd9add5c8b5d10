package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Session  SessionConfig  `yaml:"session" mapstructure:"session"`
	Storage  StorageConfig  `yaml:"storage" mapstructure:"storage"`
	Adapters AdaptersConfig `yaml:"adapters" mapstructure:"adapters"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StorageConfig configures the parsed-transaction sink.
type StorageConfig struct {
	DatabaseURL       string `yaml:"database_url" mapstructure:"database_url"`
	TransactionsTable string `yaml:"transactions_table" mapstructure:"transactions_table"`
}

// SessionConfig configures the agent session store backend.
type SessionConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	RedisAddr   string `yaml:"redis_addr" mapstructure:"redis_addr"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	Table       string `yaml:"table" mapstructure:"table"`
	Namespace   string `yaml:"namespace" mapstructure:"namespace"`
	TTLSeconds  int    `yaml:"ttl_seconds" mapstructure:"ttl_seconds"`
}

// AdaptersConfig configures the provider adapter registry.
type AdaptersConfig struct {
	// WeightsFile points at an optional confidence-weights tuning file.
	WeightsFile string `yaml:"weights_file" mapstructure:"weights_file"`
}

// ServerConfig configures the ingestion HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
	// RateLimit is the sustained requests-per-second budget per client.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	// RateBurst is the burst allowance on top of RateLimit.
	RateBurst int `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("session.driver", "postgres")
	v.SetDefault("session.database_url", "")
	v.SetDefault("session.redis_addr", "")
	v.SetDefault("session.sqlite_path", "")
	v.SetDefault("session.table", "agent_sessions")
	v.SetDefault("session.namespace", "ibimina:agent:sessions")
	v.SetDefault("session.ttl_seconds", 1800)
	v.SetDefault("storage.database_url", "")
	v.SetDefault("storage.transactions_table", "parsed_transactions")
	v.SetDefault("adapters.weights_file", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 25.0)
	v.SetDefault("server.rate_burst", 50)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
