package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"trading-journal/internal/models"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Backend  Backend  `mapstructure:"backend"`
	Database Database `mapstructure:"database"`
	Server   Server   `mapstructure:"server"`
	Logger   Logger   `mapstructure:"logger"`
	Journal  Journal  `mapstructure:"journal"`
	Backup   Backup   `mapstructure:"backup"`
	Tracing  Tracing  `mapstructure:"tracing"`
}

// Backend selects and configures the remote store.
// Kind is "rest" for a hosted backend-as-a-service or "local" for the gorm store.
type Backend struct {
	Kind           string        `mapstructure:"kind"`
	URL            string        `mapstructure:"url"`
	AnonKey        string        `mapstructure:"anon_key"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// Database holds the configuration for the local store.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port       int           `mapstructure:"port"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Journal holds the defaults applied to a profile created on first access.
type Journal struct {
	InitialBalance    float64 `mapstructure:"initial_balance"`
	InitialTradeValue float64 `mapstructure:"initial_trade_value"`
	PercentTarget     float64 `mapstructure:"percent_target"`
}

// Settings returns the defaults as journal settings.
func (j Journal) Settings() models.Settings {
	return models.Settings{
		InitialBalance:    j.InitialBalance,
		InitialTradeValue: j.InitialTradeValue,
		PercentTarget:     j.PercentTarget,
	}
}

// Backup configures scheduled JSON backups in server mode.
type Backup struct {
	Schedule string `mapstructure:"schedule"`
	Dir      string `mapstructure:"dir"`
}

type Tracing struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig reads configuration from file or environment variables.
// A .env file next to the config (or in the working directory) is loaded first.
func LoadConfig(path string) (config Config, err error) {
	loadDotEnv(path)

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.kind", "local")
	v.SetDefault("backend.url", "")
	v.SetDefault("backend.anon_key", "")
	v.SetDefault("backend.rate_limit", 10) // requests per second
	v.SetDefault("backend.rate_limit_burst", 5)
	v.SetDefault("backend.timeout", 15*time.Second)

	v.SetDefault("database.dsn", "journal.db")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.session_ttl", 12*time.Hour)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.file", "")

	v.SetDefault("journal.initial_balance", 59000)
	v.SetDefault("journal.initial_trade_value", 2360)
	v.SetDefault("journal.percent_target", 12)

	v.SetDefault("backup.schedule", "")
	v.SetDefault("backup.dir", "backups")

	v.SetDefault("tracing.enabled", false)
}

func loadDotEnv(path string) {
	candidates := []string{filepath.Join(path, ".env"), ".env"}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			// Existing environment wins over the file.
			_ = godotenv.Load(c)
			return
		}
	}
}
