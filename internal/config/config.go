package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	DB      DBConfig
	Matcher MatcherConfig
	Sweeper SweeperConfig
	Server  ServerConfig
	Events  EventsConfig
}

// DBConfig holds database configuration
type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"3306"`
	User     string `envconfig:"DB_USER" default:"root"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	Database string `envconfig:"DB_NAME" default:"video_dedup"`
	MaxConns int    `envconfig:"DB_MAX_CONNS" default:"10"`
}

// MatcherConfig holds duplicate-matching thresholds
type MatcherConfig struct {
	MaxHamming          int     `envconfig:"MATCH_MAX_HAMMING" default:"8"`
	SimilarityThreshold float64 `envconfig:"MATCH_SIMILARITY_THRESHOLD" default:"0.85"`
	GapCost             float64 `envconfig:"MATCH_GAP_COST" default:"0.7"`
	MaxSignatureRows    int     `envconfig:"MATCH_MAX_SIGNATURE_ROWS" default:"512"`
}

// SweeperConfig holds retention sweeper configuration
type SweeperConfig struct {
	Enabled  bool          `envconfig:"SWEEP_ENABLED" default:"true"`
	Interval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1h"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int     `envconfig:"SERVER_PORT" default:"8080"`
	EvaluateRate float64 `envconfig:"SERVER_EVALUATE_RATE" default:"10"`
}

// EventsConfig holds media-deletion event sink configuration.
// With no brokers configured, deletion events are logged instead.
type EventsConfig struct {
	Brokers []string `envconfig:"EVENTS_BROKERS"`
	Topic   string   `envconfig:"EVENTS_TOPIC" default:"media-deletions"`
}

// DSN returns the MySQL data source name
func (c *DBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg.DB); err != nil {
		return nil, fmt.Errorf("failed to load db config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Matcher); err != nil {
		return nil, fmt.Errorf("failed to load matcher config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Sweeper); err != nil {
		return nil, fmt.Errorf("failed to load sweeper config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Server); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Events); err != nil {
		return nil, fmt.Errorf("failed to load events config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DB.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Matcher.MaxHamming < 0 || c.Matcher.MaxHamming > 63 {
		return fmt.Errorf("MATCH_MAX_HAMMING must be between 0 and 63")
	}
	if c.Matcher.SimilarityThreshold <= 0 || c.Matcher.SimilarityThreshold > 1 {
		return fmt.Errorf("MATCH_SIMILARITY_THRESHOLD must be in (0,1]")
	}
	if c.Matcher.GapCost <= 0 {
		return fmt.Errorf("MATCH_GAP_COST must be positive")
	}
	if c.Matcher.MaxSignatureRows <= 0 {
		return fmt.Errorf("MATCH_MAX_SIGNATURE_ROWS must be positive")
	}
	if c.Sweeper.Interval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}
	if c.Server.EvaluateRate <= 0 {
		return fmt.Errorf("SERVER_EVALUATE_RATE must be positive")
	}
	return nil
}
