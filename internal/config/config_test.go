package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_WithRequiredEnvVars(t *testing.T) {
	os.Setenv("DB_PASSWORD", "test-password")
	defer os.Unsetenv("DB_PASSWORD")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DB.Password != "test-password" {
		t.Errorf("DB.Password = %v, want %v", cfg.DB.Password, "test-password")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	os.Setenv("DB_PASSWORD", "test-pass")
	defer os.Unsetenv("DB_PASSWORD")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Test DB defaults
	if cfg.DB.Host != "localhost" {
		t.Errorf("DB.Host = %v, want %v", cfg.DB.Host, "localhost")
	}
	if cfg.DB.Port != 3306 {
		t.Errorf("DB.Port = %v, want %v", cfg.DB.Port, 3306)
	}
	if cfg.DB.Database != "video_dedup" {
		t.Errorf("DB.Database = %v, want %v", cfg.DB.Database, "video_dedup")
	}
	if cfg.DB.MaxConns != 10 {
		t.Errorf("DB.MaxConns = %v, want %v", cfg.DB.MaxConns, 10)
	}

	// Test Matcher defaults
	if cfg.Matcher.MaxHamming != 8 {
		t.Errorf("Matcher.MaxHamming = %v, want %v", cfg.Matcher.MaxHamming, 8)
	}
	if cfg.Matcher.SimilarityThreshold != 0.85 {
		t.Errorf("Matcher.SimilarityThreshold = %v, want %v", cfg.Matcher.SimilarityThreshold, 0.85)
	}
	if cfg.Matcher.GapCost != 0.7 {
		t.Errorf("Matcher.GapCost = %v, want %v", cfg.Matcher.GapCost, 0.7)
	}
	if cfg.Matcher.MaxSignatureRows != 512 {
		t.Errorf("Matcher.MaxSignatureRows = %v, want %v", cfg.Matcher.MaxSignatureRows, 512)
	}

	// Test Sweeper defaults
	if cfg.Sweeper.Enabled != true {
		t.Errorf("Sweeper.Enabled = %v, want %v", cfg.Sweeper.Enabled, true)
	}
	if cfg.Sweeper.Interval != time.Hour {
		t.Errorf("Sweeper.Interval = %v, want %v", cfg.Sweeper.Interval, time.Hour)
	}

	// Test Server defaults
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %v, want %v", cfg.Server.Port, 8080)
	}
	if cfg.Server.EvaluateRate != 10 {
		t.Errorf("Server.EvaluateRate = %v, want %v", cfg.Server.EvaluateRate, 10.0)
	}

	// Test Events defaults
	if cfg.Events.Topic != "media-deletions" {
		t.Errorf("Events.Topic = %v, want %v", cfg.Events.Topic, "media-deletions")
	}
	if len(cfg.Events.Brokers) != 0 {
		t.Errorf("Events.Brokers = %v, want empty", cfg.Events.Brokers)
	}
}

func TestLoad_MissingDBPassword(t *testing.T) {
	os.Unsetenv("DB_PASSWORD")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for missing DB_PASSWORD, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		DB: DBConfig{Password: "pass"},
		Matcher: MatcherConfig{
			MaxHamming:          8,
			SimilarityThreshold: 0.85,
			GapCost:             0.7,
			MaxSignatureRows:    512,
		},
		Sweeper: SweeperConfig{Interval: time.Hour},
		Server:  ServerConfig{Port: 8080, EvaluateRate: 10},
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"missing db password", func(c *Config) { c.DB.Password = "" }, true},
		{"negative hamming bound", func(c *Config) { c.Matcher.MaxHamming = -1 }, true},
		{"hamming bound too large", func(c *Config) { c.Matcher.MaxHamming = 64 }, true},
		{"zero similarity threshold", func(c *Config) { c.Matcher.SimilarityThreshold = 0 }, true},
		{"similarity threshold above one", func(c *Config) { c.Matcher.SimilarityThreshold = 1.5 }, true},
		{"zero gap cost", func(c *Config) { c.Matcher.GapCost = 0 }, true},
		{"zero row cap", func(c *Config) { c.Matcher.MaxSignatureRows = 0 }, true},
		{"zero sweep interval", func(c *Config) { c.Sweeper.Interval = 0 }, true},
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, true},
		{"zero evaluate rate", func(c *Config) { c.Server.EvaluateRate = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDBConfig_DSN(t *testing.T) {
	cfg := DBConfig{
		Host:     "localhost",
		Port:     3306,
		User:     "root",
		Password: "secret",
		Database: "testdb",
	}

	expected := "root:secret@tcp(localhost:3306)/testdb?charset=utf8mb4&parseTime=True&loc=Local"
	if got := cfg.DSN(); got != expected {
		t.Errorf("DSN() = %v, want %v", got, expected)
	}
}
