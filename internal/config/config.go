package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Recaptcha  RecaptchaConfig  `yaml:"recaptcha"`
	Booking    BookingConfig    `yaml:"booking"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
	// Coarse per-client throttle over the whole HTTP surface,
	// separate from the booking admission quota.
	ThrottleRPS   float64 `yaml:"throttle_rps"`
	ThrottleBurst int     `yaml:"throttle_burst"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type RecaptchaConfig struct {
	// Empty secret disables verification entirely (development mode).
	// A configured secret makes the token mandatory.
	Secret    string  `yaml:"secret"`
	VerifyURL string  `yaml:"verify_url"`
	MinScore  float64 `yaml:"min_score"`
}

type BookingConfig struct {
	MaxPerIP           int `yaml:"max_per_ip"`
	WindowSeconds      int `yaml:"window_seconds"`
	MaxPendingPerPhone int `yaml:"max_pending_per_phone"`
	SameDayLeadMinutes int `yaml:"same_day_lead_minutes"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; environment wins when both are present.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Substitute ${VAR} references before parsing.
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Booking.MaxPerIP <= 0 {
		return fmt.Errorf("booking.max_per_ip must be positive, got %d", c.Booking.MaxPerIP)
	}
	if c.Booking.WindowSeconds <= 0 {
		return fmt.Errorf("booking.window_seconds must be positive, got %d", c.Booking.WindowSeconds)
	}
	if c.Booking.MaxPendingPerPhone <= 0 {
		return fmt.Errorf("booking.max_pending_per_phone must be positive, got %d", c.Booking.MaxPendingPerPhone)
	}
	if c.Recaptcha.MinScore < 0 || c.Recaptcha.MinScore > 1 {
		return fmt.Errorf("recaptcha.min_score must be within [0,1], got %v", c.Recaptcha.MinScore)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "salonbook"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ThrottleBurst == 0 {
		c.Server.ThrottleBurst = 20
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Recaptcha.VerifyURL == "" {
		c.Recaptcha.VerifyURL = "https://www.google.com/recaptcha/api/siteverify"
	}
	if c.Recaptcha.MinScore == 0 {
		c.Recaptcha.MinScore = 0.5
	}

	if c.Booking.MaxPerIP == 0 {
		c.Booking.MaxPerIP = 3
	}
	if c.Booking.WindowSeconds == 0 {
		c.Booking.WindowSeconds = 3600
	}
	if c.Booking.MaxPendingPerPhone == 0 {
		c.Booking.MaxPendingPerPhone = 2
	}
	if c.Booking.SameDayLeadMinutes == 0 {
		c.Booking.SameDayLeadMinutes = 60
	}

	if c.Backup.RetentionDays == 0 {
		c.Backup.RetentionDays = 14
	}
}
