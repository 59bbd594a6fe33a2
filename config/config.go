package config

import (
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Lifecycle   LifecycleConfig   `yaml:"lifecycle"`
	Disposal    DisposalConfig    `yaml:"disposal"`
	SMS         SMSConfig         `yaml:"sms"`
	Push        PushConfig        `yaml:"push"`
	WorkerPool  WorkerPoolConfig  `yaml:"worker_pool"`
	Receipt     ReceiptConfig     `yaml:"receipt"`
	Consumables ConsumablesConfig `yaml:"consumables"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size      int `yaml:"size" env:"WORKER_POOL_SIZE"`
	QueueSize int `yaml:"queue_size"`
}

// PushConfig holds the VAPID keys for staff web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key" env:"VAPID_PUBLIC_KEY"`
	PrivateKey string `yaml:"vapid_private_key" env:"VAPID_PRIVATE_KEY"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// SMSConfig holds the settings for the outbound SMS gateway.
type SMSConfig struct {
	Enabled            bool          `yaml:"enabled" env:"SMS_ENABLED"`
	GatewayURL         string        `yaml:"gateway_url" env:"SMS_GATEWAY_URL"`
	APIKey             string        `yaml:"api_key" env:"SMS_API_KEY"`
	Sender             string        `yaml:"sender"`
	TimeoutSeconds     int           `yaml:"timeout_seconds"`
	Timeout            time.Duration `yaml:"-"`
	DefaultCountryCode string        `yaml:"default_country_code"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port" env:"PORT"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn" env:"DATABASE_DSN"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
}

// LifecycleConfig holds defaults applied to new jobs and loads.
type LifecycleConfig struct {
	DefaultDurationMinutes int      `yaml:"default_duration_minutes"`
	StatusFlow             []string `yaml:"status_flow"`
}

// DisposalConfig controls the unclaimed-laundry sweep.
type DisposalConfig struct {
	Enabled              bool          `yaml:"enabled" env:"DISPOSAL_ENABLED"`
	IntervalMinutes      int           `yaml:"interval_minutes"`
	WarningAfterHours    int           `yaml:"warning_after_hours"`
	ExpireAfterHours     int           `yaml:"expire_after_hours"`
	NotifyTimeoutSeconds int           `yaml:"notify_timeout_seconds"`
	Interval             time.Duration `yaml:"-"`
	WarningThreshold     time.Duration `yaml:"-"`
	ExpiryThreshold      time.Duration `yaml:"-"`
	NotifyTimeout        time.Duration `yaml:"-"`
}

// ReceiptConfig is the fallback store branding printed on claim receipts.
type ReceiptConfig struct {
	StoreName    string `yaml:"store_name"`
	StoreAddress string `yaml:"store_address"`
	StorePhone   string `yaml:"store_phone"`
	Footer       string `yaml:"footer"`
}

// ConsumablesConfig lists the name fragments used to count consumables on a transaction.
type ConsumablesConfig struct {
	DetergentKeywords []string `yaml:"detergent_keywords"`
	FabricKeywords    []string `yaml:"fabric_keywords"`
}

// Load reads the configuration from the given path and applies environment overrides.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills unset values and derives the duration fields.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	// rate_limit_per_sec <= 0 leaves the API unlimited
	if cfg.Server.RateLimitPerSec > 0 && cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.Lifecycle.DefaultDurationMinutes <= 0 {
		cfg.Lifecycle.DefaultDurationMinutes = 45
	}
	if len(cfg.Lifecycle.StatusFlow) == 0 {
		cfg.Lifecycle.StatusFlow = []string{"Washing", "Drying", "Completed"}
	}

	if cfg.Disposal.IntervalMinutes <= 0 {
		cfg.Disposal.IntervalMinutes = 30
	}
	if cfg.Disposal.WarningAfterHours <= 0 {
		cfg.Disposal.WarningAfterHours = 24 * 7
	}
	if cfg.Disposal.ExpireAfterHours <= 0 {
		cfg.Disposal.ExpireAfterHours = 24 * 30
	}
	if cfg.Disposal.ExpireAfterHours < cfg.Disposal.WarningAfterHours {
		log.Printf("disposal.expire_after_hours (%d) is below warning_after_hours (%d); raising it", cfg.Disposal.ExpireAfterHours, cfg.Disposal.WarningAfterHours)
		cfg.Disposal.ExpireAfterHours = cfg.Disposal.WarningAfterHours
	}
	if cfg.Disposal.NotifyTimeoutSeconds <= 0 {
		cfg.Disposal.NotifyTimeoutSeconds = 10
	}
	cfg.Disposal.Interval = time.Duration(cfg.Disposal.IntervalMinutes) * time.Minute
	cfg.Disposal.WarningThreshold = time.Duration(cfg.Disposal.WarningAfterHours) * time.Hour
	cfg.Disposal.ExpiryThreshold = time.Duration(cfg.Disposal.ExpireAfterHours) * time.Hour
	cfg.Disposal.NotifyTimeout = time.Duration(cfg.Disposal.NotifyTimeoutSeconds) * time.Second

	if cfg.SMS.TimeoutSeconds <= 0 {
		cfg.SMS.TimeoutSeconds = 10
	}
	cfg.SMS.Timeout = time.Duration(cfg.SMS.TimeoutSeconds) * time.Second

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.QueueSize <= 0 {
		cfg.WorkerPool.QueueSize = 100
	}

	if len(cfg.Consumables.DetergentKeywords) == 0 {
		cfg.Consumables.DetergentKeywords = []string{"detergent"}
	}
	if len(cfg.Consumables.FabricKeywords) == 0 {
		cfg.Consumables.FabricKeywords = []string{"fabric"}
	}

	if cfg.Receipt.StoreName == "" {
		cfg.Receipt.StoreName = "Laundry Shop"
	}
}
