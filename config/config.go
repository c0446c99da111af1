package config

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Backend    BackendConfig     `yaml:"backend"`
	Desk       DeskConfig        `yaml:"desk"`
	Poller     PollerConfig      `yaml:"poller"`
	Notifier   NotifierConfig    `yaml:"notifier"`
	Database   DatabaseConfig    `yaml:"database"`
	Push       PushConfig        `yaml:"push"`
	WorkerPool WorkerPoolConfig  `yaml:"worker_pool"`
	Areas      []AreaConfig      `yaml:"areas"`
	Variants   map[string]string `yaml:"area_variants"`
}

// ServerConfig holds the local HTTP surface configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// BackendConfig describes how to reach the remote turn store.
type BackendConfig struct {
	URL             string        `yaml:"url"`
	TimeoutSeconds  int           `yaml:"timeout_seconds"`
	Timeout         time.Duration `yaml:"-"`
	HTTPProxy       string        `yaml:"http_proxy"`
	RateLimitPerSec float64       `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
}

// DeskConfig pins what this desk watches. Floor < 0 means "derive it from
// the logged in account".
type DeskConfig struct {
	Floor  int    `yaml:"floor"`
	Estado string `yaml:"estado"`
	Actor  string `yaml:"actor"`
}

// PollerConfig holds the refresh cadence.
type PollerConfig struct {
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"`
}

// NotifierConfig tunes the three alert channels.
type NotifierConfig struct {
	SoundEnabled  *bool         `yaml:"sound_enabled"`
	ToastSeconds  int           `yaml:"toast_seconds"`
	ToastDuration time.Duration `yaml:"-"`
	SystemSeconds int           `yaml:"system_seconds"`
	SystemTTL     time.Duration `yaml:"-"`
	Permission    string        `yaml:"permission"`
}

// PushConfig holds the VAPID keys for browser push and the desk's own
// device token registered with the backend.
type PushConfig struct {
	PublicKey   string `yaml:"vapid_public_key"`
	PrivateKey  string `yaml:"vapid_private_key"`
	Subject     string `yaml:"subject"`
	TTL         int    `yaml:"ttl"`
	DeviceToken string `yaml:"device_token"`
	Platform    string `yaml:"platform"`
}

// DatabaseConfig holds the local state database configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// AreaConfig is one entry of the area catalog.
type AreaConfig struct {
	Key    string `yaml:"key"`
	Nombre string `yaml:"nombre"`
	Piso   int    `yaml:"piso"`
}

// SoundOn reports the initial state of the sound toggle.
func (n NotifierConfig) SoundOn() bool {
	return n.SoundEnabled == nil || *n.SoundEnabled
}

// Load reads the configuration from the given path.
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

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{Desk: DeskConfig{Floor: -1}}
	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8085
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	cfg.Backend.URL = strings.TrimRight(cfg.Backend.URL, "/")
	if cfg.Backend.TimeoutSeconds <= 0 {
		cfg.Backend.TimeoutSeconds = 15
	}
	cfg.Backend.Timeout = time.Duration(cfg.Backend.TimeoutSeconds) * time.Second
	if cfg.Backend.RateLimitPerSec <= 0 {
		cfg.Backend.RateLimitPerSec = 5
	}
	if cfg.Backend.RateLimitBurst <= 0 {
		cfg.Backend.RateLimitBurst = 5
	}

	if cfg.Desk.Estado == "" {
		cfg.Desk.Estado = "ESPERA"
	}

	if cfg.Poller.IntervalSeconds <= 0 {
		cfg.Poller.IntervalSeconds = 15
	}
	cfg.Poller.Interval = time.Duration(cfg.Poller.IntervalSeconds) * time.Second

	if cfg.Notifier.ToastSeconds <= 0 {
		cfg.Notifier.ToastSeconds = 4
	}
	cfg.Notifier.ToastDuration = time.Duration(cfg.Notifier.ToastSeconds) * time.Second
	if cfg.Notifier.SystemSeconds <= 0 {
		cfg.Notifier.SystemSeconds = 5
	}
	cfg.Notifier.SystemTTL = time.Duration(cfg.Notifier.SystemSeconds) * time.Second
	if cfg.Notifier.Permission == "" {
		cfg.Notifier.Permission = "default"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
	if cfg.Push.Platform == "" {
		cfg.Push.Platform = "web"
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:turnero.db"
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Warn().Msg("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}
