// Package config handles loading and hot-reloading of the load
// balancer's YAML configuration via Viper. All struct fields map 1-to-1
// with loadbalancer.yaml.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// HealthCheckCfg controls the active backend health checker.
type HealthCheckCfg struct {
	Enabled      bool   `mapstructure:"enabled"`
	Interval     string `mapstructure:"interval"`
	Timeout      string `mapstructure:"timeout"`
	ProbeMessage string `mapstructure:"probe_message"`
}

// ParsedInterval returns the interval as a time.Duration, defaulting to 3s.
func (h HealthCheckCfg) ParsedInterval() time.Duration {
	d, _ := time.ParseDuration(h.Interval)
	if d <= 0 {
		return 3 * time.Second
	}
	return d
}

// ParsedTimeout returns the timeout as a time.Duration, defaulting to 1s.
func (h HealthCheckCfg) ParsedTimeout() time.Duration {
	d, _ := time.ParseDuration(h.Timeout)
	if d <= 0 {
		return 1 * time.Second
	}
	return d
}

// RateLimitCfg controls per-IP token-bucket rate limiting on the admin API.
type RateLimitCfg struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`   // sustained requests per second
	Burst   int     `mapstructure:"burst"` // maximum burst size
}

// AuthCfg controls JWT Bearer-token authentication on the admin API.
type AuthCfg struct {
	Enabled bool     `mapstructure:"enabled"`
	Secret  string   `mapstructure:"secret"`  // HMAC-SHA256 signing secret
	Exclude []string `mapstructure:"exclude"` // exact paths that bypass auth
}

// AdminCfg controls the admin/status HTTP server. Unlike the client data
// path, the admin surface is ambient infrastructure and may legitimately
// carry its own auth and rate limiting.
type AdminCfg struct {
	Enabled    bool         `mapstructure:"enabled"`
	ListenAddr string       `mapstructure:"listen_addr"`
	RateLimit  RateLimitCfg `mapstructure:"rate_limit"`
	Auth       AuthCfg      `mapstructure:"auth"`
}

// Config is the top-level load balancer configuration.
type Config struct {
	ClientAddr       string         `mapstructure:"client_addr"`
	RegistrationAddr string         `mapstructure:"registration_addr"`
	MetricsAddr      string         `mapstructure:"metrics_addr"`
	DialTimeout      string         `mapstructure:"dial_timeout"`
	PipeBuffer       int            `mapstructure:"pipe_buffer"`
	HealthCheck      HealthCheckCfg `mapstructure:"health_check"`
	Admin            AdminCfg       `mapstructure:"admin"`
}

// ParsedDialTimeout returns DialTimeout as a time.Duration, defaulting to 2s.
func (c Config) ParsedDialTimeout() time.Duration {
	d, _ := time.ParseDuration(c.DialTimeout)
	if d <= 0 {
		return 2 * time.Second
	}
	return d
}

// Default returns the documented out-of-the-box configuration: an empty
// backend pool that fills in as backends self-register, health checking
// on, admin API enabled on :9091 (all interfaces) with auth and rate
// limiting off.
func Default() Config {
	return Config{
		ClientAddr:       ":5000",
		RegistrationAddr: ":6001",
		MetricsAddr:      ":6003",
		DialTimeout:      "2s",
		PipeBuffer:       4096,
		HealthCheck: HealthCheckCfg{
			Enabled:      true,
			Interval:     "3s",
			Timeout:      "1s",
			ProbeMessage: "health check",
		},
		Admin: AdminCfg{
			Enabled:    true,
			ListenAddr: ":9091",
			RateLimit:  RateLimitCfg{Enabled: false, RPS: 50, Burst: 100},
			Auth:       AuthCfg{Enabled: false},
		},
	}
}

// Load reads and parses the YAML file at path using Viper.
// It returns the parsed Config and the Viper instance (needed for Watch).
func Load(path string) (Config, *viper.Viper, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, nil, fmt.Errorf("config: reading %q: %w", path, err)
	}
	cfg, err := unmarshal(v)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, v, nil
}

// Watch registers an onChange callback that fires whenever the config file
// is saved. The callback receives a freshly parsed Config. Invalid reloads
// are logged and silently skipped (the previous config stays active).
func Watch(v *viper.Viper, onChange func(Config)) {
	v.WatchConfig()
	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshal(v)
		if err != nil {
			slog.Error("config hot-reload failed", "error", err)
			return
		}
		slog.Info("config hot-reloaded",
			"client_addr", cfg.ClientAddr,
			"health_check_enabled", cfg.HealthCheck.Enabled,
		)
		onChange(cfg)
	})
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)

	d := Default()
	v.SetDefault("client_addr", d.ClientAddr)
	v.SetDefault("registration_addr", d.RegistrationAddr)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("dial_timeout", d.DialTimeout)
	v.SetDefault("pipe_buffer", d.PipeBuffer)
	v.SetDefault("health_check.enabled", d.HealthCheck.Enabled)
	v.SetDefault("health_check.interval", d.HealthCheck.Interval)
	v.SetDefault("health_check.timeout", d.HealthCheck.Timeout)
	v.SetDefault("health_check.probe_message", d.HealthCheck.ProbeMessage)
	v.SetDefault("admin.enabled", d.Admin.Enabled)
	v.SetDefault("admin.listen_addr", d.Admin.ListenAddr)
	v.SetDefault("admin.rate_limit.enabled", d.Admin.RateLimit.Enabled)
	v.SetDefault("admin.rate_limit.rps", d.Admin.RateLimit.RPS)
	v.SetDefault("admin.rate_limit.burst", d.Admin.RateLimit.Burst)
	v.SetDefault("admin.auth.enabled", d.Admin.Auth.Enabled)

	return v
}

func unmarshal(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing: %w", err)
	}
	if cfg.ClientAddr == "" {
		return Config{}, fmt.Errorf("config: client_addr must not be empty")
	}
	if cfg.RegistrationAddr == "" {
		return Config{}, fmt.Errorf("config: registration_addr must not be empty")
	}
	if cfg.MetricsAddr == "" {
		return Config{}, fmt.Errorf("config: metrics_addr must not be empty")
	}
	if cfg.PipeBuffer <= 0 {
		cfg.PipeBuffer = Default().PipeBuffer
	}
	if cfg.Admin.Enabled && cfg.Admin.Auth.Enabled && cfg.Admin.Auth.Secret == "" {
		return Config{}, fmt.Errorf("config: admin.auth.enabled requires admin.auth.secret")
	}
	return cfg, nil
}
