// Package config loads the engine's YAML config and persists the runtime
// settings record.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort  = 38471
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

type Config struct {
	App struct {
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
		DataDir string `yaml:"data_dir"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Store struct {
		Driver     string `yaml:"driver"`
		SQLitePath string `yaml:"sqlite_path"`
		Redis      struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"store"`

	Google struct {
		ClientID          string        `yaml:"client_id"`
		ClientSecret      string        `yaml:"client_secret"`
		AuthURL           string        `yaml:"auth_url"`
		TokenURL          string        `yaml:"token_url"`
		APIBaseURL        string        `yaml:"api_base_url"`
		KeyringAccount    string        `yaml:"keyring_account"`
		ConsentTimeout    time.Duration `yaml:"consent_timeout"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
		Burst             int           `yaml:"burst"`
	} `yaml:"google"`

	Capture struct {
		DedupTTL            time.Duration `yaml:"dedup_ttl"`
		LockWindow          time.Duration `yaml:"lock_window"`
		RecentLimit         int           `yaml:"recent_limit"`
		MaxCacheEntries     int           `yaml:"max_cache_entries"`
		AppendTimeout       time.Duration `yaml:"append_timeout"`
		HealthCheckInterval time.Duration `yaml:"health_check_interval"`
	} `yaml:"capture"`
}

// Default is the config written on first start.
func Default() Config {
	var cfg Config
	cfg.App.Host = "127.0.0.1"
	cfg.App.Port = DefaultPort
	cfg.Log.Level = "info"
	cfg.Store.Driver = DriverSQLite
	cfg.Store.SQLitePath = "engine.db"
	cfg.Store.Redis.Prefix = "jobsheet:"
	cfg.Google.ConsentTimeout = 5 * time.Minute
	cfg.Google.RequestsPerSecond = 1
	cfg.Google.Burst = 5
	cfg.Capture.DedupTTL = 30 * 24 * time.Hour
	cfg.Capture.LockWindow = 10 * time.Second
	cfg.Capture.RecentLimit = 20
	cfg.Capture.MaxCacheEntries = 5000
	cfg.Capture.AppendTimeout = 60 * time.Second
	cfg.Capture.HealthCheckInterval = time.Hour
	return cfg
}

// Load reads path over the defaults, so missing keys keep their default.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}
