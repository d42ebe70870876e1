package config

import (
	"strconv"
	"strings"
)

// OverlayEnv applies environment overrides on top of the file config.
// getenv is os.Getenv outside tests.
func OverlayEnv(cfg *Config, getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	str("JOBSHEET_DATA_DIR", &cfg.App.DataDir)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("JOBSHEET_STORE_DRIVER", &cfg.Store.Driver)
	str("REDIS_ADDR", &cfg.Store.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Store.Redis.Password)
	str("GOOGLE_CLIENT_ID", &cfg.Google.ClientID)
	str("GOOGLE_CLIENT_SECRET", &cfg.Google.ClientSecret)
	str("JOBSHEET_SHEETS_ENDPOINT", &cfg.Google.APIBaseURL)

	if v := strings.TrimSpace(getenv("JOBSHEET_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.App.Port = n
		}
	}
	if v := strings.TrimSpace(getenv("REDIS_DB")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Store.Redis.DB = n
		}
	}
}
