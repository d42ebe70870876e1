package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a normalized copy of cfg and what is wrong with it.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	out.App.Host = strings.TrimSpace(out.App.Host)
	if out.App.Host == "" {
		out.App.Host = "127.0.0.1"
	}
	out.Store.Driver = strings.ToLower(strings.TrimSpace(out.Store.Driver))
	if out.Store.Driver == "" {
		out.Store.Driver = DriverSQLite
	}
	out.Log.Level = strings.ToLower(strings.TrimSpace(out.Log.Level))

	// ---- Validation rules ----

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}
	if out.App.Host != "127.0.0.1" && out.App.Host != "localhost" && out.App.Host != "::1" {
		res.addWarn("app.host is %q; the engine has no authentication and should stay on loopback.", out.App.Host)
	}

	switch out.Store.Driver {
	case DriverSQLite:
		if strings.TrimSpace(out.Store.SQLitePath) == "" {
			res.addErr("store.sqlite_path is required when store.driver=sqlite")
		}
	case DriverRedis:
		if strings.TrimSpace(out.Store.Redis.Addr) == "" {
			res.addErr("store.redis.addr is required when store.driver=redis")
		}
	default:
		res.addErr("store.driver must be %q or %q", DriverSQLite, DriverRedis)
	}

	for name, raw := range map[string]string{
		"google.auth_url":     out.Google.AuthURL,
		"google.token_url":    out.Google.TokenURL,
		"google.api_base_url": out.Google.APIBaseURL,
	} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			res.addErr("%s must be an absolute URL", name)
		}
	}
	if strings.TrimSpace(out.Google.ClientID) == "" {
		res.addWarn("google.client_id is empty; set it (or GOOGLE_CLIENT_ID) before connecting a sheet.")
	}
	if out.Google.RequestsPerSecond < 0 {
		res.addErr("google.requests_per_second must be >= 0")
	}
	if out.Google.ConsentTimeout <= 0 {
		res.addErr("google.consent_timeout must be > 0")
	}

	if out.Capture.DedupTTL <= 0 {
		res.addErr("capture.dedup_ttl must be > 0")
	} else if out.Capture.DedupTTL < 24*time.Hour {
		res.addWarn("capture.dedup_ttl is short (%s); the same posting may be recorded twice.", out.Capture.DedupTTL)
	}
	if out.Capture.LockWindow <= 0 {
		res.addErr("capture.lock_window must be > 0")
	}
	if out.Capture.RecentLimit <= 0 {
		res.addErr("capture.recent_limit must be > 0")
	} else if out.Capture.RecentLimit > 200 {
		res.addWarn("capture.recent_limit is %d; the popup only shows a handful.", out.Capture.RecentLimit)
	}
	if out.Capture.MaxCacheEntries <= 0 {
		res.addErr("capture.max_cache_entries must be > 0")
	}
	if out.Capture.AppendTimeout <= 0 {
		res.addErr("capture.append_timeout must be > 0")
	}
	if out.Capture.HealthCheckInterval <= 0 {
		res.addErr("capture.health_check_interval must be > 0")
	}

	return out, res
}
