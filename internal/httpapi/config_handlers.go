package httpapi

import (
	"net/http"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"jobsheet-engine/internal/config"
)

const redacted = "********"

// ConfigHandler exposes the engine's YAML config file. Saved changes take
// effect on the next start.
type ConfigHandler struct {
	Current     config.Config
	UserCfgPath string
}

func redact(cfg config.Config) config.Config {
	if cfg.Google.ClientSecret != "" {
		cfg.Google.ClientSecret = redacted
	}
	if cfg.Store.Redis.Password != "" {
		cfg.Store.Redis.Password = redacted
	}
	return cfg
}

func writeYAML(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(status)
	enc := yaml.NewEncoder(w)
	_ = enc.Encode(v)
	_ = enc.Close()
}

func (h ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeYAML(w, http.StatusOK, redact(h.Current))
}

func (h ConfigHandler) Put(w http.ResponseWriter, r *http.Request) {
	dec := yaml.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.KnownFields(true)

	var incoming config.Config
	if err := dec.Decode(&incoming); err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "invalid YAML: "+err.Error())
		return
	}
	// Redacted secrets come back unchanged from a GET.
	if incoming.Google.ClientSecret == redacted {
		incoming.Google.ClientSecret = h.Current.Google.ClientSecret
	}
	if incoming.Store.Redis.Password == redacted {
		incoming.Store.Redis.Password = h.Current.Store.Redis.Password
	}

	normalized, vr := config.NormalizeAndValidate(incoming)
	if !vr.OK() {
		WriteJSON(w, http.StatusBadRequest, vr)
		return
	}
	if err := config.SaveAtomic(h.UserCfgPath, normalized); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "save_failed", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"saved": true, "restart_required": true, "warnings": vr.Warnings})
}

func (h ConfigHandler) Path(w http.ResponseWriter, r *http.Request) {
	abs, _ := filepath.Abs(h.UserCfgPath)
	WriteJSON(w, http.StatusOK, map[string]any{"path": abs})
}
