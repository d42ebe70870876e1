package config

import (
	"context"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"

	"jobsheet-engine/internal/store"
)

const DefaultSheetName = "Applications"

// Settings is the runtime record edited from the UI.
type Settings struct {
	SpreadsheetID string `json:"spreadsheetId"`
	SheetName     string `json:"sheetName"`
	// Sources maps an extractor family (linkedin, workday, ...) to its switch.
	// Families not listed are enabled.
	Sources map[string]bool `json:"sources"`
}

func (s Settings) Configured() bool { return strings.TrimSpace(s.SpreadsheetID) != "" }

func (s Settings) SourceEnabled(source string) bool {
	source = strings.ToLower(strings.TrimSpace(source))
	if source == "" {
		return true
	}
	on, ok := s.Sources[source]
	return !ok || on
}

var reSpreadsheetURL = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)

// Normalize accepts a full spreadsheet URL in place of the id.
func (s Settings) Normalize() Settings {
	out := s
	out.SpreadsheetID = strings.TrimSpace(out.SpreadsheetID)
	if m := reSpreadsheetURL.FindStringSubmatch(out.SpreadsheetID); m != nil {
		out.SpreadsheetID = m[1]
	}
	out.SheetName = strings.TrimSpace(out.SheetName)
	if out.SheetName == "" {
		out.SheetName = DefaultSheetName
	}
	out.Sources = make(map[string]bool, len(s.Sources))
	for k, v := range s.Sources {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			out.Sources[k] = v
		}
	}
	return out
}

type SettingsStore struct {
	kv store.KV
}

func NewSettingsStore(kv store.KV) *SettingsStore {
	return &SettingsStore{kv: kv}
}

// Load returns normalized settings; a fresh install yields an unconfigured record.
func (s *SettingsStore) Load(ctx context.Context) (Settings, error) {
	var st Settings
	if _, err := s.kv.GetJSON(ctx, store.KeySettings, &st); err != nil {
		return Settings{}, errors.Wrap(err, "load settings")
	}
	return st.Normalize(), nil
}

func (s *SettingsStore) Save(ctx context.Context, st Settings) (Settings, error) {
	st = st.Normalize()
	if err := s.kv.SetJSON(ctx, store.KeySettings, st); err != nil {
		return Settings{}, errors.Wrap(err, "save settings")
	}
	return st, nil
}
