package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"groups-exporter/internal/export"
	"groups-exporter/internal/extract"
	"groups-exporter/internal/scraper"
	"groups-exporter/internal/store"
)

// Settings are the user preferences persisted between runs.
type Settings struct {
	MaxItems     int           `json:"maxItems"`
	ExportFormat export.Format `json:"exportFormat"`
	MinMembers   int64         `json:"minMembers"`
	// ActivityThreshold is a relative age such as "7 days" or "48h". Empty
	// disables the activity filter.
	ActivityThreshold string `json:"activityThreshold"`
	ShowProgress      bool   `json:"showProgress"`
	AutoStart         bool   `json:"autoStart"`
}

func DefaultSettings() Settings {
	return Settings{
		MaxItems:     store.DefaultMaxItems,
		ExportFormat: export.FormatCSV,
		ShowProgress: true,
	}
}

// Filters converts the filter settings for a scan pass. An unparseable
// threshold disables the activity filter.
func (s Settings) Filters() scraper.Filters {
	f := scraper.Filters{MinMembers: s.MinMembers}
	if age, ok := extract.ParseAge(s.ActivityThreshold); ok && age > 0 {
		f.MaxAge = age
	}
	return f
}

// sanitize replaces out-of-range values with defaults.
func (s *Settings) sanitize() {
	def := DefaultSettings()
	if s.MaxItems <= 0 {
		s.MaxItems = def.MaxItems
	}
	if f, err := export.ParseFormat(string(s.ExportFormat)); err == nil {
		s.ExportFormat = f
	} else {
		s.ExportFormat = def.ExportFormat
	}
	if s.MinMembers < 0 {
		s.MinMembers = 0
	}
	s.ActivityThreshold = strings.TrimSpace(s.ActivityThreshold)
}

// LoadSettings reads the settings file over the defaults. It always returns
// usable settings; the error only reports why the file was not applied.
// A missing file is not an error.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("failed to read settings: %w", err)
	}

	loaded := DefaultSettings()
	if err := json.Unmarshal(b, &loaded); err != nil {
		return s, fmt.Errorf("failed to parse settings: %w", err)
	}
	loaded.sanitize()
	return loaded, nil
}

// SaveSettings writes s to path through a temporary file so a crash never
// leaves a truncated settings file behind.
func SaveSettings(path string, s Settings) error {
	if path == "" {
		return fmt.Errorf("settings file path is empty")
	}
	s.sanitize()

	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create settings dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp settings file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp settings file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}
