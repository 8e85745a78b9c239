package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"

	"groups-exporter/internal/scraper"
)

// LoadSelectors reads selector overrides from a YAML file. Lists missing from
// the file keep their defaults.
func LoadSelectors(filePath string) (*scraper.Selectors, error) {
	if filePath == "" {
		return nil, fmt.Errorf("selectors file path is empty")
	}

	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("selectors file not found: %s: %w", filePath, err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open selectors file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close selectors file: %v\n", closeErr)
		}
	}()

	var loaded scraper.Selectors
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&loaded); err != nil {
		return nil, fmt.Errorf("failed to parse selectors YAML: %w", err)
	}

	selectors := scraper.DefaultSelectors()
	if len(loaded.Anchors) > 0 {
		selectors.Anchors = loaded.Anchors
	}
	if len(loaded.Containers) > 0 {
		selectors.Containers = loaded.Containers
	}
	if len(loaded.NameFragments) > 0 {
		selectors.NameFragments = loaded.NameFragments
	}

	if err := validateSelectors(selectors); err != nil {
		return nil, err
	}

	return selectors, nil
}

// Selectors returns the configured selectors, or the defaults when no
// selectors file is set.
func (c *Config) Selectors() (*scraper.Selectors, error) {
	if c.SelectorsFile == "" {
		return scraper.DefaultSelectors(), nil
	}
	return LoadSelectors(c.SelectorsFile)
}

// validateSelectors rejects empty and syntactically invalid selectors.
func validateSelectors(s *scraper.Selectors) error {
	if len(s.Anchors) == 0 {
		return fmt.Errorf("anchors is required")
	}
	groups := map[string][]string{
		"anchors":        s.Anchors,
		"containers":     s.Containers,
		"name_fragments": s.NameFragments,
	}
	for name, list := range groups {
		for _, sel := range list {
			if strings.TrimSpace(sel) == "" {
				return fmt.Errorf("%s contains an empty selector", name)
			}
			if _, err := cascadia.Compile(sel); err != nil {
				return fmt.Errorf("%s: invalid selector %q: %w", name, sel, err)
			}
		}
	}
	return nil
}
