package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groups-exporter/internal/config"
	"groups-exporter/internal/export"
)

const fixture = "../../internal/scraper/testdata/search_groups.html"

// writeConfig points settings, storage and exports into a temp dir.
func writeConfig(t *testing.T) (cfgPath, dir string) {
	t.Helper()
	dir = t.TempDir()
	cfg := "settings_file: " + filepath.Join(dir, "settings.json") + "\n" +
		"storage:\n  driver: sqlite\n  dsn: " + filepath.Join(dir, "groups.db") + "\n" +
		"export:\n  dir: " + dir + "\n" +
		"observability:\n  log_level: error\n"
	cfgPath = filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath, dir
}

func run(t *testing.T, args ...string) (stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	require.NoError(t, cmd.ExecuteContext(context.Background()), errOut.String())
	return out.String(), errOut.String()
}

func decode(t *testing.T, out string) export.Document {
	t.Helper()
	var doc export.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	return doc
}

func TestScanFileThenExportAndClear(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	out, status := run(t, "--config", cfgPath, "--format", "json", "--out", "-", "scan", "--file", fixture)
	assert.Contains(t, status, "Scan complete. +3 new (3 total)")
	doc := decode(t, out)
	assert.Equal(t, 3, doc.Total)
	require.Len(t, doc.Groups, 3)
	assert.Equal(t, "123456789", doc.Groups[0].Key)

	out, status = run(t, "--config", cfgPath, "--format", "json", "--out", "-", "export")
	assert.Contains(t, status, "JSON ready (3 groups)")
	assert.Equal(t, 3, decode(t, out).Total)

	_, status = run(t, "--config", cfgPath, "clear")
	assert.Contains(t, status, "Data cleared.")

	out, _ = run(t, "--config", cfgPath, "--format", "json", "--out", "-", "export")
	assert.Zero(t, decode(t, out).Total)
}

func TestScanWritesExportDir(t *testing.T) {
	cfgPath, dir := writeConfig(t)

	out, _ := run(t, "--config", cfgPath, "scan", "--file", fixture)
	assert.Empty(t, out)

	matches, err := filepath.Glob(filepath.Join(dir, "groups-csv-*.csv"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	b, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), export.BOM))
	assert.Contains(t, string(b), "Go Developers Kyrgyzstan")
}

func TestScanFallsBackToStdout(t *testing.T) {
	cfgPath, dir := writeConfig(t)
	missing := filepath.Join(dir, "no", "such", "dir", "out.csv")

	out, _ := run(t, "--config", cfgPath, "--out", missing, "scan", "--file", fixture)
	assert.Contains(t, out, "Osh Photography Club")
}

func TestScanRequiresOneSource(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	for _, args := range [][]string{
		{"--config", cfgPath, "scan"},
		{"--config", cfgPath, "scan", "--file", fixture, "--url", "https://www.facebook.com/groups/"},
	} {
		cmd := newRootCmd()
		cmd.SetArgs(args)
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		assert.Error(t, cmd.ExecuteContext(context.Background()))
	}
}

func TestSettingsUpdatesAndPersists(t *testing.T) {
	cfgPath, dir := writeConfig(t)

	out, _ := run(t, "--config", cfgPath, "settings",
		"--min-members", "5000", "--activity", "7 days", "--export-format", "json", "--max-items", "2")

	var printed config.Settings
	require.NoError(t, json.Unmarshal([]byte(out), &printed))
	assert.Equal(t, int64(5000), printed.MinMembers)
	assert.Equal(t, "7 days", printed.ActivityThreshold)
	assert.Equal(t, export.FormatJSON, printed.ExportFormat)
	assert.Equal(t, 2, printed.MaxItems)

	saved, err := config.LoadSettings(filepath.Join(dir, "settings.json"))
	require.NoError(t, err)
	assert.Equal(t, printed, saved)

	// Only the 12.3K group active within a week passes both filters.
	out, _ = run(t, "--config", cfgPath, "--out", "-", "scan", "--file", fixture)
	doc := decode(t, out)
	require.Len(t, doc.Groups, 1)
	assert.Equal(t, "123456789", doc.Groups[0].Key)
}

func TestSettingsRejectsBadValues(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	for _, args := range [][]string{
		{"--config", cfgPath, "settings", "--activity", "someday"},
		{"--config", cfgPath, "settings", "--export-format", "xml"},
		{"--config", cfgPath, "settings", "--max-items=-5"},
		{"--config", cfgPath, "settings", "--max-items", "0"},
	} {
		cmd := newRootCmd()
		cmd.SetArgs(args)
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		assert.Error(t, cmd.ExecuteContext(context.Background()))
	}
}

func TestRunFormatIsNotSaved(t *testing.T) {
	cfgPath, dir := writeConfig(t)

	out, _ := run(t, "--config", cfgPath, "--format", "json", "settings", "--max-items", "50")

	var printed config.Settings
	require.NoError(t, json.Unmarshal([]byte(out), &printed))
	assert.Equal(t, 50, printed.MaxItems)
	assert.Equal(t, export.FormatCSV, printed.ExportFormat)

	saved, err := config.LoadSettings(filepath.Join(dir, "settings.json"))
	require.NoError(t, err)
	assert.Equal(t, 50, saved.MaxItems)
	assert.Equal(t, export.FormatCSV, saved.ExportFormat)
}
