package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"groups-exporter/internal/app"
	"groups-exporter/internal/config"
	"groups-exporter/internal/export"
	"groups-exporter/internal/observability"
	"groups-exporter/internal/storage"
	_ "groups-exporter/internal/storage/mssql"
	_ "groups-exporter/internal/storage/sqlite"
)

type globalFlags struct {
	configPath string
	logLevel   string
	out        string
	format     string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "groups-exporter",
		Short:         "Collects group listings from a page and exports them as CSV or JSON.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to the YAML config (defaults apply when empty)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override observability.log_level")
	root.PersistentFlags().StringVarP(&flags.out, "out", "o", "", `export file or directory (export.dir when empty, "-" for stdout)`)
	root.PersistentFlags().StringVar(&flags.format, "format", "", "export format for this run: csv or json")

	root.AddCommand(
		newScanCmd(flags),
		newWatchCmd(flags),
		newExportCmd(flags),
		newClearCmd(flags),
		newSettingsCmd(flags),
	)
	return root
}

// runtime is what every command needs: config, logger, settings and the
// record repository.
type runtime struct {
	cfg      *config.Config
	logger   *observability.Logger
	settings config.Settings
	// format overrides settings.ExportFormat for this run only.
	format export.Format
	repo   storage.Repository
}

func setup(flags *globalFlags) (*runtime, error) {
	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Observability.LogLevel = flags.logLevel
	}

	obs := cfg.Observability
	logger := observability.New(observability.Options{
		LogPath:    obs.LogPath,
		LogLevel:   obs.LogLevel,
		MaxSizeMB:  obs.LogMaxSizeMB,
		MaxBackups: obs.LogMaxBackups,
		MaxAgeDays: obs.LogMaxAgeDays,
		Compress:   obs.LogCompress,
	})

	settings, err := config.LoadSettings(cfg.SettingsFile)
	if err != nil {
		logger.Warn("Using default settings", "path", cfg.SettingsFile, "error", err)
	}
	var format export.Format
	if flags.format != "" {
		if format, err = export.ParseFormat(flags.format); err != nil {
			return nil, err
		}
	}

	repo, err := storage.Open(cfg.Storage.Driver, storage.Options{
		DSN:            cfg.Storage.DSN,
		CommandTimeout: cfg.GetCommandTimeout(),
		Logger:         logger,
	})
	if err != nil {
		logger.Warn("Storage unavailable, records will not be saved", "driver", cfg.Storage.Driver, "error", err)
		repo = storage.NewMemory()
	}

	return &runtime{cfg: cfg, logger: logger, settings: settings, format: format, repo: repo}, nil
}

func (rt *runtime) close() {
	if err := rt.repo.Close(); err != nil {
		rt.logger.Warn("Failed to close storage", "error", err)
	}
}

// newSession builds a session over page and restores saved records.
func (rt *runtime) newSession(ctx context.Context, page app.Page) (*app.Session, error) {
	selectors, err := rt.cfg.Selectors()
	if err != nil {
		return nil, err
	}

	settings := rt.settings
	if rt.format != "" {
		settings.ExportFormat = rt.format
	}

	s := app.NewSession(page, app.Options{
		Settings:     settings,
		SettingsPath: rt.cfg.SettingsFile,
		Domain:       rt.cfg.Site.Domain,
		Selectors:    selectors,
		Repository:   rt.repo,
		AutoScan: app.AutoScanOptions{
			ScanInterval:        rt.cfg.GetScanInterval(),
			ScrollInterval:      rt.cfg.GetScrollInterval(),
			ScrollStep:          rt.cfg.AutoScan.ScrollStepPX,
			StopAfterIdlePasses: rt.cfg.AutoScan.StopAfterIdlePasses,
		},
		Logger: rt.logger,
	})
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// deliver writes the export to --out, falling back to stdout when the file
// cannot be written.
func deliver(cmd *cobra.Command, rt *runtime, flags *globalFlags, content, filename string) {
	stdout := cmd.OutOrStdout()
	if flags.out == "-" {
		_, _ = io.WriteString(stdout, content)
		return
	}

	path := flags.out
	if path == "" {
		path = rt.cfg.Export.Dir
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, filename)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		rt.logger.Warn("Failed to write export, printing instead", "path", path, "error", err)
		_, _ = io.WriteString(stdout, content)
		return
	}
	rt.logger.Info("Export written", "path", path, "size", humanize.Bytes(uint64(len(content))))
}

// report prints the session status line and progress to stderr.
func report(cmd *cobra.Command, s *app.Session) {
	w := cmd.ErrOrStderr()
	fmt.Fprintln(w, s.Status())
	if pct, visible := s.Progress(); visible {
		fmt.Fprintf(w, "Progress: %.0f%% (%s/%s)\n", pct,
			humanize.Comma(int64(s.Count())), humanize.Comma(int64(s.Settings().MaxItems)))
	}
}
