package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"groups-exporter/internal/app"
	"groups-exporter/internal/browser"
)

func newWatchCmd(flags *globalFlags) *cobra.Command {
	var (
		pageURL  string
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch --url <page>",
		Short: "Opens the page in Chrome, scrolls and scans it until done, then exports.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if pageURL == "" {
				return fmt.Errorf("--url is required")
			}

			rt, err := setup(flags)
			if err != nil {
				return err
			}
			defer rt.close()

			if duration <= 0 {
				duration = rt.cfg.GetAutoScanDuration()
			}

			ctx, cancel := app.GracefulShutdown(cmd.Context(), rt.logger)
			defer cancel()

			page, err := browser.Open(ctx, pageURL, browser.Options{
				ChromePath:      rt.cfg.Rod.ChromePath,
				Headless:        rt.cfg.Rod.Headless,
				Stealth:         rt.cfg.Rod.Stealth,
				UserDataDir:     rt.cfg.Rod.UserDataDir,
				PageTimeout:     rt.cfg.GetRodPageTimeout(),
				WaitLoadTimeout: rt.cfg.GetRodWaitLoadTimeout(),
				MutationPoll:    rt.cfg.GetMutationPollInterval(),
				Logger:          rt.logger,
			})
			if err != nil {
				return err
			}
			defer page.Close()

			s, err := rt.newSession(ctx, page)
			if err != nil {
				return err
			}
			if err := s.StartAutoScan(ctx, duration); err != nil {
				return err
			}
			stats, err := s.Wait()
			if err != nil {
				rt.logger.Warn("Auto-scan ended with an error", "error", err)
			}
			rt.logger.Info("Watch finished",
				"reason", stats.StoppedReason,
				"passes", stats.Passes,
				"added", stats.Added,
				"elapsed", stats.StoppedAt.Sub(stats.StartedAt).Round(time.Millisecond),
			)
			report(cmd, s)

			content, filename, err := s.Export()
			if err != nil {
				return err
			}
			deliver(cmd, rt, flags, content, filename)
			return nil
		},
	}

	cmd.Flags().StringVar(&pageURL, "url", "", "group listing to open")
	cmd.Flags().DurationVar(&duration, "duration", 0, "auto-scan duration (auto_scan.duration_s when 0)")
	return cmd
}
