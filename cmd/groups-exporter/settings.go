package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"groups-exporter/internal/app"
	"groups-exporter/internal/config"
)

func newSettingsCmd(flags *globalFlags) *cobra.Command {
	var (
		minMembers   int64
		activity     string
		format       string
		maxItems     int
		showProgress bool
		autoStart    bool
	)

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Prints the saved settings, updating any given by flag.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(flags)
			if err != nil {
				return err
			}
			defer rt.close()

			changed := cmd.Flags().Changed
			if changed("max-items") && maxItems <= 0 {
				return fmt.Errorf("--max-items must be positive, got %d", maxItems)
			}
			if changed("max-items") || changed("show-progress") || changed("auto-start") {
				if changed("max-items") {
					rt.settings.MaxItems = maxItems
				}
				if changed("show-progress") {
					rt.settings.ShowProgress = showProgress
				}
				if changed("auto-start") {
					rt.settings.AutoStart = autoStart
				}
				if err := config.SaveSettings(rt.cfg.SettingsFile, rt.settings); err != nil {
					return err
				}
			}

			// Filter and format changes go through the session so they are
			// validated and saved the same way as at scan time.
			s := app.NewSession(app.NewStaticPage("", rt.cfg.Site.Origin), app.Options{
				Settings:     rt.settings,
				SettingsPath: rt.cfg.SettingsFile,
				Repository:   rt.repo,
				Logger:       rt.logger,
			})
			if changed("min-members") || changed("activity") {
				current := s.Settings()
				if !changed("min-members") {
					minMembers = current.MinMembers
				}
				if !changed("activity") {
					activity = current.ActivityThreshold
				}
				if err := s.SetFilter(minMembers, activity); err != nil {
					return err
				}
			}
			if changed("export-format") {
				if err := s.SetExportFormat(format); err != nil {
					return err
				}
			}

			b, err := json.MarshalIndent(s.Settings(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}

	cmd.Flags().Int64Var(&minMembers, "min-members", 0, "skip groups with fewer members (0 disables)")
	cmd.Flags().StringVar(&activity, "activity", "", `skip groups inactive for longer, e.g. "7 days" (empty disables)`)
	cmd.Flags().StringVar(&format, "export-format", "", "default export format: csv or json")
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "maximum number of groups kept and exported")
	cmd.Flags().BoolVar(&showProgress, "show-progress", true, "print progress after each command")
	cmd.Flags().BoolVar(&autoStart, "auto-start", false, "run a pass as soon as a page is loaded")
	return cmd
}
