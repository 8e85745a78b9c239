package main

import (
	"github.com/spf13/cobra"

	"groups-exporter/internal/app"
)

func newExportCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Exports the saved records.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(flags)
			if err != nil {
				return err
			}
			defer rt.close()

			// No page: only saved records are exported.
			rt.settings.AutoStart = false
			s, err := rt.newSession(cmd.Context(), app.NewStaticPage("", rt.cfg.Site.Origin))
			if err != nil {
				return err
			}

			content, filename, err := s.Export()
			if err != nil {
				return err
			}
			report(cmd, s)
			deliver(cmd, rt, flags, content, filename)
			return nil
		},
	}
}

func newClearCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Deletes all saved records.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(flags)
			if err != nil {
				return err
			}
			defer rt.close()

			rt.settings.AutoStart = false
			s, err := rt.newSession(cmd.Context(), app.NewStaticPage("", rt.cfg.Site.Origin))
			if err != nil {
				return err
			}
			s.ClearAll(cmd.Context())
			report(cmd, s)
			return nil
		},
	}
}
