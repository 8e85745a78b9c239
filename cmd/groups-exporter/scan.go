package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"groups-exporter/internal/app"
	"groups-exporter/internal/fetcher"
)

func newScanCmd(flags *globalFlags) *cobra.Command {
	var (
		file    string
		pageURL string
		baseURL string
	)

	cmd := &cobra.Command{
		Use:   "scan (--file <page.html> | --url <page>)",
		Short: "Runs one pass over a saved or downloaded page and exports the result.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (file == "") == (pageURL == "") {
				return fmt.Errorf("exactly one of --file or --url is required")
			}

			rt, err := setup(flags)
			if err != nil {
				return err
			}
			defer rt.close()

			ctx := cmd.Context()

			var page *app.StaticPage
			if file != "" {
				if baseURL == "" {
					baseURL = rt.cfg.Site.Origin + "/"
				}
				page, err = app.LoadFilePage(file, baseURL)
			} else {
				page, err = app.FetchPage(ctx, fetcher.NewFetcher(rt.cfg, rt.logger), pageURL)
			}
			if err != nil {
				return err
			}

			s, err := rt.newSession(ctx, page)
			if err != nil {
				return err
			}
			if _, err := s.ScanNow(ctx); err != nil {
				return err
			}
			report(cmd, s)

			content, filename, err := s.Export()
			if err != nil {
				return err
			}
			deliver(cmd, rt, flags, content, filename)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "saved HTML page to scan")
	cmd.Flags().StringVar(&pageURL, "url", "", "page to download and scan")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "URL relative links in --file resolve against")
	return cmd
}
