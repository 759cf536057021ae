package main

import (
	"github.com/spf13/cobra"

	"github.com/five82/ab-av1/internal/processing"
)

func (a *app) crfSearchCmd() *cobra.Command {
	var (
		flags  sampleFlags
		search searchFlags
		report string
	)
	cmd := &cobra.Command{
		Use:   "crf-search",
		Short: "Find the highest crf meeting the quality target",
		Long: `Sample-encode at a sequence of crf values to find the highest one whose
score exceeds --min-vmaf (or --min-xpsnr) with a predicted size no larger
than --max-encoded-percent of the input.

Example:
  ab-av1 crf-search -i movie.mkv --min-vmaf 95 --report search.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fs := cmd.Flags()
			req := flags.request(fs, a.cfg)
			a.keepTemp.Store(req.Keep)
			res, err := a.session().CRFSearch(cmd.Context(), req, search.config(fs, a.cfg, flags.xpsnr))
			if err != nil {
				return err
			}
			if report != "" {
				if err := processing.WriteReport(report, req.Input, res); err != nil {
					return err
				}
				a.rep.Verbose("report written to " + report)
			}
			return nil
		},
	}
	fs := cmd.Flags()
	flags.register(fs)
	search.register(fs)
	fs.StringVar(&report, "report", "", "write the result as JSON to this path")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
