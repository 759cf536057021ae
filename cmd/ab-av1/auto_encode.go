package main

import (
	"github.com/spf13/cobra"
)

func (a *app) autoEncodeCmd() *cobra.Command {
	var (
		flags  sampleFlags
		search searchFlags
		output outputFlags
	)
	cmd := &cobra.Command{
		Use:   "auto-encode",
		Short: "Search for the best crf, then encode the whole input with it",
		Long: `Run crf-search and encode the full input at the crf it finds. Audio is
re-encoded with --acodec and subtitles are copied when the output container
supports them.

Example:
  ab-av1 auto-encode -i movie.mkv --min-vmaf 95 -o movie.av1.mkv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fs := cmd.Flags()
			req := flags.request(fs, a.cfg)
			a.keepTemp.Store(req.Keep)
			_, _, err := a.session().AutoEncode(cmd.Context(), req, search.config(fs, a.cfg, flags.xpsnr), output.request())
			return err
		},
	}
	fs := cmd.Flags()
	flags.register(fs)
	search.register(fs)
	output.register(fs)
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
