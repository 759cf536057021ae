package main

import (
	"github.com/spf13/cobra"
)

func (a *app) sampleEncodeCmd() *cobra.Command {
	var (
		flags sampleFlags
		crf   float32
	)
	cmd := &cobra.Command{
		Use:   "sample-encode",
		Short: "Encode samples at one crf and predict the full encode",
		Long: `Encode short samples of the input at --crf, score each against the
original and print the mean score with the predicted size and time of a
full encode.

Example:
  ab-av1 sample-encode -i movie.mkv --crf 32 --preset 6`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := flags.request(cmd.Flags(), a.cfg)
			a.keepTemp.Store(req.Keep)
			_, err := a.session().SampleEncode(cmd.Context(), req, crf)
			return err
		},
	}
	fs := cmd.Flags()
	flags.register(fs)
	fs.Float32Var(&crf, "crf", 0, "encoder crf")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("crf")
	return cmd
}
