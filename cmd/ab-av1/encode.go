package main

import (
	"github.com/spf13/cobra"

	"github.com/five82/ab-av1/internal/processing"
)

func (a *app) encodeCmd() *cobra.Command {
	var (
		input   string
		encoder encoderFlags
		output  outputFlags
		crf     float32
	)
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode the whole input at a given crf",
		Long: `Encode the full input at --crf with the given encoder settings.

Example:
  ab-av1 encode -i movie.mkv --crf 32 --acodec copy`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := processing.Request{
				Input:   input,
				Encoder: encoder.options(cmd.Flags(), a.cfg),
			}
			_, err := a.session().Encode(cmd.Context(), req, crf, output.request())
			return err
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&input, "input", "i", "", "input video file")
	fs.Float32Var(&crf, "crf", 0, "encoder crf")
	encoder.register(fs)
	output.register(fs)
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("crf")
	return cmd
}
