package main

import (
	"github.com/spf13/cobra"

	"github.com/five82/ab-av1/internal/config"
	"github.com/five82/ab-av1/internal/processing"
	"github.com/five82/ab-av1/internal/vmaf"
)

type scoreVerb struct {
	name   string
	metric vmaf.Metric
	short  string
}

var (
	scoreVMAF  = scoreVerb{name: "vmaf", metric: vmaf.MetricVMAF, short: "Compute the VMAF score of a distorted file against its reference"}
	scoreXPSNR = scoreVerb{name: "xpsnr", metric: vmaf.MetricXPSNR, short: "Compute the XPSNR of a distorted file against its reference"}
)

func (a *app) scoreCmd(verb scoreVerb) *cobra.Command {
	var req processing.ScoreRequest
	cmd := &cobra.Command{
		Use:   verb.name,
		Short: verb.short,
		Long: verb.short + `.

Both inputs are converted to --pix-format (default: the higher of the
distorted file's format and yuv420p10le) before comparison.

Example:
  ab-av1 ` + verb.name + ` --reference movie.mkv --distorted movie.av1.mkv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := req
			r.Metric = verb.metric
			if !cmd.Flags().Changed("vmaf-scale") {
				r.Scale = a.cfg.VMAF.Scale
			}
			if verb.metric == vmaf.MetricVMAF && !cmd.Flags().Changed("vmaf") {
				r.Args = a.cfg.VMAF.Args
			}
			_, err := a.session().Score(cmd.Context(), r)
			return err
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&req.Reference, "reference", "", "original video file")
	fs.StringVar(&req.Distorted, "distorted", "", "encoded video file")
	fs.StringVar(&req.PixelFormat, "pix-format", "", "pixel format both streams are converted to")
	fs.StringVar(&req.ReferenceVFilter, "reference-vfilter", "", "filter applied to the reference, e.g. the encode's --vfilter")
	fs.StringVar(&req.Scale, "vmaf-scale", config.DefaultVMAFScale, "scaling before comparison: auto, none or WxH")
	if verb.metric == vmaf.MetricVMAF {
		fs.StringArrayVar(&req.Args, "vmaf", nil, "extra libvmaf option, e.g. n_subsample=4, repeatable")
	}
	_ = cmd.MarkFlagRequired("reference")
	_ = cmd.MarkFlagRequired("distorted")
	return cmd
}
