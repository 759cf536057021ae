package main

import (
	"time"

	"github.com/spf13/pflag"

	"github.com/five82/ab-av1/internal/config"
	"github.com/five82/ab-av1/internal/ffmpeg"
	"github.com/five82/ab-av1/internal/processing"
	"github.com/five82/ab-av1/internal/sample"
	"github.com/five82/ab-av1/internal/tq"
	"github.com/five82/ab-av1/internal/vmaf"
)

// pick returns the flag value when it was given on the command line and
// the configured value otherwise.
func pick[T any](fs *pflag.FlagSet, name string, flag, configured T) T {
	if fs.Changed(name) {
		return flag
	}
	return configured
}

type encoderFlags struct {
	encoder   string
	preset    string
	pixFormat string
	vfilter   string
	keyint    string
	scd       bool
	svt       []string
	enc       []string
	encInput  []string
}

func (f *encoderFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.encoder, "encoder", "e", ffmpeg.DefaultEncoder.String(), "encoder, e.g. libsvtav1, libaom-av1, libx265 or svt-av1")
	fs.StringVar(&f.preset, "preset", "", "encoder preset (default depends on the encoder)")
	fs.StringVar(&f.pixFormat, "pix-format", "", "output pixel format (default yuv420p10le for av1)")
	fs.StringVar(&f.vfilter, "vfilter", "", "ffmpeg video filter applied before encoding, e.g. scale=1280:-1")
	fs.StringVar(&f.keyint, "keyint", "", "keyframe interval as frames or a duration such as 10s")
	fs.BoolVar(&f.scd, "scd", false, "enable scene change detection (default depends on keyint)")
	fs.StringArrayVar(&f.svt, "svt", nil, "extra svt-av1 parameter KEY=VALUE, repeatable")
	fs.StringArrayVar(&f.enc, "enc", nil, "extra ffmpeg encoder option KEY=VALUE, repeatable")
	fs.StringArrayVar(&f.encInput, "enc-input", nil, "extra ffmpeg input option KEY=VALUE, repeatable")
}

func (f *encoderFlags) options(fs *pflag.FlagSet, cfg *config.Config) ffmpeg.Options {
	o := ffmpeg.Options{
		Encoder:     pick(fs, "encoder", f.encoder, cfg.Encoder),
		Preset:      pick(fs, "preset", f.preset, cfg.Preset),
		PixelFormat: pick(fs, "pix-format", f.pixFormat, cfg.PixFormat),
		VFilter:     f.vfilter,
		Keyint:      f.keyint,
		Svt:         f.svt,
		Enc:         f.enc,
		EncInput:    f.encInput,
	}
	if fs.Changed("scd") {
		scd := f.scd
		o.SCD = &scd
	}
	return o
}

type sampleFlags struct {
	input          string
	samples        int
	sampleDuration time.Duration
	keep           bool
	cache          bool
	tempDir        string
	vmafArgs       []string
	vmafScale      string
	xpsnr          bool

	encoder encoderFlags
}

func (f *sampleFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.input, "input", "i", "", "input video file")
	fs.IntVar(&f.samples, "samples", sample.DefaultCount, "number of samples")
	fs.DurationVar(&f.sampleDuration, "sample-duration", sample.DefaultDuration, "duration of each sample")
	fs.BoolVar(&f.keep, "keep", false, "keep temporary files and encoded samples")
	fs.BoolVar(&f.cache, "cache", true, "cache sample-encode results across runs")
	fs.StringVar(&f.tempDir, "temp-dir", "", "parent directory for temporary files (default: next to the input)")
	fs.StringArrayVar(&f.vmafArgs, "vmaf", nil, "extra libvmaf option, e.g. n_subsample=4, repeatable")
	fs.StringVar(&f.vmafScale, "vmaf-scale", config.DefaultVMAFScale, "scaling before comparison: auto, none or WxH")
	fs.BoolVar(&f.xpsnr, "xpsnr", false, "score with XPSNR instead of VMAF")
	f.encoder.register(fs)
}

func (f *sampleFlags) metric() vmaf.Metric {
	if f.xpsnr {
		return vmaf.MetricXPSNR
	}
	return vmaf.MetricVMAF
}

func (f *sampleFlags) request(fs *pflag.FlagSet, cfg *config.Config) processing.Request {
	return processing.Request{
		Input:          f.input,
		Encoder:        f.encoder.options(fs, cfg),
		Metric:         f.metric(),
		VMAFArgs:       pick(fs, "vmaf", f.vmafArgs, cfg.VMAF.Args),
		VMAFScale:      pick(fs, "vmaf-scale", f.vmafScale, cfg.VMAF.Scale),
		Samples:        pick(fs, "samples", f.samples, cfg.Samples),
		SampleDuration: pick(fs, "sample-duration", f.sampleDuration, cfg.SampleDuration),
		Keep:           pick(fs, "keep", f.keep, cfg.Keep),
		Cache:          pick(fs, "cache", f.cache, cfg.Cache),
		TempDir:        pick(fs, "temp-dir", f.tempDir, cfg.TempDir),
	}
}

type searchFlags struct {
	minVMAF           float64
	minXPSNR          float64
	maxEncodedPercent float64
	minCRF            int
	maxCRF            int
}

func (f *searchFlags) register(fs *pflag.FlagSet) {
	fs.Float64Var(&f.minVMAF, "min-vmaf", tq.DefaultMinVMAF, "minimum VMAF score")
	fs.Float64Var(&f.minXPSNR, "min-xpsnr", tq.DefaultMinXPSNR, "minimum XPSNR score, used with --xpsnr")
	fs.Float64Var(&f.maxEncodedPercent, "max-encoded-percent", tq.DefaultMaxEncodedPercent, "maximum predicted size as a percentage of the input")
	fs.IntVar(&f.minCRF, "min-crf", tq.DefaultMinCRF, "lowest crf to try")
	fs.IntVar(&f.maxCRF, "max-crf", tq.DefaultMaxCRF, "highest crf to try")
}

func (f *searchFlags) config(fs *pflag.FlagSet, cfg *config.Config, xpsnr bool) tq.Config {
	c := *cfg
	c.Search = config.SearchConfig{
		MinVMAF:           pick(fs, "min-vmaf", f.minVMAF, cfg.Search.MinVMAF),
		MinXPSNR:          pick(fs, "min-xpsnr", f.minXPSNR, cfg.Search.MinXPSNR),
		MaxEncodedPercent: pick(fs, "max-encoded-percent", f.maxEncodedPercent, cfg.Search.MaxEncodedPercent),
		MinCRF:            pick(fs, "min-crf", f.minCRF, cfg.Search.MinCRF),
		MaxCRF:            pick(fs, "max-crf", f.maxCRF, cfg.Search.MaxCRF),
	}
	return c.TQConfig(xpsnr)
}

type outputFlags struct {
	output  string
	acodec  string
	downmix bool
}

func (f *outputFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.output, "output", "o", "", "output file (default: <input>.av1.mkv next to the input)")
	fs.StringVar(&f.acodec, "acodec", "", "audio codec, or copy (default "+ffmpeg.DefaultAudioCodec+")")
	fs.BoolVar(&f.downmix, "downmix-to-stereo", false, "downmix audio with more than two channels to stereo")
}

func (f *outputFlags) request() processing.EncodeRequest {
	return processing.EncodeRequest{
		Output:          f.output,
		AudioCodec:      f.acodec,
		DownmixToStereo: f.downmix,
	}
}
