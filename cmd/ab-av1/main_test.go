package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/ab-av1/internal/config"
	"github.com/five82/ab-av1/internal/vmaf"
)

func parse(t *testing.T, register func(*pflag.FlagSet), args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	register(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestRequestUsesConfigUnlessFlagGiven(t *testing.T) {
	cfg := config.Default()
	cfg.Encoder = "libaom-av1"
	cfg.Samples = 5
	cfg.Cache = false
	cfg.VMAF.Args = []string{"n_subsample=4"}

	var f sampleFlags
	fs := parse(t, f.register, "-i", "in.mkv", "--samples", "2", "--svt", "tune=0", "--svt", "film-grain=8")
	req := f.request(fs, cfg)

	assert.Equal(t, "in.mkv", req.Input)
	assert.Equal(t, "libaom-av1", req.Encoder.Encoder)
	assert.Equal(t, 2, req.Samples)
	assert.False(t, req.Cache)
	assert.Equal(t, []string{"n_subsample=4"}, req.VMAFArgs)
	assert.Equal(t, []string{"tune=0", "film-grain=8"}, req.Encoder.Svt)
	assert.Equal(t, cfg.SampleDuration, req.SampleDuration)
	assert.Nil(t, req.Encoder.SCD)
	assert.Equal(t, vmaf.MetricVMAF, req.Metric)
}

func TestSCDIsUnsetUnlessGiven(t *testing.T) {
	var f sampleFlags
	fs := parse(t, f.register, "--scd=false", "--xpsnr", "--sample-duration", "5s")
	req := f.request(fs, config.Default())

	require.NotNil(t, req.Encoder.SCD)
	assert.False(t, *req.Encoder.SCD)
	assert.Equal(t, vmaf.MetricXPSNR, req.Metric)
	assert.Equal(t, 5*time.Second, req.SampleDuration)
}

func TestSearchConfigPicksMetricTarget(t *testing.T) {
	cfg := config.Default()
	cfg.Search.MinXPSNR = 42

	var s searchFlags
	fs := parse(t, s.register, "--max-crf", "40")

	vmafCfg := s.config(fs, cfg, false)
	assert.InDelta(t, cfg.Search.MinVMAF, vmafCfg.MinScore, 0)
	assert.Equal(t, 40, vmafCfg.MaxCRF)
	assert.Equal(t, cfg.Search.MinCRF, vmafCfg.MinCRF)

	xpsnrCfg := s.config(fs, cfg, true)
	assert.InDelta(t, 42, xpsnrCfg.MinScore, 0)
	assert.Equal(t, 55, cfg.Search.MaxCRF, "config is not modified")
}

func TestPrintCompletions(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			root := newApp().rootCmd()
			var out bytes.Buffer
			root.SetOut(&out)
			root.SetArgs([]string{"print-completions", shell})
			require.NoError(t, root.Execute())
			assert.Contains(t, out.String(), "ab-av1")
		})
	}
}

func TestPrintCompletionsRejectsUnknownShell(t *testing.T) {
	root := newApp().rootCmd()
	root.SetArgs([]string{"print-completions", "tcsh"})
	assert.Error(t, root.Execute())
}

func TestRunExitCodes(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	assert.Equal(t, exitError, run([]string{"crf-search"}, nil), "missing --input")
	assert.Equal(t, exitError, run([]string{"no-such-verb"}, nil))
	assert.Equal(t, exitError, run([]string{"sample-encode", "-i", "/does/not/exist.mkv", "--crf", "30"}, nil))
}

func TestRunAppendsEventsFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	events := filepath.Join(dir, "events.ndjson")

	code := run([]string{"sample-encode", "-i", "/does/not/exist.mkv", "--crf", "30", "--events", events}, nil)
	require.Equal(t, exitError, code)

	data, err := os.ReadFile(events)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"error"`)
}

func TestVerbsAreRegistered(t *testing.T) {
	root := newApp().rootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	joined := strings.Join(names, " ")
	for _, verb := range []string{"sample-encode", "crf-search", "auto-encode", "encode", "vmaf", "xpsnr", "print-completions"} {
		assert.Contains(t, joined, verb)
	}
}
