package main

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/five82/ab-av1/internal/config"
	"github.com/five82/ab-av1/internal/errors"
	"github.com/five82/ab-av1/internal/ffmpeg"
	"github.com/five82/ab-av1/internal/logging"
	"github.com/five82/ab-av1/internal/processing"
	"github.com/five82/ab-av1/internal/reporter"
	"github.com/five82/ab-av1/internal/util"
)

const (
	appName    = "ab-av1"
	appVersion = "0.1.0"
)

// app holds the state shared by all verbs of one invocation.
type app struct {
	configPath string
	logLevel   string
	jsonOutput bool
	verbose    bool
	eventsPath string

	cfg        *config.Config
	rep        reporter.Reporter
	logFile    *os.File
	eventsFile *os.File

	// keepTemp is set by verbs run with --keep. The signal goroutine reads it.
	keepTemp atomic.Bool
}

func newApp() *app {
	return &app{}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     appName,
		Short:   "AV1 video encoding with a VMAF or XPSNR quality target",
		Version: appVersion,
		Long: `ab-av1 finds the highest encoder CRF that still meets a quality target by
encoding short samples of the input and scoring them with VMAF or XPSNR.

Settings are read from ` + config.FileName + ` in the user config directory,
then ` + config.EnvPrefix + `_* environment variables, then command-line flags.

Example:
  # Find the best crf for VMAF 95, then encode
  ab-av1 auto-encode -i movie.mkv --min-vmaf 95`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default "+defaultConfigHint()+")")
	pf.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.BoolVar(&a.jsonOutput, "json", false, "emit newline-delimited JSON events on stdout")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "print additional detail")
	pf.StringVar(&a.eventsPath, "events", "", "also append JSON events to this file")

	root.AddCommand(
		a.sampleEncodeCmd(),
		a.crfSearchCmd(),
		a.autoEncodeCmd(),
		a.encodeCmd(),
		a.scoreCmd(scoreVMAF),
		a.scoreCmd(scoreXPSNR),
		printCompletionsCmd(root),
	)

	// Errors are printed by run through the selected reporter.
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errors.NewPreconditionError(err.Error(), nil)
	})
	return root
}

func defaultConfigHint() string {
	if p, err := config.DefaultPath(); err == nil {
		return p
	}
	return config.FileName
}

// setup loads configuration and initializes logging and the reporter.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return errors.NewConfigError("invalid configuration", err)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg

	lc, f, err := cfg.LoggingSetup()
	if err != nil {
		return errors.NewConfigError("failed to set up logging", err)
	}
	a.logFile = f
	logging.Init(lc)

	if a.jsonOutput {
		a.rep = reporter.NewJSONReporter()
	} else {
		a.rep = reporter.NewTerminalReporter(a.verbose)
	}
	if a.eventsPath != "" {
		f, err := os.OpenFile(a.eventsPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return errors.NewIOError("failed to open events file", err)
		}
		a.eventsFile = f
		a.rep = reporter.NewCompositeReporter(a.rep, reporter.NewJSONReporterWithWriter(f))
	}
	logging.Debug("configuration loaded", "command", cmd.Name(), "encoder", cfg.Encoder, "cache", cfg.Cache,
		"logical_cores", util.LogicalCores(), "physical_cores", util.PhysicalCores())
	return nil
}

func (a *app) session() *processing.Session {
	return &processing.Session{
		Tools: ffmpeg.Tools{
			FFmpeg: a.cfg.Binaries.FFmpeg,
			SvtAv1: a.cfg.Binaries.SvtAv1,
		},
		FFprobe:  a.cfg.Binaries.FFprobe,
		Reporter: a.rep,
		Log:      logging.Component("processing"),
	}
}

// report prints err through the reporter, or to stderr when setup never
// got that far.
func (a *app) report(err error) {
	if a.rep == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	a.rep.Error(reporter.ReporterError{
		Title:      "Error",
		Message:    err.Error(),
		Suggestion: suggestion(err),
	})
}

func suggestion(err error) string {
	switch {
	case errors.IsKind(err, errors.KindSearch):
		return "Lower --min-vmaf/--min-xpsnr, raise --max-encoded-percent or widen the crf range"
	case errors.IsKind(err, errors.KindCommand):
		return "Run with --log-level debug to see the failing command line"
	case errors.IsKind(err, errors.KindConfig):
		return "Check " + config.FileName + " and " + config.EnvPrefix + "_* environment variables"
	default:
		return ""
	}
}

func (a *app) close() {
	if a.eventsFile != nil {
		_ = a.eventsFile.Close()
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}
