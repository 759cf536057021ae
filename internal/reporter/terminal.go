package reporter

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/five82/ab-av1/internal/util"
)

// progressScale is the bar resolution; fractions are mapped onto it.
const progressScale = 1000

// TerminalReporter outputs human-friendly text to the terminal.
type TerminalReporter struct {
	mu          sync.Mutex
	out         io.Writer
	errOut      io.Writer
	verbose     bool
	progress    *progressbar.ProgressBar
	maxFraction float64
	cyan        *color.Color
	green       *color.Color
	greenBold   *color.Color
	yellow      *color.Color
	red         *color.Color
	magenta     *color.Color
	faint       *color.Color
	bold        *color.Color
}

// NewTerminalReporter creates a terminal reporter writing to stdout, with
// progress bars and errors on stderr.
func NewTerminalReporter(verbose bool) *TerminalReporter {
	return NewTerminalReporterWithWriters(os.Stdout, os.Stderr, verbose)
}

// NewTerminalReporterWithWriters creates a terminal reporter with custom writers.
func NewTerminalReporterWithWriters(out, errOut io.Writer, verbose bool) *TerminalReporter {
	return &TerminalReporter{
		out:       out,
		errOut:    errOut,
		verbose:   verbose,
		cyan:      color.New(color.FgCyan, color.Bold),
		green:     color.New(color.FgGreen),
		greenBold: color.New(color.FgGreen, color.Bold),
		yellow:    color.New(color.FgYellow, color.Bold),
		red:       color.New(color.FgRed, color.Bold),
		magenta:   color.New(color.FgMagenta),
		faint:     color.New(color.Faint),
		bold:      color.New(color.Bold),
	}
}

func (r *TerminalReporter) finishProgress() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress != nil {
		_ = r.progress.Finish()
		r.progress = nil
	}
	r.maxFraction = 0
}

// clearProgress removes the bar line so a message can be printed; the bar
// redraws on its next update.
func (r *TerminalReporter) clearProgress() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress != nil {
		_ = r.progress.Clear()
	}
}

// printLabel prints a bold label with fixed width padding followed by a value.
// Width is applied to the plain text before styling to ensure proper alignment.
func (r *TerminalReporter) printLabel(width int, label, value string) {
	paddedLabel := fmt.Sprintf("%-*s", width, label)
	_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.bold.Sprint(paddedLabel), value)
}

func (r *TerminalReporter) section(title string) {
	_, _ = fmt.Fprintln(r.out)
	_, _ = r.cyan.Fprintln(r.out, title)
}

func (r *TerminalReporter) Input(summary InputSummary) {
	r.section("INPUT")
	r.printLabel(11, "File:", summary.InputFile)
	r.printLabel(11, "Size:", util.FormatBytes(summary.Size))
	r.printLabel(11, "Duration:", summary.Duration)
	r.printLabel(11, "Resolution:", summary.Resolution)
	r.printLabel(11, "Frame rate:", summary.FrameRate)
}

func (r *TerminalReporter) EncoderConfig(summary EncoderSummary) {
	r.section("ENCODER")
	const w = 13
	r.printLabel(w, "Encoder:", summary.Encoder)
	r.printLabel(w, "Preset:", summary.Preset)
	r.printLabel(w, "Pixel format:", summary.PixelFormat)
	if summary.Keyint != "" {
		r.printLabel(w, "Keyint:", summary.Keyint)
	}
	r.printLabel(w, "Scene detect:", fmt.Sprint(summary.SCD))
	if summary.VFilter != "" {
		r.printLabel(w, "Filter:", summary.VFilter)
	}
	if summary.Metric != "" {
		r.printLabel(w, "Metric:", summary.Metric)
	}
}

func (r *TerminalReporter) SearchStarted(summary SearchSummary) {
	r.section("CRF SEARCH")
	_, _ = fmt.Fprintf(r.out, "  %s %s > %g, encoded size <= %g%%, crf %d..%d, %d samples\n",
		r.magenta.Sprint("›"), summary.Metric, summary.MinScore, summary.MaxEncodedPercent,
		summary.MinCRF, summary.MaxCRF, summary.Samples)
}

func (r *TerminalReporter) ProgressStarted(label string) {
	r.finishProgress()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.progress = progressbar.NewOptions64(
		progressScale,
		progressbar.OptionSetDescription(""),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(r.errOut),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionShowDescriptionAtLineEnd(),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      label + " [",
			BarEnd:        "]",
		}),
	)
}

func (r *TerminalReporter) Progress(snapshot ProgressSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.progress == nil {
		return
	}

	f := min(max(snapshot.Fraction, 0), 1)
	if f >= r.maxFraction {
		r.maxFraction = f
		_ = r.progress.Set64(int64(f * progressScale))
	}
	if snapshot.Message != "" {
		r.progress.Describe(snapshot.Message)
	}
}

func (r *TerminalReporter) sampleLine(s SampleEncodeSummary) string {
	line := fmt.Sprintf("crf %s %s %s predicted video stream size %s (%s) taking %s",
		r.bold.Sprint(s.CRF),
		s.Metric,
		r.green.Sprintf("%.2f", s.Score),
		util.FormatBytes(s.PredictedSize),
		fmt.Sprintf("%.0f%%", s.EncodedPercent),
		util.FormatPredictedDuration(s.PredictedTime))
	if s.FromCache {
		line += " " + r.faint.Sprint("(cache)")
	}
	if s.FullPass {
		line += " " + r.faint.Sprint("(full pass)")
	}
	return line
}

func (r *TerminalReporter) CRFAttempt(summary SampleEncodeSummary) {
	r.clearProgress()
	_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.magenta.Sprint("›"), r.sampleLine(summary))
}

func (r *TerminalReporter) SampleEncodeComplete(summary SampleEncodeSummary) {
	r.finishProgress()
	r.section("SAMPLE ENCODE")
	_, _ = fmt.Fprintf(r.out, "  %s\n", r.sampleLine(summary))
}

func (r *TerminalReporter) SearchComplete(summary SampleEncodeSummary) {
	r.finishProgress()
	r.section("RESULT")
	_, _ = fmt.Fprintf(r.out, "  %s\n", r.sampleLine(summary))
}

func (r *TerminalReporter) EncodeComplete(outcome EncodeOutcome) {
	r.finishProgress()
	r.section("RESULTS")
	_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.bold.Sprint("Output:"), r.bold.Sprint(outcome.OutputFile))
	if outcome.CRF != "" {
		r.printLabel(6, "CRF:", outcome.CRF)
	}
	_, _ = fmt.Fprintf(r.out, "  %s %s -> %s (%.0f%%)\n",
		r.bold.Sprint("Size:"),
		util.FormatBytes(outcome.OriginalSize),
		util.FormatBytes(outcome.EncodedSize),
		util.EncodedPercent(outcome.OriginalSize, outcome.EncodedSize))
	r.printLabel(6, "Time:", util.FormatDurationFromSecs(int64(outcome.TotalTime.Seconds())))
}

func (r *TerminalReporter) ScoreComplete(summary ScoreSummary) {
	r.finishProgress()
	_, _ = fmt.Fprintln(r.out, r.bold.Sprintf("%s %.2f", summary.Metric, summary.Score))
}

func (r *TerminalReporter) Warning(message string) {
	r.clearProgress()
	_, _ = r.yellow.Fprintf(r.errOut, "WARN: %s\n", message)
}

func (r *TerminalReporter) Error(err ReporterError) {
	r.finishProgress()
	_, _ = fmt.Fprintln(r.errOut)
	_, _ = r.red.Fprintf(r.errOut, "ERROR %s\n", err.Title)
	_, _ = fmt.Fprintf(r.errOut, "  %s\n", err.Message)
	if err.Context != "" {
		_, _ = fmt.Fprintf(r.errOut, "  Context: %s\n", err.Context)
	}
	if err.Suggestion != "" {
		_, _ = fmt.Fprintf(r.errOut, "  Suggestion: %s\n", err.Suggestion)
	}
}

func (r *TerminalReporter) OperationComplete(message string) {
	r.finishProgress()
	_, _ = fmt.Fprintln(r.out)
	_, _ = fmt.Fprintf(r.out, "%s %s\n", r.greenBold.Sprint("✓"), r.bold.Sprint(message))
}

func (r *TerminalReporter) Verbose(message string) {
	if !r.verbose {
		return
	}
	r.clearProgress()
	_, _ = fmt.Fprintf(r.errOut, "%s\n", r.faint.Sprint(message))
}
