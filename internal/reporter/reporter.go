package reporter

// Reporter defines the interface for progress reporting.
type Reporter interface {
	Input(summary InputSummary)
	EncoderConfig(summary EncoderSummary)
	SearchStarted(summary SearchSummary)
	ProgressStarted(label string)
	Progress(snapshot ProgressSnapshot)
	CRFAttempt(summary SampleEncodeSummary)
	SampleEncodeComplete(summary SampleEncodeSummary)
	SearchComplete(summary SampleEncodeSummary)
	EncodeComplete(outcome EncodeOutcome)
	ScoreComplete(summary ScoreSummary)
	Warning(message string)
	Error(err ReporterError)
	OperationComplete(message string)
	Verbose(message string)
}

// NullReporter is a no-op reporter that discards all updates.
type NullReporter struct{}

func (NullReporter) Input(InputSummary)                       {}
func (NullReporter) EncoderConfig(EncoderSummary)             {}
func (NullReporter) SearchStarted(SearchSummary)              {}
func (NullReporter) ProgressStarted(string)                   {}
func (NullReporter) Progress(ProgressSnapshot)                {}
func (NullReporter) CRFAttempt(SampleEncodeSummary)           {}
func (NullReporter) SampleEncodeComplete(SampleEncodeSummary) {}
func (NullReporter) SearchComplete(SampleEncodeSummary)       {}
func (NullReporter) EncodeComplete(EncodeOutcome)             {}
func (NullReporter) ScoreComplete(ScoreSummary)               {}
func (NullReporter) Warning(string)                           {}
func (NullReporter) Error(ReporterError)                      {}
func (NullReporter) OperationComplete(string)                 {}
func (NullReporter) Verbose(string)                           {}
