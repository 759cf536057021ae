package reporter

// CompositeReporter fans out events to multiple reporters.
type CompositeReporter struct {
	reporters []Reporter
}

// NewCompositeReporter creates a composite reporter.
func NewCompositeReporter(reporters ...Reporter) *CompositeReporter {
	return &CompositeReporter{reporters: reporters}
}

func (c *CompositeReporter) Input(summary InputSummary) {
	for _, r := range c.reporters {
		r.Input(summary)
	}
}

func (c *CompositeReporter) EncoderConfig(summary EncoderSummary) {
	for _, r := range c.reporters {
		r.EncoderConfig(summary)
	}
}

func (c *CompositeReporter) SearchStarted(summary SearchSummary) {
	for _, r := range c.reporters {
		r.SearchStarted(summary)
	}
}

func (c *CompositeReporter) ProgressStarted(label string) {
	for _, r := range c.reporters {
		r.ProgressStarted(label)
	}
}

func (c *CompositeReporter) Progress(snapshot ProgressSnapshot) {
	for _, r := range c.reporters {
		r.Progress(snapshot)
	}
}

func (c *CompositeReporter) CRFAttempt(summary SampleEncodeSummary) {
	for _, r := range c.reporters {
		r.CRFAttempt(summary)
	}
}

func (c *CompositeReporter) SampleEncodeComplete(summary SampleEncodeSummary) {
	for _, r := range c.reporters {
		r.SampleEncodeComplete(summary)
	}
}

func (c *CompositeReporter) SearchComplete(summary SampleEncodeSummary) {
	for _, r := range c.reporters {
		r.SearchComplete(summary)
	}
}

func (c *CompositeReporter) EncodeComplete(outcome EncodeOutcome) {
	for _, r := range c.reporters {
		r.EncodeComplete(outcome)
	}
}

func (c *CompositeReporter) ScoreComplete(summary ScoreSummary) {
	for _, r := range c.reporters {
		r.ScoreComplete(summary)
	}
}

func (c *CompositeReporter) Warning(message string) {
	for _, r := range c.reporters {
		r.Warning(message)
	}
}

func (c *CompositeReporter) Error(err ReporterError) {
	for _, r := range c.reporters {
		r.Error(err)
	}
}

func (c *CompositeReporter) OperationComplete(message string) {
	for _, r := range c.reporters {
		r.OperationComplete(message)
	}
}

func (c *CompositeReporter) Verbose(message string) {
	for _, r := range c.reporters {
		r.Verbose(message)
	}
}
