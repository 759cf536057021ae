// Package tq searches for the highest CRF whose sample-encode meets a
// quality target within an encoded size limit.
package tq

import (
	"fmt"

	"github.com/five82/ab-av1/internal/errors"
)

// Search defaults.
const (
	DefaultMinVMAF           = 95.0
	DefaultMinXPSNR          = 40.0
	DefaultMaxEncodedPercent = 80.0
	DefaultMinCRF            = 10
	DefaultMaxCRF            = 55
)

// Config holds the search target and bounds.
type Config struct {
	// MinScore is the quality a result must exceed.
	MinScore float64

	// MaxEncodedPercent limits the predicted size relative to the input.
	MaxEncodedPercent float64

	// MinCRF and MaxCRF bound the search, inclusive.
	MinCRF int
	MaxCRF int
}

// DefaultConfig returns a Config with the VMAF defaults.
func DefaultConfig() *Config {
	return &Config{
		MinScore:          DefaultMinVMAF,
		MaxEncodedPercent: DefaultMaxEncodedPercent,
		MinCRF:            DefaultMinCRF,
		MaxCRF:            DefaultMaxCRF,
	}
}

// Validate checks the bounds before any encode is attempted.
func (c *Config) Validate() error {
	if c.MinCRF > c.MaxCRF {
		return errors.NewPreconditionError(
			fmt.Sprintf("min-crf (%d) must not be greater than max-crf (%d)", c.MinCRF, c.MaxCRF), nil)
	}
	if c.MinCRF < 0 {
		return errors.NewPreconditionError(fmt.Sprintf("min-crf (%d) must not be negative", c.MinCRF), nil)
	}
	if c.MaxEncodedPercent <= 0 {
		return errors.NewPreconditionError(
			fmt.Sprintf("max-encoded-percent (%v) must be positive", c.MaxEncodedPercent), nil)
	}
	return nil
}
