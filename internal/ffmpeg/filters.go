package ffmpeg

import "strings"

// VideoFilterChain builds comma-joined filter chains.
type VideoFilterChain struct {
	filters []string
}

// NewVideoFilterChain creates a new empty filter chain.
func NewVideoFilterChain() *VideoFilterChain {
	return &VideoFilterChain{}
}

// AddFilter adds a filter to the chain. Empty filters are ignored.
func (c *VideoFilterChain) AddFilter(filter string) *VideoFilterChain {
	if filter = strings.TrimSpace(filter); filter != "" {
		c.filters = append(c.filters, filter)
	}
	return c
}

// AddFormat adds a format=<pix_fmt> filter.
func (c *VideoFilterChain) AddFormat(pf PixelFormat) *VideoFilterChain {
	return c.AddFilter("format=" + pf.String())
}

// Build builds the filter chain into a single filter string.
// Returns empty string if no filters are present.
func (c *VideoFilterChain) Build() string {
	if len(c.filters) == 0 {
		return ""
	}
	return strings.Join(c.filters, ",")
}
