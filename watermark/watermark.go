// Package watermark derives the per-session viewer overlay. Generation is
// pure; the overlay is rendered as a separate layer and never merged into
// the page raster, so a host can substitute its own overlay strategy
// without touching the render pipeline.
package watermark

import "time"

// Watermark is a derived value, immutable once created.
type Watermark struct {
	ViewerID  string
	Timestamp time.Time
}

// Generate builds the watermark for a session opened by viewerID at now.
// Deterministic given its inputs; no failure modes.
func Generate(viewerID string, now time.Time) Watermark {
	return Watermark{ViewerID: viewerID, Timestamp: now.UTC()}
}

// Text is the overlay string: viewer identity plus an ISO-8601 timestamp.
func (w Watermark) Text() string {
	return w.ViewerID + " " + w.Timestamp.Format(time.RFC3339)
}
