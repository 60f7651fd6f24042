package loader

import "time"

// Limits defines resource boundaries for fetching and decoding documents.
// They protect against oversized or decompression-bomb inputs reaching the
// render pipeline.
type Limits struct {
	// Maximum fetched document size in bytes. Default: 50 MB.
	MaxDocumentBytes int64

	// Maximum number of pages in a document. Default: 2000.
	MaxPageCount int

	// Maximum decoded pixels per source page. Default: 50,000,000.
	MaxPagePixels int64

	// Maximum pixels in a single rasterized output page. Default: 100,000,000.
	MaxOutputPixels int64

	// Maximum rasterization scale factor. Default: 8.0.
	MaxScale float64

	// Maximum time for a single fetch. Default: 30s.
	FetchTimeout time.Duration
}

// DefaultLimits returns a Limits struct with safe default values.
func DefaultLimits() Limits {
	return Limits{
		MaxDocumentBytes: 50 * 1024 * 1024,
		MaxPageCount:     2000,
		MaxPagePixels:    50_000_000,
		MaxOutputPixels:  100_000_000,
		MaxScale:         8.0,
		FetchTimeout:     30 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultLimits.
func (l Limits) withDefaults() Limits {
	def := DefaultLimits()
	if l.MaxDocumentBytes == 0 {
		l.MaxDocumentBytes = def.MaxDocumentBytes
	}
	if l.MaxPageCount == 0 {
		l.MaxPageCount = def.MaxPageCount
	}
	if l.MaxPagePixels == 0 {
		l.MaxPagePixels = def.MaxPagePixels
	}
	if l.MaxOutputPixels == 0 {
		l.MaxOutputPixels = def.MaxOutputPixels
	}
	if l.MaxScale == 0 {
		l.MaxScale = def.MaxScale
	}
	if l.FetchTimeout == 0 {
		l.FetchTimeout = def.FetchTimeout
	}
	return l
}
