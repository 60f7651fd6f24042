package render

import (
	"image"

	"golang.org/x/crypto/blake2b"
)

// PageBuffer is one rasterized page tagged with the generation that
// produced it. Digest is a BLAKE2b-256 hash of the pixel data, letting a
// display layer detect tampering with a buffer it was handed earlier.
type PageBuffer struct {
	PageIndex  int
	Image      image.Image
	Generation uint64
	Digest     [32]byte
}

// OutcomeKind tags the result of one unit of pipeline work.
type OutcomeKind int

const (
	// Produced: a page was rasterized for the current generation.
	Produced OutcomeKind = iota
	// Stale: the generation changed; the buffer was discarded and the
	// pipeline stopped.
	Stale
	// Failed: a single page could not be rasterized.
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Produced:
		return "produced"
	case Stale:
		return "stale"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Outcome communicates one pipeline step to the session controller.
// Buffer is set only for Produced; Err only for Failed.
type Outcome struct {
	Kind      OutcomeKind
	PageIndex int
	Buffer    *PageBuffer
	Err       error
}

func digestImage(img image.Image) [32]byte {
	if rgba, ok := img.(*image.RGBA); ok {
		return blake2b.Sum256(rgba.Pix)
	}
	b := img.Bounds()
	h, _ := blake2b.New256(nil)
	row := make([]byte, 0, b.Dx()*8)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row = row[:0]
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			row = append(row,
				byte(r>>8), byte(r), byte(g>>8), byte(g),
				byte(bl>>8), byte(bl), byte(a>>8), byte(a))
		}
		h.Write(row)
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}
