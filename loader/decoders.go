package loader

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/tiff"
)

// Decoder turns raw document bytes into a sequence of source pages.
// Match sniffs the format from a leading chunk of the data.
type Decoder interface {
	Name() string
	Match(data []byte) bool
	Decode(data []byte, limits Limits) ([]image.Image, error)
}

// DefaultDecoders returns the built-in format decoders in sniffing order.
func DefaultDecoders() []Decoder {
	return []Decoder{
		GIFDecoder{},
		PNGDecoder{},
		JPEGDecoder{},
		TIFFDecoder{},
	}
}

// GIFDecoder decodes multi-frame GIF documents, one page per frame.
type GIFDecoder struct{}

func (GIFDecoder) Name() string { return "gif" }

func (GIFDecoder) Match(data []byte) bool {
	return bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a"))
}

func (GIFDecoder) Decode(data []byte, limits Limits) ([]image.Image, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("gif has no frames")
	}
	if len(g.Image) > limits.MaxPageCount {
		return nil, fmt.Errorf("gif has %d frames, limit %d", len(g.Image), limits.MaxPageCount)
	}
	canvas := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if canvas.Empty() {
		canvas = g.Image[0].Bounds()
	}
	if err := checkPagePixels(canvas, limits); err != nil {
		return nil, err
	}
	pages := make([]image.Image, 0, len(g.Image))
	for _, frame := range g.Image {
		// Each frame stands alone as a page, composited onto the
		// logical canvas at its own offset.
		page := image.NewRGBA(canvas)
		draw.Draw(page, canvas, image.NewUniform(color.White), image.Point{}, draw.Src)
		draw.Draw(page, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
		pages = append(pages, page)
	}
	return pages, nil
}

// PNGDecoder decodes a single-page PNG document.
type PNGDecoder struct{}

func (PNGDecoder) Name() string { return "png" }

func (PNGDecoder) Match(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a})
}

func (PNGDecoder) Decode(data []byte, limits Limits) ([]image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := checkPagePixels(img.Bounds(), limits); err != nil {
		return nil, err
	}
	return []image.Image{img}, nil
}

// JPEGDecoder decodes a single-page JPEG document.
type JPEGDecoder struct{}

func (JPEGDecoder) Name() string { return "jpeg" }

func (JPEGDecoder) Match(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0xff, 0xd8})
}

func (JPEGDecoder) Decode(data []byte, limits Limits) ([]image.Image, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := checkPagePixels(img.Bounds(), limits); err != nil {
		return nil, err
	}
	return []image.Image{img}, nil
}

// TIFFDecoder decodes a single-page TIFF document.
type TIFFDecoder struct{}

func (TIFFDecoder) Name() string { return "tiff" }

func (TIFFDecoder) Match(data []byte) bool {
	return bytes.HasPrefix(data, []byte("II*\x00")) || bytes.HasPrefix(data, []byte("MM\x00*"))
}

func (TIFFDecoder) Decode(data []byte, limits Limits) ([]image.Image, error) {
	img, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := checkPagePixels(img.Bounds(), limits); err != nil {
		return nil, err
	}
	return []image.Image{img}, nil
}

func checkPagePixels(b image.Rectangle, limits Limits) error {
	if px := int64(b.Dx()) * int64(b.Dy()); px > limits.MaxPagePixels {
		return fmt.Errorf("page %dx%d exceeds pixel limit %d", b.Dx(), b.Dy(), limits.MaxPagePixels)
	}
	return nil
}
