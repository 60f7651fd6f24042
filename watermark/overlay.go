package watermark

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// OverlayRenderer tiles the watermark text across a transparent layer
// sized to a page. The zero value is not usable; call NewOverlayRenderer.
type OverlayRenderer struct {
	face  font.Face
	color color.Color
	stepX int
	stepY int
}

type OverlayOption func(*OverlayRenderer)

func WithFace(f font.Face) OverlayOption {
	return func(r *OverlayRenderer) { r.face = f }
}

func WithColor(c color.Color) OverlayOption {
	return func(r *OverlayRenderer) { r.color = c }
}

func WithTileStep(x, y int) OverlayOption {
	return func(r *OverlayRenderer) { r.stepX, r.stepY = x, y }
}

func NewOverlayRenderer(opts ...OverlayOption) *OverlayRenderer {
	r := &OverlayRenderer{
		face:  basicfont.Face7x13,
		color: color.NRGBA{R: 0x60, G: 0x60, B: 0x60, A: 0x50},
		stepX: 220,
		stepY: 120,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Render draws the watermark tiled over a transparent RGBA layer covering
// bounds. Rows are offset by half a step so tiles do not line up into
// easily croppable columns.
func (r *OverlayRenderer) Render(w Watermark, bounds image.Rectangle) *image.RGBA {
	layer := image.NewRGBA(bounds)
	text := w.Text()
	d := font.Drawer{
		Dst:  layer,
		Src:  image.NewUniform(r.color),
		Face: r.face,
	}
	width := d.MeasureString(text).Ceil()
	if width <= 0 {
		width = 1
	}
	row := 0
	for y := bounds.Min.Y + r.stepY/2; y < bounds.Max.Y; y += r.stepY {
		offset := 0
		if row%2 == 1 {
			offset = r.stepX / 2
		}
		for x := bounds.Min.X - offset; x < bounds.Max.X; x += r.stepX + width {
			d.Dot = fixed.P(x, y)
			d.DrawString(text)
		}
		row++
	}
	return layer
}

// Apply composites an overlay onto dst. Split out from Render so callers
// that keep page rasters pristine can hold the layer separately.
func Apply(dst draw.Image, overlay image.Image) {
	draw.Draw(dst, dst.Bounds(), overlay, overlay.Bounds().Min, draw.Over)
}
