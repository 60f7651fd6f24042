package loader

import (
	"context"
	"fmt"
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"

	"github.com/wudi/viewkit/raster"
)

// Document is a loaded, opaque paged document: a page count plus a per-page
// rasterization capability. Page indexes are 1-based.
type Document interface {
	PageCount() int
	Rasterize(ctx context.Context, pageIndex int, scale float64, rot raster.Rotation) (image.Image, error)
}

// pagedDocument holds decoded source pages and rasterizes them on demand.
type pagedDocument struct {
	pages  []image.Image
	limits Limits
}

func (d *pagedDocument) PageCount() int { return len(d.pages) }

func (d *pagedDocument) Rasterize(ctx context.Context, pageIndex int, scale float64, rot raster.Rotation) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if pageIndex < 1 || pageIndex > len(d.pages) {
		return nil, fmt.Errorf("page %d out of range [1, %d]", pageIndex, len(d.pages))
	}
	if scale <= 0 {
		return nil, fmt.Errorf("scale %v must be positive", scale)
	}
	if scale > d.limits.MaxScale {
		return nil, fmt.Errorf("scale %v exceeds limit %v", scale, d.limits.MaxScale)
	}
	src := d.pages[pageIndex-1]
	m, bounds := raster.PageTransform(src.Bounds(), scale, rot)
	if px := int64(bounds.Dx()) * int64(bounds.Dy()); px > d.limits.MaxOutputPixels {
		return nil, fmt.Errorf("output %dx%d exceeds pixel limit", bounds.Dx(), bounds.Dy())
	}
	dst := image.NewRGBA(bounds)
	// Pages may carry transparency (e.g. GIF frames); render on white.
	xdraw.Draw(dst, bounds, image.NewUniform(color.White), image.Point{}, xdraw.Src)
	xdraw.ApproxBiLinear.Transform(dst, m.Aff3(), src, src.Bounds(), xdraw.Over, nil)
	return dst, nil
}
