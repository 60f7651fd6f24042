// Package raster provides raster-space geometry for page rendering:
// quarter-turn rotations and the affine transforms that map a source page
// into a scaled, rotated output buffer.
package raster

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/math/f64"
)

// Rotation is a clockwise quarter-turn rotation in degrees.
type Rotation int

const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

// ParseRotation normalizes an arbitrary degree value to a quarter turn.
// Values not divisible by 90 are rejected.
func ParseRotation(degrees int) (Rotation, error) {
	if degrees%90 != 0 {
		return Rotate0, fmt.Errorf("rotation %d not a quarter turn", degrees)
	}
	norm := degrees % 360
	if norm < 0 {
		norm += 360
	}
	return Rotation(norm), nil
}

// Swapped reports whether the rotation exchanges width and height.
func (r Rotation) Swapped() bool { return r == Rotate90 || r == Rotate270 }

func (r Rotation) String() string { return fmt.Sprintf("%ddeg", int(r)) }

// Matrix is a 2D affine transform in column-major [a b c d e f] form,
// mapping (x, y) to (a*x + c*y + e, b*x + d*y + f).
type Matrix [6]float64

func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2],
		m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2],
		m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4],
		m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

type Point struct{ X, Y float64 }

func (m Matrix) Transform(p Point) Point {
	return Point{X: m[0]*p.X + m[2]*p.Y + m[4], Y: m[1]*p.X + m[3]*p.Y + m[5]}
}

func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }
func Scale(sx, sy float64) Matrix     { return Matrix{sx, 0, 0, sy, 0, 0} }

// Aff3 converts the matrix to the row-major form used by x/image/draw.
func (m Matrix) Aff3() f64.Aff3 {
	return f64.Aff3{m[0], m[2], m[4], m[1], m[3], m[5]}
}

// PageTransform computes the source-to-output transform and the output
// bounds for rendering a src-sized page at the given scale and rotation.
// The output origin is always (0, 0).
func PageTransform(src image.Rectangle, scale float64, rot Rotation) (Matrix, image.Rectangle) {
	sw := float64(src.Dx()) * scale
	sh := float64(src.Dy()) * scale
	outW := int(math.Ceil(sw))
	outH := int(math.Ceil(sh))

	m := Scale(scale, scale)
	switch rot {
	case Rotate90:
		// (x, y) -> (h - y, x)
		m = m.Multiply(Matrix{0, 1, -1, 0, sh, 0})
		outW, outH = outH, outW
	case Rotate180:
		m = m.Multiply(Matrix{-1, 0, 0, -1, sw, sh})
	case Rotate270:
		// (x, y) -> (y, w - x)
		m = m.Multiply(Matrix{0, -1, 1, 0, 0, sw})
		outW, outH = outH, outW
	}
	if src.Min.X != 0 || src.Min.Y != 0 {
		m = Translate(float64(-src.Min.X), float64(-src.Min.Y)).Multiply(m)
	}
	return m, image.Rect(0, 0, outW, outH)
}
