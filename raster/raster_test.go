package raster

import (
	"image"
	"math"
	"testing"
)

func TestParseRotation(t *testing.T) {
	cases := []struct {
		in   int
		want Rotation
		ok   bool
	}{
		{0, Rotate0, true},
		{90, Rotate90, true},
		{180, Rotate180, true},
		{270, Rotate270, true},
		{360, Rotate0, true},
		{450, Rotate90, true},
		{-90, Rotate270, true},
		{45, Rotate0, false},
	}
	for _, c := range cases {
		got, err := ParseRotation(c.in)
		if c.ok && err != nil {
			t.Fatalf("ParseRotation(%d): %v", c.in, err)
		}
		if !c.ok {
			if err == nil {
				t.Fatalf("ParseRotation(%d): expected error", c.in)
			}
			continue
		}
		if got != c.want {
			t.Fatalf("ParseRotation(%d) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestSwapped(t *testing.T) {
	if Rotate0.Swapped() || Rotate180.Swapped() {
		t.Fatalf("0/180 must not swap dimensions")
	}
	if !Rotate90.Swapped() || !Rotate270.Swapped() {
		t.Fatalf("90/270 must swap dimensions")
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestPageTransformBounds(t *testing.T) {
	src := image.Rect(0, 0, 100, 50)
	_, b := PageTransform(src, 2, Rotate0)
	if b != image.Rect(0, 0, 200, 100) {
		t.Fatalf("bounds = %v", b)
	}
	_, b = PageTransform(src, 2, Rotate90)
	if b != image.Rect(0, 0, 100, 200) {
		t.Fatalf("rotated bounds = %v", b)
	}
	_, b = PageTransform(src, 1.5, Rotate180)
	if b != image.Rect(0, 0, 150, 75) {
		t.Fatalf("180 bounds = %v", b)
	}
}

func TestPageTransformCorners(t *testing.T) {
	src := image.Rect(0, 0, 100, 50)

	m, _ := PageTransform(src, 1, Rotate90)
	// Top-left of the page lands at the top-right corner.
	p := m.Transform(Point{0, 0})
	if !near(p.X, 50) || !near(p.Y, 0) {
		t.Fatalf("90: (0,0) -> %v", p)
	}
	p = m.Transform(Point{100, 50})
	if !near(p.X, 0) || !near(p.Y, 100) {
		t.Fatalf("90: (100,50) -> %v", p)
	}

	m, _ = PageTransform(src, 2, Rotate180)
	p = m.Transform(Point{0, 0})
	if !near(p.X, 200) || !near(p.Y, 100) {
		t.Fatalf("180: (0,0) -> %v", p)
	}

	m, _ = PageTransform(src, 1, Rotate270)
	p = m.Transform(Point{100, 0})
	if !near(p.X, 0) || !near(p.Y, 0) {
		t.Fatalf("270: (100,0) -> %v", p)
	}
}

func TestMatrixCompose(t *testing.T) {
	m := Scale(2, 2).Multiply(Translate(10, 5))
	p := m.Transform(Point{3, 4})
	if !near(p.X, 16) || !near(p.Y, 13) {
		t.Fatalf("compose: %v", p)
	}
	id := Identity()
	if id.Transform(Point{7, 9}) != (Point{7, 9}) {
		t.Fatalf("identity not identity")
	}
}
