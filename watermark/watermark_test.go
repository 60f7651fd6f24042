package watermark

import (
	"image"
	"strings"
	"testing"
	"time"
)

func TestGenerateDeterministic(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	a := Generate("viewer-42", now)
	b := Generate("viewer-42", now)
	if a != b {
		t.Fatalf("generate not deterministic: %v != %v", a, b)
	}
}

func TestTextContainsViewerAndTimestamp(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	now := time.Date(2026, 8, 30, 14, 30, 0, 0, loc)
	w := Generate("viewer-42", now)
	text := w.Text()
	if !strings.Contains(text, "viewer-42") {
		t.Fatalf("text %q missing viewer id", text)
	}
	if !strings.Contains(text, "2026-08-30T12:30:00Z") {
		t.Fatalf("text %q missing normalized ISO-8601 timestamp", text)
	}
	if _, err := time.Parse(time.RFC3339, w.Timestamp.Format(time.RFC3339)); err != nil {
		t.Fatalf("timestamp not RFC3339: %v", err)
	}
}

func TestOverlayRenderDrawsPixels(t *testing.T) {
	r := NewOverlayRenderer()
	w := Generate("viewer-42", time.Now())
	layer := r.Render(w, image.Rect(0, 0, 400, 300))
	painted := 0
	for i := 3; i < len(layer.Pix); i += 4 {
		if layer.Pix[i] != 0 {
			painted++
		}
	}
	if painted == 0 {
		t.Fatalf("overlay drew no pixels")
	}
	// The overlay stays translucent, not a solid fill.
	if painted > 400*300/2 {
		t.Fatalf("overlay painted %d pixels, suspiciously dense", painted)
	}
}

func TestOverlayLeavesPageUntouched(t *testing.T) {
	r := NewOverlayRenderer()
	w := Generate("viewer-42", time.Now())
	page := image.NewRGBA(image.Rect(0, 0, 100, 100))
	copyBefore := make([]byte, len(page.Pix))
	copy(copyBefore, page.Pix)
	_ = r.Render(w, page.Bounds())
	for i := range page.Pix {
		if page.Pix[i] != copyBefore[i] {
			t.Fatalf("rendering an overlay mutated the page raster")
		}
	}
}

func TestApplyComposites(t *testing.T) {
	r := NewOverlayRenderer(WithTileStep(40, 20))
	w := Generate("v", time.Now())
	page := image.NewRGBA(image.Rect(0, 0, 120, 80))
	overlay := r.Render(w, page.Bounds())
	Apply(page, overlay)
	changed := false
	for _, p := range page.Pix {
		if p != 0 {
			changed = true
			break
		}
	}
	if !changed {
		t.Fatalf("apply did not composite overlay")
	}
}
