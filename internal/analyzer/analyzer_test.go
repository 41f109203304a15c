package analyzer

import (
	"image"
	"image/color"
	"testing"

	"github.com/ivlev/vectorscope/internal/colorspace"
)

func fill(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func TestGamutDetector(t *testing.T) {
	// 75% grey background with a 100% yellow patch
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	fill(img, img.Rect, color.RGBA{191, 191, 191, 255})
	fill(img, image.Rect(20, 30, 40, 50), color.RGBA{255, 255, 0, 255})

	detector := NewGamutDetector(nil)
	report, err := detector.Detect(img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if report.Sampled != 100*100 {
		t.Errorf("Sampled = %d, want %d", report.Sampled, 100*100)
	}
	if report.Flagged != 20*20 {
		t.Errorf("Flagged = %d, want %d", report.Flagged, 20*20)
	}
	if report.Bounds != image.Rect(20, 30, 40, 50) {
		t.Errorf("Bounds = %v", report.Bounds)
	}
	if !report.Exceeds(0.01) || report.Exceeds(0.05) {
		t.Errorf("Fraction = %.3f, want 0.04", report.Fraction)
	}
}

func TestGamutDetectorPassesLegalBars(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 70, 4))
	bars := []color.RGBA{
		{191, 191, 191, 255}, {191, 191, 0, 255}, {0, 191, 191, 255}, {0, 191, 0, 255},
		{191, 0, 191, 255}, {191, 0, 0, 255}, {0, 0, 191, 255},
	}
	for i, c := range bars {
		fill(img, image.Rect(i*10, 0, i*10+10, 4), c)
	}

	report, err := NewGamutDetector(colorspace.MustNew(colorspace.BT601)).Detect(img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if report.Flagged != 0 {
		t.Errorf("75%% bars flagged %d pixels in %v", report.Flagged, report.Bounds)
	}
}

func TestGamutDetectorStep(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	d := NewGamutDetector(nil)
	d.Step = 5

	report, _ := d.Detect(img)
	if report.Sampled != 4 {
		t.Errorf("Sampled = %d, want 4", report.Sampled)
	}
	if report.Exceeds(0) {
		t.Error("black frame should be legal")
	}
}

func TestClipDetector(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	fill(img, img.Rect, color.RGBA{128, 128, 128, 255})
	fill(img, image.Rect(0, 0, 10, 2), color.RGBA{255, 200, 100, 255})

	report, err := NewClipDetector().Detect(img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if report.Flagged != 20 {
		t.Errorf("Flagged = %d, want 20", report.Flagged)
	}
	if report.Variant != "clip" {
		t.Errorf("Variant = %q", report.Variant)
	}
}

func TestDetectorRegistry(t *testing.T) {
	tests := []struct {
		variant string
		wantErr bool
	}{
		{"gamut", false},
		{"", false}, // default
		{"clip", false},
		{"contrast", true},
		{"invalid", true},
	}

	for _, tt := range tests {
		t.Run(tt.variant, func(t *testing.T) {
			detector, err := NewDetector(tt.variant, nil)

			if tt.wantErr {
				if err == nil {
					t.Error("Expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				if detector == nil {
					t.Error("Expected detector, got nil")
				}
			}
		})
	}
}
