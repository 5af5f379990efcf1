package qr_test

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/markmehq/markme/internal/qr"
)

func TestPNG(t *testing.T) {
	data, err := qr.PNG("some-scan-token", 256)

	if err != nil {
		t.Fatalf("PNG: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))

	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}

	bounds := img.Bounds()

	if bounds.Dx() != 256 || bounds.Dy() != 256 {
		t.Fatalf("got %dx%d, want 256x256", bounds.Dx(), bounds.Dy())
	}
}

func TestPNGDefaultSize(t *testing.T) {
	data, err := qr.PNG("some-scan-token", 0)

	if err != nil {
		t.Fatalf("PNG: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))

	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}

	if img.Bounds().Dx() != 512 {
		t.Fatalf("got width %d, want default 512", img.Bounds().Dx())
	}
}

func TestPNGEmptyToken(t *testing.T) {
	if _, err := qr.PNG("", 256); err == nil {
		t.Fatal("empty token must be rejected")
	}
}
