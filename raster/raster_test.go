package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: uint8(x), A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestDownscaleShrinksWideImages(t *testing.T) {
	data := encodePNG(t, 100, 50)
	out, err := Downscale(data, 40)
	if err != nil {
		t.Fatalf("Downscale() error = %v", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if cfg.Width != 40 || cfg.Height != 20 {
		t.Fatalf("result = %dx%d, want 40x20", cfg.Width, cfg.Height)
	}
}

func TestDownscalePassThrough(t *testing.T) {
	data := encodePNG(t, 30, 30)
	out, err := Downscale(data, 40)
	if err != nil {
		t.Fatalf("Downscale() error = %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("small image should pass through unchanged")
	}
}

func TestDownscaleRejectsGarbage(t *testing.T) {
	if _, err := Downscale([]byte("not a png"), 40); err == nil {
		t.Fatalf("expected decode error")
	}
}
