// Package raster converts PDF pages to PNG images by shelling out to
// ghostscript. The images feed the local OCR engine and the annotation
// export; cloud OCR reads the PDF directly and never needs this.
package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"golang.org/x/image/draw"
)

const (
	defaultBinary = "gs"
	defaultDPI    = 100
)

// Rasterizer renders PDF pages with an external ghostscript binary.
type Rasterizer struct {
	// Binary is the ghostscript executable; "gs" when empty.
	Binary string
	// DPI is the render resolution; 100 when zero.
	DPI int
	// MaxWidth bounds the output width in pixels; larger pages are
	// downscaled. Zero disables scaling.
	MaxWidth int
}

// Pages renders every page of the PDF to a PNG, in page order.
func (r *Rasterizer) Pages(ctx context.Context, pdf []byte) ([][]byte, error) {
	bin := r.Binary
	if bin == "" {
		bin = defaultBinary
	}
	dpi := r.DPI
	if dpi <= 0 {
		dpi = defaultDPI
	}

	dir, err := os.MkdirTemp("", "raster-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(input, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("write temp pdf: %w", err)
	}

	args := []string{
		"-dSAFER", "-dBATCH", "-dNOPAUSE",
		"-sDEVICE=pngalpha",
		fmt.Sprintf("-r%d", dpi),
		fmt.Sprintf("-sOutputFile=%s", filepath.Join(dir, "%03d.png")),
		input,
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ghostscript: %w: %s", err, stderr.String())
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.png"))
	if err != nil {
		return nil, fmt.Errorf("collect pages: %w", err)
	}
	sort.Strings(matches)
	pages := make([][]byte, 0, len(matches))
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			return nil, fmt.Errorf("read page %s: %w", filepath.Base(m), err)
		}
		if r.MaxWidth > 0 {
			data, err = Downscale(data, r.MaxWidth)
			if err != nil {
				return nil, fmt.Errorf("downscale page %s: %w", filepath.Base(m), err)
			}
		}
		pages = append(pages, data)
	}
	return pages, nil
}

// Downscale re-encodes a PNG so its width does not exceed maxWidth,
// preserving aspect ratio. Images already within the bound pass through
// untouched.
func Downscale(data []byte, maxWidth int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	b := src.Bounds()
	if b.Dx() <= maxWidth {
		return data, nil
	}
	h := b.Dy() * maxWidth / b.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	var out bytes.Buffer
	if err := png.Encode(&out, dst); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return out.Bytes(), nil
}
