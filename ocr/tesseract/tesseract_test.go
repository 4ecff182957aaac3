package tesseract

import (
	"image"
	"testing"

	"github.com/otiai10/gosseract/v2"

	"papervoice/ocr"
)

func box(x0, y0, x1, y1, blockNum, parNum int, word string) gosseract.BoundingBox {
	return gosseract.BoundingBox{
		Box:      image.Rect(x0, y0, x1, y1),
		Word:     word,
		BlockNum: blockNum,
		ParNum:   parNum,
	}
}

func TestBuildPageGroupsParagraphs(t *testing.T) {
	boxes := []gosseract.BoundingBox{
		box(10, 10, 50, 20, 1, 1, "Hello"),
		box(60, 10, 100, 20, 1, 1, "world"),
		box(10, 40, 80, 50, 1, 2, "Next"),
		box(10, 80, 90, 95, 2, 1, "Caption"),
	}
	page := buildPage(boxes, 200, 100)

	if len(page.Blocks) != 2 {
		t.Fatalf("blocks = %d, want 2", len(page.Blocks))
	}
	if got := len(page.Blocks[0].Paragraphs); got != 2 {
		t.Fatalf("paragraphs in first block = %d, want 2", got)
	}
	first := page.Blocks[0].Paragraphs[0]
	if got := first.Text(); got != "Hello world " {
		t.Fatalf("Text() = %q", got)
	}
	verts := first.Vertices()
	if len(verts) != 4 {
		t.Fatalf("vertices = %d, want 4", len(verts))
	}
	// Union of the two word boxes: x in [10,100], y in [10,20] over a 200x100 page.
	if verts[0].X != 0.05 || verts[0].Y != 0.1 || verts[2].X != 0.5 || verts[2].Y != 0.2 {
		t.Fatalf("unexpected bounds: %+v", verts)
	}
	for _, b := range page.Blocks {
		if b.BlockType != ocr.BlockText {
			t.Fatalf("block type = %q, want TEXT", b.BlockType)
		}
	}
}

func TestBuildPageZeroDimensions(t *testing.T) {
	page := buildPage([]gosseract.BoundingBox{box(0, 0, 1, 1, 1, 1, "x")}, 0, 0)
	if len(page.Blocks) != 0 {
		t.Fatalf("expected no blocks for degenerate page, got %d", len(page.Blocks))
	}
}

func TestWordFromToken(t *testing.T) {
	w := wordFromToken("ab")
	if len(w.Symbols) != 2 {
		t.Fatalf("symbols = %d, want 2", len(w.Symbols))
	}
	if w.Symbols[0].Break() != ocr.BreakNone {
		t.Fatalf("inner symbol should carry no break")
	}
	if w.Symbols[1].Break() != ocr.BreakSpace {
		t.Fatalf("final symbol should carry a SPACE break")
	}
}
