// Package tesseract implements the synchronous OCR contract with a local
// Tesseract install via gosseract. It exists for offline runs and annotation
// work where submitting documents to a cloud engine is not wanted.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/otiai10/gosseract/v2"

	"papervoice/ocr"
)

// Engine runs Tesseract on single page images.
type Engine struct {
	clientFactory func() *gosseract.Client
}

// New constructs a Tesseract-backed OCR engine.
func New() *Engine {
	return &Engine{clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize performs OCR on a single page image and reshapes the word boxes
// into the normalized paragraph geometry the feature stage consumes.
func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	select {
	case <-ctx.Done():
		return ocr.Result{}, ctx.Err()
	default:
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(in.Image))
	if err != nil {
		return ocr.Result{}, fmt.Errorf("decode page image: %w", err)
	}
	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(in.Image); err != nil {
		return ocr.Result{}, fmt.Errorf("set image: %w", err)
	}
	if len(in.Languages) > 0 {
		if err := c.SetLanguage(in.Languages...); err != nil {
			return ocr.Result{}, fmt.Errorf("set languages: %w", err)
		}
	}
	if in.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(in.DPI)); err != nil {
			return ocr.Result{}, fmt.Errorf("set dpi: %w", err)
		}
	}
	plain, err := c.Text()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("recognize text: %w", err)
	}
	boxes, err := c.GetBoundingBoxesVerbose()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("word boxes: %w", err)
	}
	page := buildPage(boxes, float64(cfg.Width), float64(cfg.Height))
	return ocr.Result{InputID: in.ID, PlainText: plain, Page: page}, nil
}

// buildPage groups word boxes by (block, paragraph) and converts pixel
// rectangles to normalized vertices. Word symbols are synthesized from the
// recognized token with a SPACE break after each word, which reproduces the
// inter-word spacing the downstream text assembly expects.
func buildPage(boxes []gosseract.BoundingBox, width, height float64) ocr.Page {
	page := ocr.Page{Width: width, Height: height}
	if width <= 0 || height <= 0 {
		return page
	}
	var (
		block     *ocr.Block
		para      *ocr.Paragraph
		lastBlock = -1
		lastPara  = -1
		minX      float64
		minY      float64
		maxX      float64
		maxY      float64
	)
	closePara := func() {
		if para == nil {
			return
		}
		para.BoundingBox = &ocr.BoundingPoly{NormalizedVertices: []ocr.Vertex{
			{X: minX, Y: minY},
			{X: maxX, Y: minY},
			{X: maxX, Y: maxY},
			{X: minX, Y: maxY},
		}}
		block.Paragraphs = append(block.Paragraphs, *para)
		para = nil
	}
	closeBlock := func() {
		closePara()
		if block != nil {
			page.Blocks = append(page.Blocks, *block)
			block = nil
		}
	}
	for _, b := range boxes {
		if b.Word == "" {
			continue
		}
		if block == nil || b.BlockNum != lastBlock {
			closeBlock()
			block = &ocr.Block{BlockType: ocr.BlockText}
			lastBlock = b.BlockNum
			lastPara = -1
		}
		if para == nil || b.ParNum != lastPara {
			closePara()
			para = &ocr.Paragraph{}
			lastPara = b.ParNum
			minX, minY = 1, 1
			maxX, maxY = 0, 0
		}
		x0 := float64(b.Box.Min.X) / width
		y0 := float64(b.Box.Min.Y) / height
		x1 := float64(b.Box.Max.X) / width
		y1 := float64(b.Box.Max.Y) / height
		minX = min(minX, x0)
		minY = min(minY, y0)
		maxX = max(maxX, x1)
		maxY = max(maxY, y1)
		para.Words = append(para.Words, wordFromToken(b.Word))
	}
	closeBlock()
	return page
}

func wordFromToken(token string) ocr.Word {
	runes := []rune(token)
	w := ocr.Word{Symbols: make([]ocr.Symbol, 0, len(runes))}
	for i, r := range runes {
		s := ocr.Symbol{Text: string(r)}
		if i == len(runes)-1 {
			s.Property = &ocr.TextProperty{DetectedBreak: &ocr.DetectedBreak{Type: ocr.BreakSpace}}
		}
		w.Symbols = append(w.Symbols, s)
	}
	return w
}

var _ ocr.Engine = (*Engine)(nil)
