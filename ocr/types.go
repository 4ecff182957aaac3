package ocr

import (
	"context"
	"strings"
)

// Vertex is a point in normalized page coordinates, both axes in [0,1].
type Vertex struct {
	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`
}

// BoundingPoly is the polygon enclosing a paragraph, normally four vertices.
type BoundingPoly struct {
	NormalizedVertices []Vertex `json:"normalizedVertices,omitempty"`
}

// BreakType annotates the whitespace following a symbol.
type BreakType string

const (
	BreakNone      BreakType = ""
	BreakSpace     BreakType = "SPACE"
	BreakSureSpace BreakType = "SURE_SPACE"
	BreakEOLSpace  BreakType = "EOL_SURE_SPACE"
	BreakLineBreak BreakType = "LINE_BREAK"
	BreakHyphen    BreakType = "HYPHEN"
)

// DetectedBreak carries the break annotation on a symbol.
type DetectedBreak struct {
	Type BreakType `json:"type,omitempty"`
}

// TextProperty wraps per-symbol annotations.
type TextProperty struct {
	DetectedBreak *DetectedBreak `json:"detectedBreak,omitempty"`
}

// Symbol is a single recognized character.
type Symbol struct {
	Text     string        `json:"text"`
	Property *TextProperty `json:"property,omitempty"`
}

// Break returns the break type following the symbol, BreakNone if absent.
func (s Symbol) Break() BreakType {
	if s.Property == nil || s.Property.DetectedBreak == nil {
		return BreakNone
	}
	return s.Property.DetectedBreak.Type
}

// Word groups the symbols of one token.
type Word struct {
	Symbols []Symbol `json:"symbols,omitempty"`
}

// Paragraph is the smallest text block with its own bounding geometry.
type Paragraph struct {
	BoundingBox *BoundingPoly `json:"boundingBox,omitempty"`
	Words       []Word        `json:"words,omitempty"`
}

// Text concatenates the paragraph's symbols in order. A SPACE break after a
// symbol appends a literal space; no other break type alters the text.
func (p Paragraph) Text() string {
	var b strings.Builder
	for _, w := range p.Words {
		for _, s := range w.Symbols {
			b.WriteString(s.Text)
			if s.Break() == BreakSpace {
				b.WriteByte(' ')
			}
		}
	}
	return b.String()
}

// Vertices returns the paragraph's normalized vertices, nil when the
// geometry is absent.
func (p Paragraph) Vertices() []Vertex {
	if p.BoundingBox == nil {
		return nil
	}
	return p.BoundingBox.NormalizedVertices
}

// BlockType classifies a page block. Only text blocks carry paragraphs the
// pipeline narrates.
type BlockType string

const (
	BlockText    BlockType = "TEXT"
	BlockTable   BlockType = "TABLE"
	BlockPicture BlockType = "PICTURE"
	BlockRuler   BlockType = "RULER"
	BlockBarcode BlockType = "BARCODE"
)

// Block is one layout region of a page.
type Block struct {
	BlockType  BlockType   `json:"blockType,omitempty"`
	Paragraphs []Paragraph `json:"paragraphs,omitempty"`
}

// Page holds the recognized blocks of a single page.
type Page struct {
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	Blocks []Block `json:"blocks,omitempty"`
}

// TextAnnotation is the full recognition result for the pages of one
// response group.
type TextAnnotation struct {
	Pages []Page `json:"pages,omitempty"`
	Text  string `json:"text,omitempty"`
}

// PageGroup mirrors one response entry in a stored OCR artifact. Page and
// paragraph numbering downstream is per group: each group advances the page
// counter once and restarts the paragraph counter.
type PageGroup struct {
	Annotation *TextAnnotation `json:"fullTextAnnotation,omitempty"`
}

// Document is the decoded form of one OCR output artifact.
type Document struct {
	Groups []PageGroup `json:"responses"`
}

// Input encapsulates a single page image submitted to a synchronous engine.
type Input struct {
	// ID is an optional caller-provided identifier echoed back in the Result.
	ID string
	// Image is the encoded image payload.
	Image []byte
	// Format declares the image content type (e.g., image/png).
	Format string
	// PageIndex is the zero-based index of the page within its document.
	PageIndex int
	// Languages is a list of language hints (e.g., "jpn", "eng").
	Languages []string
	// DPI carries the effective dots-per-inch for the image; zero means
	// unknown.
	DPI int
}

// Result is the output of a synchronous engine for one input image.
type Result struct {
	// InputID mirrors the Input.ID that produced this result.
	InputID string
	// PlainText is the linearized text of the page.
	PlainText string
	// Page carries the structured layout with normalized geometry.
	Page Page
}

// Engine is the synchronous provider contract: one page image in, one
// recognized page out.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input) (Result, error)
}

// Request describes an asynchronous whole-document submission. Input and
// output both live in object storage; the engine writes its JSON artifacts
// under OutputPrefix when recognition completes.
type Request struct {
	// InputURI addresses the source PDF (gs:// form).
	InputURI string
	// OutputPrefix is the destination address prefix for result artifacts.
	OutputPrefix string
	// BatchSize caps the number of pages per output artifact.
	BatchSize int64
}

// JobState models the lifecycle of an asynchronous OCR request.
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
)

// JobStatus reports progress for a long-running recognition job.
type JobStatus struct {
	State   JobState
	Message string
}

// Job represents an asynchronous OCR submission that can be polled.
type Job interface {
	ID() string
	Status(ctx context.Context) (JobStatus, error)
}

// AsyncEngine submits whole documents for recognition that completes later.
// The pipeline does not wait on the job: the output artifact landing in
// storage triggers the next stage.
type AsyncEngine interface {
	Name() string
	Start(ctx context.Context, req Request) (Job, error)
}
