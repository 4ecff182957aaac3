package ocr

import (
	"testing"
)

const sampleArtifact = `{
  "responses": [
    {
      "fullTextAnnotation": {
        "text": "Hello world",
        "pages": [
          {
            "width": 612,
            "height": 792,
            "blocks": [
              {
                "blockType": "TEXT",
                "paragraphs": [
                  {
                    "boundingBox": {
                      "normalizedVertices": [
                        {"x": 0.1, "y": 0.2},
                        {"x": 0.5, "y": 0.2},
                        {"x": 0.5, "y": 0.3},
                        {"x": 0.1, "y": 0.3}
                      ]
                    },
                    "words": [
                      {
                        "symbols": [
                          {"text": "H"},
                          {"text": "i", "property": {"detectedBreak": {"type": "SPACE"}}}
                        ]
                      },
                      {
                        "symbols": [
                          {"text": "y"},
                          {"text": "o", "property": {"detectedBreak": {"type": "LINE_BREAK"}}}
                        ]
                      }
                    ]
                  }
                ]
              },
              {"blockType": "PICTURE"}
            ]
          }
        ]
      }
    }
  ]
}`

func TestParseArtifact(t *testing.T) {
	doc, err := ParseArtifact([]byte(sampleArtifact))
	if err != nil {
		t.Fatalf("ParseArtifact() error = %v", err)
	}
	if len(doc.Groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(doc.Groups))
	}
	pages := doc.Groups[0].Annotation.Pages
	if len(pages) != 1 || len(pages[0].Blocks) != 2 {
		t.Fatalf("unexpected page structure: %+v", pages)
	}
	if pages[0].Blocks[0].BlockType != BlockText {
		t.Fatalf("block type = %q, want TEXT", pages[0].Blocks[0].BlockType)
	}
	para := pages[0].Blocks[0].Paragraphs[0]
	if got := para.Text(); got != "Hi yo" {
		t.Fatalf("Text() = %q, want %q (SPACE break adds a space, LINE_BREAK does not)", got, "Hi yo")
	}
	if len(para.Vertices()) != 4 {
		t.Fatalf("vertices = %d, want 4", len(para.Vertices()))
	}
}

func TestParseArtifactRejectsGarbage(t *testing.T) {
	if _, err := ParseArtifact([]byte("not json")); err == nil {
		t.Fatalf("expected error for malformed artifact")
	}
}

func TestEncodeArtifactRoundTrip(t *testing.T) {
	doc := Document{Groups: []PageGroup{{
		Annotation: &TextAnnotation{Pages: []Page{{
			Blocks: []Block{{
				BlockType: BlockText,
				Paragraphs: []Paragraph{{
					BoundingBox: &BoundingPoly{NormalizedVertices: []Vertex{{X: 0.25, Y: 0.5}}},
					Words: []Word{{Symbols: []Symbol{
						{Text: "a", Property: &TextProperty{DetectedBreak: &DetectedBreak{Type: BreakSpace}}},
					}}},
				}},
			}},
		}}},
	}}}
	data, err := EncodeArtifact(doc)
	if err != nil {
		t.Fatalf("EncodeArtifact() error = %v", err)
	}
	back, err := ParseArtifact(data)
	if err != nil {
		t.Fatalf("ParseArtifact() error = %v", err)
	}
	para := back.Groups[0].Annotation.Pages[0].Blocks[0].Paragraphs[0]
	if para.Text() != "a " {
		t.Fatalf("round-trip Text() = %q, want %q", para.Text(), "a ")
	}
}

func TestParagraphTextEmpty(t *testing.T) {
	var p Paragraph
	if p.Text() != "" {
		t.Fatalf("empty paragraph should produce empty text")
	}
	if p.Vertices() != nil {
		t.Fatalf("empty paragraph should have nil vertices")
	}
}
