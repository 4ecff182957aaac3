// Package feature turns OCR paragraph geometry into the flat feature records
// the layout classifier consumes. Extraction is pure: a malformed paragraph
// degrades to zeroed numeric features instead of failing the page.
package feature

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"papervoice/ocr"
)

// CSVHeader is the exact header line of a feature table. The classifier is
// trained against these column names; do not reorder.
const CSVHeader = "id,text,chars,width,height,area,char_size,pos_x,pos_y,aspect,layout"

// Record is one paragraph's flat feature row. Immutable once produced.
type Record struct {
	ID       string
	Text     string
	Chars    int
	Width    float64
	Height   float64
	Area     float64
	CharSize float64
	PosX     float64
	PosY     float64
	Aspect   float64
	Layout   string
}

var urlPattern = regexp.MustCompile(`https?://[\w/:%#$&?()~.=+\-]+`)

// ParagraphID formats the composite key that joins a paragraph across every
// downstream stage. Zero-padding keeps lexicographic order equal to reading
// order.
func ParagraphID(docID string, page, para int) string {
	return fmt.Sprintf("%s-%03d-%03d", docID, page, para)
}

// Extract computes the feature record for one paragraph. Double quotes are
// removed so the text survives CSV quoting, and URLs are removed so they are
// never narrated.
func Extract(id string, para ocr.Paragraph) Record {
	text := para.Text()
	text = strings.ReplaceAll(text, `"`, "")
	text = urlPattern.ReplaceAllString(text, "")

	rec := Record{ID: id, Text: text, Chars: utf8.RuneCountInString(text), Layout: "v"}

	verts := para.Vertices()
	if len(verts) == 0 {
		return rec
	}
	minX, minY := verts[0].X, verts[0].Y
	maxX, maxY := minX, minY
	for _, v := range verts[1:] {
		minX = min(minX, v.X)
		minY = min(minY, v.Y)
		maxX = max(maxX, v.X)
		maxY = max(maxY, v.Y)
	}
	rec.Width = maxX - minX
	rec.Height = maxY - minY
	rec.Area = rec.Width * rec.Height
	if rec.Chars > 0 {
		rec.CharSize = rec.Area / float64(rec.Chars)
	}
	rec.PosX = rec.Width/2 + minX
	rec.PosY = rec.Height/2 + minY
	if rec.Height > 0 {
		rec.Aspect = rec.Width / rec.Height
	}
	if rec.Aspect > 1 {
		rec.Layout = "h"
	}
	return rec
}

// FromDocument walks an OCR artifact and extracts a record per paragraph of
// every TEXT block. The page counter advances once per response group and
// the paragraph counter restarts with it, matching the artifact layout the
// OCR engines produce.
func FromDocument(doc ocr.Document, docID string, firstPage int) []Record {
	var records []Record
	page := firstPage
	for _, g := range doc.Groups {
		para := 0
		if g.Annotation != nil {
			for _, p := range g.Annotation.Pages {
				for _, b := range p.Blocks {
					if b.BlockType != ocr.BlockText {
						continue
					}
					for _, pr := range b.Paragraphs {
						records = append(records, Extract(ParagraphID(docID, page, para), pr))
						para++
					}
				}
			}
		}
		page++
	}
	return records
}

// EncodeCSV renders records as a feature table: quoted text, numeric fields
// fixed at six decimal places.
func EncodeCSV(records []Record) []byte {
	var b strings.Builder
	b.WriteString(CSVHeader)
	b.WriteByte('\n')
	for _, r := range records {
		fmt.Fprintf(&b, "%s,\"%s\",%d,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%s\n",
			r.ID, r.Text, r.Chars, r.Width, r.Height, r.Area, r.CharSize,
			r.PosX, r.PosY, r.Aspect, r.Layout)
	}
	return []byte(b.String())
}
