// Package local adapts a synchronous OCR engine to the asynchronous
// whole-document contract. It rasterizes the PDF, recognizes each page, and
// writes the same JSON artifact a cloud engine would, so downstream stages
// cannot tell the difference.
package local

import (
	"context"
	"fmt"
	"strings"

	"papervoice/observability"
	"papervoice/ocr"
	"papervoice/raster"
	"papervoice/storage"
)

// Pager renders a PDF into per-page images. *raster.Rasterizer implements it.
type Pager interface {
	Pages(ctx context.Context, pdf []byte) ([][]byte, error)
}

// Engine drives a synchronous page engine over a rasterized PDF.
type Engine struct {
	Sync      ocr.Engine
	Raster    Pager
	Store     storage.Store
	Bucket    string
	Languages []string
	// DPI is forwarded to the page engine as a recognition hint.
	DPI    int
	Logger observability.Logger
}

var _ Pager = (*raster.Rasterizer)(nil)

func (e *Engine) Name() string { return "local" }

// Start recognizes the document synchronously and writes one output artifact
// covering all pages. The returned job is already complete.
func (e *Engine) Start(ctx context.Context, req ocr.Request) (ocr.Job, error) {
	logger := e.Logger
	if logger == nil {
		logger = observability.NopLogger{}
	}
	inputName, err := e.objectName(req.InputURI)
	if err != nil {
		return nil, err
	}
	prefix, err := e.objectName(req.OutputPrefix)
	if err != nil {
		return nil, err
	}
	pdf, err := e.Store.Read(ctx, inputName)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", inputName, err)
	}
	pages, err := e.Raster.Pages(ctx, pdf)
	if err != nil {
		return nil, fmt.Errorf("rasterize %s: %w", inputName, err)
	}

	doc := ocr.Document{Groups: make([]ocr.PageGroup, 0, len(pages))}
	for i, img := range pages {
		res, err := e.Sync.Recognize(ctx, ocr.Input{
			ID:        fmt.Sprintf("%s-page-%d", inputName, i),
			Image:     img,
			Format:    "image/png",
			PageIndex: i,
			Languages: e.Languages,
			DPI:       e.DPI,
		})
		if err != nil {
			return nil, fmt.Errorf("recognize page %d of %s: %w", i, inputName, err)
		}
		doc.Groups = append(doc.Groups, ocr.PageGroup{
			Annotation: &ocr.TextAnnotation{Pages: []ocr.Page{res.Page}, Text: res.PlainText},
		})
	}

	data, err := ocr.EncodeArtifact(doc)
	if err != nil {
		return nil, err
	}
	artifact := fmt.Sprintf("%soutput-1-%d.json", prefix, len(pages))
	if err := e.Store.Write(ctx, artifact, data, "application/json"); err != nil {
		return nil, fmt.Errorf("write %s: %w", artifact, err)
	}
	logger.Info("local ocr complete",
		observability.String("artifact", artifact),
		observability.Int("pages", len(pages)))
	return doneJob{id: artifact}, nil
}

// objectName strips the gs://<bucket>/ scheme from a URI produced for the
// cloud engines, leaving the store-relative name.
func (e *Engine) objectName(uri string) (string, error) {
	prefix := "gs://" + e.Bucket + "/"
	if !strings.HasPrefix(uri, prefix) {
		return "", fmt.Errorf("uri %q is outside bucket %q", uri, e.Bucket)
	}
	return strings.TrimPrefix(uri, prefix), nil
}

type doneJob struct{ id string }

func (j doneJob) ID() string { return j.id }
func (j doneJob) Status(context.Context) (ocr.JobStatus, error) {
	return ocr.JobStatus{State: ocr.JobStateSucceeded}, nil
}

var _ ocr.AsyncEngine = (*Engine)(nil)
