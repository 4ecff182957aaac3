// Package vision implements the asynchronous OCR contract on the Google
// Cloud Vision document-text API. Results are written by the service itself
// as JSON artifacts under the requested output prefix.
package vision

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	visionv1 "google.golang.org/api/vision/v1"

	"papervoice/ocr"
)

const defaultBatchSize = 100

// Engine submits PDFs for asynchronous document text detection.
type Engine struct {
	svc *visionv1.Service
}

// New builds a Vision-backed engine. Credentials resolve through the usual
// application-default chain unless overridden via opts.
func New(ctx context.Context, opts ...option.ClientOption) (*Engine, error) {
	svc, err := visionv1.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create vision service: %w", err)
	}
	return &Engine{svc: svc}, nil
}

func (e *Engine) Name() string { return "vision" }

// Start submits one PDF for recognition and returns a pollable job. The
// output artifacts land under req.OutputPrefix independently of the returned
// job; callers that rely on storage triggers may discard it.
func (e *Engine) Start(ctx context.Context, req ocr.Request) (ocr.Job, error) {
	batch := req.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	call := &visionv1.AsyncBatchAnnotateFilesRequest{
		Requests: []*visionv1.AsyncAnnotateFileRequest{{
			Features: []*visionv1.Feature{{Type: "DOCUMENT_TEXT_DETECTION"}},
			InputConfig: &visionv1.InputConfig{
				GcsSource: &visionv1.GcsSource{Uri: req.InputURI},
				MimeType:  "application/pdf",
			},
			OutputConfig: &visionv1.OutputConfig{
				GcsDestination: &visionv1.GcsDestination{Uri: req.OutputPrefix},
				BatchSize:      batch,
			},
		}},
	}
	op, err := e.svc.Files.AsyncBatchAnnotate(call).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("submit ocr for %s: %w", req.InputURI, err)
	}
	return &job{svc: e.svc, name: op.Name}, nil
}

type job struct {
	svc  *visionv1.Service
	name string
}

func (j *job) ID() string { return j.name }

func (j *job) Status(ctx context.Context) (ocr.JobStatus, error) {
	op, err := j.svc.Operations.Get(j.name).Context(ctx).Do()
	if err != nil {
		return ocr.JobStatus{}, fmt.Errorf("poll operation %s: %w", j.name, err)
	}
	switch {
	case op.Error != nil:
		return ocr.JobStatus{State: ocr.JobStateFailed, Message: op.Error.Message}, nil
	case op.Done:
		return ocr.JobStatus{State: ocr.JobStateSucceeded}, nil
	default:
		return ocr.JobStatus{State: ocr.JobStateRunning}, nil
	}
}

var _ ocr.AsyncEngine = (*Engine)(nil)
