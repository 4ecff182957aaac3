// Package state records how far each document has progressed through the
// pipeline. Stages are advisory: handlers remain idempotent on replayed
// triggers, and the record exists so operators can answer "where is this
// document" without trawling storage.
package state

import (
	"context"
	"errors"
	"time"
)

// Stage is a named point in a document's journey to audio.
type Stage string

const (
	StageOCRSubmitted        Stage = "ocr_submitted"
	StageFeaturesExtracted   Stage = "features_extracted"
	StagePredictionSubmitted Stage = "prediction_submitted"
	StageNarrationComplete   Stage = "narration_complete"
	StageLabelsPublished     Stage = "labels_published"
)

// ErrNotFound is returned by Get for a document with no recorded stage.
var ErrNotFound = errors.New("state: document not found")

// Record is the last recorded stage of one document.
type Record struct {
	DocID     string
	Stage     Stage
	Detail    string
	UpdatedAt time.Time
}

// Store persists document stage records.
type Store interface {
	// Transition records that the document reached the stage, overwriting
	// any earlier record. Detail carries the artifact that drove the
	// transition.
	Transition(ctx context.Context, docID string, stage Stage, detail string) error
	// Get returns the document's last recorded stage.
	Get(ctx context.Context, docID string) (Record, error)
}
