package ocr

// Package ocr defines abstraction layers for plugging OCR providers (a cloud
// document-text API or a local Tesseract install) into the narration
// pipeline. The interfaces are intentionally small and transport-agnostic so
// engines can be backed by native libraries or remote APIs without leaking
// provider-specific concerns into callers. The geometry types mirror the JSON
// artifact format the pipeline stores between stages, so every engine's
// output is interchangeable downstream.
