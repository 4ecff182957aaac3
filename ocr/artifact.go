package ocr

import (
	"encoding/json"
	"fmt"
)

// ParseArtifact decodes a stored OCR output artifact into a Document.
func ParseArtifact(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode ocr artifact: %w", err)
	}
	return doc, nil
}

// EncodeArtifact renders a Document in the artifact format ParseArtifact
// accepts, so local engines can feed the same downstream stages as remote
// ones.
func EncodeArtifact(doc Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode ocr artifact: %w", err)
	}
	return data, nil
}
