// Package speech turns reconstructed narration into size-bounded SSML chunks
// and drives a synthesizer over them. The chunk is the unit of synthesis:
// exactly one audio artifact exists per chunk.
package speech

import (
	"context"
	"fmt"

	"papervoice/observability"
	"papervoice/reconstruct"
	"papervoice/storage"
)

// MaxChunkChars caps the SSML body of one synthesis request. The provider
// limit is 5000 bytes; the margin absorbs the envelope.
const MaxChunkChars = 4500

const (
	sectionBreak = `<break time="2s"/>`
	captionBreak = `<break time="1.5s"/>`
)

// Chunk is one synthesis request: the SSML document and the id of the last
// narration unit it contains, which names the chunk's audio artifact.
type Chunk struct {
	ID   string
	SSML string
}

// Markup wraps one narration unit in its label's pacing tags: body text
// becomes a paragraph, captions get a short pause on both sides, headers a
// longer one.
func Markup(text string, label reconstruct.Label) string {
	switch label {
	case reconstruct.LabelHeader:
		return sectionBreak + text + sectionBreak + "\n"
	case reconstruct.LabelCaption:
		return captionBreak + text + captionBreak + "\n"
	default:
		return "<p>" + text + "</p>\n"
	}
}

// Envelope wraps an accumulated SSML body in the single top-level speak tag
// a synthesis request requires.
func Envelope(body string) string {
	return "<speak>\n" + body + "</speak>\n"
}

// BuildChunks greedily packs narration units into chunks. A chunk closes
// before adding markup that would push its body past MaxChunkChars, even if
// the next unit alone would fit; the closed chunk is owned by the last id
// placed in it. Unit order is preserved exactly.
func BuildChunks(order []string, text map[string]string, labels map[string]reconstruct.Label) []Chunk {
	if len(order) == 0 {
		return nil
	}
	var chunks []Chunk
	ssml := ""
	prev := ""
	for _, id := range order {
		seg := Markup(text[id], labels[id])
		if ssml != "" && len(ssml)+len(seg) > MaxChunkChars {
			chunks = append(chunks, Chunk{ID: prev, SSML: Envelope(ssml)})
			ssml = ""
		}
		ssml += seg
		prev = id
	}
	return append(chunks, Chunk{ID: prev, SSML: Envelope(ssml)})
}

// Synthesizer converts one SSML document to encoded audio.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, ssml string) ([]byte, error)
}

// Generator synthesizes chunk audio into storage. Submission is at most once
// per logical chunk: an existing artifact short-circuits synthesis, so a
// redelivered trigger never double-submits.
type Generator struct {
	Synth  Synthesizer
	Store  storage.Store
	Logger observability.Logger
}

// Generate produces the audio artifact for every chunk, in order, and
// returns the artifact names. A failed synthesis is retried exactly once;
// a second failure aborts, because a missing chunk would corrupt the
// document's audio ordering.
func (g *Generator) Generate(ctx context.Context, chunks []Chunk) ([]string, error) {
	logger := g.Logger
	if logger == nil {
		logger = observability.NopLogger{}
	}
	names := make([]string, 0, len(chunks))
	for _, c := range chunks {
		name := c.ID + ".mp3"
		ok, err := g.Store.Exists(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("stat chunk %s: %w", name, err)
		}
		if ok {
			logger.Info("chunk audio already present", observability.String("chunk", name))
			names = append(names, name)
			continue
		}
		audio, err := g.Synth.Synthesize(ctx, c.SSML)
		if err != nil {
			logger.Warn("retrying synthesis",
				observability.String("chunk", c.ID),
				observability.Error("err", err))
			audio, err = g.Synth.Synthesize(ctx, c.SSML)
			if err != nil {
				return nil, fmt.Errorf("synthesize chunk %s: %w", c.ID, err)
			}
		}
		if err := g.Store.Write(ctx, name, audio, "audio/mpeg"); err != nil {
			return nil, fmt.Errorf("write chunk %s: %w", name, err)
		}
		logger.Info("chunk audio saved",
			observability.String("chunk", name),
			observability.Int("ssml_bytes", len(c.SSML)))
		names = append(names, name)
	}
	return names, nil
}
