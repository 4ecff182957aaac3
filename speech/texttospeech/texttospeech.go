// Package texttospeech adapts the Cloud Text-to-Speech API to the
// speech.Synthesizer contract.
package texttospeech

import (
	"context"
	"encoding/base64"
	"fmt"

	texttospeechv1 "google.golang.org/api/texttospeech/v1"

	"papervoice/speech"
)

// Defaults for the narration voice.
const (
	DefaultLanguage = "ja-JP"
	DefaultGender   = "FEMALE"
	DefaultRate     = 1.5
)

// Synthesizer issues synchronous synthesis requests and returns MP3 audio.
type Synthesizer struct {
	svc      *texttospeechv1.Service
	language string
	gender   string
	rate     float64
}

// Option adjusts the synthesizer's voice selection.
type Option func(*Synthesizer)

// WithVoice overrides the narration language and gender.
func WithVoice(language, gender string) Option {
	return func(s *Synthesizer) {
		s.language = language
		s.gender = gender
	}
}

// WithSpeakingRate overrides the narration speed.
func WithSpeakingRate(rate float64) Option {
	return func(s *Synthesizer) { s.rate = rate }
}

// New wraps an authenticated Text-to-Speech service.
func New(svc *texttospeechv1.Service, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		svc:      svc,
		language: DefaultLanguage,
		gender:   DefaultGender,
		rate:     DefaultRate,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Synthesizer) Name() string { return "cloud-texttospeech" }

// Synthesize renders one SSML document to MP3 bytes.
func (s *Synthesizer) Synthesize(ctx context.Context, ssml string) ([]byte, error) {
	req := &texttospeechv1.SynthesizeSpeechRequest{
		Input: &texttospeechv1.SynthesisInput{Ssml: ssml},
		Voice: &texttospeechv1.VoiceSelectionParams{
			LanguageCode: s.language,
			SsmlGender:   s.gender,
		},
		AudioConfig: &texttospeechv1.AudioConfig{
			AudioEncoding: "MP3",
			SpeakingRate:  s.rate,
		},
	}
	resp, err := s.svc.Text.Synthesize(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("decode audio content: %w", err)
	}
	return audio, nil
}

var _ speech.Synthesizer = (*Synthesizer)(nil)
