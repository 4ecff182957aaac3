package speech

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"papervoice/reconstruct"
	"papervoice/storage"
)

func TestMarkup(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		label reconstruct.Label
		want  string
	}{
		{
			name:  "body becomes a paragraph",
			text:  "Plain prose.",
			label: reconstruct.LabelBody,
			want:  "<p>Plain prose.</p>\n",
		},
		{
			name:  "header gets long pauses",
			text:  "Chapter 1",
			label: reconstruct.LabelHeader,
			want:  `<break time="2s"/>Chapter 1<break time="2s"/>` + "\n",
		},
		{
			name:  "caption gets short pauses",
			text:  "Fig. 3",
			label: reconstruct.LabelCaption,
			want:  `<break time="1.5s"/>Fig. 3<break time="1.5s"/>` + "\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Markup(tt.text, tt.label); got != tt.want {
				t.Fatalf("Markup() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildChunksEmptyOrder(t *testing.T) {
	if got := BuildChunks(nil, nil, nil); got != nil {
		t.Fatalf("BuildChunks() = %v, want nil", got)
	}
}

func TestBuildChunksSingleUnit(t *testing.T) {
	order := []string{"doc1-001-000"}
	text := map[string]string{"doc1-001-000": "Hello."}
	labels := map[string]reconstruct.Label{"doc1-001-000": reconstruct.LabelBody}

	chunks := BuildChunks(order, text, labels)
	if len(chunks) != 1 {
		t.Fatalf("len(chunks) = %d, want 1", len(chunks))
	}
	if chunks[0].ID != "doc1-001-000" {
		t.Fatalf("chunks[0].ID = %q, want %q", chunks[0].ID, "doc1-001-000")
	}
	want := "<speak>\n<p>Hello.</p>\n</speak>\n"
	if chunks[0].SSML != want {
		t.Fatalf("chunks[0].SSML = %q, want %q", chunks[0].SSML, want)
	}
}

func TestBuildChunksSplitsAtLimit(t *testing.T) {
	// Five kilochar paragraphs: four fit under the cap, the fifth spills
	// into a second chunk.
	para := strings.Repeat("a", 1000)
	order := []string{"d-001-000", "d-001-001", "d-001-002", "d-001-003", "d-001-004"}
	text := make(map[string]string)
	labels := make(map[string]reconstruct.Label)
	for _, id := range order {
		text[id] = para
		labels[id] = reconstruct.LabelBody
	}

	chunks := BuildChunks(order, text, labels)
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}
	if chunks[0].ID != "d-001-003" {
		t.Fatalf("chunks[0].ID = %q, want %q", chunks[0].ID, "d-001-003")
	}
	if chunks[1].ID != "d-001-004" {
		t.Fatalf("chunks[1].ID = %q, want %q", chunks[1].ID, "d-001-004")
	}
	for i, c := range chunks {
		body := strings.TrimSuffix(strings.TrimPrefix(c.SSML, "<speak>\n"), "</speak>\n")
		if len(body) > MaxChunkChars {
			t.Fatalf("chunk %d body length = %d, want <= %d", i, len(body), MaxChunkChars)
		}
	}
}

func TestBuildChunksPreservesText(t *testing.T) {
	order := []string{"d-001-000", "d-001-001", "d-001-002"}
	text := map[string]string{
		"d-001-000": "Introduction",
		"d-001-001": "Body prose here.",
		"d-001-002": "Figure 1 caption",
	}
	labels := map[string]reconstruct.Label{
		"d-001-000": reconstruct.LabelHeader,
		"d-001-001": reconstruct.LabelBody,
		"d-001-002": reconstruct.LabelCaption,
	}

	var all strings.Builder
	for _, c := range BuildChunks(order, text, labels) {
		all.WriteString(stripTags(c.SSML))
	}
	want := "IntroductionBody prose here.Figure 1 caption"
	if all.String() != want {
		t.Fatalf("stripped chunk text = %q, want %q", all.String(), want)
	}
}

func stripTags(ssml string) string {
	s := ssml
	for _, tag := range []string{"<speak>", "</speak>", "<p>", "</p>", sectionBreak, captionBreak, "\n"} {
		s = strings.ReplaceAll(s, tag, "")
	}
	return s
}

type fakeSynth struct {
	calls    int
	failures int
	audio    []byte
}

func (f *fakeSynth) Name() string { return "fake" }

func (f *fakeSynth) Synthesize(_ context.Context, ssml string) ([]byte, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("synthesis backend unavailable")
	}
	return f.audio, nil
}

func TestGenerateWritesChunkAudio(t *testing.T) {
	store := storage.NewMemory()
	synth := &fakeSynth{audio: []byte("mp3-bytes")}
	gen := &Generator{Synth: synth, Store: store}

	chunks := []Chunk{
		{ID: "d-001-002", SSML: "<speak>\n<p>one</p>\n</speak>\n"},
		{ID: "d-001-005", SSML: "<speak>\n<p>two</p>\n</speak>\n"},
	}
	names, err := gen.Generate(context.Background(), chunks)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	want := []string{"d-001-002.mp3", "d-001-005.mp3"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("Generate() = %v, want %v", names, want)
	}
	for _, name := range want {
		data, err := store.Read(context.Background(), name)
		if err != nil {
			t.Fatalf("Read(%q) error = %v", name, err)
		}
		if string(data) != "mp3-bytes" {
			t.Fatalf("Read(%q) = %q, want %q", name, data, "mp3-bytes")
		}
	}
}

func TestGenerateSkipsExistingArtifacts(t *testing.T) {
	store := storage.NewMemory()
	if err := store.Write(context.Background(), "d-001-002.mp3", []byte("earlier"), "audio/mpeg"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	synth := &fakeSynth{audio: []byte("fresh")}
	gen := &Generator{Synth: synth, Store: store}

	names, err := gen.Generate(context.Background(), []Chunk{{ID: "d-001-002", SSML: "<speak></speak>"}})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !reflect.DeepEqual(names, []string{"d-001-002.mp3"}) {
		t.Fatalf("Generate() = %v, want [d-001-002.mp3]", names)
	}
	if synth.calls != 0 {
		t.Fatalf("synth.calls = %d, want 0", synth.calls)
	}
	data, _ := store.Read(context.Background(), "d-001-002.mp3")
	if string(data) != "earlier" {
		t.Fatalf("existing artifact overwritten: got %q", data)
	}
}

func TestGenerateRetriesOnce(t *testing.T) {
	store := storage.NewMemory()
	synth := &fakeSynth{failures: 1, audio: []byte("ok")}
	gen := &Generator{Synth: synth, Store: store}

	names, err := gen.Generate(context.Background(), []Chunk{{ID: "d-001-000", SSML: "<speak></speak>"}})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if synth.calls != 2 {
		t.Fatalf("synth.calls = %d, want 2", synth.calls)
	}
	if !reflect.DeepEqual(names, []string{"d-001-000.mp3"}) {
		t.Fatalf("Generate() = %v, want [d-001-000.mp3]", names)
	}
}

func TestGenerateFailsAfterSecondError(t *testing.T) {
	store := storage.NewMemory()
	synth := &fakeSynth{failures: 2}
	gen := &Generator{Synth: synth, Store: store}

	_, err := gen.Generate(context.Background(), []Chunk{{ID: "d-001-000", SSML: "<speak></speak>"}})
	if err == nil {
		t.Fatal("Generate() error = nil, want synthesis failure")
	}
	if synth.calls != 2 {
		t.Fatalf("synth.calls = %d, want 2", synth.calls)
	}
	if ok, _ := store.Exists(context.Background(), "d-001-000.mp3"); ok {
		t.Fatal("artifact written despite synthesis failure")
	}
}
