package local

import (
	"context"
	"testing"

	"papervoice/ocr"
	"papervoice/storage"
)

type fakeSync struct{ calls int }

func (f *fakeSync) Name() string { return "fake" }

func (f *fakeSync) Recognize(_ context.Context, in ocr.Input) (ocr.Result, error) {
	f.calls++
	return ocr.Result{
		InputID:   in.ID,
		PlainText: "page",
		Page: ocr.Page{Blocks: []ocr.Block{{
			BlockType: ocr.BlockText,
			Paragraphs: []ocr.Paragraph{{
				BoundingBox: &ocr.BoundingPoly{NormalizedVertices: []ocr.Vertex{{X: 0.1, Y: 0.1}, {X: 0.9, Y: 0.2}}},
				Words:       []ocr.Word{{Symbols: []ocr.Symbol{{Text: "p"}}}},
			}},
		}}},
	}, nil
}

type fakePager struct{ pages int }

func (f fakePager) Pages(context.Context, []byte) ([][]byte, error) {
	out := make([][]byte, f.pages)
	for i := range out {
		out[i] = []byte{0}
	}
	return out, nil
}

func TestObjectNameRequiresBucket(t *testing.T) {
	e := &Engine{Bucket: "bkt"}
	if _, err := e.objectName("gs://other/x.pdf"); err == nil {
		t.Fatalf("expected error for foreign bucket")
	}
	name, err := e.objectName("gs://bkt/doc1.pdf")
	if err != nil || name != "doc1.pdf" {
		t.Fatalf("objectName() = %q, %v", name, err)
	}
}

func TestStartWritesArtifact(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	if err := store.Write(ctx, "doc1.pdf", []byte("%PDF-"), "application/pdf"); err != nil {
		t.Fatalf("seed pdf: %v", err)
	}
	sync := &fakeSync{}
	e := &Engine{
		Sync:   sync,
		Raster: fakePager{pages: 2},
		Store:  store,
		Bucket: "bkt",
	}
	job, err := e.Start(ctx, ocr.Request{
		InputURI:     "gs://bkt/doc1.pdf",
		OutputPrefix: "gs://bkt/doc1.",
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	st, err := job.Status(ctx)
	if err != nil || st.State != ocr.JobStateSucceeded {
		t.Fatalf("job status = %+v, %v", st, err)
	}
	if sync.calls != 2 {
		t.Fatalf("Recognize calls = %d, want 2", sync.calls)
	}
	data, err := store.Read(ctx, "doc1.output-1-2.json")
	if err != nil {
		t.Fatalf("artifact not written: %v", err)
	}
	doc, err := ocr.ParseArtifact(data)
	if err != nil {
		t.Fatalf("artifact not parseable: %v", err)
	}
	if len(doc.Groups) != 2 {
		t.Fatalf("groups = %d, want one per page", len(doc.Groups))
	}
}
