// Package pipeline routes storage artifacts through the document narration
// stages. The filename is the protocol: a PDF starts recognition, a
// recognition JSON produces features and a prediction run, and a prediction
// result CSV drives narration or label publication. Every handler tolerates
// redelivered events.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"papervoice/audio"
	"papervoice/classify"
	"papervoice/feature"
	"papervoice/observability"
	"papervoice/ocr"
	"papervoice/reconstruct"
	"papervoice/speech"
	"papervoice/state"
	"papervoice/storage"
)

// ErrNotVisible reports that an artifact named by a trigger never became
// readable within the polling budget.
var ErrNotVisible = errors.New("pipeline: artifact not visible")

var (
	ocrArtifactPattern = regexp.MustCompile(`(.*)\.output-([0-9]+)-.*`)
	featureRowPattern  = regexp.MustCompile(`^([^,]*-[0-9]+-[0-9]+),.*$`)
	pageSuffixPattern  = regexp.MustCompile(`-[0-9]+$`)
)

// Event is one artifact-created notification from object storage.
type Event struct {
	Bucket string
	Name   string
}

// Rasterizer renders a PDF into one image per page. Used only in
// annotation mode.
type Rasterizer interface {
	Pages(ctx context.Context, pdf []byte) ([][]byte, error)
}

// Pipeline wires the stage handlers to their collaborators. All clients are
// injected so tests can substitute fakes; the zero value of the optional
// fields (State, Raster, Logger, Tracer) disables them.
type Pipeline struct {
	Bucket     string
	Store      storage.Store
	OCR        ocr.AsyncEngine
	Classifier classify.Classifier
	Synth      speech.Synthesizer
	State      state.Store

	// Annotate switches the prediction-result handler from narration to
	// labeled-CSV publication, and publishes page images after OCR
	// submission.
	Annotate bool
	Raster   Rasterizer

	Logger observability.Logger
	Tracer observability.Tracer

	// Visibility polling knobs; zero values pick the defaults.
	WaitAttempts int
	WaitInitial  time.Duration
	Sleep        func(time.Duration)
}

// Handle dispatches one storage event to its stage. Artifacts outside the
// naming protocol are ignored, not failed: the bucket also holds the
// intermediates this pipeline itself writes.
func (p *Pipeline) Handle(ctx context.Context, ev Event) error {
	name := strings.ToLower(ev.Name)
	switch {
	case strings.HasSuffix(name, ".pdf"):
		return p.submitOCR(ctx, ev.Name)
	case strings.HasSuffix(name, ".json"):
		return p.extractFeatures(ctx, ev.Name)
	case strings.HasSuffix(name, "tables_1.csv"):
		if p.Annotate {
			return p.generateLabels(ctx, ev.Name)
		}
		return p.generateSpeech(ctx, ev.Name)
	}
	p.logger().Debug("ignoring artifact outside naming protocol",
		observability.String("artifact", ev.Name))
	return nil
}

// submitOCR starts asynchronous recognition for an uploaded PDF. The engine
// writes its JSON artifacts under the document prefix; their arrival
// triggers the next stage.
func (p *Pipeline) submitOCR(ctx context.Context, name string) (err error) {
	ctx, span := p.tracer().StartSpan(ctx, "pipeline.submit_ocr")
	span.SetTag("artifact", name)
	defer func() { finish(span, err) }()

	if err := p.waitVisible(ctx, name); err != nil {
		return err
	}
	pdfID := pdfIDOf(name)
	job, err := p.OCR.Start(ctx, ocr.Request{
		InputURI:     storage.URI(p.Bucket, name),
		OutputPrefix: storage.URI(p.Bucket, pdfID+"."),
		BatchSize:    100,
	})
	if err != nil {
		return fmt.Errorf("start ocr for %s: %w", name, err)
	}
	p.logger().Info("ocr started",
		observability.String("pdf", name),
		observability.String("engine", p.OCR.Name()),
		observability.String("job", job.ID()))
	p.transition(ctx, pdfID, state.StageOCRSubmitted, name)

	if p.Annotate {
		return p.publishPageImages(ctx, name, pdfID)
	}
	return nil
}

// extractFeatures converts one recognition JSON into a feature CSV and
// submits it for classification. The JSON is deleted once the CSV is
// written; the feature CSV is deleted once prediction finishes, unless
// annotation mode still needs it.
func (p *Pipeline) extractFeatures(ctx context.Context, name string) (err error) {
	ctx, span := p.tracer().StartSpan(ctx, "pipeline.extract_features")
	span.SetTag("artifact", name)
	defer func() { finish(span, err) }()

	m := ocrArtifactPattern.FindStringSubmatch(name)
	if m == nil {
		p.logger().Warn("ignoring recognition artifact with unexpected name",
			observability.String("artifact", name))
		return nil
	}
	pdfID := m[1]
	firstPage, err := strconv.Atoi(m[2])
	if err != nil {
		return fmt.Errorf("parse page number in %s: %w", name, err)
	}

	if err := p.waitVisible(ctx, name); err != nil {
		return err
	}
	data, err := p.Store.Read(ctx, name)
	if err != nil {
		return fmt.Errorf("read recognition artifact %s: %w", name, err)
	}
	doc, err := ocr.ParseArtifact(data)
	if err != nil {
		return fmt.Errorf("parse recognition artifact %s: %w", name, err)
	}

	records := feature.FromDocument(doc, pdfID, firstPage)
	featureName := fmt.Sprintf("%s-%03d-features.csv", pdfID, firstPage)
	if err := p.Store.Write(ctx, featureName, feature.EncodeCSV(records), "text/csv"); err != nil {
		return fmt.Errorf("write feature csv %s: %w", featureName, err)
	}
	p.logger().Info("feature csv saved",
		observability.String("file", featureName),
		observability.Int("paragraphs", len(records)))
	if err := p.Store.Delete(ctx, name); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete recognition artifact %s: %w", name, err)
	}
	p.transition(ctx, pdfID, state.StageFeaturesExtracted, featureName)

	job, err := p.Classifier.Submit(ctx, classify.Request{
		InputURI:     storage.URI(p.Bucket, featureName),
		OutputPrefix: "gs://" + p.Bucket,
	})
	if err != nil {
		return fmt.Errorf("submit prediction for %s: %w", featureName, err)
	}
	p.logger().Info("prediction started",
		observability.String("file", featureName),
		observability.String("job", job.ID()))
	p.transition(ctx, pdfID, state.StagePredictionSubmitted, featureName)

	if err := p.awaitPrediction(ctx, job); err != nil {
		return fmt.Errorf("prediction for %s: %w", featureName, err)
	}
	if !p.Annotate {
		if err := p.Store.Delete(ctx, featureName); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("delete feature csv %s: %w", featureName, err)
		}
	}
	return nil
}

// generateSpeech turns one prediction result into chunked synthesis and a
// final audio file, then clears the prediction folder.
func (p *Pipeline) generateSpeech(ctx context.Context, name string) (err error) {
	ctx, span := p.tracer().StartSpan(ctx, "pipeline.generate_speech")
	span.SetTag("artifact", name)
	defer func() { finish(span, err) }()

	res, err := p.loadPrediction(ctx, name)
	if err != nil {
		return err
	}

	chunks := speech.BuildChunks(res.Order, res.Text, res.Labels)
	gen := &speech.Generator{Synth: p.Synth, Store: p.Store, Logger: p.Logger}
	chunkNames, err := gen.Generate(ctx, chunks)
	if err != nil {
		return fmt.Errorf("generate audio for %s: %w", res.BatchID, err)
	}

	asm := &audio.Assembler{Store: p.Store, Logger: p.Logger}
	final, err := asm.Assemble(ctx, res.BatchID, chunkNames)
	if err != nil {
		return fmt.Errorf("assemble audio for %s: %w", res.BatchID, err)
	}
	if err := p.deleteFolder(ctx, name); err != nil {
		return err
	}
	p.transition(ctx, docIDOf(res.BatchID), state.StageNarrationComplete, final)
	return nil
}

// generateLabels publishes the feature rows of one batch with their
// predicted labels appended, for annotation review.
func (p *Pipeline) generateLabels(ctx context.Context, name string) (err error) {
	ctx, span := p.tracer().StartSpan(ctx, "pipeline.generate_labels")
	span.SetTag("artifact", name)
	defer func() { finish(span, err) }()

	res, err := p.loadPrediction(ctx, name)
	if err != nil {
		return err
	}

	featureName := res.BatchID + "-features.csv"
	featureData, err := p.Store.Read(ctx, featureName)
	if err != nil {
		return fmt.Errorf("read feature csv %s: %w", featureName, err)
	}

	var buf bytes.Buffer
	// Only the first page's file carries the header so the per-page files
	// concatenate into one training CSV.
	if strings.HasSuffix(res.BatchID, "001") {
		buf.WriteString(feature.CSVHeader + ",label\n")
	}
	for _, line := range strings.Split(string(featureData), "\n") {
		m := featureRowPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		label, ok := res.Labels[m[1]]
		if !ok {
			p.logger().Warn("feature row without prediction",
				observability.String("id", m[1]))
			continue
		}
		buf.WriteString(line + "," + string(label) + "\n")
	}

	labelsName := res.BatchID + "-labels.csv"
	if err := p.Store.Write(ctx, labelsName, buf.Bytes(), "text/csv"); err != nil {
		return fmt.Errorf("write labels csv %s: %w", labelsName, err)
	}
	if err := p.Store.MakePublic(ctx, labelsName); err != nil {
		return fmt.Errorf("publish labels csv %s: %w", labelsName, err)
	}
	p.logger().Info("labels csv published", observability.String("file", labelsName))

	if err := p.Store.Delete(ctx, featureName); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete feature csv %s: %w", featureName, err)
	}
	if err := p.deleteFolder(ctx, name); err != nil {
		return err
	}
	p.transition(ctx, docIDOf(res.BatchID), state.StageLabelsPublished, labelsName)
	return nil
}

// loadPrediction waits for the result CSV and reconstructs narration order
// from it.
func (p *Pipeline) loadPrediction(ctx context.Context, name string) (reconstruct.Result, error) {
	if err := p.waitVisible(ctx, name); err != nil {
		return reconstruct.Result{}, err
	}
	data, err := p.Store.Read(ctx, name)
	if err != nil {
		return reconstruct.Result{}, fmt.Errorf("read prediction result %s: %w", name, err)
	}
	res, err := reconstruct.Parse(bytes.NewReader(data))
	if err != nil {
		return reconstruct.Result{}, fmt.Errorf("parse prediction result %s: %w", name, err)
	}
	return res, nil
}

// publishPageImages renders the PDF to PNGs and makes them public, so the
// annotation UI can show each page next to its rows.
func (p *Pipeline) publishPageImages(ctx context.Context, name, pdfID string) error {
	if p.Raster == nil {
		return errors.New("annotation mode requires a rasterizer")
	}
	pdf, err := p.Store.Read(ctx, name)
	if err != nil {
		return fmt.Errorf("read pdf %s: %w", name, err)
	}
	pages, err := p.Raster.Pages(ctx, pdf)
	if err != nil {
		return fmt.Errorf("rasterize %s: %w", name, err)
	}
	for i, png := range pages {
		imageName := fmt.Sprintf("%s-images/%03d.png", pdfID, i+1)
		if err := p.Store.Write(ctx, imageName, png, "image/png"); err != nil {
			return fmt.Errorf("write page image %s: %w", imageName, err)
		}
		if err := p.Store.MakePublic(ctx, imageName); err != nil {
			return fmt.Errorf("publish page image %s: %w", imageName, err)
		}
	}
	p.logger().Info("page images published",
		observability.String("pdf", name),
		observability.Int("pages", len(pages)))
	return nil
}

// deleteFolder removes the prediction result folder the trigger file lives
// in. A result file without a folder component deletes just itself.
func (p *Pipeline) deleteFolder(ctx context.Context, name string) error {
	prefix := name
	if i := strings.Index(name, "/"); i >= 0 {
		prefix = name[:i]
	}
	names, err := p.Store.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("list prediction folder %s: %w", prefix, err)
	}
	if err := p.Store.DeleteBatch(ctx, names); err != nil {
		return fmt.Errorf("delete prediction folder %s: %w", prefix, err)
	}
	return nil
}

// waitVisible polls for the triggering artifact with exponential backoff.
// Creation events can arrive before the object is readable.
func (p *Pipeline) waitVisible(ctx context.Context, name string) error {
	attempts := p.WaitAttempts
	if attempts <= 0 {
		attempts = 6
	}
	delay := p.WaitInitial
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	for i := 0; i < attempts; i++ {
		ok, err := p.Store.Exists(ctx, name)
		if err != nil {
			return fmt.Errorf("stat %s: %w", name, err)
		}
		if ok {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		sleep(delay)
		delay *= 2
	}
	return fmt.Errorf("%w: %s after %d attempts", ErrNotVisible, name, attempts)
}

// awaitPrediction polls the classification job until it settles. The
// interval doubles up to a cap; only context cancellation bounds the wait,
// since batch prediction latency is open-ended.
func (p *Pipeline) awaitPrediction(ctx context.Context, job classify.Job) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	delay := 2 * time.Second
	const maxDelay = 30 * time.Second
	for {
		status, err := job.Status(ctx)
		if err != nil {
			return err
		}
		switch status.State {
		case classify.JobDone:
			return nil
		case classify.JobFailed:
			if status.Err != nil {
				return status.Err
			}
			return errors.New("prediction failed")
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		sleep(delay)
		if delay *= 2; delay > maxDelay {
			delay = maxDelay
		}
	}
}

func (p *Pipeline) transition(ctx context.Context, docID string, stage state.Stage, detail string) {
	if p.State == nil {
		return
	}
	if err := p.State.Transition(ctx, docID, stage, detail); err != nil {
		p.logger().Warn("state transition failed",
			observability.String("doc", docID),
			observability.String("stage", string(stage)),
			observability.Error("err", err))
	}
}

func (p *Pipeline) logger() observability.Logger {
	if p.Logger == nil {
		return observability.NopLogger{}
	}
	return p.Logger
}

func (p *Pipeline) tracer() observability.Tracer {
	if p.Tracer == nil {
		return observability.NopTracer()
	}
	return p.Tracer
}

func finish(span observability.Span, err error) {
	if err != nil {
		span.SetError(err)
	}
	span.Finish()
}

// pdfIDOf derives the short document id from the PDF name: the extension is
// dropped and the first four characters identify the document.
func pdfIDOf(name string) string {
	id := strings.ReplaceAll(name, ".pdf", "")
	if len(id) > 4 {
		id = id[:4]
	}
	return id
}

// docIDOf strips the page component from a batch id.
func docIDOf(batchID string) string {
	return pageSuffixPattern.ReplaceAllString(batchID, "")
}
