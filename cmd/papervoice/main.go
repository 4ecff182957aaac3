// Command papervoice runs one pipeline stage for an artifact in the
// document bucket. It is the manual counterpart of the storage trigger:
// point it at an object name and it dispatches the same handler the event
// would have.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	automlv1beta1 "google.golang.org/api/automl/v1beta1"
	texttospeechv1 "google.golang.org/api/texttospeech/v1"
	visionv1 "google.golang.org/api/vision/v1"

	"papervoice/classify"
	classifyautoml "papervoice/classify/automl"
	"papervoice/observability"
	"papervoice/ocr"
	ocrlocal "papervoice/ocr/local"
	"papervoice/ocr/tesseract"
	ocrvision "papervoice/ocr/vision"
	"papervoice/pipeline"
	"papervoice/raster"
	speechtts "papervoice/speech/texttospeech"
	"papervoice/state"
	statepg "papervoice/state/postgres"
	"papervoice/storage"
	"papervoice/storage/gcs"
)

type options struct {
	bucket    string
	name      string
	engine    string
	model     string
	languages string
	dpi       int
	maxWidth  int
	annotate  bool
	verbose   bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "papervoice: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "papervoice: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: papervoice [flags] <object-name>\n")
		flag.PrintDefaults()
	}
	bucket := flag.String("bucket", "", "Document bucket (defaults to $PAPERVOICE_BUCKET)")
	engine := flag.String("engine", "vision", "OCR engine: vision or tesseract")
	model := flag.String("model", "", "AutoML model resource name (defaults to $PAPERVOICE_MODEL)")
	languages := flag.String("languages", "jpn", "Comma-separated tesseract language codes")
	dpi := flag.Int("dpi", 100, "Render resolution for local OCR and page images")
	maxWidth := flag.Int("max-width", 1600, "Maximum page image width in pixels, 0 to disable scaling")
	annotate := flag.Bool("annotate", false, "Publish labeled CSVs and page images instead of audio")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return options{}, fmt.Errorf("missing object name")
	}
	opts.name = flag.Arg(0)
	opts.bucket = *bucket
	opts.engine = *engine
	opts.model = *model
	opts.languages = *languages
	opts.dpi = *dpi
	opts.maxWidth = *maxWidth
	opts.annotate = *annotate
	opts.verbose = *verbose

	// .env is optional; explicit environment wins either way.
	_ = godotenv.Load()
	if opts.bucket == "" {
		opts.bucket = os.Getenv("PAPERVOICE_BUCKET")
	}
	if opts.bucket == "" {
		return options{}, fmt.Errorf("bucket not set: pass -bucket or set PAPERVOICE_BUCKET")
	}
	if opts.model == "" {
		opts.model = os.Getenv("PAPERVOICE_MODEL")
	}
	return opts, nil
}

func run(opts options) error {
	ctx := context.Background()

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := observability.NewSlog(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	store, err := gcs.New(ctx, opts.bucket)
	if err != nil {
		return fmt.Errorf("connect storage: %w", err)
	}

	engine, err := buildEngine(ctx, opts, store, logger)
	if err != nil {
		return err
	}

	classifier, err := buildClassifier(ctx, opts.model)
	if err != nil {
		return err
	}

	ttsService, err := texttospeechv1.NewService(ctx)
	if err != nil {
		return fmt.Errorf("connect text-to-speech: %w", err)
	}
	synth := speechtts.New(ttsService)

	stateStore, err := buildStateStore(ctx, logger)
	if err != nil {
		return err
	}

	p := &pipeline.Pipeline{
		Bucket:     opts.bucket,
		Store:      store,
		OCR:        engine,
		Classifier: classifier,
		Synth:      synth,
		State:      stateStore,
		Annotate:   opts.annotate,
		Raster:     &raster.Rasterizer{DPI: opts.dpi, MaxWidth: opts.maxWidth},
		Logger:     logger,
		Tracer:     observability.NopTracer(),
	}
	return p.Handle(ctx, pipeline.Event{Bucket: opts.bucket, Name: opts.name})
}

func buildEngine(ctx context.Context, opts options, store storage.Store, logger observability.Logger) (ocr.AsyncEngine, error) {
	switch opts.engine {
	case "vision":
		engine, err := ocrvision.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("connect vision: %w", err)
		}
		return engine, nil
	case "tesseract":
		return &ocrlocal.Engine{
			Sync:      tesseract.New(),
			Raster:    &raster.Rasterizer{DPI: opts.dpi},
			Store:     store,
			Bucket:    opts.bucket,
			Languages: strings.Split(opts.languages, ","),
			DPI:       opts.dpi,
			Logger:    logger,
		}, nil
	default:
		return nil, fmt.Errorf("unknown OCR engine %q", opts.engine)
	}
}

func buildClassifier(ctx context.Context, model string) (classify.Classifier, error) {
	if model == "" {
		return nil, fmt.Errorf("model not set: pass -model or set PAPERVOICE_MODEL")
	}
	svc, err := automlv1beta1.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect automl: %w", err)
	}
	return classifyautoml.New(svc, model), nil
}

// buildStateStore picks Postgres when a DSN is configured and falls back to
// the in-process store otherwise, so single-shot runs work without a
// database.
func buildStateStore(ctx context.Context, logger observability.Logger) (state.Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Debug("DATABASE_URL not set, tracking state in memory")
		return state.NewMemory(), nil
	}
	db, err := statepg.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	pg := statepg.New(db)
	if err := pg.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return pg, nil
}
