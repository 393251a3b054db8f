package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const instrumentationName = "github.com/xenking/catalog-entry/internal/domain/product"

// WriterConfig holds non-dependency options for the Writer.
type WriterConfig struct {
	// CleanupOrphans deletes images already uploaded for a write that was
	// rolled back.
	CleanupOrphans bool
	// CleanupConcurrency bounds parallel deletes during cleanup.
	CleanupConcurrency int

	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// Writer creates products: it validates a submission, uploads its images and
// inserts the product and image rows in a single transaction.
type Writer struct {
	validator *Validator
	store     Store
	uploader  Uploader

	cleanupOrphans     bool
	cleanupConcurrency int

	tracer       trace.Tracer
	created      metric.Int64Counter
	rejected     metric.Int64Counter
	uploadFailed metric.Int64Counter
}

// NewWriter creates a Writer with the required dependencies.
func NewWriter(cfg WriterConfig, validator *Validator, store Store, uploader Uploader) (*Writer, error) {
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = metricnoop.NewMeterProvider()
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = tracenoop.NewTracerProvider()
	}
	if cfg.CleanupConcurrency <= 0 {
		cfg.CleanupConcurrency = 4
	}

	w := &Writer{
		validator:          validator,
		store:              store,
		uploader:           uploader,
		cleanupOrphans:     cfg.CleanupOrphans,
		cleanupConcurrency: cfg.CleanupConcurrency,
		tracer:             cfg.TracerProvider.Tracer(instrumentationName),
	}

	meter := cfg.MeterProvider.Meter(instrumentationName)
	var err error
	if w.created, err = meter.Int64Counter("catalog.products.created",
		metric.WithDescription("Products committed to the catalog"),
	); err != nil {
		return nil, errors.Wrap(err, "products.created counter")
	}
	if w.rejected, err = meter.Int64Counter("catalog.products.rejected",
		metric.WithDescription("Submissions rejected by validation"),
	); err != nil {
		return nil, errors.Wrap(err, "products.rejected counter")
	}
	if w.uploadFailed, err = meter.Int64Counter("catalog.uploads.failed",
		metric.WithDescription("Image uploads that aborted a product write"),
	); err != nil {
		return nil, errors.Wrap(err, "uploads.failed counter")
	}

	return w, nil
}

// CreateProduct validates the submission and, when it is valid, stores the
// product and its images atomically. Images are uploaded in submission order
// and their index becomes the display order.
//
// The returned error is a *ValidationError, *UploadError or *DatabaseError.
// In every error case no product or image row is committed.
func (w *Writer) CreateProduct(ctx context.Context, s Submission) (_ *Product, rerr error) {
	ctx, span := w.tracer.Start(ctx, "product.CreateProduct",
		trace.WithAttributes(attribute.Int("catalog.images", len(s.Images))),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	lg := zctx.From(ctx)

	if msgs := w.validator.Validate(s); len(msgs) > 0 {
		w.rejected.Add(ctx, 1)
		lg.Info("Product submission rejected", zap.Strings("errors", msgs))
		return nil, &ValidationError{Messages: msgs}
	}

	tx, err := w.store.Begin(ctx)
	if err != nil {
		return nil, &DatabaseError{Op: "begin transaction", Err: err}
	}
	// Releases the connection on every path; a no-op after Commit.
	defer func() {
		if err := tx.Rollback(ctx); err != nil {
			lg.Warn("Rollback failed", zap.Error(err))
		}
	}()

	p := &Product{
		Name:        s.Name,
		Description: s.Description,
		Price:       s.Price,
		Images:      make([]Image, 0, len(s.Images)),
	}
	if p.ID, err = tx.InsertProduct(ctx, p); err != nil {
		return nil, w.abort(ctx, tx, nil, &DatabaseError{Op: "insert product", Err: err})
	}

	uploaded := make([]string, 0, len(s.Images))
	for i, up := range s.Images {
		url, err := w.uploader.Upload(ctx, up.Data, up.Filename)
		if err == nil && url == "" {
			err = errors.New("storage returned no URL")
		}
		if err != nil {
			w.uploadFailed.Add(ctx, 1)
			lg.Error("Image upload failed",
				zap.String("filename", up.Filename),
				zap.Int("order", i),
				zap.Error(err),
			)
			var uerr *UploadError
			if !errors.As(err, &uerr) {
				uerr = &UploadError{Filename: up.Filename, Err: err}
			}
			return nil, w.abort(ctx, tx, uploaded, uerr)
		}
		uploaded = append(uploaded, url)

		img := Image{ProductID: p.ID, URL: url, Order: i}
		if err := tx.InsertImage(ctx, img); err != nil {
			return nil, w.abort(ctx, tx, uploaded, &DatabaseError{Op: "insert image", Err: err})
		}
		p.Images = append(p.Images, img)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, w.abort(ctx, tx, uploaded, &DatabaseError{Op: "commit", Err: err})
	}

	w.created.Add(ctx, 1)
	lg.Info("Product created",
		zap.Int64("product_id", p.ID),
		zap.Int("images", len(p.Images)),
	)
	return p, nil
}

// abort rolls back tx, removes blobs uploaded for it and returns cause.
func (w *Writer) abort(ctx context.Context, tx Tx, uploaded []string, cause error) error {
	lg := zctx.From(ctx)
	if err := tx.Rollback(ctx); err != nil {
		lg.Warn("Rollback failed", zap.Error(err))
	}
	w.removeOrphans(ctx, uploaded)
	return cause
}

// removeOrphans deletes uploaded blobs best-effort. Failures are logged and
// never change the outcome of the write.
func (w *Writer) removeOrphans(ctx context.Context, urls []string) {
	if !w.cleanupOrphans || len(urls) == 0 {
		return
	}

	lg := zctx.From(ctx)
	// The request may already be cancelled; cleanup still runs.
	ctx = context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(w.cleanupConcurrency)
	for _, url := range urls {
		g.Go(func() error {
			if err := w.uploader.Delete(ctx, url); err != nil {
				lg.Warn("Orphaned image not removed", zap.String("url", url), zap.Error(err))
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err == nil {
		lg.Info("Removed orphaned images", zap.Int("count", len(urls)))
	}
}
