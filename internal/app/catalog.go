package app

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/catalog-entry/internal/domain/product"
	"github.com/xenking/catalog-entry/internal/repository"
	"github.com/xenking/catalog-entry/internal/storage/blob"
	"github.com/xenking/catalog-entry/internal/storage/oss"
)

// Catalog bundles the storage and domain components shared by the API server
// and the import tool.
type Catalog struct {
	Pool   *pgxpool.Pool
	Bucket *oss.Bucket
	Writer *product.Writer
	Reader *product.Reader
}

// NewCatalog connects to PostgreSQL and OSS, applies the schema and builds
// the product writer and reader. Close releases the pool.
func NewCatalog(ctx context.Context, cfg *Config, m *app.Telemetry) (*Catalog, error) {
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := repository.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ensure schema")
	}

	bucket, err := oss.NewBucket(oss.Config{
		Endpoint:        cfg.Storage.Endpoint,
		Region:          cfg.Storage.Region,
		Bucket:          cfg.Storage.Account,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		AccessKeySecret: cfg.Storage.AccessKeySecret,
	})
	if err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "create oss bucket")
	}

	store := repository.NewProductRepository(pool)
	uploader := blob.NewUploader(blob.Config{
		Account:   cfg.Storage.Account,
		Domain:    cfg.Storage.Domain,
		Container: cfg.Storage.Container,
	}, bucket)

	writerCfg := product.WriterConfig{
		CleanupOrphans:     cfg.Storage.CleanupOrphans,
		CleanupConcurrency: cfg.Storage.CleanupConcurrency,
	}
	if m != nil {
		writerCfg.MeterProvider = m.MeterProvider()
		writerCfg.TracerProvider = m.TracerProvider()
	}
	writer, err := product.NewWriter(writerCfg, product.NewValidator(cfg.Limits.Product()), store, uploader)
	if err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "create product writer")
	}

	return &Catalog{
		Pool:   pool,
		Bucket: bucket,
		Writer: writer,
		Reader: product.NewReader(store),
	}, nil
}

// Close releases the database pool.
func (c *Catalog) Close() {
	c.Pool.Close()
}
