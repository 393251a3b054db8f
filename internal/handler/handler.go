package handler

import (
	"context"
	"net/http"

	"github.com/xenking/catalog-entry/internal/domain/product"
)

// ProductCreator is the write side used by the handler. *product.Writer
// implements it.
type ProductCreator interface {
	CreateProduct(ctx context.Context, s product.Submission) (*product.Product, error)
}

// CatalogReader is the read side used by the handler. *product.Reader
// implements it.
type CatalogReader interface {
	ListCatalog(ctx context.Context) ([]product.Product, []error)
	ListProductImages(ctx context.Context, productID int64) ([]string, error)
}

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// PlaceholderImageURL replaces stored image URLs that are not absolute
	// http(s) URLs. When empty, such URLs are returned as stored.
	PlaceholderImageURL string
	// MaxMemoryMB is how much of a multipart form is kept in memory before
	// file parts spill to disk.
	MaxMemoryMB int
	// MaxBodyMB caps the request body of a product submission. Zero means
	// no cap.
	MaxBodyMB int
}

// Handler serves the product catalog HTTP API, delegating to the product
// writer and reader.
type Handler struct {
	creator     ProductCreator
	reader      CatalogReader
	placeholder string
	maxMemory   int64
	maxBody     int64
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg HandlerConfig, creator ProductCreator, reader CatalogReader) *Handler {
	maxMemory := int64(cfg.MaxMemoryMB) << 20
	if maxMemory <= 0 {
		maxMemory = 32 << 20
	}
	return &Handler{
		creator:     creator,
		reader:      reader,
		placeholder: cfg.PlaceholderImageURL,
		maxMemory:   maxMemory,
		maxBody:     int64(cfg.MaxBodyMB) << 20,
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/products", h.CreateProduct)
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}/images", h.ListProductImages)
}
