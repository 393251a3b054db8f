package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xenking/catalog-entry/internal/domain/product"
	"github.com/xenking/catalog-entry/internal/handler"
	"github.com/xenking/catalog-entry/pkg/health"
)

// --- Mock implementations ---

type loggingCatalog struct{}

func (loggingCatalog) CreateProduct(context.Context, product.Submission) (*product.Product, error) {
	return nil, &product.ValidationError{Messages: []string{"Product name is required."}}
}

func (loggingCatalog) ListCatalog(ctx context.Context) ([]product.Product, []error) {
	zctx.From(ctx).Info("Listing catalog")
	return []product.Product{}, nil
}

func (loggingCatalog) ListProductImages(context.Context, int64) ([]string, error) {
	return []string{}, nil
}

// --- Tests ---

func TestRoutes_RequestIDInLogs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx, cancel := context.WithCancel(zctx.Base(context.Background(), zap.New(core)))
	defer cancel()

	cfg := &Config{CORS: CORSConfig{Origins: []string{"*"}}}
	h := handler.NewHandler(handler.HandlerConfig{}, loggingCatalog{}, loggingCatalog{})
	srv := routes(ctx, cfg, h, health.New())

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	for _, msg := range []string{"Listing catalog", "Request"} {
		entries := logs.FilterMessage(msg).All()
		require.Len(t, entries, 1, msg)
		assert.Equal(t, "abc-123", entries[0].ContextMap()["request_id"], msg)
	}
}

func TestRoutes_Health(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hs := health.New()
	srv := routes(ctx, &Config{}, handler.NewHandler(handler.HandlerConfig{}, loggingCatalog{}, loggingCatalog{}), hs)

	serve := func(path string) int {
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w.Code
	}

	assert.Equal(t, http.StatusOK, serve("/livez"))
	assert.Equal(t, http.StatusServiceUnavailable, serve("/readyz"))
	hs.SetReady(true)
	assert.Equal(t, http.StatusOK, serve("/readyz"))
}
