package product

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Reader serves read-only catalog queries. Query failures are returned as a
// *QueryError next to an empty, non-nil result, so callers can always render
// the result and report the error separately.
type Reader struct {
	store Store
}

// NewReader creates a Reader backed by the given Store.
func NewReader(store Store) *Reader {
	return &Reader{store: store}
}

// ListProducts returns all products ordered by name. Images are not loaded.
func (r *Reader) ListProducts(ctx context.Context) ([]Product, error) {
	products, err := r.store.List(ctx)
	if err != nil {
		zctx.From(ctx).Error("List products failed", zap.Error(err))
		return []Product{}, &QueryError{Op: "list products", Err: err}
	}
	if products == nil {
		products = []Product{}
	}
	return products, nil
}

// ListProductImages returns the image URLs of a product in display order.
func (r *Reader) ListProductImages(ctx context.Context, productID int64) ([]string, error) {
	urls, err := r.store.ListImageURLs(ctx, productID)
	if err != nil {
		zctx.From(ctx).Error("List product images failed",
			zap.Int64("product_id", productID),
			zap.Error(err),
		)
		return []string{}, &QueryError{Op: "list product images", Err: err}
	}
	if urls == nil {
		urls = []string{}
	}
	return urls, nil
}

// ListCatalog returns all products ordered by name with their images in
// display order. Images for every product are fetched in one batch. When
// that batch fails the products are still returned, without images, and the
// failure is reported in the returned warnings.
func (r *Reader) ListCatalog(ctx context.Context) ([]Product, []error) {
	products, err := r.ListProducts(ctx)
	if err != nil {
		return products, []error{err}
	}
	if len(products) == 0 {
		return products, nil
	}

	ids := make([]int64, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}

	images, err := r.store.ListImages(ctx, ids)
	if err != nil {
		zctx.From(ctx).Error("List catalog images failed", zap.Error(err))
		return products, []error{&QueryError{Op: "list catalog images", Err: err}}
	}

	byProduct := make(map[int64][]Image, len(products))
	for _, img := range images {
		byProduct[img.ProductID] = append(byProduct[img.ProductID], img)
	}
	for i := range products {
		products[i].Images = byProduct[products[i].ID]
		if products[i].Images == nil {
			products[i].Images = []Image{}
		}
	}
	return products, nil
}
