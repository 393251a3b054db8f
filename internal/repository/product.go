package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/catalog-entry/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, description, price
		FROM products ORDER BY name, id`

	listImageURLsSQL = `SELECT image_url
		FROM product_images WHERE product_id = $1 ORDER BY sort_order`

	listImagesSQL = `SELECT product_id, image_url, sort_order
		FROM product_images WHERE product_id = ANY($1) ORDER BY product_id, sort_order`

	insertProductSQL = `INSERT INTO products (name, description, price)
		VALUES ($1, $2, $3) RETURNING id`

	insertImageSQL = `INSERT INTO product_images (product_id, image_url, sort_order)
		VALUES ($1, $2, $3)`
)

var _ product.Store = (*ProductRepository)(nil)

// ProductRepository implements product.Store backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Begin starts a transaction on a connection held until Commit or Rollback.
func (r *ProductRepository) Begin(ctx context.Context) (product.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "begin")
	}
	return &productTx{tx: tx}, nil
}

// List returns all products ordered by name.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "query products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// ListImageURLs returns the image URLs of a product in display order.
func (r *ProductRepository) ListImageURLs(ctx context.Context, productID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, listImageURLsSQL, productID)
	if err != nil {
		return nil, errors.Wrapf(err, "query images of product %d", productID)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// ListImages returns the images of the given products in a single query.
func (r *ProductRepository) ListImages(ctx context.Context, productIDs []int64) ([]product.Image, error) {
	rows, err := r.pool.Query(ctx, listImagesSQL, productIDs)
	if err != nil {
		return nil, errors.Wrap(err, "query images")
	}
	return pgx.CollectRows(rows, scanImage)
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p     product.Product
		price decimal.Decimal
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &price)
	p.Price = price
	return p, err
}

func scanImage(row pgx.CollectableRow) (product.Image, error) {
	var (
		img   product.Image
		order int32
	)
	err := row.Scan(&img.ProductID, &img.URL, &order)
	img.Order = int(order)
	return img, err
}

var _ product.Tx = (*productTx)(nil)

// productTx implements product.Tx on a pgx transaction.
type productTx struct {
	tx pgx.Tx
}

func (t *productTx) InsertProduct(ctx context.Context, p *product.Product) (int64, error) {
	var id int64
	if err := t.tx.QueryRow(ctx, insertProductSQL, p.Name, p.Description, p.Price).Scan(&id); err != nil {
		return 0, errors.Wrapf(err, "insert product %q", p.Name)
	}
	return id, nil
}

func (t *productTx) InsertImage(ctx context.Context, img product.Image) error {
	if _, err := t.tx.Exec(ctx, insertImageSQL, img.ProductID, img.URL, int32(img.Order)); err != nil {
		return errors.Wrapf(err, "insert image %d of product %d", img.Order, img.ProductID)
	}
	return nil
}

func (t *productTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// Rollback aborts the transaction. It is a no-op once the transaction has
// been committed or rolled back.
func (t *productTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return errors.Wrap(err, "rollback")
	}
	return nil
}
