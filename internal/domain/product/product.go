package product

import (
	"context"

	"github.com/shopspring/decimal"
)

// Product represents a catalog entry together with its images in display
// order.
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	Images      []Image
}

// Image is a stored product image. Order is the 0-based display position,
// fixed at upload time.
type Image struct {
	ProductID int64
	URL       string
	Order     int
}

// Upload is an image file received with a submission. It exists only while
// the submission is validated and uploaded.
type Upload struct {
	Filename string
	// Size is the size declared by the client. When zero, len(Data) is used.
	Size int64
	Data []byte
}

// Submission holds the raw form input for a new product.
type Submission struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Images      []Upload
}

// Store defines persistence operations for the catalog.
type Store interface {
	// Begin starts the transaction used for a single product write.
	Begin(ctx context.Context) (Tx, error)
	// List returns all products ordered by name, without images.
	List(ctx context.Context) ([]Product, error)
	// ListImageURLs returns the image URLs of a product in display order.
	ListImageURLs(ctx context.Context, productID int64) ([]string, error)
	// ListImages returns the images of all given products, ordered by
	// product and display order.
	ListImages(ctx context.Context, productIDs []int64) ([]Image, error)
}

// Tx is a write transaction spanning the products and product_images tables.
// Rollback after Commit or a previous Rollback is a no-op.
type Tx interface {
	InsertProduct(ctx context.Context, p *Product) (int64, error)
	InsertImage(ctx context.Context, img Image) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Uploader stores image bytes in object storage and returns their public URL.
type Uploader interface {
	Upload(ctx context.Context, data []byte, filename string) (string, error)
	// Delete removes an object previously returned by Upload.
	Delete(ctx context.Context, url string) error
}
