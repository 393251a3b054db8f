// Package blob stores product images in object storage under generated,
// collision-free names and builds their public URLs.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/catalog-entry/internal/domain/product"
)

// ErrObjectExists is returned when the generated object name is already taken.
var ErrObjectExists = errors.New("object already exists")

// Bucket is the subset of an object store used by the Uploader.
type Bucket interface {
	Exists(ctx context.Context, key string) (bool, error)
	// Put writes body under key, replacing any existing object.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
}

// Config describes where objects live and how their public URLs look:
// https://{Account}.{Domain}/{Container}/{name}.
type Config struct {
	Account   string
	Domain    string
	Container string
}

var _ product.Uploader = (*Uploader)(nil)

// Uploader implements product.Uploader on top of a Bucket.
type Uploader struct {
	bucket  Bucket
	cfg     Config
	newName func() string
}

// NewUploader creates an Uploader writing to bucket.
func NewUploader(cfg Config, bucket Bucket) *Uploader {
	return &Uploader{
		bucket:  bucket,
		cfg:     cfg,
		newName: uuid.NewString,
	}
}

// Upload stores data under a new unique name that keeps the extension of
// filename and returns the object's public URL. Failures are returned as
// *product.UploadError.
func (u *Uploader) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	name := u.newName() + safeExt(filename)
	key := u.key(name)

	exists, err := u.bucket.Exists(ctx, key)
	if err != nil {
		return "", &product.UploadError{Filename: filename, Err: errors.Wrap(err, "check object")}
	}
	if exists {
		// Names are random; a hit means something is wrong, so do not retry.
		return "", &product.UploadError{Filename: filename, Err: errors.Wrapf(ErrObjectExists, "key %s", key)}
	}

	contentType := http.DetectContentType(data)
	if err := u.bucket.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", &product.UploadError{Filename: filename, Err: errors.Wrap(err, "put object")}
	}

	return u.URL(name), nil
}

// Delete removes the object behind a URL returned by Upload.
func (u *Uploader) Delete(ctx context.Context, url string) error {
	name, ok := strings.CutPrefix(url, u.URL(""))
	if !ok || name == "" || strings.Contains(name, "/") {
		return errors.Errorf("url %q does not belong to container %s", url, u.cfg.Container)
	}
	if err := u.bucket.Delete(ctx, u.key(name)); err != nil {
		return errors.Wrap(err, "delete object")
	}
	return nil
}

// URL returns the public URL of the object with the given name.
func (u *Uploader) URL(name string) string {
	return fmt.Sprintf("https://%s.%s/%s/%s", u.cfg.Account, u.cfg.Domain, u.cfg.Container, name)
}

// safeExt returns the extension of filename, or "" when it holds anything
// but ASCII letters and digits. Names end up verbatim in URLs.
func safeExt(filename string) string {
	ext := path.Ext(filename)
	if len(ext) < 2 {
		return ""
	}
	for _, c := range ext[1:] {
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return ""
		}
	}
	return ext
}

func (u *Uploader) key(name string) string {
	return u.cfg.Container + "/" + name
}
