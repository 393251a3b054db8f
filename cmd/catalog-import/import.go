package main

import (
	"context"
	"io"
	"io/fs"
	"path"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/catalog-entry/internal/domain/product"
)

type entry struct {
	Name        string
	Description string
	Price       string
	Images      []string
}

// readManifest decodes a JSON array of entries. Unknown fields are skipped.
func readManifest(r io.Reader) ([]entry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read manifest")
	}

	var entries []entry
	d := jx.DecodeBytes(data)
	if err := d.Arr(func(d *jx.Decoder) error {
		var e entry
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "name":
				return decodeStr(d, &e.Name)
			case "description":
				return decodeStr(d, &e.Description)
			case "price":
				return decodePrice(d, &e.Price)
			case "images":
				return d.Arr(func(d *jx.Decoder) error {
					var p string
					if err := decodeStr(d, &p); err != nil {
						return err
					}
					e.Images = append(e.Images, p)
					return nil
				})
			default:
				return d.Skip()
			}
		}); err != nil {
			return errors.Wrapf(err, "entry %d", len(entries))
		}
		entries = append(entries, e)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode manifest")
	}
	return entries, nil
}

func decodeStr(d *jx.Decoder, dst *string) error {
	v, err := d.Str()
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// decodePrice accepts the price as a JSON string or number.
func decodePrice(d *jx.Decoder, dst *string) error {
	if d.Next() == jx.String {
		return decodeStr(d, dst)
	}
	n, err := d.Num()
	if err != nil {
		return err
	}
	*dst = n.String()
	return nil
}

// submission loads the entry's images from fsys.
func (e entry) submission(fsys fs.FS) (product.Submission, error) {
	sub := product.Submission{Name: e.Name, Description: e.Description}
	if price, err := decimal.NewFromString(e.Price); err == nil {
		sub.Price = price
	}
	for _, p := range e.Images {
		data, err := fs.ReadFile(fsys, path.Clean(filepath.ToSlash(p)))
		if err != nil {
			return product.Submission{}, errors.Wrapf(err, "read image %s", p)
		}
		sub.Images = append(sub.Images, product.Upload{
			Filename: path.Base(filepath.ToSlash(p)),
			Size:     int64(len(data)),
			Data:     data,
		})
	}
	return sub, nil
}

type productCreator interface {
	CreateProduct(ctx context.Context, s product.Submission) (*product.Product, error)
}

// importAll submits every entry, logging each outcome. It keeps going after
// a failure and returns an error if any entry was not imported.
func importAll(ctx context.Context, lg *zap.Logger, w productCreator, fsys fs.FS, entries []entry) error {
	var failed int
	for i, e := range entries {
		lg := lg.With(zap.Int("entry", i), zap.String("name", e.Name))
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "import interrupted")
		}

		sub, err := e.submission(fsys)
		if err != nil {
			failed++
			lg.Error("Load entry failed", zap.Error(err))
			continue
		}

		p, err := w.CreateProduct(ctx, sub)
		if err != nil {
			failed++
			var verr *product.ValidationError
			if errors.As(err, &verr) {
				lg.Warn("Entry rejected", zap.Strings("errors", verr.Messages))
			} else {
				lg.Error("Import entry failed", zap.Error(err))
			}
			continue
		}
		lg.Info("Product imported",
			zap.Int64("product_id", p.ID),
			zap.Int("images", len(p.Images)),
		)
	}

	lg.Info("Import finished",
		zap.Int("imported", len(entries)-failed),
		zap.Int("failed", failed),
	)
	if failed > 0 {
		return errors.Errorf("%d of %d entries failed", failed, len(entries))
	}
	return nil
}
