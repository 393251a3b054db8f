package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/catalog-entry/internal/domain/product"
)

// CreateProduct handles POST /api/products. The body is a multipart form
// with name, description, price and zero or more images files.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	if err := r.ParseMultipartForm(h.maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "request must be a multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	sub, err := readSubmission(r.MultipartForm)
	if err != nil {
		zctx.From(r.Context()).Warn("Read submission failed", zap.Error(err))
		writeError(w, http.StatusBadRequest, "could not read uploaded files")
		return
	}

	p, err := h.creator.CreateProduct(r.Context(), sub)
	if err != nil {
		h.writeCreateError(w, err)
		return
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	h.encodeProduct(e, *p)
	writeJSON(w, http.StatusCreated, e)
}

// readSubmission converts the parsed form. A missing or malformed price is
// left at zero so the validator reports it with the other field errors.
func readSubmission(form *multipart.Form) (product.Submission, error) {
	sub := product.Submission{
		Name:        formValue(form, "name"),
		Description: formValue(form, "description"),
	}
	if price, err := decimal.NewFromString(strings.TrimSpace(formValue(form, "price"))); err == nil {
		sub.Price = price
	}

	for _, fh := range form.File["images"] {
		// Browsers send an empty part when no file was picked.
		if fh.Filename == "" && fh.Size == 0 {
			continue
		}
		data, err := readFile(fh)
		if err != nil {
			return product.Submission{}, errors.Wrapf(err, "read %s", fh.Filename)
		}
		sub.Images = append(sub.Images, product.Upload{
			Filename: fh.Filename,
			Size:     fh.Size,
			Data:     data,
		})
	}
	return sub, nil
}

func formValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

// writeCreateError maps write-path errors to HTTP responses.
func (h *Handler) writeCreateError(w http.ResponseWriter, err error) {
	var (
		verr *product.ValidationError
		uerr *product.UploadError
		derr *product.DatabaseError
	)
	switch {
	case errors.As(err, &verr):
		e := jx.GetEncoder()
		defer jx.PutEncoder(e)
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(http.StatusUnprocessableEntity) })
			e.Field("message", func(e *jx.Encoder) { e.Str("product is invalid") })
			e.Field("errors", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, msg := range verr.Messages {
						e.Str(msg)
					}
				})
			})
		})
		writeJSON(w, http.StatusUnprocessableEntity, e)
	case errors.As(err, &uerr):
		writeError(w, http.StatusBadGateway, "failed to upload image "+uerr.Filename)
	case errors.As(err, &derr):
		writeError(w, http.StatusInternalServerError, "failed to save product")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ListProducts handles GET /api/products. Read failures are reported in
// warnings next to whatever could be loaded.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, warnings := h.reader.ListCatalog(r.Context())

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.Obj(func(e *jx.Encoder) {
		e.Field("products", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, p := range products {
					h.encodeProduct(e, p)
				}
			})
		})
		encodeWarnings(e, warnings...)
	})
	writeJSON(w, http.StatusOK, e)
}

// ListProductImages handles GET /api/products/{id}/images.
func (h *Handler) ListProductImages(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	urls, err := h.reader.ListProductImages(r.Context(), id)
	var warnings []error
	if err != nil {
		warnings = append(warnings, err)
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.Obj(func(e *jx.Encoder) {
		e.Field("images", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, u := range urls {
					e.Str(h.imageURL(u))
				}
			})
		})
		encodeWarnings(e, warnings...)
	})
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		e.Field("price", func(e *jx.Encoder) { e.Str(p.Price.StringFixed(2)) })
		e.Field("images", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, img := range p.Images {
					e.Obj(func(e *jx.Encoder) {
						e.Field("url", func(e *jx.Encoder) { e.Str(h.imageURL(img.URL)) })
						e.Field("order", func(e *jx.Encoder) { e.Int(img.Order) })
					})
				}
			})
		})
	})
}

// imageURL returns stored unless it is not an absolute http(s) URL, in which
// case the placeholder is shown instead.
func (h *Handler) imageURL(stored string) string {
	if h.placeholder == "" {
		return stored
	}
	u, err := url.Parse(stored)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return h.placeholder
	}
	return stored
}

func encodeWarnings(e *jx.Encoder, warnings ...error) {
	e.Field("warnings", func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, w := range warnings {
				e.Str(warningText(w))
			}
		})
	})
}

// warningText hides driver details from API clients.
func warningText(err error) string {
	var qerr *product.QueryError
	if errors.As(err, &qerr) {
		return "could not " + qerr.Op
	}
	return "could not load data"
}

func writeError(w http.ResponseWriter, status int, msg string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})
	writeJSON(w, status, e)
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
