package product

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Helpers ---

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
	return buf.Bytes()
}

func encodeGIF(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, image.NewPaletted(image.Rect(0, 0, w, h), color.Palette{color.Black, color.White}), nil))
	return buf.Bytes()
}

func pngUpload(t *testing.T, name string) Upload {
	t.Helper()
	data := encodePNG(t, 400, 400)
	return Upload{Filename: name, Size: int64(len(data)), Data: data}
}

func validSubmission(t *testing.T, images ...Upload) Submission {
	t.Helper()
	if len(images) == 0 {
		images = []Upload{pngUpload(t, "a.png")}
	}
	return Submission{
		Name:        "Espresso Cup",
		Description: "Porcelain cup, 90ml.",
		Price:       decimal.RequireFromString("12.50"),
		Images:      images,
	}
}

func newTestValidator() *Validator {
	return NewValidator(DefaultLimits())
}

// --- Tests ---

func TestValidate_Valid(t *testing.T) {
	jpg := encodeJPEG(t, 300, 2000)
	s := validSubmission(t,
		pngUpload(t, "a.png"),
		Upload{Filename: "b.jpg", Data: jpg},
	)

	assert.Empty(t, newTestValidator().Validate(s))
}

func TestValidate_Name(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{"Product name is required."}},
		{"whitespace", " \t\n ", []string{"Product name is required."}},
		{"at limit", strings.Repeat("a", 100), nil},
		{"multibyte at limit", strings.Repeat("é", 100), nil},
		{"too long", strings.Repeat("a", 101), []string{"Product name must be less than 100 characters."}},
		{"nul byte", "Cup\x00", []string{"Product name contains invalid characters."}},
		{"invalid utf-8", "Cup\xff", []string{"Product name contains invalid characters."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSubmission(t)
			s.Name = tt.in

			assert.Equal(t, tt.want, newTestValidator().Validate(s))
		})
	}
}

func TestValidate_Description(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{"Product description is required."}},
		{"whitespace", "   ", []string{"Product description is required."}},
		{"at limit", strings.Repeat("d", 1000), nil},
		{"too long", strings.Repeat("d", 1001), []string{"Product description must be less than 1000 characters."}},
		{"nul byte", "Fine\x00china", []string{"Product description contains invalid characters."}},
		{"invalid utf-8", "\xc3\x28", []string{"Product description contains invalid characters."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSubmission(t)
			s.Description = tt.in

			assert.Equal(t, tt.want, newTestValidator().Validate(s))
		})
	}
}

func TestValidate_Price(t *testing.T) {
	tests := []struct {
		price string
		valid bool
	}{
		{"0", false},
		{"-1.00", false},
		{"0.001", false},
		{"0.01", true},
		{"999.99", true},
	}

	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			s := validSubmission(t)
			s.Price = decimal.RequireFromString(tt.price)

			msgs := newTestValidator().Validate(s)
			if tt.valid {
				assert.Empty(t, msgs)
			} else {
				assert.Equal(t, []string{"Product price must be greater than zero."}, msgs)
			}
		})
	}
}

func TestValidate_PriceUpperBound(t *testing.T) {
	tests := []struct {
		price string
		want  []string
	}{
		{"9999999999.99", nil},
		{"9999999999.994", nil},
		{"9999999999.995", []string{"Product price must not exceed 9999999999.99."}},
		{"10000000000.00", []string{"Product price must not exceed 9999999999.99."}},
	}

	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			s := validSubmission(t)
			s.Price = decimal.RequireFromString(tt.price)

			assert.Equal(t, tt.want, newTestValidator().Validate(s))
		})
	}
}

func TestValidate_NoImages(t *testing.T) {
	s := validSubmission(t)
	s.Images = nil

	assert.Equal(t, []string{"At least one product image is required."}, newTestValidator().Validate(s))
}

func TestValidate_TooManyImages(t *testing.T) {
	images := make([]Upload, 6)
	for i := range images {
		images[i] = pngUpload(t, "img.png")
	}

	msgs := newTestValidator().Validate(validSubmission(t, images...))
	assert.Equal(t, []string{"You can upload a maximum of 5 images."}, msgs)
}

func TestValidate_TooManyImagesStillChecksEach(t *testing.T) {
	images := make([]Upload, 6)
	for i := range 5 {
		images[i] = pngUpload(t, "ok.png")
	}
	images[5] = Upload{Filename: "broken.png", Data: []byte("not an image")}

	msgs := newTestValidator().Validate(validSubmission(t, images...))
	assert.Equal(t, []string{
		"You can upload a maximum of 5 images.",
		"Could not process image broken.png. It may be corrupted or in an unsupported format.",
	}, msgs)
}

func TestValidate_ImageTooLarge(t *testing.T) {
	up := pngUpload(t, "big.png")
	up.Size = 5<<20 + 1

	msgs := newTestValidator().Validate(validSubmission(t, up))
	assert.Equal(t, []string{"Image big.png is too large. Maximum size is 5MB."}, msgs)
}

func TestValidate_ImageSizeFallsBackToDataLength(t *testing.T) {
	up := pngUpload(t, "a.png")
	up.Size = 0

	assert.Empty(t, newTestValidator().Validate(validSubmission(t, up)))
}

func TestValidate_Dimensions(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		want []string
	}{
		{"min corner", 300, 300, nil},
		{"max corner", 2000, 2000, nil},
		{"too wide", 2001, 500, []string{
			"Image x.png dimensions (2001x500) are too large. Maximum allowed is 2000x2000px.",
		}},
		{"too short", 500, 299, []string{
			"Image x.png dimensions (500x299) are too small. Minimum required is 300x300px.",
		}},
		{"wide and short", 2500, 100, []string{
			"Image x.png dimensions (2500x100) are too large. Maximum allowed is 2000x2000px.",
			"Image x.png dimensions (2500x100) are too small. Minimum required is 300x300px.",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := Upload{Filename: "x.png", Data: encodePNG(t, tt.w, tt.h)}

			assert.Equal(t, tt.want, newTestValidator().Validate(validSubmission(t, up)))
		})
	}
}

func TestValidate_GIFIsInvalidFormat(t *testing.T) {
	up := Upload{Filename: "anim.gif", Data: encodeGIF(t, 400, 400)}

	msgs := newTestValidator().Validate(validSubmission(t, up))
	assert.Equal(t, []string{"Image anim.gif has invalid format. Only JPEG and PNG are allowed."}, msgs)
}

func TestValidate_CorruptedImage(t *testing.T) {
	// A truncated PNG signature cannot be decoded.
	up := Upload{Filename: "bad.png", Data: []byte("\x89PNG\r\n")}

	msgs := newTestValidator().Validate(validSubmission(t, up))
	require.Len(t, msgs, 1)
	assert.Equal(t, "Could not process image bad.png. It may be corrupted or in an unsupported format.", msgs[0])
}

func TestValidate_CollectsAllFailures(t *testing.T) {
	s := Submission{
		Name:        "",
		Description: strings.Repeat("x", 1001),
		Price:       decimal.Zero,
		Images:      []Upload{{Filename: "small.jpg", Data: encodeJPEG(t, 100, 100)}},
	}

	msgs := newTestValidator().Validate(s)
	assert.Equal(t, []string{
		"Product name is required.",
		"Product description must be less than 1000 characters.",
		"Product price must be greater than zero.",
		"Image small.jpg dimensions (100x100) are too small. Minimum required is 300x300px.",
	}, msgs)
}

func TestValidate_CustomLimits(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxImages = 1
	limits.MaxNameLength = 5

	s := validSubmission(t, pngUpload(t, "a.png"), pngUpload(t, "b.png"))
	s.Name = "Teapot"

	msgs := NewValidator(limits).Validate(s)
	assert.Equal(t, []string{
		"Product name must be less than 5 characters.",
		"You can upload a maximum of 1 images.",
	}, msgs)
}
