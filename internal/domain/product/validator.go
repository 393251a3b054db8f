package product

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // recognised so GIF input is reported as a format error
	_ "image/jpeg" // accepted format
	_ "image/png"  // accepted format
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/shopspring/decimal"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Limits holds the validation thresholds for a submission.
type Limits struct {
	MaxImageSizeMB       int
	MaxDimension         int
	MinDimension         int
	MaxImages            int
	MaxNameLength        int
	MaxDescriptionLength int
}

// DefaultLimits returns the catalog's standard thresholds.
func DefaultLimits() Limits {
	return Limits{
		MaxImageSizeMB:       5,
		MaxDimension:         2000,
		MinDimension:         300,
		MaxImages:            5,
		MaxNameLength:        100,
		MaxDescriptionLength: 1000,
	}
}

func (l Limits) maxImageBytes() int64 {
	return int64(l.MaxImageSizeMB) << 20
}

// maxPrice is the largest value the NUMERIC(12,2) price column holds.
var maxPrice = decimal.RequireFromString("9999999999.99")

// allowedFormats lists the image.DecodeConfig format names accepted for
// product images.
var allowedFormats = map[string]bool{
	"jpeg": true,
	"png":  true,
}

// Validator checks a Submission against fixed thresholds. It performs no I/O.
type Validator struct {
	limits   Limits
	validate *validator.Validate
}

// NewValidator creates a Validator enforcing the given limits.
func NewValidator(limits Limits) *Validator {
	v := validator.New()
	// notblank trims whitespace before checking for emptiness.
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err) // only fails for an empty tag name
	}
	return &Validator{limits: limits, validate: v}
}

// Validate returns a human-readable message for every rule the submission
// violates. An empty result means the submission is valid.
func (v *Validator) Validate(s Submission) []string {
	var msgs []string

	msgs = v.checkText(msgs, "Product name", s.Name, v.limits.MaxNameLength)
	msgs = v.checkText(msgs, "Product description", s.Description, v.limits.MaxDescriptionLength)

	// Prices are stored with two decimal places.
	switch price := s.Price.Round(2); {
	case !price.IsPositive():
		msgs = append(msgs, "Product price must be greater than zero.")
	case price.GreaterThan(maxPrice):
		msgs = append(msgs, "Product price must not exceed "+maxPrice.StringFixed(2)+".")
	}

	return v.checkImages(msgs, s.Images)
}

// checkText reports at most one message per field: a blank value suppresses
// the length check.
func (v *Validator) checkText(msgs []string, field, value string, maxLen int) []string {
	if !utf8.ValidString(value) || strings.ContainsRune(value, 0) {
		return append(msgs, field+" contains invalid characters.")
	}

	err := v.validate.Var(value, "notblank,max="+strconv.Itoa(maxLen))
	if err == nil {
		return msgs
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return append(msgs, field+" is invalid.")
	}

	switch verrs[0].Tag() {
	case "notblank":
		return append(msgs, field+" is required.")
	default:
		return append(msgs, fmt.Sprintf("%s must be less than %d characters.", field, maxLen))
	}
}

// checkImages validates the image count and then every supplied image, even
// past the maximum, so the user sees all problems at once.
func (v *Validator) checkImages(msgs []string, images []Upload) []string {
	if len(images) == 0 {
		return append(msgs, "At least one product image is required.")
	}
	if len(images) > v.limits.MaxImages {
		msgs = append(msgs, fmt.Sprintf("You can upload a maximum of %d images.", v.limits.MaxImages))
	}

	for _, img := range images {
		msgs = v.checkImage(msgs, img)
	}
	return msgs
}

func (v *Validator) checkImage(msgs []string, img Upload) []string {
	size := img.Size
	if size <= 0 {
		size = int64(len(img.Data))
	}
	if size > v.limits.maxImageBytes() {
		msgs = append(msgs, fmt.Sprintf("Image %s is too large. Maximum size is %dMB.",
			img.Filename, v.limits.MaxImageSizeMB))
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return append(msgs, fmt.Sprintf(
			"Could not process image %s. It may be corrupted or in an unsupported format.", img.Filename))
	}

	w, h := cfg.Width, cfg.Height
	if w > v.limits.MaxDimension || h > v.limits.MaxDimension {
		msgs = append(msgs, fmt.Sprintf(
			"Image %s dimensions (%dx%d) are too large. Maximum allowed is %dx%dpx.",
			img.Filename, w, h, v.limits.MaxDimension, v.limits.MaxDimension))
	}
	if w < v.limits.MinDimension || h < v.limits.MinDimension {
		msgs = append(msgs, fmt.Sprintf(
			"Image %s dimensions (%dx%d) are too small. Minimum required is %dx%dpx.",
			img.Filename, w, h, v.limits.MinDimension, v.limits.MinDimension))
	}
	if !allowedFormats[strings.ToLower(format)] {
		msgs = append(msgs, fmt.Sprintf("Image %s has invalid format. Only JPEG and PNG are allowed.", img.Filename))
	}

	return msgs
}
