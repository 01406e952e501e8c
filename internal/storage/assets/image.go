package assets

import (
	"fmt"

	"github.com/eventviewer/server/internal/apperr"
	"github.com/gabriel-vasile/mimetype"
)

const (
	MinImageSize = 1 << 10
	MaxImageSize = 10 << 20
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Image is a validated poster upload.
type Image struct {
	Data        []byte
	ContentType string
	Extension   string
}

// ValidateImage checks size bounds and sniffs the content type from the
// bytes themselves. The client-declared type is ignored.
func ValidateImage(data []byte) (Image, error) {
	if len(data) < MinImageSize {
		return Image{}, apperr.Validation("image", "image must be at least 1KB")
	}
	if len(data) > MaxImageSize {
		return Image{}, apperr.Validation("image", "image must not exceed 10MB")
	}

	mt := mimetype.Detect(data)
	if !allowedImageTypes[mt.String()] {
		return Image{}, apperr.Validation("image", fmt.Sprintf("unsupported image type %s; allowed: jpeg, png, gif, webp", mt.String()))
	}
	return Image{Data: data, ContentType: mt.String(), Extension: mt.Extension()}, nil
}
