// Package assets stores event poster images. Two backends exist: Cloudinary
// for deployments and the local filesystem for development and tests.
package assets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/eventviewer/server/internal/apperr"
	"github.com/eventviewer/server/internal/config"
	"github.com/oklog/ulid/v2"
)

const posterCategory = "desain-publikasi"

// ErrStorageService is returned when the backend rejects or times out an upload.
var ErrStorageService = apperr.New(http.StatusBadGateway, apperr.CodeStorageService, "Failed to upload the image. Please try again later.")

// Object is a stored asset.
type Object struct {
	URL      string
	PublicID string
}

type Store interface {
	Upload(ctx context.Context, folder, name string, image Image) (Object, error)
	// Delete removes one asset. Missing assets are not an error.
	Delete(ctx context.Context, publicID string) error
	// DeleteFolder removes every asset under folder and the folder itself.
	DeleteFolder(ctx context.Context, folder string) error
}

// EventFolder is the root folder holding every asset of one event.
func EventFolder(eventID string) string {
	return path.Join("events", eventID)
}

// PosterFolder is where an event's poster uploads go.
func PosterFolder(eventID string) string {
	return path.Join(EventFolder(eventID), posterCategory)
}

// NewFileName returns a time-sortable, collision-free asset name.
func NewFileName() string {
	return strings.ToLower(ulid.Make().String())
}

// New builds the store selected by cfg.Provider.
func New(cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(cfg.Provider) {
	case "cloudinary":
		if cfg.CloudinaryURL == "" {
			return nil, errors.New("CLOUDINARY_URL is required for the cloudinary storage provider")
		}
		return NewCloudinaryStore(cfg.CloudinaryURL)
	case "", "local":
		return NewLocalStore(cfg.LocalDir, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}
