package media

import (
	"context"
	"fmt"
	"mime/multipart"

	"github.com/indieinfra/inkwell/config"
)

// Store persists uploaded media files and hands back public URLs.
type Store interface {
	// Upload stores the file and returns the URL where it is served.
	Upload(ctx context.Context, file multipart.File, header *multipart.FileHeader) (string, error)

	// Delete removes the file previously returned from Upload.
	Delete(ctx context.Context, url string) error
}

// New builds the media store selected by the configured strategy.
func New(cfg *config.Media) (Store, error) {
	switch cfg.Strategy {
	case "noop":
		return &NoopStore{}, nil
	case "filesystem":
		return NewFilesystemStore(cfg.Filesystem)
	case "s3":
		return NewS3Store(cfg.S3)
	default:
		return nil, fmt.Errorf("unknown media strategy %q", cfg.Strategy)
	}
}
