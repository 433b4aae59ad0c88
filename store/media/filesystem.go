package media

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/indieinfra/inkwell/config"
	storeutil "github.com/indieinfra/inkwell/store/util"
)

// FilesystemStore writes uploads into a local directory laid out by a path
// pattern and serves them from a public base URL.
type FilesystemStore struct {
	basePath  string
	publicURL string
	pattern   *storeutil.PathPattern
}

func NewFilesystemStore(cfg *config.FilesystemMediaStrategy) (*FilesystemStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("filesystem media config is nil")
	}

	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	pattern := storeutil.DefaultMediaPattern()
	if cfg.PathPattern != "" {
		pattern = storeutil.NewPathPattern(cfg.PathPattern)
	}

	return &FilesystemStore{
		basePath:  cfg.Path,
		publicURL: storeutil.NormalizeBaseURL(cfg.PublicUrl),
		pattern:   pattern,
	}, nil
}

func (ms *FilesystemStore) Upload(ctx context.Context, file multipart.File, header *multipart.FileHeader) (string, error) {
	relPath, err := ms.pattern.Generate(baseName(header), time.Now(), extensionFor(header))
	if err != nil {
		return "", err
	}

	absPath := filepath.Join(ms.basePath, relPath)
	if _, err := os.Stat(absPath); err == nil {
		relPath = dedupePath(relPath)
		absPath = filepath.Join(ms.basePath, relPath)
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	dst, err := os.Create(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		_ = os.Remove(absPath)
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return ms.publicURL + filepath.ToSlash(relPath), nil
}

func (ms *FilesystemStore) Delete(ctx context.Context, url string) error {
	relPath, ok := strings.CutPrefix(url, ms.publicURL)
	if !ok {
		return fmt.Errorf("url %q is not served by this store", url)
	}

	absPath := filepath.Join(ms.basePath, filepath.FromSlash(relPath))
	if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}

// baseName picks a name for the stored file: the upload's own name without
// extension when present, otherwise a fresh uuid.
func baseName(header *multipart.FileHeader) string {
	name := filepath.Base(header.Filename)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if name == "" || name == "." {
		return uuid.NewString()
	}

	return name
}

// extensionFor derives a file extension from the declared content type,
// falling back to whatever the upload name carried.
func extensionFor(header *multipart.FileHeader) string {
	if contentType := header.Header.Get("Content-Type"); contentType != "" {
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			return strings.TrimPrefix(exts[0], ".")
		}
	}

	return strings.TrimPrefix(filepath.Ext(header.Filename), ".")
}

// dedupePath splices a short uuid fragment before the extension so a second
// upload of the same name does not clobber the first.
func dedupePath(relPath string) string {
	ext := filepath.Ext(relPath)
	return strings.TrimSuffix(relPath, ext) + "-" + uuid.NewString()[:8] + ext
}
