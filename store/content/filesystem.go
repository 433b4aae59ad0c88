package content

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/indieinfra/inkwell/config"
	"github.com/indieinfra/inkwell/mf2"
	storeutil "github.com/indieinfra/inkwell/store/util"
)

// FilesystemStore stores mf2 documents as JSON files in a local directory,
// keyed by slug through an in-memory index rebuilt at startup.
type FilesystemStore struct {
	basePath   string
	publicURL  string
	pattern    *storeutil.PathPattern
	slugToPath map[string]string
	mu         sync.Mutex
}

// NewFilesystemStore prepares the base directory and builds the slug index.
func NewFilesystemStore(cfg *config.FilesystemContentStrategy) (*FilesystemStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("filesystem content config is nil")
	}

	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	pattern := storeutil.DefaultContentPattern()
	if cfg.PathPattern != "" {
		pattern = storeutil.NewPathPattern(cfg.PathPattern)
	}

	store := &FilesystemStore{
		basePath:   cfg.Path,
		publicURL:  storeutil.NormalizeBaseURL(cfg.PublicUrl),
		pattern:    pattern,
		slugToPath: make(map[string]string),
	}

	if err := store.rebuildIndex(); err != nil {
		return nil, fmt.Errorf("failed to build index: %w", err)
	}

	return store, nil
}

// rebuildIndex scans the base directory and maps slugs to file paths.
// Unreadable or slug-less files are skipped with a warning rather than
// failing startup.
func (fs *FilesystemStore) rebuildIndex() error {
	fs.slugToPath = make(map[string]string)

	return filepath.WalkDir(fs.basePath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		relPath, err := filepath.Rel(fs.basePath, path)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("warning: failed to read %s during index rebuild: %v", relPath, err)
			return nil
		}

		var doc mf2.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			log.Printf("warning: failed to unmarshal %s during index rebuild: %v", relPath, err)
			return nil
		}

		slug, err := ExtractSlug(doc)
		if err != nil {
			log.Printf("warning: no slug in %s during index rebuild: %v", relPath, err)
			return nil
		}

		fs.slugToPath[slug] = relPath
		return nil
	})
}

func (fs *FilesystemStore) Create(ctx context.Context, doc mf2.Document) (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	slug, err := ExtractSlug(doc)
	if err != nil {
		return "", err
	}

	uniqueSlug, err := ensureUniqueSlug(slug, "", fs.slugExistsLocked)
	if err != nil {
		return "", err
	}

	if uniqueSlug != slug {
		doc.Properties["slug"] = []any{uniqueSlug}
	}

	relPath, err := fs.pattern.Generate(uniqueSlug, time.Now(), "")
	if err != nil {
		return "", err
	}

	if err := fs.writeDoc(relPath, doc); err != nil {
		return "", err
	}

	fs.slugToPath[uniqueSlug] = relPath
	return fs.publicURL + uniqueSlug, nil
}

func (fs *FilesystemStore) Update(ctx context.Context, url string, replacements map[string][]any, additions map[string][]any, deletions any) (string, error) {
	oldSlug, err := mf2.SlugFromURL(url)
	if err != nil {
		return url, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	oldPath, ok := fs.slugToPath[oldSlug]
	if !ok {
		return url, ErrNotFound
	}

	doc, err := fs.readDoc(oldPath)
	if err != nil {
		return url, err
	}

	ApplyMutations(doc, replacements, additions, deletions)

	newSlug := oldSlug
	if ShouldRecomputeSlug(replacements, additions) {
		proposed, err := ComputeNewSlug(doc, replacements)
		if err != nil {
			return url, err
		}

		newSlug, err = ensureUniqueSlug(proposed, oldSlug, fs.slugExistsLocked)
		if err != nil {
			return url, err
		}

		doc.Properties["slug"] = []any{newSlug}
	}

	if newSlug != oldSlug {
		newPath, err := fs.pattern.Generate(newSlug, time.Now(), "")
		if err != nil {
			return url, err
		}

		if err := fs.writeDoc(newPath, *doc); err != nil {
			return url, err
		}

		if err := os.Remove(filepath.Join(fs.basePath, oldPath)); err != nil {
			_ = os.Remove(filepath.Join(fs.basePath, newPath))
			return url, fmt.Errorf("failed to remove old file: %w", err)
		}

		delete(fs.slugToPath, oldSlug)
		fs.slugToPath[newSlug] = newPath
		return fs.publicURL + newSlug, nil
	}

	if err := fs.writeDoc(oldPath, *doc); err != nil {
		return url, err
	}

	return fs.publicURL + oldSlug, nil
}

func (fs *FilesystemStore) Delete(ctx context.Context, url string) error {
	_, err := fs.setDeletedStatus(url, true)
	return err
}

func (fs *FilesystemStore) Undelete(ctx context.Context, url string) (string, bool, error) {
	newURL, err := fs.setDeletedStatus(url, false)
	return newURL, false, err
}

func (fs *FilesystemStore) Get(ctx context.Context, url string) (*mf2.Document, error) {
	slug, err := mf2.SlugFromURL(url)
	if err != nil {
		return nil, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	relPath, ok := fs.slugToPath[slug]
	if !ok {
		return nil, ErrNotFound
	}

	return fs.readDoc(relPath)
}

func (fs *FilesystemStore) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.slugExistsLocked(slug)
}

func (fs *FilesystemStore) slugExistsLocked(slug string) (bool, error) {
	_, ok := fs.slugToPath[slug]
	return ok, nil
}

func (fs *FilesystemStore) setDeletedStatus(url string, deleted bool) (string, error) {
	slug, err := mf2.SlugFromURL(url)
	if err != nil {
		return url, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	relPath, ok := fs.slugToPath[slug]
	if !ok {
		return url, ErrNotFound
	}

	doc, err := fs.readDoc(relPath)
	if err != nil {
		return url, err
	}

	ApplyMutations(doc, map[string][]any{"deleted": {deleted}}, nil, nil)

	if err := fs.writeDoc(relPath, *doc); err != nil {
		return url, err
	}

	return fs.publicURL + slug, nil
}

func (fs *FilesystemStore) readDoc(relPath string) (*mf2.Document, error) {
	data, err := os.ReadFile(filepath.Join(fs.basePath, relPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var doc mf2.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

func (fs *FilesystemStore) writeDoc(relPath string, doc mf2.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	absPath := filepath.Join(fs.basePath, relPath)
	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(absPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}
