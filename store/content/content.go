package content

import (
	"context"
	"fmt"

	"github.com/indieinfra/inkwell/config"
	"github.com/indieinfra/inkwell/mf2"
)

// Store persists mf2 documents. All URLs are public post URLs; the store is
// responsible for mapping them to and from its own keys.
type Store interface {
	// Create stores a new document and returns the URL where it can be
	// located. The document must carry a slug property.
	Create(ctx context.Context, doc mf2.Document) (string, error)

	// Update applies Micropub update change sets to the document at url.
	// Returns the (possibly new) URL of the document.
	Update(ctx context.Context, url string, replacements map[string][]any, additions map[string][]any, deletions any) (string, error)

	// Delete marks the document at url deleted. It is up to the consumer to
	// stop displaying a deleted document.
	Delete(ctx context.Context, url string) error

	// Undelete clears the deleted mark. The bool reports whether the
	// document came back under a different URL.
	Undelete(ctx context.Context, url string) (string, bool, error)

	// Get returns the document at url, or ErrNotFound.
	Get(ctx context.Context, url string) (*mf2.Document, error)

	// ExistsBySlug reports whether a document exists under the given slug.
	ExistsBySlug(ctx context.Context, slug string) (bool, error)
}

// New builds the content store selected by the configured strategy.
func New(cfg *config.Content) (Store, error) {
	switch cfg.Strategy {
	case "noop":
		return &NoopStore{}, nil
	case "sql":
		return NewSQLStore(cfg.Sql)
	case "filesystem":
		return NewFilesystemStore(cfg.Filesystem)
	case "git":
		return NewGitStore(cfg.Git)
	case "d1":
		return NewD1Store(cfg.D1)
	default:
		return nil, fmt.Errorf("unknown content strategy %q", cfg.Strategy)
	}
}
