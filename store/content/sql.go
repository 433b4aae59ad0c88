package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/indieinfra/inkwell/config"
	"github.com/indieinfra/inkwell/mf2"
	storeutil "github.com/indieinfra/inkwell/store/util"
)

type placeholderStyle int

const (
	placeholderQuestion placeholderStyle = iota
	placeholderDollar
)

// SQLStore persists documents in a relational database. Postgres (pgx),
// MySQL, and embedded SQLite are supported.
type SQLStore struct {
	cfg         *config.SQLContentStrategy
	db          *sql.DB
	table       string
	placeholder placeholderStyle
	publicURL   string
}

// NewSQLStore opens the configured database and ensures the schema exists.
func NewSQLStore(cfg *config.SQLContentStrategy) (*SQLStore, error) {
	store, err := newSQLStoreWithDB(cfg, nil)
	if err != nil {
		return nil, err
	}

	driverName, err := resolveSQLDriverName(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, err
	}

	store.db = db

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// newSQLStoreWithDB builds a store around an existing handle; tests inject a
// mock here.
func newSQLStoreWithDB(cfg *config.SQLContentStrategy, db *sql.DB) (*SQLStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("content sql config is nil")
	}

	prefix := "inkwell"
	if cfg.TablePrefix != nil {
		prefix = *cfg.TablePrefix
	}

	placeholder, err := detectPlaceholderStyle(cfg.Driver)
	if err != nil {
		return nil, err
	}

	return &SQLStore{
		cfg:         cfg,
		db:          db,
		table:       storeutil.DeriveTableName(prefix, "content"),
		placeholder: placeholder,
		publicURL:   storeutil.NormalizeBaseURL(cfg.PublicUrl),
	}, nil
}

func detectPlaceholderStyle(driver string) (placeholderStyle, error) {
	driverName, err := resolveSQLDriverName(driver)
	if err != nil {
		return placeholderQuestion, err
	}

	if driverName == "pgx" {
		return placeholderDollar, nil
	}

	return placeholderQuestion, nil
}

func resolveSQLDriverName(driver string) (string, error) {
	switch strings.ToLower(driver) {
	case "postgres":
		return "pgx", nil
	case "mysql":
		return "mysql", nil
	case "sqlite":
		return "sqlite", nil
	default:
		return "", fmt.Errorf("unsupported sql driver %q", driver)
	}
}

func (cs *SQLStore) initSchema(ctx context.Context) error {
	_, err := cs.db.ExecContext(ctx, cs.schemaQuery())
	return err
}

func (cs *SQLStore) schemaQuery() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
slug VARCHAR(255) PRIMARY KEY,
url TEXT NOT NULL,
doc TEXT NOT NULL,
deleted BOOLEAN NOT NULL DEFAULT FALSE,
updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, cs.table)
}

func (cs *SQLStore) Create(ctx context.Context, doc mf2.Document) (string, error) {
	slug, err := ExtractSlug(doc)
	if err != nil {
		return "", err
	}

	url := cs.publicURL + slug

	payload, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}

	if _, err := cs.db.ExecContext(ctx, cs.insertQuery(), slug, url, string(payload), false); err != nil {
		return "", err
	}

	return url, nil
}

func (cs *SQLStore) Update(ctx context.Context, url string, replacements map[string][]any, additions map[string][]any, deletions any) (string, error) {
	oldSlug, err := mf2.SlugFromURL(url)
	if err != nil {
		return url, err
	}

	doc, err := cs.getDocBySlug(ctx, oldSlug)
	if err != nil {
		return url, err
	}

	ApplyMutations(doc, replacements, additions, deletions)

	// Slug collisions are re-checked inside the transaction below to avoid a
	// TOCTOU race; here we only compute the proposal.
	newSlug := oldSlug
	if ShouldRecomputeSlug(replacements, additions) {
		newSlug, err = ComputeNewSlug(doc, replacements)
		if err != nil {
			return url, err
		}
		doc.Properties["slug"] = []any{newSlug}
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return url, err
	}

	newURL := cs.publicURL + newSlug

	tx, err := cs.db.BeginTx(ctx, nil)
	if err != nil {
		return url, err
	}
	defer func() {
		// Rollback after Commit returns sql.ErrTxDone, which is fine.
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Printf("unexpected error during transaction rollback in Update: %v", rbErr)
		}
	}()

	if newSlug != oldSlug {
		finalSlug, err := ensureUniqueSlug(newSlug, oldSlug, func(slug string) (bool, error) {
			return cs.slugExistsInTx(ctx, tx, slug)
		})
		if err != nil {
			return url, err
		}

		if finalSlug != newSlug {
			newSlug = finalSlug
			newURL = cs.publicURL + newSlug
			doc.Properties["slug"] = []any{newSlug}

			payload, err = json.Marshal(doc)
			if err != nil {
				return url, err
			}
		}

		deleteQuery := fmt.Sprintf("DELETE FROM %s WHERE slug = %s", cs.table, cs.placeholderFor(1))
		if _, err := tx.ExecContext(ctx, deleteQuery, oldSlug); err != nil {
			return url, err
		}

		if _, err := tx.ExecContext(ctx, cs.insertQuery(), newSlug, newURL, string(payload), HasDeletedFlag(doc)); err != nil {
			return url, err
		}
	} else {
		if _, err := tx.ExecContext(ctx, cs.updateQuery(), string(payload), HasDeletedFlag(doc), oldSlug); err != nil {
			return url, err
		}
	}

	if err := tx.Commit(); err != nil {
		return url, err
	}

	return newURL, nil
}

func (cs *SQLStore) Delete(ctx context.Context, url string) error {
	_, err := cs.setDeletedStatus(ctx, url, true)
	return err
}

func (cs *SQLStore) Undelete(ctx context.Context, url string) (string, bool, error) {
	newURL, err := cs.setDeletedStatus(ctx, url, false)
	return newURL, false, err
}

func (cs *SQLStore) Get(ctx context.Context, url string) (*mf2.Document, error) {
	slug, err := mf2.SlugFromURL(url)
	if err != nil {
		return nil, err
	}

	return cs.getDocBySlug(ctx, slug)
}

func (cs *SQLStore) getDocBySlug(ctx context.Context, slug string) (*mf2.Document, error) {
	row := cs.db.QueryRowContext(ctx, cs.selectQuery(), slug)

	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var doc mf2.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

func (cs *SQLStore) setDeletedStatus(ctx context.Context, url string, deleted bool) (string, error) {
	slug, err := mf2.SlugFromURL(url)
	if err != nil {
		return url, err
	}

	doc, err := cs.getDocBySlug(ctx, slug)
	if err != nil {
		return url, err
	}

	ApplyMutations(doc, map[string][]any{"deleted": {deleted}}, nil, nil)

	payload, err := json.Marshal(doc)
	if err != nil {
		return url, err
	}

	if _, err := cs.db.ExecContext(ctx, cs.updateQuery(), string(payload), deleted, slug); err != nil {
		return url, err
	}

	return cs.publicURL + slug, nil
}

func (cs *SQLStore) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	row := cs.db.QueryRowContext(ctx, cs.existsQuery(), slug)

	var found int
	if err := row.Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (cs *SQLStore) slugExistsInTx(ctx context.Context, tx *sql.Tx, slug string) (bool, error) {
	row := tx.QueryRowContext(ctx, cs.existsQuery(), slug)

	var found int
	if err := row.Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (cs *SQLStore) insertQuery() string {
	return fmt.Sprintf(
		"INSERT INTO %s (slug, url, doc, deleted, updated_at) VALUES (%s, %s, %s, %s, CURRENT_TIMESTAMP)",
		cs.table,
		cs.placeholderFor(1),
		cs.placeholderFor(2),
		cs.placeholderFor(3),
		cs.placeholderFor(4),
	)
}

func (cs *SQLStore) updateQuery() string {
	return fmt.Sprintf(
		"UPDATE %s SET doc = %s, deleted = %s, updated_at = CURRENT_TIMESTAMP WHERE slug = %s",
		cs.table,
		cs.placeholderFor(1),
		cs.placeholderFor(2),
		cs.placeholderFor(3),
	)
}

func (cs *SQLStore) selectQuery() string {
	return fmt.Sprintf("SELECT doc FROM %s WHERE slug = %s", cs.table, cs.placeholderFor(1))
}

func (cs *SQLStore) existsQuery() string {
	return fmt.Sprintf("SELECT 1 FROM %s WHERE slug = %s", cs.table, cs.placeholderFor(1))
}

func (cs *SQLStore) placeholderFor(index int) string {
	if cs.placeholder == placeholderDollar {
		return fmt.Sprintf("$%d", index)
	}

	return "?"
}
