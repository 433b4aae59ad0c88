package content

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudflare/cloudflare-go/v6"
	cfd1 "github.com/cloudflare/cloudflare-go/v6/d1"
	"github.com/cloudflare/cloudflare-go/v6/option"

	"github.com/indieinfra/inkwell/config"
	"github.com/indieinfra/inkwell/mf2"
	storeutil "github.com/indieinfra/inkwell/store/util"
)

// D1Store persists documents in a Cloudflare D1 database via the HTTP API.
// It mirrors the schema of SQLStore to keep parity across backends. D1 has no
// transactions, so the slug-rename path simulates atomicity with a manual
// insert-verify-delete sequence and rollback.
type D1Store struct {
	cfg       *config.D1ContentStrategy
	client    *cloudflare.Client
	table     string
	publicURL string
}

// NewD1Store builds a D1Store and ensures the schema exists.
func NewD1Store(cfg *config.D1ContentStrategy) (*D1Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("d1 content config is nil")
	}

	prefix := "inkwell"
	if cfg.TablePrefix != nil {
		prefix = *cfg.TablePrefix
	}

	store := &D1Store{
		cfg:       cfg,
		client:    buildD1Client(cfg),
		table:     storeutil.DeriveTableName(prefix, "content"),
		publicURL: storeutil.NormalizeBaseURL(cfg.PublicUrl),
	}

	// Schema creation doubles as a connectivity/auth check.
	if err := store.initSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("d1 initialization failed (check account_id, database_id, and api_token): %w", err)
	}

	return store, nil
}

func buildD1Client(cfg *config.D1ContentStrategy) *cloudflare.Client {
	opts := []option.RequestOption{option.WithAPIToken(strings.TrimSpace(cfg.APIToken))}

	if base := strings.TrimSpace(cfg.Endpoint); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}

	return cloudflare.NewClient(opts...)
}

func (cs *D1Store) initSchema(ctx context.Context) error {
	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
slug TEXT PRIMARY KEY,
url TEXT NOT NULL,
doc TEXT NOT NULL,
deleted BOOLEAN NOT NULL DEFAULT FALSE,
updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, cs.table)

	_, err := cs.executeQuery(ctx, schema, nil)
	return err
}

func (cs *D1Store) insertQuery() string {
	return fmt.Sprintf("INSERT INTO %s (slug, url, doc, deleted, updated_at) VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)", cs.table)
}

func (cs *D1Store) updateQuery() string {
	return fmt.Sprintf("UPDATE %s SET doc = ?, deleted = ?, updated_at = CURRENT_TIMESTAMP WHERE slug = ?", cs.table)
}

func (cs *D1Store) Create(ctx context.Context, doc mf2.Document) (string, error) {
	slug, err := ExtractSlug(doc)
	if err != nil {
		return "", err
	}

	url := cs.publicURL + slug

	payload, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}

	if _, err := cs.executeQuery(ctx, cs.insertQuery(), []any{slug, url, string(payload), false}); err != nil {
		return "", err
	}

	return url, nil
}

func (cs *D1Store) Update(ctx context.Context, url string, replacements map[string][]any, additions map[string][]any, deletions any) (string, error) {
	oldSlug, err := mf2.SlugFromURL(url)
	if err != nil {
		return url, err
	}

	doc, err := cs.getDocBySlug(ctx, oldSlug)
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

		newSlug, err = ensureUniqueSlug(proposed, oldSlug, func(slug string) (bool, error) {
			return cs.ExistsBySlug(ctx, slug)
		})
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

	if newSlug != oldSlug {
		deleteQuery := fmt.Sprintf("DELETE FROM %s WHERE slug = ?", cs.table)

		if _, err := cs.executeQuery(ctx, cs.insertQuery(), []any{newSlug, newURL, string(payload), HasDeletedFlag(doc)}); err != nil {
			return url, fmt.Errorf("failed to insert new row for slug change: %w", err)
		}

		exists, err := cs.ExistsBySlug(ctx, newSlug)
		if err != nil || !exists {
			_, _ = cs.executeQuery(ctx, deleteQuery, []any{newSlug})
			if err != nil {
				return url, fmt.Errorf("failed to verify new row after insert: %w", err)
			}
			return url, fmt.Errorf("new row not found after insert, refusing to proceed")
		}

		if _, err := cs.executeQuery(ctx, deleteQuery, []any{oldSlug}); err != nil {
			if _, rbErr := cs.executeQuery(ctx, deleteQuery, []any{newSlug}); rbErr != nil {
				return url, fmt.Errorf("failed to delete old row and rollback failed (system inconsistent): delete_error=%w, rollback_error=%v", err, rbErr)
			}
			return url, fmt.Errorf("failed to delete old row (rolled back successfully): %w", err)
		}
	} else {
		if _, err := cs.executeQuery(ctx, cs.updateQuery(), []any{string(payload), HasDeletedFlag(doc), oldSlug}); err != nil {
			return url, err
		}
	}

	return newURL, nil
}

func (cs *D1Store) Delete(ctx context.Context, url string) error {
	_, err := cs.setDeletedStatus(ctx, url, true)
	return err
}

func (cs *D1Store) Undelete(ctx context.Context, url string) (string, bool, error) {
	newURL, err := cs.setDeletedStatus(ctx, url, false)
	return newURL, false, err
}

func (cs *D1Store) Get(ctx context.Context, url string) (*mf2.Document, error) {
	slug, err := mf2.SlugFromURL(url)
	if err != nil {
		return nil, err
	}

	return cs.getDocBySlug(ctx, slug)
}

func (cs *D1Store) getDocBySlug(ctx context.Context, slug string) (*mf2.Document, error) {
	selectQuery := fmt.Sprintf("SELECT doc FROM %s WHERE slug = ? LIMIT 1", cs.table)

	rows, err := cs.executeQuery(ctx, selectQuery, []any{slug})
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	raw, ok := rows[0]["doc"].(string)
	if !ok || raw == "" {
		return nil, fmt.Errorf("doc column missing or not a string")
	}

	var doc mf2.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

func (cs *D1Store) setDeletedStatus(ctx context.Context, url string, deleted bool) (string, error) {
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

	if _, err := cs.executeQuery(ctx, cs.updateQuery(), []any{string(payload), deleted, slug}); err != nil {
		return url, err
	}

	return cs.publicURL + slug, nil
}

func (cs *D1Store) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	existsQuery := fmt.Sprintf("SELECT 1 FROM %s WHERE slug = ? LIMIT 1", cs.table)

	rows, err := cs.executeQuery(ctx, existsQuery, []any{slug})
	if err != nil {
		return false, err
	}

	return len(rows) > 0, nil
}

// executeQuery sends a SQL statement to the D1 HTTP API and returns the
// result rows. Nil rows with a nil error means the query succeeded without
// producing results.
func (cs *D1Store) executeQuery(ctx context.Context, sql string, params []any) ([]map[string]any, error) {
	body := cfd1.DatabaseQueryParamsBodyD1SingleQuery{Sql: cloudflare.F(sql)}
	if len(params) > 0 {
		body.Params = cloudflare.F(convertParams(params))
	}

	resp, err := cs.client.D1.Database.Query(ctx, cs.cfg.DatabaseID, cfd1.DatabaseQueryParams{
		AccountID: cloudflare.F(strings.TrimSpace(cs.cfg.AccountID)),
		Body:      body,
	})
	if err != nil {
		return nil, err
	}

	if resp == nil || len(resp.Result) == 0 {
		return nil, nil
	}

	result := resp.Result[0]
	if !result.Success {
		return nil, fmt.Errorf("d1 query execution failed")
	}

	rows := make([]map[string]any, 0, len(result.Results))
	for _, r := range result.Results {
		m, ok := r.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected row type %T", r)
		}
		rows = append(rows, m)
	}

	return rows, nil
}

// convertParams converts query parameters to D1's string-based format.
// Booleans become "1"/"0"; everything else goes through Sprint.
func convertParams(params []any) []string {
	out := make([]string, 0, len(params))
	for _, p := range params {
		switch v := p.(type) {
		case bool:
			if v {
				out = append(out, "1")
			} else {
				out = append(out, "0")
			}
		default:
			out = append(out, fmt.Sprint(p))
		}
	}

	return out
}
