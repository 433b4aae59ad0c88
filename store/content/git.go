package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/plumbing/transport"
	githttp "github.com/go-git/go-git/v6/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v6/plumbing/transport/ssh"

	"github.com/indieinfra/inkwell/config"
	"github.com/indieinfra/inkwell/mf2"
	storeutil "github.com/indieinfra/inkwell/store/util"
)

// GitStore keeps mf2 documents as JSON files in a remote git repository.
// Every mutation fast-forwards a local clone, commits, and pushes; a failed
// push rolls the local branch back so no unpushed state survives.
type GitStore struct {
	cfg       *config.GitContentStrategy
	auth      transport.AuthMethod
	repo      *git.Repository
	tmpDir    string
	branch    string
	publicURL string
	mu        sync.Mutex
}

// NewGitStore clones the configured repository into a temp directory.
func NewGitStore(cfg *config.GitContentStrategy) (*GitStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("git content config is nil")
	}

	auth, err := buildGitAuth(cfg)
	if err != nil {
		return nil, err
	}

	branch := cfg.Branch
	if branch == "" {
		branch = "main"
	}

	tmpDir, repo, err := freshClone(cfg, auth)
	if err != nil {
		return nil, err
	}

	return &GitStore{
		cfg:       cfg,
		auth:      auth,
		repo:      repo,
		tmpDir:    tmpDir,
		branch:    branch,
		publicURL: storeutil.NormalizeBaseURL(cfg.PublicUrl),
	}, nil
}

func buildGitAuth(cfg *config.GitContentStrategy) (transport.AuthMethod, error) {
	switch cfg.Auth.Method {
	case "plain":
		return &githttp.BasicAuth{
			Username: cfg.Auth.Plain.Username,
			Password: cfg.Auth.Plain.Password,
		}, nil
	case "ssh":
		pubkeys, err := gitssh.NewPublicKeysFromFile(cfg.Auth.Ssh.Username, cfg.Auth.Ssh.PrivateKeyFilePath, cfg.Auth.Ssh.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare content git ssh authentication: %w", err)
		}
		return pubkeys, nil
	default:
		return nil, fmt.Errorf("invalid git authentication method %q", cfg.Auth.Method)
	}
}

func freshClone(cfg *config.GitContentStrategy, auth transport.AuthMethod) (string, *git.Repository, error) {
	tmpDir, err := os.MkdirTemp("", "inkwell-*")
	if err != nil {
		return "", nil, err
	}

	repo, err := git.PlainClone(tmpDir, &git.CloneOptions{
		URL:  cfg.Repository,
		Auth: auth,
	})
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", nil, err
	}

	return tmpDir, repo, nil
}

// reinit throws away the local clone and starts over from the remote.
func (cs *GitStore) reinit() error {
	if err := os.RemoveAll(cs.tmpDir); err != nil {
		log.Printf("failed to remove tmp dir: %v", err)
	}

	tmpDir, repo, err := freshClone(cs.cfg, cs.auth)
	if err != nil {
		return err
	}

	cs.tmpDir = tmpDir
	cs.repo = repo
	return nil
}

// Cleanup removes the cloned repository directory. Call on shutdown.
func (cs *GitStore) Cleanup() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.tmpDir == "" {
		return nil
	}

	if err := os.RemoveAll(cs.tmpDir); err != nil {
		return fmt.Errorf("failed to cleanup git content store: %w", err)
	}

	cs.tmpDir = ""
	return nil
}

// fetchAndFastForward brings the local branch up to the remote head,
// reinitializing the clone on repeated failure.
func (cs *GitStore) fetchAndFastForward(ctx context.Context) error {
	var lastErr error

	for range 3 {
		err := cs.tryFastForward(ctx)
		if err == nil {
			return nil
		}

		lastErr = err
		if err := cs.reinit(); err != nil {
			return fmt.Errorf("%w: could not reinit: %w", lastErr, err)
		}
	}

	return fmt.Errorf("could not fetch + fast-forward: %w", lastErr)
}

func (cs *GitStore) tryFastForward(ctx context.Context) error {
	if err := cs.repo.FetchContext(ctx, &git.FetchOptions{Auth: cs.auth}); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return err
	}

	remoteRef, err := cs.repo.Reference(plumbing.NewRemoteReferenceName("origin", cs.branch), true)
	if err != nil {
		return err
	}

	localRef, err := cs.repo.Reference(plumbing.NewBranchReferenceName(cs.branch), true)
	if err != nil {
		return err
	}

	if localRef.Hash() == remoteRef.Hash() {
		return nil
	}

	if err := cs.repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName(cs.branch), remoteRef.Hash())); err != nil {
		return err
	}

	wt, err := cs.repo.Worktree()
	if err != nil {
		return err
	}

	return wt.Reset(&git.ResetOptions{
		Mode:   git.HardReset,
		Commit: remoteRef.Hash(),
	})
}

// commitAndPush stages the given paths, commits, and pushes. On push failure
// the local branch is rolled back (via reinit as a last resort) so the clone
// never diverges from the remote.
func (cs *GitStore) commitAndPush(ctx context.Context, message string, addPaths, removePaths []string) error {
	wt, err := cs.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	for _, p := range addPaths {
		if _, err := wt.Add(p); err != nil {
			return fmt.Errorf("failed to stage %s: %w", p, err)
		}
	}

	for _, p := range removePaths {
		if _, err := wt.Remove(p); err != nil {
			return fmt.Errorf("failed to stage removal of %s: %w", p, err)
		}
	}

	_, err = wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "inkwell",
			Email: "inkwell@local",
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create commit: %w", err)
	}

	if err := cs.repo.PushContext(ctx, &git.PushOptions{Auth: cs.auth}); err != nil {
		if reinitErr := cs.reinit(); reinitErr != nil {
			return fmt.Errorf("failed to push and failed to restore clone: push_error=%w, reinit_error=%v", err, reinitErr)
		}
		return fmt.Errorf("failed to push, local clone restored from remote: %w", err)
	}

	return nil
}

func (cs *GitStore) Create(ctx context.Context, doc mf2.Document) (string, error) {
	slug, err := ExtractSlug(doc)
	if err != nil {
		return "", err
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if err := cs.fetchAndFastForward(ctx); err != nil {
		return "", fmt.Errorf("failed to update repo from remote: %w", err)
	}

	uniqueSlug, err := ensureUniqueSlug(slug, "", cs.slugExistsLocked)
	if err != nil {
		return "", err
	}

	if uniqueSlug != slug {
		doc.Properties["slug"] = []any{uniqueSlug}
	}

	relPath := cs.relPath(uniqueSlug)
	if err := cs.writeDoc(relPath, doc); err != nil {
		return "", err
	}

	message := fmt.Sprintf("inkwell(add): create content entry: %v", uniqueSlug)
	if err := cs.commitAndPush(ctx, message, []string{relPath}, nil); err != nil {
		return "", err
	}

	return cs.publicURL + uniqueSlug, nil
}

func (cs *GitStore) Update(ctx context.Context, url string, replacements map[string][]any, additions map[string][]any, deletions any) (string, error) {
	oldSlug, err := mf2.SlugFromURL(url)
	if err != nil {
		return url, err
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if err := cs.fetchAndFastForward(ctx); err != nil {
		return url, fmt.Errorf("failed to update repo from remote: %w", err)
	}

	doc, err := cs.readDoc(cs.relPath(oldSlug))
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

		newSlug, err = ensureUniqueSlug(proposed, oldSlug, cs.slugExistsLocked)
		if err != nil {
			return url, err
		}

		doc.Properties["slug"] = []any{newSlug}
	}

	if newSlug != oldSlug {
		oldRel := cs.relPath(oldSlug)
		newRel := cs.relPath(newSlug)

		if err := cs.writeDoc(newRel, *doc); err != nil {
			return url, err
		}

		message := fmt.Sprintf("inkwell(update): rename %v to %v", oldSlug, newSlug)
		if err := cs.commitAndPush(ctx, message, []string{newRel}, []string{oldRel}); err != nil {
			return url, err
		}

		return cs.publicURL + newSlug, nil
	}

	relPath := cs.relPath(oldSlug)
	if err := cs.writeDoc(relPath, *doc); err != nil {
		return url, err
	}

	message := fmt.Sprintf("inkwell(update): update content entry: %v", oldSlug)
	if err := cs.commitAndPush(ctx, message, []string{relPath}, nil); err != nil {
		return url, err
	}

	return cs.publicURL + oldSlug, nil
}

func (cs *GitStore) Delete(ctx context.Context, url string) error {
	_, err := cs.setDeletedStatus(ctx, url, true)
	return err
}

func (cs *GitStore) Undelete(ctx context.Context, url string) (string, bool, error) {
	newURL, err := cs.setDeletedStatus(ctx, url, false)
	return newURL, false, err
}

func (cs *GitStore) Get(ctx context.Context, url string) (*mf2.Document, error) {
	slug, err := mf2.SlugFromURL(url)
	if err != nil {
		return nil, err
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if err := cs.fetchAndFastForward(ctx); err != nil {
		return nil, fmt.Errorf("failed to update repo from remote: %w", err)
	}

	return cs.readDoc(cs.relPath(slug))
}

func (cs *GitStore) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	return cs.slugExistsLocked(slug)
}

func (cs *GitStore) setDeletedStatus(ctx context.Context, url string, deleted bool) (string, error) {
	slug, err := mf2.SlugFromURL(url)
	if err != nil {
		return url, err
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if err := cs.fetchAndFastForward(ctx); err != nil {
		return url, fmt.Errorf("failed to update repo from remote: %w", err)
	}

	relPath := cs.relPath(slug)
	doc, err := cs.readDoc(relPath)
	if err != nil {
		return url, err
	}

	ApplyMutations(doc, map[string][]any{"deleted": {deleted}}, nil, nil)

	if err := cs.writeDoc(relPath, *doc); err != nil {
		return url, err
	}

	verb := "delete"
	if !deleted {
		verb = "undelete"
	}

	message := fmt.Sprintf("inkwell(%s): %s content entry: %v", verb, verb, slug)
	if err := cs.commitAndPush(ctx, message, []string{relPath}, nil); err != nil {
		return url, err
	}

	return cs.publicURL + slug, nil
}

func (cs *GitStore) relPath(slug string) string {
	return filepath.Join(cs.cfg.Path, slug+".json")
}

func (cs *GitStore) slugExistsLocked(slug string) (bool, error) {
	_, err := os.Stat(filepath.Join(cs.tmpDir, cs.relPath(slug)))
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, err
}

func (cs *GitStore) readDoc(relPath string) (*mf2.Document, error) {
	data, err := os.ReadFile(filepath.Join(cs.tmpDir, relPath))
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

func (cs *GitStore) writeDoc(relPath string, doc mf2.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	fullPath := filepath.Join(cs.tmpDir, relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create required directory structure: %w", err)
	}

	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}
