package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/indieinfra/inkwell/config"
)

func newTestFilesystemStore(t *testing.T) (*FilesystemStore, string) {
	t.Helper()

	dir := t.TempDir()
	store, err := NewFilesystemStore(&config.FilesystemMediaStrategy{
		Path:      dir,
		PublicUrl: "https://media.example.org",
	})
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}

	return store, dir
}

func TestFilesystemStore_Upload(t *testing.T) {
	store, dir := newTestFilesystemStore(t)

	file, header := textUpload(11)
	url, err := store.Upload(context.Background(), file, header)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	if !strings.HasPrefix(url, "https://media.example.org/") || !strings.Contains(url, "/file") {
		t.Fatalf("unexpected url: %q", url)
	}

	rel := strings.TrimPrefix(url, "https://media.example.org/")
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("uploaded file missing: %v", err)
	}

	if len(data) != 11 {
		t.Fatalf("unexpected file size: %d", len(data))
	}
}

func TestFilesystemStore_UploadCollisionGetsSuffix(t *testing.T) {
	store, _ := newTestFilesystemStore(t)

	file, header := textUpload(3)
	first, err := store.Upload(context.Background(), file, header)
	if err != nil {
		t.Fatalf("first upload failed: %v", err)
	}

	file, header = textUpload(3)
	second, err := store.Upload(context.Background(), file, header)
	if err != nil {
		t.Fatalf("second upload failed: %v", err)
	}

	if first == second {
		t.Fatalf("colliding uploads must get distinct urls: %q", first)
	}
}

func TestFilesystemStore_Delete(t *testing.T) {
	store, dir := newTestFilesystemStore(t)

	file, header := textUpload(3)
	url, err := store.Upload(context.Background(), file, header)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	if err := store.Delete(context.Background(), url); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	rel := strings.TrimPrefix(url, "https://media.example.org/")
	if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel))); !os.IsNotExist(err) {
		t.Fatalf("file must be removed, stat returned %v", err)
	}
}

func TestFilesystemStore_DeleteForeignURL(t *testing.T) {
	store, _ := newTestFilesystemStore(t)

	if err := store.Delete(context.Background(), "https://elsewhere.example.org/file.txt"); err == nil {
		t.Fatalf("expected error for a url outside the public base")
	}
}

func TestNoopStore_Upload(t *testing.T) {
	store := &NoopStore{}

	file, header := textUpload(3)
	url, err := store.Upload(context.Background(), file, header)
	if err != nil || url == "" {
		t.Fatalf("noop upload must return a url: %q, %v", url, err)
	}

	if err := store.Delete(context.Background(), url); err != nil {
		t.Fatalf("noop delete must not error: %v", err)
	}
}
