package media

import (
	"context"
	"log"
	"mime/multipart"
)

// NoopStore logs uploads and stores nothing.
type NoopStore struct{}

func (ms *NoopStore) Upload(ctx context.Context, file multipart.File, header *multipart.FileHeader) (string, error) {
	log.Printf("noop media upload: name=%v size=%v type=%v", header.Filename, header.Size, header.Header.Get("Content-Type"))
	return "https://noop.example.org/media/noop", nil
}

func (ms *NoopStore) Delete(ctx context.Context, url string) error {
	log.Printf("noop media delete: url=%v", url)
	return nil
}
