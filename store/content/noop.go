package content

import (
	"context"
	"log"

	"github.com/indieinfra/inkwell/mf2"
)

// NoopStore logs every operation and persists nothing. Useful for wiring
// checks and local protocol testing.
type NoopStore struct{}

func (cs *NoopStore) Create(ctx context.Context, doc mf2.Document) (string, error) {
	log.Println("noop content create:")
	log.Printf("\ttype: %v", doc.Type)
	for key, value := range doc.Properties {
		log.Printf("\t%v: %v", key, value)
	}
	return "https://noop.example.org/noop", nil
}

func (cs *NoopStore) Update(ctx context.Context, url string, replacements map[string][]any, additions map[string][]any, deletions any) (string, error) {
	log.Printf("noop content update: url=%v replace=%v add=%v delete=%v", url, replacements, additions, deletions)
	return url, nil
}

func (cs *NoopStore) Delete(ctx context.Context, url string) error {
	log.Printf("noop content delete: url=%v", url)
	return nil
}

func (cs *NoopStore) Undelete(ctx context.Context, url string) (string, bool, error) {
	log.Printf("noop content undelete: url=%v", url)
	return url, false, nil
}

func (cs *NoopStore) Get(ctx context.Context, url string) (*mf2.Document, error) {
	log.Printf("noop content get: url=%v (returning canned document)", url)
	return &mf2.Document{
		Type: []string{"h-entry"},
		Properties: mf2.Properties{
			"name":    {"This is a placeholder title"},
			"content": {"This is placeholder content, sentence one", "sentence two!"},
			"url":     {url},
		},
	}, nil
}

func (cs *NoopStore) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	log.Printf("noop content exists-by-slug: slug=%v", slug)
	return false, nil
}
