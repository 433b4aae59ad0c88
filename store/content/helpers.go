package content

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"

	"github.com/indieinfra/inkwell/mf2"
)

// ExtractSlug reads the slug property a document must carry before storage.
func ExtractSlug(doc mf2.Document) (string, error) {
	slug, ok := doc.FirstString("slug")
	if !ok || slug == "" {
		return "", fmt.Errorf("document must have a non-empty slug property")
	}

	return slug, nil
}

// ApplyMutations applies Micropub update semantics to a document in place:
// replacements overwrite whole properties, additions append values, and
// deletions either remove whole properties (list form) or individual values
// (map form, matched by deep equality).
func ApplyMutations(doc *mf2.Document, replacements map[string][]any, additions map[string][]any, deletions any) {
	if doc.Properties == nil {
		doc.Properties = make(mf2.Properties)
	}

	for key, values := range replacements {
		doc.Properties[key] = values
	}

	for key, values := range additions {
		doc.Properties[key] = append(doc.Properties[key], values...)
	}

	switch deletes := deletions.(type) {
	case map[string][]any:
		for key, valuesToRemove := range deletes {
			remaining := deleteValues(doc.Properties[key], valuesToRemove)
			if len(remaining) == 0 {
				delete(doc.Properties, key)
			} else {
				doc.Properties[key] = remaining
			}
		}
	case []any:
		for _, key := range deletes {
			if name, ok := key.(string); ok {
				delete(doc.Properties, name)
			}
		}
	case []string:
		for _, key := range deletes {
			delete(doc.Properties, key)
		}
	}
}

// deleteValues removes elements present in toRemove from values using deep
// equality.
func deleteValues(values []any, toRemove []any) []any {
	if len(values) == 0 || len(toRemove) == 0 {
		return values
	}

	var remaining []any
	for _, v := range values {
		if !containsValue(toRemove, v) {
			remaining = append(remaining, v)
		}
	}

	return remaining
}

func containsValue(list []any, value any) bool {
	for _, candidate := range list {
		if reflect.DeepEqual(candidate, value) {
			return true
		}
	}

	return false
}

// HasDeletedFlag reports whether the document carries a truthy deleted
// property.
func HasDeletedFlag(doc *mf2.Document) bool {
	if doc == nil || doc.Properties == nil {
		return false
	}

	values := doc.Properties["deleted"]
	if len(values) == 0 {
		return false
	}

	if b, ok := values[0].(bool); ok {
		return b
	}

	if s, ok := values[0].(string); ok {
		return strings.EqualFold(s, "true")
	}

	return false
}

// ShouldRecomputeSlug reports whether an update touched the properties that
// drive slug generation.
func ShouldRecomputeSlug(replacements map[string][]any, additions map[string][]any) bool {
	if _, ok := replacements["slug"]; ok {
		return true
	}

	for _, key := range []string{"name", "content"} {
		if _, ok := replacements[key]; ok {
			return true
		}
		if _, ok := additions[key]; ok {
			return true
		}
	}

	return false
}

// ComputeNewSlug determines the slug for a document after mutations: a direct
// slug replacement wins, otherwise the slug regenerates from name/content.
func ComputeNewSlug(doc *mf2.Document, replacements map[string][]any) (string, error) {
	if slugVals, ok := replacements["slug"]; ok && len(slugVals) > 0 {
		if slug, ok := slugVals[0].(string); ok && slug != "" {
			return slug, nil
		}
		return "", fmt.Errorf("slug replacement must be a non-empty string")
	}

	generated := mf2.GenerateSlug(*doc)
	if generated == "" {
		return "", fmt.Errorf("failed to generate slug from document")
	}

	return generated, nil
}

// slugExistsFunc checks slug existence in a backend-specific way.
type slugExistsFunc func(slug string) (bool, error)

// ensureUniqueSlug verifies a proposed slug is free, appending a UUID suffix
// on collision. The caller must hold whatever lock or transaction makes the
// check race-free for its backend.
func ensureUniqueSlug(proposed, old string, exists slugExistsFunc) (string, error) {
	if proposed == old {
		return proposed, nil
	}

	taken, err := exists(proposed)
	if err != nil {
		return "", fmt.Errorf("failed to check slug existence: %w", err)
	}

	if !taken {
		return proposed, nil
	}

	unique := fmt.Sprintf("%s-%s", proposed, uuid.New().String())
	taken, err = exists(unique)
	if err != nil {
		return "", fmt.Errorf("failed to check unique slug existence: %w", err)
	}

	if taken {
		return "", fmt.Errorf("slug collision persists even after uuid suffix: %s", unique)
	}

	return unique, nil
}
