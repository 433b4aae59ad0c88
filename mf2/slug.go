package mf2

import (
	"fmt"
	"strings"

	"github.com/gosimple/slug"
)

// GenerateSlug derives a URL slug from a document's name and content
// properties. Name text is preferred; when it carries fewer than five words,
// content words pad it out. HTML content values are reduced to text first.
func GenerateSlug(doc Document) string {
	var nameText string
	var contentText string

	if name, ok := doc.Properties["name"]; ok {
		nameText = extractText(name)
	}

	if content, ok := doc.Properties["content"]; ok {
		contentText = extractText(content)
	}

	var generated string
	if nameText != "" {
		generated = slug.Make(nameText)
	}

	if len(strings.Fields(nameText)) < 5 && contentText != "" {
		var combined []string
		if nameText != "" {
			combined = append(combined, nameText)
		}

		for _, word := range strings.Fields(contentText) {
			combined = append(combined, word)
			if len(combined) >= 5 {
				break
			}
		}

		if len(combined) > 0 {
			generated = slug.Make(strings.Join(combined, " "))
		}
	}

	if generated == "" && contentText != "" {
		generated = slug.Make(contentText)
	}

	return generated
}

// SlugFromURL extracts the final path segment from a URL-like string.
func SlugFromURL(raw string) (string, error) {
	parts := strings.Split(strings.TrimSuffix(raw, "/"), "/")
	if len(parts) == 0 {
		return "", fmt.Errorf("invalid url")
	}

	s := parts[len(parts)-1]
	if s == "" {
		return "", fmt.Errorf("url %q does not have a valid slug", raw)
	}

	return s, nil
}

// extractText pulls the first usable text out of a property value list.
// Handles plain strings and embedded {html: ...} content objects.
func extractText(values []any) string {
	for _, val := range values {
		if val == nil {
			continue
		}

		if str, ok := val.(string); ok && str != "" {
			return str
		}

		obj, ok := val.(map[string]any)
		if !ok {
			continue
		}

		switch v := obj["html"].(type) {
		case string:
			if v != "" {
				return HTMLToText(v, 100)
			}
		case []any:
			if len(v) > 0 {
				if htmlStr, ok := v[0].(string); ok && htmlStr != "" {
					return HTMLToText(htmlStr, 100)
				}
			}
		}
	}

	return ""
}
