package util

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// PathPattern is a configurable template for generating file paths.
// Supported placeholders:
//   - {year}     - 4-digit year
//   - {month}    - 2-digit month
//   - {day}      - 2-digit day
//   - {slug}     - the document slug
//   - {ext}      - file extension with leading dot
//   - {filename} - slug plus extension
//
// Example: "{year}/{month}/{slug}.json" → "2026/08/my-post.json"
type PathPattern struct {
	pattern string
}

// NewPathPattern creates a PathPattern from a template string.
func NewPathPattern(pattern string) *PathPattern {
	return &PathPattern{pattern: pattern}
}

// Generate produces a file path by substituting placeholders. Pass a zero
// time to skip the date placeholders and an empty string to skip {ext}.
func (p *PathPattern) Generate(slug string, timestamp time.Time, ext string) (string, error) {
	if slug == "" {
		return "", fmt.Errorf("slug cannot be empty")
	}

	result := p.pattern

	if !timestamp.IsZero() {
		result = strings.ReplaceAll(result, "{year}", fmt.Sprintf("%04d", timestamp.Year()))
		result = strings.ReplaceAll(result, "{month}", fmt.Sprintf("%02d", timestamp.Month()))
		result = strings.ReplaceAll(result, "{day}", fmt.Sprintf("%02d", timestamp.Day()))
	}

	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	filename := slug
	if ext != "" {
		filename = slug + ext
	}

	result = strings.ReplaceAll(result, "{slug}", slug)
	result = strings.ReplaceAll(result, "{filename}", filename)
	result = strings.ReplaceAll(result, "{ext}", ext)

	return filepath.Clean(result), nil
}

// DefaultContentPattern returns the flat default pattern for content files.
func DefaultContentPattern() *PathPattern {
	return NewPathPattern("{slug}.json")
}

// DefaultMediaPattern returns the date-organized default pattern for media.
func DefaultMediaPattern() *PathPattern {
	return NewPathPattern("{year}/{month}/{filename}")
}
