package micropub

import (
	"strings"

	"github.com/indieinfra/inkwell/mf2"
)

// NormalizeForm converts a parsed form body into the canonical mf2 document.
// The "h" key becomes the type list as "h-" + value, defaulting to h-entry.
// Every other key becomes a property: keys with the conventional "[]" suffix
// keep their value list with the suffix stripped, scalar keys are wrapped in
// a single-element list.
func NormalizeForm(body map[string]any) mf2.Document {
	doc := mf2.Document{
		Type:       []string{"h-entry"},
		Properties: mf2.Properties{},
	}

	for key, val := range body {
		if key == "h" {
			if s, ok := firstString(val); ok && s != "" {
				doc.Type = []string{"h-" + s}
			}
			continue
		}

		key = strings.TrimSuffix(key, "[]")
		doc.Properties[key] = append(doc.Properties[key], asList(val)...)
	}

	return doc
}

func asList(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case nil:
		return nil
	default:
		return []any{x}
	}
}
