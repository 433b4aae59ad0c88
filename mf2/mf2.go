package mf2

import (
	"errors"
	"fmt"
)

// Properties maps a microformats2 property name to its ordered list of values.
type Properties map[string][]any

// Document is the canonical microformats2 representation of a post: a type list
// (e.g. ["h-entry"]) plus a property map. Micropub JSON requests carry this shape
// natively; form-encoded requests are normalized into it before dispatch.
type Document struct {
	Type       []string   `json:"type"`
	Properties Properties `json:"properties"`
}

// FromMap builds a Document from a decoded JSON object. Missing or malformed
// "type"/"properties" keys degrade to an empty slice/map rather than erroring;
// Validate reports the resulting structural problems.
func FromMap(m map[string]any) Document {
	doc := Document{Properties: Properties{}}

	switch t := m["type"].(type) {
	case string:
		doc.Type = []string{t}
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok {
				doc.Type = append(doc.Type, s)
			}
		}
	}

	if props, ok := m["properties"].(map[string]any); ok {
		for key, val := range props {
			switch v := val.(type) {
			case []any:
				doc.Properties[key] = v
			default:
				doc.Properties[key] = []any{v}
			}
		}
	}

	return doc
}

// FirstString returns the first string value of the named property.
func (d Document) FirstString(key string) (string, bool) {
	values, ok := d.Properties[key]
	if !ok || len(values) == 0 {
		return "", false
	}

	s, ok := values[0].(string)
	return s, ok
}

// Validate checks the structural invariants of an mf2 document.
func Validate(doc Document) error {
	if len(doc.Type) == 0 {
		return errors.New("mf2 type array must not be empty")
	}

	for i, t := range doc.Type {
		if t == "" {
			return fmt.Errorf("mf2 type[%d] is empty", i)
		}
	}

	if doc.Properties == nil {
		return errors.New("mf2 properties must not be nil")
	}

	for key, values := range doc.Properties {
		if key == "" {
			return errors.New("mf2 property names must not be empty")
		}

		for i, v := range values {
			switch x := v.(type) {
			case string, bool, float64:
				// ok
			case map[string]any:
				// ok - embedded object (e.g., {html: ["..."], value: ["..."]})
			case Document:
				if err := Validate(x); err != nil {
					return fmt.Errorf("invalid embedded mf2 in property %q[%d]: %w", key, i, err)
				}
			default:
				return fmt.Errorf("mf2 property %q contains invalid value type %T at index %d", key, x, i)
			}
		}
	}

	return nil
}
