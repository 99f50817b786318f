package store

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is the unit of storage: a free-form keyed map. Only "id" and
// "schema_version" are store-level concerns; everything else is opaque and
// persisted verbatim.
type Document = map[string]any

// encodeDocument serializes a document to the on-disk form: two-space
// indented UTF-8 JSON with HTML escaping off, so non-ASCII text and angle
// brackets survive verbatim and diffs stay readable.
func encodeDocument(doc Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: document must be a keyed map", ErrInvalidStructure)
	}

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("%w: encoding document: %w", ErrWriteFailed, err)
	}

	return buf.Bytes(), nil
}

// decodeDocument parses on-disk bytes back into a document. Malformed JSON
// yields ErrCorruptDocument; well-formed JSON that is not an object yields
// ErrInvalidStructure. Bad input is never silently coerced to defaults.
func decodeDocument(data []byte, path string) (Document, error) {
	var parsed any

	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptDocument, path, err)
	}

	doc, ok := parsed.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s: expected an object, got %T", ErrInvalidStructure, path, parsed)
	}

	return doc, nil
}
