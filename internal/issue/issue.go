// Package issue validates raw issue documents and fills in defaults before
// they reach the store. The store itself is schema-agnostic; this package is
// the one place that knows what a well-formed issue looks like.
package issue

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Field limits. Overlong values are truncated, not rejected.
const (
	TitleMaxLen       = 120
	DescriptionMaxLen = 10000
)

// Severities in increasing urgency.
var Severities = []string{"low", "medium", "high", "critical"}

// Types an issue can carry.
var Types = []string{"bug", "feature", "chore", "unknown"}

// ErrValidation reports input that cannot be defaulted into shape.
var ErrValidation = errors.New("validation")

// ValidSeverity reports whether s is a known severity.
func ValidSeverity(s string) bool {
	for _, known := range Severities {
		if s == known {
			return true
		}
	}

	return false
}

func validType(t string) bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}

	return false
}

// ValidateOrDefault normalizes doc in place and returns it.
//
// Title is the only hard requirement. Severity and type fall back to
// "medium" and "unknown", tags are cleaned to a string list, created_at
// defaults to now, and schema_version is pinned.
func ValidateOrDefault(doc map[string]any) (map[string]any, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: issue data must be a keyed map", ErrValidation)
	}

	doc["schema_version"] = "v1"

	title := strings.TrimSpace(stringField(doc, "title"))
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}

	doc["title"] = truncate(title, TitleMaxLen)

	description := strings.TrimSpace(stringField(doc, "description"))
	if description == "" {
		description = title
	}

	doc["description"] = truncate(description, DescriptionMaxLen)

	severity := strings.ToLower(stringField(doc, "severity"))
	if !ValidSeverity(severity) {
		severity = "medium"
	}

	doc["severity"] = severity

	issueType := stringField(doc, "type")
	if !validType(issueType) {
		issueType = "unknown"
	}

	doc["type"] = issueType

	doc["tags"] = cleanTags(doc["tags"])

	if stringField(doc, "created_at") == "" {
		doc["created_at"] = time.Now().Format(time.RFC3339)
	}

	return doc, nil
}

func stringField(doc map[string]any, key string) string {
	s, _ := doc[key].(string)

	return s
}

// truncate cuts s to max runes-as-bytes with a trailing ellipsis, matching
// the display convention used in listings.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}

	return s[:max-3] + "..."
}

// cleanTags coerces whatever the caller handed us into a trimmed, non-empty
// string slice. Anything that is not a list becomes no tags at all.
func cleanTags(raw any) []string {
	tags := []string{}

	appendTag := func(v any) {
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}

		s = strings.TrimSpace(s)
		if s != "" {
			tags = append(tags, s)
		}
	}

	switch list := raw.(type) {
	case []string:
		for _, v := range list {
			appendTag(v)
		}
	case []any:
		for _, v := range list {
			appendTag(v)
		}
	}

	return tags
}
