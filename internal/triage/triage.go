// Package triage turns a freeform bug description into a structured issue
// draft. The production intent is a single LLM call behind the [Pipeline]
// interface; what ships here is the deterministic rule-based implementation
// the rest of the system is tested against.
package triage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrEmptyDescription reports a blank description.
var ErrEmptyDescription = errors.New("description cannot be empty")

// Pipeline processes a description into issue fields (title, description,
// severity, type, tags). Implementations must be safe for concurrent use.
type Pipeline interface {
	ProcessDescription(ctx context.Context, description string) (map[string]any, error)
}

// RuleBased is a keyword-driven Pipeline. It needs no network and always
// produces the same draft for the same input.
type RuleBased struct{}

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

const titleMax = 80

var severityKeywords = []struct {
	severity string
	words    []string
}{
	{"critical", []string{"crash", "hang", "critical", "fatal", "broken"}},
	{"low", []string{"slow", "minor", "cosmetic"}},
	{"high", []string{"error", "bug", "issue", "problem"}},
}

var tagKeywords = []struct {
	tag   string
	words []string
}{
	{"auth", []string{"login", "auth"}},
	{"ui", []string{"ui", "interface"}},
	{"camera", []string{"camera"}},
	{"logout", []string{"logout"}},
}

// ProcessDescription derives severity from urgency keywords, tags from
// domain keywords, and a title from the first sentence.
func (RuleBased) ProcessDescription(_ context.Context, description string) (map[string]any, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, ErrEmptyDescription
	}

	lower := strings.ToLower(description)

	severity := "medium"
	for _, rule := range severityKeywords {
		if containsAny(lower, rule.words) {
			severity = rule.severity

			break
		}
	}

	tags := []string{}
	for _, rule := range tagKeywords {
		if containsAny(lower, rule.words) {
			tags = append(tags, rule.tag)
		}
	}

	title := strings.TrimSpace(sentenceSplit.Split(description, 2)[0])
	if title == "" {
		title = description
	}

	if len(title) > titleMax {
		title = title[:titleMax-3] + "..."
	}

	return map[string]any{
		"title":       title,
		"description": description,
		"severity":    severity,
		"type":        "bug",
		"tags":        tags,
	}, nil
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}

	return false
}

// Retry wraps a Pipeline with a bounded retry loop for transient failures.
// Empty-description errors are not retried; retrying cannot fix the input.
type Retry struct {
	Pipeline Pipeline
	Attempts int
	Delay    time.Duration
}

// ProcessDescription delegates, retrying up to Attempts times total.
func (r Retry) ProcessDescription(ctx context.Context, description string) (map[string]any, error) {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error

	for i := 0; i < attempts; i++ {
		if i > 0 && r.Delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.Delay):
			}
		}

		result, err := r.Pipeline.ProcessDescription(ctx, description)
		if err == nil {
			return result, nil
		}

		if errors.Is(err, ErrEmptyDescription) {
			return nil, err
		}

		lastErr = err
	}

	return nil, fmt.Errorf("triage failed after %d attempts: %w", attempts, lastErr)
}
