package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"bugit/internal/config"
	"bugit/internal/issue"
	"bugit/internal/store"
)

// Typed parameter structs, one per tool, decoded straight from the request.

type createIssueParams struct {
	Description string `json:"description"`
}

type selectorParams struct {
	ID    string `json:"id,omitempty"`
	Index int    `json:"index,omitempty"`
}

type listIssuesParams struct {
	Severity string `json:"severity,omitempty"`
	Tag      string `json:"tag,omitempty"`
}

type updateIssueParams struct {
	selectorParams
	Title     string `json:"title,omitempty"`
	Severity  string `json:"severity,omitempty"`
	AddTag    string `json:"add_tag,omitempty"`
	RemoveTag string `json:"remove_tag,omitempty"`
	Solution  string `json:"solution,omitempty"`
}

type setConfigParams struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// selectorSchema is shared by every tool addressing one issue.
const selectorSchema = `{
  "type": "object",
  "properties": {
    "id": {"type": "string", "description": "Issue id"},
    "index": {"type": "integer", "description": "1-based index in the current listing"}
  }
}`

type toolDef struct {
	tool    Tool
	handler func(ctx context.Context, args json.RawMessage) (any, error)
}

// toolTable declares every exposed tool with its static schema. Order is the
// order tools/list reports.
func (s *Server) toolTable() []toolDef {
	return []toolDef{
		{
			tool: Tool{
				Name:        "create_issue",
				Description: "Create a new issue from a freeform description",
				InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "description": {"type": "string", "description": "Freeform bug description"}
  },
  "required": ["description"]
}`),
			},
			handler: s.createIssue,
		},
		{
			tool: Tool{
				Name:        "list_issues",
				Description: "List issues sorted by severity then recency, with optional filters",
				InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "severity": {"type": "string", "enum": ["low", "medium", "high", "critical"]},
    "tag": {"type": "string"}
  }
}`),
			},
			handler: s.listIssues,
		},
		{
			tool: Tool{
				Name:        "get_issue",
				Description: "Get one issue by id or by listing index",
				InputSchema: json.RawMessage(selectorSchema),
			},
			handler: s.getIssue,
		},
		{
			tool: Tool{
				Name:        "update_issue",
				Description: "Update fields of an existing issue",
				InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "id": {"type": "string"},
    "index": {"type": "integer"},
    "title": {"type": "string"},
    "severity": {"type": "string", "enum": ["low", "medium", "high", "critical"]},
    "add_tag": {"type": "string"},
    "remove_tag": {"type": "string"},
    "solution": {"type": "string"}
  }
}`),
			},
			handler: s.updateIssue,
		},
		{
			tool: Tool{
				Name:        "delete_issue",
				Description: "Delete an issue, snapshotting it to the backup area first when enabled",
				InputSchema: json.RawMessage(selectorSchema),
			},
			handler: s.deleteIssue,
		},
		{
			tool: Tool{
				Name:        "get_config",
				Description: "Read the project configuration",
				InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
			},
			handler: s.getConfig,
		},
		{
			tool: Tool{
				Name:        "set_config",
				Description: "Set one configuration key",
				InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "key": {"type": "string"},
    "value": {}
  },
  "required": ["key", "value"]
}`),
			},
			handler: s.setConfig,
		},
		{
			tool: Tool{
				Name:        "get_storage_stats",
				Description: "Storage statistics: counts, size, per-severity breakdown",
				InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
			},
			handler: s.storageStats,
		},
	}
}

func (s *Server) createIssue(ctx context.Context, args json.RawMessage) (any, error) {
	var params createIssueParams
	if err := unmarshalParams(args, &params); err != nil {
		return nil, err
	}

	draft, err := s.pipeline.ProcessDescription(ctx, params.Description)
	if err != nil {
		return nil, err
	}

	validated, err := issue.ValidateOrDefault(draft)
	if err != nil {
		return nil, err
	}

	id, err := s.store.Save(validated)
	if err != nil {
		return nil, err
	}

	return map[string]any{"success": true, "id": id, "issue": validated}, nil
}

func (s *Server) listIssues(_ context.Context, args json.RawMessage) (any, error) {
	var params listIssuesParams
	if err := unmarshalParams(args, &params); err != nil {
		return nil, err
	}

	docs, err := s.store.List()
	if err != nil {
		return nil, err
	}

	filtered := []store.Document{}

	for _, doc := range docs {
		if params.Severity != "" {
			if severity, _ := doc["severity"].(string); severity != strings.ToLower(params.Severity) {
				continue
			}
		}

		if params.Tag != "" && !hasTag(doc, params.Tag) {
			continue
		}

		filtered = append(filtered, doc)
	}

	return map[string]any{"success": true, "issues": filtered, "count": len(filtered)}, nil
}

func (s *Server) getIssue(_ context.Context, args json.RawMessage) (any, error) {
	var params selectorParams
	if err := unmarshalParams(args, &params); err != nil {
		return nil, err
	}

	doc, err := s.selectIssue(params)
	if err != nil {
		return nil, err
	}

	return map[string]any{"success": true, "issue": doc}, nil
}

func (s *Server) updateIssue(_ context.Context, args json.RawMessage) (any, error) {
	var params updateIssueParams
	if err := unmarshalParams(args, &params); err != nil {
		return nil, err
	}

	doc, err := s.selectIssue(params.selectorParams)
	if err != nil {
		return nil, err
	}

	changes := applyUpdate(doc, params)
	if len(changes) == 0 {
		return nil, fmt.Errorf("no changes specified")
	}

	doc["updated_at"] = time.Now().Format(time.RFC3339)

	validated, err := issue.ValidateOrDefault(doc)
	if err != nil {
		return nil, err
	}

	id, err := s.store.Save(validated)
	if err != nil {
		return nil, err
	}

	return map[string]any{"success": true, "id": id, "changes": changes, "issue": validated}, nil
}

func (s *Server) deleteIssue(_ context.Context, args json.RawMessage) (any, error) {
	var params selectorParams
	if err := unmarshalParams(args, &params); err != nil {
		return nil, err
	}

	doc, err := s.selectIssue(params)
	if err != nil {
		return nil, err
	}

	id, _ := doc["id"].(string)

	deleted, err := s.store.Delete(id)
	if err != nil {
		return nil, err
	}

	return map[string]any{"success": deleted, "id": id}, nil
}

func (s *Server) getConfig(context.Context, json.RawMessage) (any, error) {
	raw, err := config.LoadRaw(s.rootDir)
	if err != nil {
		return nil, err
	}

	// Never leak credentials to a tool caller.
	if _, ok := raw["api_key"]; ok {
		raw["api_key"] = "(redacted)"
	}

	return map[string]any{"success": true, "config": raw}, nil
}

func (s *Server) setConfig(_ context.Context, args json.RawMessage) (any, error) {
	var params setConfigParams
	if err := unmarshalParams(args, &params); err != nil {
		return nil, err
	}

	if params.Key == "" {
		return nil, fmt.Errorf("key is required")
	}

	if err := config.Set(s.rootDir, params.Key, params.Value); err != nil {
		return nil, err
	}

	return map[string]any{"success": true, "key": params.Key, "value": params.Value}, nil
}

func (s *Server) storageStats(context.Context, json.RawMessage) (any, error) {
	return s.store.Stats(), nil
}

// selectIssue resolves the id-or-index selector every record tool shares.
func (s *Server) selectIssue(params selectorParams) (store.Document, error) {
	switch {
	case params.ID != "":
		return s.store.Load(params.ID)
	case params.Index > 0:
		return s.store.GetByIndex(params.Index)
	default:
		return nil, fmt.Errorf("either id or index is required")
	}
}

func applyUpdate(doc store.Document, params updateIssueParams) []string {
	changes := []string{}

	if params.Title != "" {
		doc["title"] = params.Title
		changes = append(changes, "title")
	}

	if params.Severity != "" {
		doc["severity"] = strings.ToLower(params.Severity)
		changes = append(changes, "severity")
	}

	if params.Solution != "" {
		doc["solution"] = params.Solution
		changes = append(changes, "solution")
	}

	tags := docTags(doc)

	if params.AddTag != "" && !slices.Contains(tags, params.AddTag) {
		tags = append(tags, params.AddTag)
		changes = append(changes, "tags")
	}

	if params.RemoveTag != "" {
		if idx := slices.Index(tags, params.RemoveTag); idx >= 0 {
			tags = slices.Delete(tags, idx, idx+1)
			changes = append(changes, "tags")
		}
	}

	if len(changes) > 0 {
		doc["tags"] = tags
	}

	return changes
}

func hasTag(doc store.Document, tag string) bool {
	return slices.Contains(docTags(doc), tag)
}

func docTags(doc store.Document) []string {
	switch tags := doc["tags"].(type) {
	case []string:
		return tags
	case []any:
		out := make([]string, 0, len(tags))
		for _, t := range tags {
			if s, ok := t.(string); ok {
				out = append(out, s)
			}
		}

		return out
	default:
		return nil
	}
}

func unmarshalParams(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return nil
	}

	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}

	return nil
}
