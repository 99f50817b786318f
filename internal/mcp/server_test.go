package mcp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bugit/internal/mcp"
	"bugit/internal/store"
	"bugit/internal/triage"
)

type rpcReply struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// serve feeds requests (one JSON-RPC message per line) through a fresh server
// and returns the decoded replies in order.
func serve(t *testing.T, st *store.Store, rootDir string, requests ...string) []rpcReply {
	t.Helper()

	srv := mcp.NewServer(mcp.ServerOptions{
		Store:    st,
		RootDir:  rootDir,
		Pipeline: triage.RuleBased{},
		In:       strings.NewReader(strings.Join(requests, "\n") + "\n"),
	})

	var out bytes.Buffer
	require.NoError(t, srv.Run(context.Background(), &out))

	var replies []rpcReply

	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}

		var reply rpcReply
		require.NoError(t, json.Unmarshal([]byte(line), &reply), "line: %s", line)
		replies = append(replies, reply)
	}

	return replies
}

func newTestStore(t *testing.T) (*store.Store, string) {
	t.Helper()

	root := t.TempDir()
	st, err := store.Open(store.Options{Root: root, LockTimeout: 2 * time.Second})
	require.NoError(t, err)

	return st, root
}

// toolResult unwraps the text payload of a successful tools/call reply.
func toolResult(t *testing.T, reply rpcReply) map[string]any {
	t.Helper()

	require.Nil(t, reply.Error, "unexpected protocol error: %+v", reply.Error)

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	require.NoError(t, json.Unmarshal(reply.Result, &result))
	require.False(t, result.IsError, "tool failed: %+v", result.Content)
	require.Len(t, result.Content, 1)
	require.Equal(t, "text", result.Content[0].Type)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &payload))

	return payload
}

func TestInitializeHandshake(t *testing.T) {
	t.Parallel()

	st, root := newTestStore(t)

	replies := serve(t, st, root,
		`{"jsonrpc": "2.0", "id": 1, "method": "initialize", "params": {}}`,
		`{"jsonrpc": "2.0", "method": "notifications/initialized"}`,
		`{"jsonrpc": "2.0", "id": 2, "method": "ping"}`,
	)

	require.Len(t, replies, 2, "the notification gets no reply")

	var init struct {
		ProtocolVersion string `json:"protocolVersion"`
		ServerInfo      struct {
			Name string `json:"name"`
		} `json:"serverInfo"`
	}
	require.NoError(t, json.Unmarshal(replies[0].Result, &init))
	require.Equal(t, "2024-11-05", init.ProtocolVersion)
	require.Equal(t, "bugit", init.ServerInfo.Name)
}

func TestToolsListExposesAllTools(t *testing.T) {
	t.Parallel()

	st, root := newTestStore(t)

	replies := serve(t, st, root,
		`{"jsonrpc": "2.0", "id": 1, "method": "initialize"}`,
		`{"jsonrpc": "2.0", "id": 2, "method": "tools/list"}`,
	)
	require.Len(t, replies, 2)

	var listed struct {
		Tools []struct {
			Name        string          `json:"name"`
			InputSchema json.RawMessage `json:"inputSchema"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(replies[1].Result, &listed))

	names := make([]string, 0, len(listed.Tools))
	for _, tool := range listed.Tools {
		names = append(names, tool.Name)
		require.NotEmpty(t, tool.InputSchema, "every tool carries a schema")
	}

	require.Equal(t, []string{
		"create_issue", "list_issues", "get_issue", "update_issue",
		"delete_issue", "get_config", "set_config", "get_storage_stats",
	}, names)
}

func TestCreateListGetDeleteThroughTools(t *testing.T) {
	t.Parallel()

	st, root := newTestStore(t)

	replies := serve(t, st, root,
		`{"jsonrpc": "2.0", "id": 1, "method": "initialize"}`,
		`{"jsonrpc": "2.0", "id": 2, "method": "tools/call", "params": {"name": "create_issue", "arguments": {"description": "App crashes after login"}}}`,
		`{"jsonrpc": "2.0", "id": 3, "method": "tools/call", "params": {"name": "list_issues", "arguments": {}}}`,
		`{"jsonrpc": "2.0", "id": 4, "method": "tools/call", "params": {"name": "get_issue", "arguments": {"index": 1}}}`,
	)
	require.Len(t, replies, 4)

	created := toolResult(t, replies[1])
	require.Equal(t, true, created["success"])

	id, _ := created["id"].(string)
	require.Len(t, id, 6)

	listed := toolResult(t, replies[2])
	require.Equal(t, float64(1), listed["count"])

	got := toolResult(t, replies[3])
	fetched := got["issue"].(map[string]any)
	require.Equal(t, id, fetched["id"])
	require.Equal(t, "critical", fetched["severity"])

	// Delete in a second session against the same store.
	replies = serve(t, st, root,
		`{"jsonrpc": "2.0", "id": 1, "method": "initialize"}`,
		`{"jsonrpc": "2.0", "id": 2, "method": "tools/call", "params": {"name": "delete_issue", "arguments": {"id": "`+id+`"}}}`,
	)

	deleted := toolResult(t, replies[1])
	require.Equal(t, true, deleted["success"])

	_, err := st.Load(id)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateIssueTool(t *testing.T) {
	t.Parallel()

	st, root := newTestStore(t)

	id, err := st.Save(store.Document{"title": "needs work", "severity": "low"})
	require.NoError(t, err)

	replies := serve(t, st, root,
		`{"jsonrpc": "2.0", "id": 1, "method": "initialize"}`,
		`{"jsonrpc": "2.0", "id": 2, "method": "tools/call", "params": {"name": "update_issue", "arguments": {"id": "`+id+`", "severity": "high", "add_tag": "ui"}}}`,
	)

	updated := toolResult(t, replies[1])
	require.Equal(t, true, updated["success"])
	require.Contains(t, updated["changes"], "severity")
	require.Contains(t, updated["changes"], "tags")

	loaded, err := st.Load(id)
	require.NoError(t, err)
	require.Equal(t, "high", loaded["severity"])
	require.Contains(t, loaded["tags"], "ui")
}

func TestGetConfigRedactsAPIKey(t *testing.T) {
	t.Parallel()

	st, root := newTestStore(t)

	replies := serve(t, st, root,
		`{"jsonrpc": "2.0", "id": 1, "method": "initialize"}`,
		`{"jsonrpc": "2.0", "id": 2, "method": "tools/call", "params": {"name": "set_config", "arguments": {"key": "api_key", "value": "sk-secret"}}}`,
		`{"jsonrpc": "2.0", "id": 3, "method": "tools/call", "params": {"name": "get_config", "arguments": {}}}`,
	)

	cfg := toolResult(t, replies[2])["config"].(map[string]any)
	require.Equal(t, "(redacted)", cfg["api_key"])
}

func TestToolFailuresStayInBand(t *testing.T) {
	t.Parallel()

	st, root := newTestStore(t)

	replies := serve(t, st, root,
		`{"jsonrpc": "2.0", "id": 1, "method": "initialize"}`,
		`{"jsonrpc": "2.0", "id": 2, "method": "tools/call", "params": {"name": "get_issue", "arguments": {"id": "nosuch"}}}`,
		`{"jsonrpc": "2.0", "id": 3, "method": "tools/call", "params": {"name": "get_issue", "arguments": {}}}`,
		`{"jsonrpc": "2.0", "id": 4, "method": "tools/call", "params": {"name": "no_such_tool", "arguments": {}}}`,
	)
	require.Len(t, replies, 4)

	for _, reply := range replies[1:3] {
		require.Nil(t, reply.Error, "tool failures must not become protocol errors")

		var result struct {
			IsError bool `json:"isError"`
		}
		require.NoError(t, json.Unmarshal(reply.Result, &result))
		require.True(t, result.IsError)
	}

	require.NotNil(t, replies[3].Error)
	require.Equal(t, -32602, replies[3].Error.Code)
}

func TestProtocolErrors(t *testing.T) {
	t.Parallel()

	st, root := newTestStore(t)

	replies := serve(t, st, root,
		`{this is not json`,
		`{"jsonrpc": "2.0", "id": 7, "method": "does/not/exist"}`,
	)
	require.Len(t, replies, 2)

	require.NotNil(t, replies[0].Error)
	require.Equal(t, -32700, replies[0].Error.Code)

	require.NotNil(t, replies[1].Error)
	require.Equal(t, -32601, replies[1].Error.Code)
	require.Equal(t, float64(7), replies[1].ID)
}
