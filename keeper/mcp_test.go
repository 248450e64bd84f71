package keeper

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/draftkeeper/autosave"
	"github.com/hazyhaar/draftkeeper/draftstore"
)

var testImpl = &mcp.Implementation{Name: "draftkeeper-test", Version: "0.1.0"}

func mcpSession(t *testing.T) (*Keeper, *mcp.ClientSession) {
	t.Helper()
	k, _ := testKeeper(t, nil)

	srv := mcp.NewServer(testImpl, nil)
	k.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()

	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return k, session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	return tc.Text
}

func callToolError(t *testing.T, session *mcp.ClientSession, name string, args any) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if !result.IsError {
		t.Fatalf("CallTool(%s): expected tool error", name)
	}
}

func seed(t *testing.T, k *Keeper, key string, at time.Time, title string) {
	t.Helper()
	data := snapshotAt(t, at, map[string]autosave.Value{"title": autosave.String(title)})
	if err := k.Put(context.Background(), key, data); err != nil {
		t.Fatal(err)
	}
}

func TestMCP_ListTools(t *testing.T) {
	_, session := mcpSession(t)
	res, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"drafts_list": true, "drafts_get": true, "drafts_discard": true, "drafts_purge": true}
	for _, tool := range res.Tools {
		delete(want, tool.Name)
	}
	if len(want) != 0 {
		t.Fatalf("missing tools: %v", want)
	}
}

func TestMCP_List(t *testing.T) {
	k, session := mcpSession(t)
	seed(t, k, "new-article-autosave", t0.Add(-time.Hour), "Hello")

	var entries []draftstore.Entry
	if err := json.Unmarshal([]byte(callTool(t, session, "drafts_list", map[string]any{})), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Key != "new-article-autosave" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestMCP_Get(t *testing.T) {
	k, session := mcpSession(t)
	seed(t, k, "new-article-autosave", t0.Add(-25*time.Hour), "Old draft")

	var view struct {
		Key    string            `json:"key"`
		Stale  bool              `json:"stale"`
		Fields map[string]string `json:"fields"`
	}
	text := callTool(t, session, "drafts_get", map[string]any{"key": "new-article-autosave"})
	if err := json.Unmarshal([]byte(text), &view); err != nil {
		t.Fatal(err)
	}
	if !view.Stale || view.Fields["title"] != "Old draft" {
		t.Fatalf("view = %+v", view)
	}

	callToolError(t, session, "drafts_get", map[string]any{"key": "absent"})
}

func TestMCP_Discard(t *testing.T) {
	k, session := mcpSession(t)
	seed(t, k, "new-article-autosave", t0, "Hello")

	text := callTool(t, session, "drafts_discard", map[string]any{"key": "new-article-autosave"})
	if !strings.Contains(text, `"discarded"`) {
		t.Fatalf("response = %s", text)
	}
	if _, err := k.Raw(context.Background(), "new-article-autosave"); err == nil {
		t.Fatal("draft survived discard")
	}
}

func TestMCP_Purge(t *testing.T) {
	k, session := mcpSession(t)
	seed(t, k, "day-old", t0.Add(-25*time.Hour), "a")
	seed(t, k, "hour-old", t0.Add(-90*time.Minute), "b")
	seed(t, k, "fresh", t0.Add(-time.Minute), "c")

	var res map[string]int64
	if err := json.Unmarshal([]byte(callTool(t, session, "drafts_purge", map[string]any{})), &res); err != nil {
		t.Fatal(err)
	}
	if res["purged"] != 1 {
		t.Fatalf("default purge = %v", res)
	}

	if err := json.Unmarshal([]byte(callTool(t, session, "drafts_purge", map[string]any{"older_than": "1h"})), &res); err != nil {
		t.Fatal(err)
	}
	if res["purged"] != 1 {
		t.Fatalf("1h purge = %v", res)
	}

	callToolError(t, session, "drafts_purge", map[string]any{"older_than": "soon"})
}
