package keeper

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/draftkeeper/kit"
)

// RegisterMCP registers the draft tools on an MCP server.
func (k *Keeper) RegisterMCP(srv *mcp.Server) {
	k.registerListTool(srv)
	k.registerGetTool(srv)
	k.registerDiscardTool(srv)
	k.registerPurgeTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func (k *Keeper) endpoint(name string, e kit.Endpoint) kit.Endpoint {
	return kit.Chain(kit.Logging(k.logger, name))(e)
}

var keyProperty = map[string]any{"type": "string", "description": "Draft storage key (e.g. new-article-autosave)"}

type keyRequest struct {
	Key string `json:"key"`
}

func (r *keyRequest) validate() error {
	if r.Key == "" {
		return fmt.Errorf("key is required")
	}
	return nil
}

// --- drafts_list ---

type listRequest struct{}

func (k *Keeper) registerListTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "drafts_list",
		Description: "List stored form drafts with their capture time, size and last write, newest first.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(ctx context.Context, _ any) (any, error) {
		return k.List(ctx)
	}
	kit.RegisterMCPTool(srv, tool, k.endpoint(tool.Name, endpoint), kit.DecodeArgs[listRequest])
}

// --- drafts_get ---

func (k *Keeper) registerGetTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "drafts_get",
		Description: "Show one draft: its decoded field values, capture time, age and whether it is stale.",
		InputSchema: inputSchema(map[string]any{"key": keyProperty}, []string{"key"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*keyRequest)
		if err := rr.validate(); err != nil {
			return nil, err
		}
		return k.Show(ctx, rr.Key)
	}
	kit.RegisterMCPTool(srv, tool, k.endpoint(tool.Name, endpoint), kit.DecodeArgs[keyRequest])
}

// --- drafts_discard ---

func (k *Keeper) registerDiscardTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "drafts_discard",
		Description: "Delete a stored draft. The author will no longer be offered to restore it.",
		InputSchema: inputSchema(map[string]any{"key": keyProperty}, []string{"key"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*keyRequest)
		if err := rr.validate(); err != nil {
			return nil, err
		}
		if err := k.Discard(ctx, rr.Key); err != nil {
			return nil, err
		}
		return map[string]string{"key": rr.Key, "status": "discarded"}, nil
	}
	kit.RegisterMCPTool(srv, tool, k.endpoint(tool.Name, endpoint), kit.DecodeArgs[keyRequest])
}

// --- drafts_purge ---

type purgeRequest struct {
	OlderThan string `json:"older_than,omitempty"`
}

func (k *Keeper) registerPurgeTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "drafts_purge",
		Description: "Delete every draft captured longer ago than older_than (Go duration, default the configured max age).",
		InputSchema: inputSchema(map[string]any{
			"older_than": map[string]any{"type": "string", "description": "Age threshold such as 24h or 90m"},
		}, nil),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*purgeRequest)
		var d time.Duration
		if rr.OlderThan != "" {
			var err error
			if d, err = time.ParseDuration(rr.OlderThan); err != nil || d <= 0 {
				return nil, fmt.Errorf("older_than: invalid duration %q", rr.OlderThan)
			}
		}
		n, err := k.Purge(ctx, d)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"purged": n}, nil
	}
	kit.RegisterMCPTool(srv, tool, k.endpoint(tool.Name, endpoint), kit.DecodeArgs[purgeRequest])
}
