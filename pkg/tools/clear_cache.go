package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ClearCacheTool removes every cached document
type ClearCacheTool struct {
	*BaseTool
}

// NewClearCacheTool creates a new clear_cache tool instance
func NewClearCacheTool(deps *ToolDependencies) *ClearCacheTool {
	return &ClearCacheTool{BaseTool: NewBaseTool(deps)}
}

// GetDefinition returns the MCP tool definition for clear_cache
func (t *ClearCacheTool) GetDefinition() mcp.Tool {
	return mcp.NewTool("clear_cache",
		mcp.WithDescription("Delete every cached page so later reads fetch fresh copies."),
	)
}

// GetHandler returns the request handler for clear_cache
func (t *ClearCacheTool) GetHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := t.deps.Engine.ClearCache(); err != nil {
			return t.CreateErrorResponse("clear_cache", err)
		}
		return mcp.NewToolResultText("Cache cleared."), nil
	}
}
