package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mredig/mcp-webreader/pkg/extract"
)

// FetchRawTool returns a document body without extraction
type FetchRawTool struct {
	*BaseTool
}

// NewFetchRawTool creates a new fetch_raw tool instance
func NewFetchRawTool(deps *ToolDependencies) *FetchRawTool {
	return &FetchRawTool{BaseTool: NewBaseTool(deps)}
}

// GetDefinition returns the MCP tool definition for fetch_raw
func (t *FetchRawTool) GetDefinition() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Fetch a URL and return the raw response body (HTML source, JSON, text) " +
			"with its status and content type. With render_js the body is the rendered DOM."),
	}
	opts = append(opts, fetchArgs()...)
	return mcp.NewTool("fetch_raw", opts...)
}

// GetHandler returns the request handler for fetch_raw
func (t *FetchRawTool) GetHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req, err := parseFetchRequest(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		t.deps.Logger.Debug().Str("url", req.URL).Msg("Handling fetch_raw tool call")

		resp, err := t.deps.Engine.Fetch(ctx, req)
		if err != nil {
			return t.CreateErrorResponse("fetch_raw", err)
		}

		if !extract.Textual(resp.Data, resp.ContentType) {
			return mcp.NewToolResultError(fmt.Sprintf("binary content (%d bytes, %s) cannot be returned as text",
				len(resp.Data), resp.ContentType)), nil
		}
		body, encoding := extract.ToUTF8(resp.Data, resp.ContentType)

		var b strings.Builder
		fmt.Fprintf(&b, "URL: %s\n", resp.URL)
		fmt.Fprintf(&b, "Status: %d\n", resp.StatusCode)
		fmt.Fprintf(&b, "Content-Type: %s\n", resp.ContentType)
		if encoding != "utf-8" {
			fmt.Fprintf(&b, "Decoded-From: %s\n", encoding)
		}
		fmt.Fprintf(&b, "Cache: %s\n\n", cacheStatus(resp))
		b.Write(body)

		result := mcp.NewToolResultText(b.String())
		result.IsError = !resp.OK()
		return result, nil
	}
}
