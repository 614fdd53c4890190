package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mredig/mcp-webreader/pkg/extract"
)

type linkList struct {
	URL   string         `json:"url"`
	Cache string         `json:"cache"`
	Links []extract.Link `json:"links"`
}

// ExtractLinksTool lists the links of a page
type ExtractLinksTool struct {
	*BaseTool
}

// NewExtractLinksTool creates a new extract_links tool instance
func NewExtractLinksTool(deps *ToolDependencies) *ExtractLinksTool {
	return &ExtractLinksTool{BaseTool: NewBaseTool(deps)}
}

// GetDefinition returns the MCP tool definition for extract_links
func (t *ExtractLinksTool) GetDefinition() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription("List the links on a web page, resolved to absolute URLs."),
	}
	opts = append(opts, fetchArgs()...)
	opts = append(opts, mcp.WithString("format",
		mcp.Description("Output format: text (default) or json"),
		mcp.Enum("text", "json"),
	))
	return mcp.NewTool("extract_links", opts...)
}

// GetHandler returns the request handler for extract_links
func (t *ExtractLinksTool) GetHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req, err := parseFetchRequest(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		format := request.GetString("format", "text")
		if format != "text" && format != "json" {
			return mcp.NewToolResultError(fmt.Sprintf("unknown format %q", format)), nil
		}

		resp, err := t.deps.Engine.Fetch(ctx, req)
		if err != nil {
			return t.CreateErrorResponse("extract_links", err)
		}
		if err := checkStatus(resp); err != nil {
			return t.CreateErrorResponse("extract_links", err)
		}

		doc, err := extract.Extract(resp.Data, resp.ContentType, resp.URL)
		if err != nil {
			return t.CreateErrorResponse("extract_links", err)
		}
		if !doc.HTML {
			return mcp.NewToolResultText(fmt.Sprintf("%s is %s, not an HTML page; no links extracted", resp.URL, resp.ContentType)), nil
		}

		if format == "json" {
			links := doc.Links
			if links == nil {
				links = []extract.Link{}
			}
			return t.CreateJSONResponse(linkList{URL: resp.URL, Cache: cacheStatus(resp), Links: links})
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%d links on %s (cache: %s)\n\n", len(doc.Links), resp.URL, cacheStatus(resp))
		writeLinks(&b, doc.Links)
		return mcp.NewToolResultText(b.String()), nil
	}
}
