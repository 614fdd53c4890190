package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mredig/mcp-webreader/pkg/extract"
	"github.com/mredig/mcp-webreader/pkg/fetch"
)

// ReadWebpageTool fetches a page and returns its readable text
type ReadWebpageTool struct {
	*BaseTool
}

// NewReadWebpageTool creates a new read_webpage tool instance
func NewReadWebpageTool(deps *ToolDependencies) *ReadWebpageTool {
	return &ReadWebpageTool{BaseTool: NewBaseTool(deps)}
}

// GetDefinition returns the MCP tool definition for read_webpage
func (t *ReadWebpageTool) GetDefinition() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Fetch a web page and return its readable text. Results are cached on disk; " +
			"set render_js for pages that build their content with JavaScript."),
	}
	opts = append(opts, fetchArgs()...)
	opts = append(opts,
		mcp.WithBoolean("include_links",
			mcp.Description("Append the links found on the page"),
		),
		mcp.WithNumber("max_length",
			mcp.Description("Maximum number of characters of text to return"),
		),
	)
	return mcp.NewTool("read_webpage", opts...)
}

// GetHandler returns the request handler for read_webpage
func (t *ReadWebpageTool) GetHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req, err := parseFetchRequest(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		t.deps.Logger.Debug().Str("url", req.URL).Bool("render_js", req.RenderJS).Msg("Handling read_webpage tool call")

		resp, err := t.deps.Engine.Fetch(ctx, req)
		if err != nil {
			return t.CreateErrorResponse("read_webpage", err)
		}
		if err := checkStatus(resp); err != nil {
			return t.CreateErrorResponse("read_webpage", err)
		}

		doc, err := extract.Extract(resp.Data, resp.ContentType, resp.URL)
		if err != nil {
			return t.CreateErrorResponse("read_webpage", err)
		}

		maxLength := request.GetInt("max_length", t.deps.MaxLength)
		return mcp.NewToolResultText(formatDocument(resp, doc, maxLength, request.GetBool("include_links", false))), nil
	}
}

// formatDocument renders a document with a short header describing its source.
func formatDocument(resp *fetch.CacheResponse, doc *extract.Document, maxLength int, includeLinks bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "URL: %s\n", resp.URL)
	if doc.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", doc.Title)
	}
	fmt.Fprintf(&b, "Status: %d\n", resp.StatusCode)
	fmt.Fprintf(&b, "Cache: %s\n", cacheStatus(resp))
	if resp.Rendered {
		b.WriteString("Rendered: yes\n")
	}
	b.WriteString("\n")

	text, truncated := extract.Truncate(doc.Text, maxLength)
	b.WriteString(text)
	if truncated {
		fmt.Fprintf(&b, "\n\n[truncated to %d characters]", maxLength)
	}

	if includeLinks && len(doc.Links) > 0 {
		b.WriteString("\n\nLinks:\n")
		writeLinks(&b, doc.Links)
	}

	return b.String()
}

func writeLinks(b *strings.Builder, links []extract.Link) {
	for _, l := range links {
		if l.Text != "" {
			fmt.Fprintf(b, "- [%s](%s)\n", l.Text, l.URL)
		} else {
			fmt.Fprintf(b, "- %s\n", l.URL)
		}
	}
}
