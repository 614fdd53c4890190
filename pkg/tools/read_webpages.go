package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mredig/mcp-webreader/pkg/batch"
	"github.com/mredig/mcp-webreader/pkg/extract"
	"github.com/mredig/mcp-webreader/pkg/fetch"
)

// maxBatchURLs bounds a single read_webpages call.
const maxBatchURLs = 20

// ReadWebpagesTool reads several pages in parallel
type ReadWebpagesTool struct {
	*BaseTool
}

// NewReadWebpagesTool creates a new read_webpages tool instance
func NewReadWebpagesTool(deps *ToolDependencies) *ReadWebpagesTool {
	return &ReadWebpagesTool{BaseTool: NewBaseTool(deps)}
}

// GetDefinition returns the MCP tool definition for read_webpages
func (t *ReadWebpagesTool) GetDefinition() mcp.Tool {
	return mcp.NewTool("read_webpages",
		mcp.WithDescription(fmt.Sprintf("Read up to %d web pages in parallel and return the text of each. "+
			"A failure on one page does not affect the others.", maxBatchURLs)),
		mcp.WithArray("urls",
			mcp.Required(),
			mcp.Description("Absolute http(s) URLs"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithBoolean("render_js",
			mcp.Description("Render every page in a headless browser"),
		),
		mcp.WithBoolean("ignore_cache",
			mcp.Description("Skip the cache for every page"),
		),
		mcp.WithNumber("max_length",
			mcp.Description("Maximum number of characters of text per page"),
		),
	)
}

// GetHandler returns the request handler for read_webpages
func (t *ReadWebpagesTool) GetHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		urls, err := request.RequireStringSlice("urls")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(urls) == 0 {
			return mcp.NewToolResultError("urls must not be empty"), nil
		}
		if len(urls) > maxBatchURLs {
			return mcp.NewToolResultError(fmt.Sprintf("at most %d urls per call, got %d", maxBatchURLs, len(urls))), nil
		}

		renderJS := request.GetBool("render_js", false)
		ignoreCache := request.GetBool("ignore_cache", false)
		maxLength := request.GetInt("max_length", t.deps.MaxLength)

		reqs := make([]fetch.Request, len(urls))
		for i, u := range urls {
			reqs[i] = fetch.Request{URL: u, RenderJS: renderJS, IgnoreCache: ignoreCache}
		}

		t.deps.Logger.Debug().Int("urls", len(urls)).Msg("Handling read_webpages tool call")

		results := batch.NewBatchFetcher(t.deps.Engine, t.deps.Batch).FetchAll(ctx, reqs)

		var b strings.Builder
		failed := 0
		for i, r := range results {
			if i > 0 {
				b.WriteString("\n\n========\n\n")
			}
			section, err := t.section(r)
			if err != nil {
				failed++
				fmt.Fprintf(&b, "URL: %s\n%s", r.Request.URL, describeError(err))
				continue
			}
			b.WriteString(formatDocument(r.Response, section, maxLength, false))
		}

		result := mcp.NewToolResultText(b.String())
		result.IsError = failed == len(results)
		return result, nil
	}
}

func (t *ReadWebpagesTool) section(r batch.Result) (*extract.Document, error) {
	if r.Error != nil {
		return nil, r.Error
	}
	if err := checkStatus(r.Response); err != nil {
		return nil, err
	}
	return extract.Extract(r.Response.Data, r.Response.ContentType, r.Response.URL)
}
