// Package tools exposes the fetch engine as MCP tools and resources.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/mredig/mcp-webreader/pkg/batch"
	"github.com/mredig/mcp-webreader/pkg/cache"
	"github.com/mredig/mcp-webreader/pkg/extract"
	"github.com/mredig/mcp-webreader/pkg/fetch"
)

// Engine is the part of the fetch engine the tools use.
type Engine interface {
	Fetch(ctx context.Context, req fetch.Request) (*fetch.CacheResponse, error)
	ClearCache() error
	Entries() ([]cache.EntryInfo, error)
}

// ToolDependencies holds common dependencies that tools may need
type ToolDependencies struct {
	Engine Engine
	Batch  batch.Config

	// MaxLength caps returned text in runes; zero means unlimited
	MaxLength int

	Logger zerolog.Logger
}

// MCPTool defines the interface that all MCP tools must implement
type MCPTool interface {
	// GetDefinition returns the MCP tool definition
	GetDefinition() mcp.Tool

	// GetHandler returns the tool's request handler function
	GetHandler() server.ToolHandlerFunc
}

// RegisterTools registers all available MCP tools with the server
func RegisterTools(mcpServer *server.MCPServer, deps *ToolDependencies) {
	for _, tool := range AllTools(deps) {
		mcpServer.AddTool(tool.GetDefinition(), tool.GetHandler())
		deps.Logger.Debug().Str("tool", tool.GetDefinition().Name).Msg("Registered MCP tool")
	}
}

// AllTools returns every tool bound to deps.
func AllTools(deps *ToolDependencies) []MCPTool {
	return []MCPTool{
		NewReadWebpageTool(deps),
		NewFetchRawTool(deps),
		NewExtractLinksTool(deps),
		NewReadWebpagesTool(deps),
		NewClearCacheTool(deps),
	}
}

// BaseTool provides common functionality for MCP tools
type BaseTool struct {
	deps *ToolDependencies
}

// NewBaseTool creates a new base tool with the given dependencies
func NewBaseTool(deps *ToolDependencies) *BaseTool {
	return &BaseTool{deps: deps}
}

// CreateJSONResponse is a helper function to create a JSON response
func (bt *BaseTool) CreateJSONResponse(data any) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("error marshaling response: %w", err)
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

// CreateErrorResponse logs err and converts it into a tool error result
func (bt *BaseTool) CreateErrorResponse(tool string, err error) (*mcp.CallToolResult, error) {
	bt.deps.Logger.Error().Err(err).Str("tool", tool).Msg("Tool call failed")
	return mcp.NewToolResultError(describeError(err)), nil
}

// fetchArgs are the arguments shared by the single-document tools.
func fetchArgs() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Absolute http(s) URL of the document"),
		),
		mcp.WithBoolean("render_js",
			mcp.Description("Load the page in a headless browser and wait for scripts to settle before reading it"),
		),
		mcp.WithBoolean("ignore_cache",
			mcp.Description("Skip the cache and fetch a fresh copy; the fresh copy is still cached"),
		),
		mcp.WithString("method",
			mcp.Description("HTTP method, GET by default"),
		),
		mcp.WithString("user_agent",
			mcp.Description("User-Agent to send instead of the default"),
		),
		mcp.WithObject("headers",
			mcp.Description("Extra request headers as a name to value map"),
			mcp.AdditionalProperties(map[string]any{"type": "string"}),
		),
	}
}

// parseFetchRequest reads the shared fetch arguments.
func parseFetchRequest(request mcp.CallToolRequest) (fetch.Request, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return fetch.Request{}, err
	}

	req := fetch.Request{
		URL:         url,
		RenderJS:    request.GetBool("render_js", false),
		IgnoreCache: request.GetBool("ignore_cache", false),
		Method:      request.GetString("method", ""),
		UserAgent:   request.GetString("user_agent", ""),
	}

	if raw, ok := request.GetArguments()["headers"]; ok && raw != nil {
		obj, ok := raw.(map[string]any)
		if !ok {
			return fetch.Request{}, fmt.Errorf("headers must be an object of strings")
		}
		req.Headers = make(map[string]string, len(obj))
		for name, v := range obj {
			s, ok := v.(string)
			if !ok {
				return fetch.Request{}, fmt.Errorf("header %q must be a string", name)
			}
			req.Headers[name] = s
		}
	}

	return req, nil
}

// describeError renders an error for a tool caller.
func describeError(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Error()
	}
	return "Error: " + err.Error()
}

// StatusError reports a non-2xx origin response.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	msg := fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
	if e.Body != "" {
		msg += "\n\n" + e.Body
	}
	return msg
}

const statusExcerptRunes = 500

// checkStatus converts non-2xx responses into a StatusError carrying a short body excerpt.
func checkStatus(resp *fetch.CacheResponse) error {
	if resp.OK() {
		return nil
	}
	body := strings.TrimSpace(strings.ToValidUTF8(string(resp.Data), "\uFFFD"))
	if excerpt, cut := extract.Truncate(body, statusExcerptRunes); cut {
		body = excerpt + "..."
	}
	return &StatusError{URL: resp.URL, StatusCode: resp.StatusCode, Body: body}
}

// cacheStatus describes where a response came from.
func cacheStatus(resp *fetch.CacheResponse) string {
	if resp.CacheHit && resp.CacheAge != nil && resp.CacheTTL != nil {
		return fmt.Sprintf("hit (age %s, expires in %s)", round(*resp.CacheAge), round(*resp.CacheTTL))
	}
	if resp.OK() && resp.CacheTTL != nil {
		return fmt.Sprintf("miss (cached for %s)", round(*resp.CacheTTL))
	}
	return "miss"
}

func round(d time.Duration) time.Duration {
	return d.Round(time.Second)
}
