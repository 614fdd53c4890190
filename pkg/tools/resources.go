package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// CacheEntriesURI lists the fresh cache entries.
const CacheEntriesURI = "webreader://cache/entries"

// cacheEntry is the JSON form of one entry in the cache listing.
type cacheEntry struct {
	URL         string    `json:"url"`
	ContentType string    `json:"contentType,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Size        int64     `json:"size"`
	Digest      string    `json:"digest"`
}

// RegisterResources registers the MCP resources with the server
func RegisterResources(mcpServer *server.MCPServer, deps *ToolDependencies) {
	resource := mcp.NewResource(CacheEntriesURI, "Cached pages",
		mcp.WithResourceDescription("Pages currently served from the cache, newest first"),
		mcp.WithMIMEType("application/json"),
	)
	mcpServer.AddResource(resource, cacheEntriesHandler(deps))
}

func cacheEntriesHandler(deps *ToolDependencies) server.ResourceHandlerFunc {
	return func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		infos, err := deps.Engine.Entries()
		if err != nil {
			return nil, fmt.Errorf("list cache entries: %w", err)
		}

		entries := make([]cacheEntry, 0, len(infos))
		for _, info := range infos {
			entries = append(entries, cacheEntry{
				URL:         info.URL,
				ContentType: info.ContentType,
				Timestamp:   info.Timestamp,
				Size:        info.Size,
				Digest:      info.Digest,
			})
		}

		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("error marshaling cache entries: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      CacheEntriesURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	}
}
