// Package mcp exposes the story analysis backend as Model Context Protocol
// tools, so assistants can analyze stories and talk to their characters
// without the web front end.
//
// Every tool delegates to a [backend.Service]; input validation and error
// messages are therefore identical to the HTTP API.
package mcp

import (
	"context"
	"log/slog"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/storylens/internal/backend"
	"github.com/MrWong99/storylens/internal/observe"
)

// Tool names.
const (
	ToolAnalyzeStory      = "analyze_story"
	ToolExtractCharacters = "extract_characters"
	ToolSearchExcerpt     = "search_excerpt"
	ToolChatAsCharacter   = "chat_as_character"
)

// NewServer returns an MCP server with the four story tools registered.
func NewServer(svc *backend.Service, m *observe.Metrics, version string) *mcpsdk.Server {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	if version == "" {
		version = "dev"
	}
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "storylens", Version: version}, nil)

	addTool(server, m, ToolAnalyzeStory,
		"Score a story's tension, pacing, character agency and emotional resonance at 7 beats. "+
			"Returns the analysis as a JSON array of 7 points.",
		svc.Analyze)
	addTool(server, m, ToolExtractCharacters,
		"List the named characters of a story.",
		svc.ExtractCharacters)
	addTool(server, m, ToolSearchExcerpt,
		"Find a passage of a well-known text by description and cite its sources.",
		svc.SearchExcerpt)
	addTool(server, m, ToolChatAsCharacter,
		"Answer the last user message in the voice of a character from the given story.",
		svc.Chat)
	return server
}

// Run serves the tools over stdin/stdout until ctx is cancelled or the
// client disconnects.
func Run(ctx context.Context, svc *backend.Service, m *observe.Metrics, version string) error {
	slog.Info("serving MCP tools on stdio")
	return NewServer(svc, m, version).Run(ctx, &mcpsdk.StdioTransport{})
}

// addTool registers op as a typed tool and records its call metrics. A
// returned error becomes a tool result with IsError set.
func addTool[In, Out any](server *mcpsdk.Server, m *observe.Metrics, name, desc string, op func(context.Context, In) (Out, error)) {
	mcpsdk.AddTool(server, &mcpsdk.Tool{Name: name, Description: desc},
		func(ctx context.Context, _ *mcpsdk.CallToolRequest, in In) (*mcpsdk.CallToolResult, Out, error) {
			start := time.Now()
			out, err := op(ctx, in)
			observe.ObserveSince(ctx, m.ToolExecutionDuration, start, observe.Attr("tool", name))
			m.RecordToolCall(ctx, name, observe.Status(err))
			if err != nil {
				observe.Logger(ctx).Warn("tool call failed", "tool", name, "err", err)
			}
			return nil, out, err
		})
}
