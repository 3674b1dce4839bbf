package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/storylens/internal/backend"
	"github.com/MrWong99/storylens/internal/observe"
	"github.com/MrWong99/storylens/pkg/provider/llm"
	"github.com/MrWong99/storylens/pkg/provider/llm/mock"
)

// connect starts the tool server on an in-memory transport and returns a
// connected client session.
func connect(t *testing.T, p *mock.Provider) (*mcpsdk.ClientSession, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	svc, err := backend.New(backend.Config{LLM: p, ProviderName: "mock", Metrics: m})
	if err != nil {
		t.Fatalf("backend.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	ss, err := NewServer(svc, m, "test").Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Close()
		cancel()
	})
	return cs, reader
}

func resultText(res *mcpsdk.CallToolResult) string {
	var sb strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

// TestListTools checks that all four tools are advertised.
func TestListTools(t *testing.T) {
	cs, _ := connect(t, &mock.Provider{})
	res, err := cs.ListTools(context.Background(), &mcpsdk.ListToolsParams{})
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	got := map[string]bool{}
	for _, tool := range res.Tools {
		got[tool.Name] = true
		if tool.InputSchema == nil {
			t.Errorf("tool %s has no input schema", tool.Name)
		}
	}
	for _, name := range []string{ToolAnalyzeStory, ToolExtractCharacters, ToolSearchExcerpt, ToolChatAsCharacter} {
		if !got[name] {
			t.Errorf("tool %s not listed", name)
		}
	}
}

// TestCallTool_ExtractCharacters checks a successful call and its metric.
func TestCallTool_ExtractCharacters(t *testing.T) {
	cs, reader := connect(t, &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "Mina, Jonathan, Dracula"},
	})

	res, err := cs.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      ToolExtractCharacters,
		Arguments: map[string]any{"text": strings.Repeat("Mina writes to Jonathan. ", 4)},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(res))
	}
	text := resultText(res)
	for _, name := range []string{"Mina", "Jonathan", "Dracula"} {
		if !strings.Contains(text, name) {
			t.Errorf("result %q missing %s", text, name)
		}
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if !hasMetric(rm, "storylens.tool.calls") || !hasMetric(rm, "storylens.tool_execution.duration") {
		t.Error("tool metrics not recorded")
	}
}

// TestCallTool_InputError checks that validation failures are tool errors
// carrying the same message as the HTTP API.
func TestCallTool_InputError(t *testing.T) {
	p := &mock.Provider{}
	cs, _ := connect(t, p)

	res, err := cs.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      ToolSearchExcerpt,
		Arguments: map[string]any{"query": "abc"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected tool error")
	}
	if got := resultText(res); !strings.Contains(got, "Query too short (minimum 5 characters)") {
		t.Errorf("text = %q", got)
	}
	if len(p.Calls()) != 0 {
		t.Error("model called for invalid input")
	}
}

// TestCallTool_Chat checks that the history reaches the model in order.
func TestCallTool_Chat(t *testing.T) {
	p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "Good evening."}}
	cs, _ := connect(t, p)

	res, err := cs.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name: ToolChatAsCharacter,
		Arguments: map[string]any{
			"story":           "Jonathan Harker visits the Count.",
			"activeCharacter": "Dracula",
			"history": []any{
				map[string]any{"role": "user", "parts": []any{map[string]any{"text": "Who are you?"}}},
			},
		},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError || !strings.Contains(resultText(res), "Good evening.") {
		t.Fatalf("result = %q (error %v)", resultText(res), res.IsError)
	}
	calls := p.Calls()
	if len(calls) != 1 || calls[0].Req.Messages[0].Content != "Who are you?" {
		t.Errorf("calls = %+v", calls)
	}
}

// TestCallTool_ProviderError checks that model failures surface as tool errors.
func TestCallTool_ProviderError(t *testing.T) {
	cs, _ := connect(t, &mock.Provider{CompleteErr: errors.New("upstream down")})
	res, err := cs.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      ToolAnalyzeStory,
		Arguments: map[string]any{"text": strings.Repeat("x", 150)},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !res.IsError || !strings.Contains(resultText(res), "upstream down") {
		t.Errorf("result = %q (error %v)", resultText(res), res.IsError)
	}
}

func hasMetric(rm metricdata.ResourceMetrics, name string) bool {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return true
			}
		}
	}
	return false
}
