// Package mcp implements a Model Context Protocol server exposing poolscope
// summaries and replays as MCP tools over stdio transport.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/poolscope/pkg/observability"
	"github.com/Sumatoshi-tech/poolscope/pkg/pipeline"
	"github.com/Sumatoshi-tech/poolscope/pkg/summary"
	"github.com/Sumatoshi-tech/poolscope/pkg/version"
)

const (
	serverName = "poolscope"
	toolCount  = 3

	mcpSpanPrefix  = "mcp."
	traceIDMetaKey = "trace_id"
)

// ServerDeps holds injectable dependencies for the MCP server.
// Zero-value fields use defaults.
type ServerDeps struct {
	Logger *slog.Logger
	// Metrics records per-tool call metrics. Nil disables them.
	Metrics *observability.ToolMetrics
	// RunMetrics records summary and replay statistics. Nil disables them.
	RunMetrics *observability.RunMetrics
	// Tracer creates per-call spans. Nil disables tracing.
	Tracer trace.Tracer
	// SummaryOptions seeds every summarize call. Zero value uses defaults.
	SummaryOptions summary.Options
}

// Server wraps the MCP SDK server with poolscope tool registrations.
type Server struct {
	inner    *mcpsdk.Server
	mu       sync.RWMutex
	tools    []string
	metrics  *observability.ToolMetrics
	tracer   trace.Tracer
	pipe     *pipeline.Pipeline
	defaults summary.Options
}

// NewServer creates an MCP server with all tools registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	defaults := deps.SummaryOptions
	if defaults.SizeBounds == nil && defaults.DepthBounds == nil && defaults.CountBounds == nil {
		tolerant := defaults.Tolerant
		defaults = summary.DefaultOptions()
		defaults.Tolerant = tolerant
	}

	srv := &Server{
		inner: mcpsdk.NewServer(&mcpsdk.Implementation{
			Name:    serverName,
			Version: version.Version,
		}, opts),
		tools:   make([]string, 0, toolCount),
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
		pipe: pipeline.New(pipeline.Deps{
			Tracer:  deps.Tracer,
			Logger:  deps.Logger,
			Metrics: deps.RunMetrics,
		}),
		defaults: defaults,
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run serves on stdio until ctx is canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport serves on transport until ctx is canceled or the
// connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameSummarize,
		Description: summarizeToolDescription,
	}, withMetrics(s.metrics, ToolNameSummarize, withTracing(s.tracer, ToolNameSummarize, s.handleSummarize)))
	s.trackTool(ToolNameSummarize)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameReplay,
		Description: replayToolDescription,
	}, withMetrics(s.metrics, ToolNameReplay, withTracing(s.tracer, ToolNameReplay, s.handleReplay)))
	s.trackTool(ToolNameReplay)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameTargets,
		Description: targetsToolDescription,
	}, withMetrics(s.metrics, ToolNameTargets, withTracing(s.tracer, ToolNameTargets, handleTargets)))
	s.trackTool(ToolNameTargets)
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

// withTracing opens a span per call and appends the trace id to sampled
// results.
func withTracing[Input any](
	tracer trace.Tracer,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		sc := span.SpanContext()
		if sc.IsSampled() && result != nil {
			result.Content = append(result.Content, &mcpsdk.TextContent{
				Text: fmt.Sprintf("%s=%s", traceIDMetaKey, sc.TraceID().String()),
			})
		}

		return result, output, err
	}
}

// withMetrics records call metrics labeled with what the handler noted
// about the call.
func withMetrics[Input any](
	metrics *observability.ToolMetrics,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if metrics == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		done := metrics.TrackInflight(ctx, toolName)
		defer done()

		info := &callInfo{}

		result, output, err := handler(withCallInfo(ctx, info), req, input)
		if err != nil && info.err == nil {
			info.err = err
		}

		call := observability.ToolCall{
			Tool:       toolName,
			Target:     info.target,
			Format:     info.format,
			Source:     info.source,
			InputBytes: info.inputBytes,
			Duration:   time.Since(start),
		}

		if info.err != nil || (result != nil && result.IsError) {
			call.Reason = failureReason(info.err)
		}

		metrics.RecordCall(ctx, call)

		return result, output, err
	}
}
