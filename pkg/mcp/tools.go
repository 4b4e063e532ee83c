package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/poolscope/pkg/alloclog"
	"github.com/Sumatoshi-tech/poolscope/pkg/replay"
	"github.com/Sumatoshi-tech/poolscope/pkg/report"
	"github.com/Sumatoshi-tech/poolscope/pkg/units"
)

// Tool names.
const (
	ToolNameSummarize = "poolscope_summarize"
	ToolNameReplay    = "poolscope_replay"
	ToolNameTargets   = "poolscope_targets"
)

// MaxLogInputBytes caps inline log input.
const MaxLogInputBytes = 8 * units.MiB

// Sentinel errors for tool input validation.
var (
	ErrNoLog             = errors.New("one of log or path is required")
	ErrBothLogAndPath    = errors.New("log and path are mutually exclusive")
	ErrLogTooLarge       = errors.New("log input exceeds maximum size")
	ErrPathNotAbsolute   = errors.New("path must be absolute")
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// SummarizeInput is the input schema for poolscope_summarize.
type SummarizeInput struct {
	Log      string `json:"log,omitempty"      jsonschema:"inline allocation log text"`
	Path     string `json:"path,omitempty"     jsonschema:"absolute path to an allocation log, optionally lz4 compressed"`
	Tolerant bool   `json:"tolerant,omitempty" jsonschema:"ignore clear or destroy of pools that are already gone"`
	Format   string `json:"format,omitempty"   jsonschema:"json (default), yaml or text"`
	History  bool   `json:"history,omitempty"  jsonschema:"include the per-pool history in json and yaml output"`
}

// ReplayInput is the input schema for poolscope_replay.
type ReplayInput struct {
	Log        string `json:"log,omitempty"        jsonschema:"inline allocation log text"`
	Path       string `json:"path,omitempty"       jsonschema:"absolute path to an allocation log, optionally lz4 compressed"`
	Target     string `json:"target,omitempty"     jsonschema:"pool API to emit: apr (default) or pocore"`
	Iterations int    `json:"iterations,omitempty" jsonschema:"benchmark loop count (default 1000)"`
}

// TargetsInput is the empty input of poolscope_targets.
type TargetsInput struct{}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// ReplayOutput is the structured result of poolscope_replay.
type ReplayOutput struct {
	Target  string       `json:"target"`
	Stats   replay.Stats `json:"stats"`
	Program string       `json:"program"`
}

const (
	summarizeToolDescription = "Summarize a pool allocation log (create/alloc/clear/destroy): " +
		"call counts, maxima and histograms of pool size, depth and allocation count. " +
		"Accepts inline log text or an absolute path."

	replayToolDescription = "Generate a C benchmark program that replays a pool allocation log " +
		"against the apr or pocore pool API. Allocations on dead pools are emitted as BOGUS comments."

	targetsToolDescription = "List the pool APIs poolscope_replay can target."
)

func (s *Server) handleSummarize(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input SummarizeInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	format := input.Format
	if format == "" {
		format = report.FormatJSON
	}

	noteCall(ctx, func(info *callInfo) { info.format = format })

	if format != report.FormatJSON && format != report.FormatYAML && format != report.FormatText {
		return errorResult(ctx, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format))
	}

	events, err := s.loadEvents(ctx, input.Log, input.Path)
	if err != nil {
		return errorResult(ctx, err)
	}

	opts := s.defaults
	opts.Tolerant = opts.Tolerant || input.Tolerant

	rep, err := s.pipe.Summarize(ctx, events, opts)
	if err != nil {
		return errorResult(ctx, err)
	}

	var buf bytes.Buffer

	err = report.Render(&buf, rep, format, report.Options{History: input.History})
	if err != nil {
		return errorResult(ctx, err)
	}

	if format == report.FormatJSON {
		return textResult(buf.String(), json.RawMessage(buf.Bytes()))
	}

	return textResult(buf.String(), rep)
}

func (s *Server) handleReplay(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input ReplayInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	name := input.Target
	if name == "" {
		name = replay.APR.Name()
	}

	noteCall(ctx, func(info *callInfo) { info.target = name })

	target, err := replay.Lookup(name)
	if err != nil {
		return errorResult(ctx, err)
	}

	events, err := s.loadEvents(ctx, input.Log, input.Path)
	if err != nil {
		return errorResult(ctx, err)
	}

	var buf bytes.Buffer

	stats, err := s.pipe.Replay(ctx, &buf, events, target, replay.Options{Iterations: input.Iterations})
	if err != nil {
		return errorResult(ctx, err)
	}

	return textResult(buf.String(), ReplayOutput{Target: name, Stats: stats, Program: buf.String()})
}

func handleTargets(
	_ context.Context, _ *mcpsdk.CallToolRequest, _ TargetsInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return textResult(strings.Join(replay.Targets(), "\n"), replay.Targets())
}

func (s *Server) loadEvents(ctx context.Context, log, path string) ([]alloclog.Event, error) {
	switch {
	case log != "" && path != "":
		return nil, ErrBothLogAndPath
	case path != "":
		noteCall(ctx, func(info *callInfo) { info.source = sourcePath })

		if !filepath.IsAbs(path) {
			return nil, fmt.Errorf("%w: %s", ErrPathNotAbsolute, path)
		}

		return s.pipe.Load(ctx, path)
	case log != "":
		noteCall(ctx, func(info *callInfo) {
			info.source = sourceInline
			info.inputBytes = len(log)
		})

		if len(log) > MaxLogInputBytes {
			return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrLogTooLarge, len(log), MaxLogInputBytes)
		}

		return s.pipe.Parse(ctx, strings.NewReader(log), sourceInline)
	default:
		return nil, ErrNoLog
	}
}

func errorResult(ctx context.Context, err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	noteCall(ctx, func(info *callInfo) { info.err = err })

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
		IsError: true,
	}, ToolOutput{}, nil
}

func textResult(text string, data any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
	}, ToolOutput{Data: data}, nil
}
