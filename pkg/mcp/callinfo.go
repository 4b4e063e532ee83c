package mcp

import (
	"context"
	"errors"
	"io/fs"

	"github.com/Sumatoshi-tech/poolscope/pkg/alloclog"
	"github.com/Sumatoshi-tech/poolscope/pkg/replay"
	"github.com/Sumatoshi-tech/poolscope/pkg/summary"
)

// Failure reasons reported in tool call metrics.
const (
	reasonInput       = "input"
	reasonTarget      = "target"
	reasonNotFound    = "not_found"
	reasonParse       = "parse"
	reasonUnknownPool = "unknown_pool"
	reasonInternal    = "internal"
)

// Log sources reported in tool call metrics.
const (
	sourceInline = "inline"
	sourcePath   = "path"
)

type callInfoKey struct{}

// callInfo collects metric labels a handler learns while serving a call.
type callInfo struct {
	target     string
	format     string
	source     string
	inputBytes int
	err        error
}

func withCallInfo(ctx context.Context, info *callInfo) context.Context {
	return context.WithValue(ctx, callInfoKey{}, info)
}

// noteCall lets fn fill in the call's labels. It is a no-op when metrics
// are off.
func noteCall(ctx context.Context, fn func(info *callInfo)) {
	if info, ok := ctx.Value(callInfoKey{}).(*callInfo); ok {
		fn(info)
	}
}

func failureReason(err error) string {
	var lineErr *alloclog.LineError

	switch {
	case err == nil:
		return reasonInternal
	case errors.Is(err, ErrNoLog), errors.Is(err, ErrBothLogAndPath), errors.Is(err, ErrLogTooLarge),
		errors.Is(err, ErrPathNotAbsolute), errors.Is(err, ErrUnsupportedFormat):
		return reasonInput
	case errors.Is(err, replay.ErrUnknownTarget):
		return reasonTarget
	case errors.Is(err, fs.ErrNotExist):
		return reasonNotFound
	case errors.As(err, &lineErr):
		return reasonParse
	case errors.Is(err, summary.ErrUnknownPool):
		return reasonUnknownPool
	default:
		return reasonInternal
	}
}
