// Package alloclog reads memory-pool allocation logs.
//
// A log holds one event per line with four whitespace-separated fields:
//
//	<action> <pool> <parent> <amount>
//
// where action is one of create, alloc, clear or destroy, pool and parent are
// opaque identifiers (hex addresses in practice, "0x0" for the root sentinel)
// and amount is a non-negative byte count that only matters for alloc.
package alloclog

import (
	"errors"
	"fmt"
)

// RootID is the parent identifier of root pools.
const RootID = "0x0"

// Action is the kind of a pool lifecycle event.
type Action string

// Pool lifecycle actions.
const (
	ActionCreate  Action = "create"
	ActionAlloc   Action = "alloc"
	ActionClear   Action = "clear"
	ActionDestroy Action = "destroy"
)

// Actions lists every action in the order reports print them.
var Actions = []Action{ActionCreate, ActionAlloc, ActionClear, ActionDestroy}

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionAlloc, ActionClear, ActionDestroy:
		return true
	default:
		return false
	}
}

// Event is a single log line.
type Event struct {
	Action Action
	Pool   string
	Parent string
	Amount int64

	// Line is the 1-based line number the event was read from. Zero for
	// events built in code.
	Line int
}

// IsRoot reports whether the event's parent is the root sentinel.
func (e Event) IsRoot() bool {
	return e.Parent == RootID
}

// String renders the event back in log form.
func (e Event) String() string {
	return fmt.Sprintf("%s %s %s %d", e.Action, e.Pool, e.Parent, e.Amount)
}

// Sentinel parse errors.
var (
	ErrMalformedLine = errors.New("malformed line: expected 4 fields")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrUnknownAction = errors.New("unknown action")
)

// LineError attaches the offending line to a parse error.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v: %q", e.Line, e.Err, e.Text)
}

func (e *LineError) Unwrap() error {
	return e.Err
}
