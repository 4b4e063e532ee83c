// Package compare diffs two summary reports line by line.
package compare

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Sumatoshi-tech/poolscope/pkg/report"
	"github.com/Sumatoshi-tech/poolscope/pkg/summary"
)

// Op classifies a Change.
type Op int

// Change operations.
const (
	OpEqual Op = iota
	OpInsert
	OpDelete
)

// Change is one line of the diff between two text reports.
type Change struct {
	Op   Op
	Line string
}

// Prefix returns the unified-diff marker for the operation.
func (o Op) Prefix() string {
	switch o {
	case OpInsert:
		return "+"
	case OpDelete:
		return "-"
	default:
		return " "
	}
}

// Diff renders both reports in text format and diffs them line by line.
// Deletions come from a, insertions from b.
func Diff(a, b *summary.Report) ([]Change, error) {
	var left, right bytes.Buffer

	if err := report.WriteText(&left, a); err != nil {
		return nil, fmt.Errorf("render left report: %w", err)
	}

	if err := report.WriteText(&right, b); err != nil {
		return nil, fmt.Errorf("render right report: %w", err)
	}

	return DiffText(left.String(), right.String()), nil
}

// DiffText diffs two texts in line mode.
func DiffText(a, b string) []Change {
	dmp := diffmatchpatch.New()
	src, dst, lines := dmp.DiffLinesToRunes(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMainRunes(src, dst, false), lines)

	var changes []Change

	for _, d := range diffs {
		op := OpEqual

		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = OpInsert
		case diffmatchpatch.DiffDelete:
			op = OpDelete
		case diffmatchpatch.DiffEqual:
		}

		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}

			changes = append(changes, Change{Op: op, Line: strings.TrimSuffix(line, "\n")})
		}
	}

	return changes
}

// Changed reports whether any change is an insertion or deletion.
func Changed(changes []Change) bool {
	for _, c := range changes {
		if c.Op != OpEqual {
			return true
		}
	}

	return false
}

// Render writes changes with +/- markers. Colors are used when useColor is
// set.
func Render(w io.Writer, changes []Change, useColor bool) error {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)

	for _, c := range []*color.Color{added, removed} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	bw := bufio.NewWriter(w)

	for _, c := range changes {
		line := c.Op.Prefix() + " " + c.Line

		switch c.Op {
		case OpInsert:
			added.Fprintln(bw, line)
		case OpDelete:
			removed.Fprintln(bw, line)
		case OpEqual:
			fmt.Fprintln(bw, line)
		}
	}

	return bw.Flush()
}
