// Package report renders summary reports in human and machine formats.
package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/Sumatoshi-tech/poolscope/pkg/summary"
)

// Output formats.
const (
	FormatText  = "text"
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatHTML  = "html"
)

// Formats lists every supported format.
var Formats = []string{FormatText, FormatTable, FormatJSON, FormatYAML, FormatHTML}

// ErrUnknownFormat is returned for formats outside Formats.
var ErrUnknownFormat = errors.New("unknown report format")

// Options tunes rendering.
type Options struct {
	// Title names the report in table and html output.
	Title string
	// NoColor disables ANSI colors in table output.
	NoColor bool
	// History includes the per-pool history in json and yaml output.
	History bool
}

// ValidFormat reports whether format is supported.
func ValidFormat(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}

	return false
}

// Render writes rep to w in the given format.
func Render(w io.Writer, rep *summary.Report, format string, opts Options) error {
	var err error

	switch format {
	case FormatText, "":
		err = WriteText(w, rep)
	case FormatTable:
		err = WriteTable(w, rep, opts)
	case FormatJSON:
		err = WriteJSON(w, rep, opts)
	case FormatYAML:
		err = WriteYAML(w, rep, opts)
	case FormatHTML:
		err = WriteHTML(w, rep, opts)
	default:
		return fmt.Errorf("%w: %q (available: %v)", ErrUnknownFormat, format, Formats)
	}

	if err != nil {
		return fmt.Errorf("render %s report: %w", format, err)
	}

	return nil
}
