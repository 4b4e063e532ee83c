package report

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/poolscope/pkg/summary"
)

const yamlIndent = 2

// structured drops the per-pool history unless asked for it.
func structured(rep *summary.Report, opts Options) *summary.Report {
	if opts.History || len(rep.History) == 0 {
		return rep
	}

	trimmed := *rep
	trimmed.History = nil

	return &trimmed
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, rep *summary.Report, opts Options) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(structured(rep, opts))
}

// WriteYAML writes the report as YAML.
func WriteYAML(w io.Writer, rep *summary.Report, opts Options) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(yamlIndent)

	err := enc.Encode(structured(rep, opts))
	if err != nil {
		return err
	}

	return enc.Close()
}
