package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/poolscope/pkg/alloclog"
	"github.com/Sumatoshi-tech/poolscope/pkg/safeconv"
	"github.com/Sumatoshi-tech/poolscope/pkg/summary"
)

const defaultTitle = "Pool allocation summary"

// WriteTable writes the report as go-pretty tables, one per section.
func WriteTable(w io.Writer, rep *summary.Report, opts Options) error {
	title := color.New(color.FgCyan, color.Bold)
	if opts.NoColor {
		title.DisableColor()
	} else {
		title.EnableColor()
	}

	heading := opts.Title
	if heading == "" {
		heading = defaultTitle
	}

	parts := []string{
		title.Sprint(heading),
		countsTable(rep),
		maximaTable(rep),
	}

	for _, s := range sections(rep) {
		parts = append(parts, title.Sprint(strings.TrimSuffix(s.title, ":")), histogramTable(s))
	}

	parts = append(parts, lifetimeTable(rep))

	_, err := fmt.Fprintln(w, strings.Join(parts, "\n\n"))

	return err
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Format.Footer = text.FormatDefault

	return tbl
}

func countsTable(rep *summary.Report) string {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"Action", "Calls"})

	for _, action := range alloclog.Actions {
		tbl.AppendRow(table.Row{string(action), humanize.Comma(int64(rep.Actions[action]))})
	}

	tbl.AppendFooter(table.Row{"Total", humanize.Comma(int64(rep.Events()))})

	return tbl.Render()
}

func maximaTable(rep *summary.Report) string {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"Maximum", "Value"})

	for _, m := range maxima(rep) {
		tbl.AppendRow(table.Row{m.label, formatValue(m)})
	}

	return tbl.Render()
}

func formatValue(m maximum) string {
	if m.bytes {
		return fmt.Sprintf("%s (%s)", humanize.Comma(m.value), humanize.IBytes(safeconv.Bytes(m.value)))
	}

	return humanize.Comma(m.value)
}

func histogramTable(s section) string {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"Range", "Pools"})

	var total int

	for _, r := range s.ranges {
		label := r.Label()
		if r.Overflow {
			label += " *"
		}

		tbl.AppendRow(table.Row{label, humanize.Comma(int64(r.Count))})
		total += r.Count
	}

	tbl.AppendFooter(table.Row{"Total", humanize.Comma(int64(total))})

	return tbl.Render()
}

func lifetimeTable(rep *summary.Report) string {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"Destroyed pools", "Mean", "Median", "P95", "Max"})
	tbl.AppendRow(table.Row{
		"size",
		humanize.IBytes(safeconv.FloatBytes(rep.SizeStats.Mean)),
		humanize.IBytes(safeconv.FloatBytes(rep.SizeStats.Median)),
		humanize.IBytes(safeconv.FloatBytes(rep.SizeStats.P95)),
		humanize.IBytes(safeconv.Bytes(rep.SizeStats.Max)),
	})
	tbl.AppendRow(table.Row{
		"allocs",
		humanize.FormatFloat("#,###.##", rep.CountStats.Mean),
		humanize.FormatFloat("#,###.##", rep.CountStats.Median),
		humanize.FormatFloat("#,###.##", rep.CountStats.P95),
		humanize.Comma(rep.CountStats.Max),
	})
	tbl.AppendFooter(table.Row{
		fmt.Sprintf("leaked %d, killed %d", rep.LeakedPools, rep.KilledPools),
		fmt.Sprintf("ignored allocs %d", rep.IgnoredAllocs),
		fmt.Sprintf("ignored releases %d", rep.IgnoredReleases),
	})

	return tbl.Render()
}
