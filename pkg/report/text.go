package report

import (
	"bufio"
	"fmt"
	"io"

	"github.com/Sumatoshi-tech/poolscope/pkg/alg/histogram"
	"github.com/Sumatoshi-tech/poolscope/pkg/alloclog"
	"github.com/Sumatoshi-tech/poolscope/pkg/summary"
)

// Section titles shared by every human-readable format.
const (
	titleCallCounts = "Call counts:"
	titleSizeHist   = "Distribution of maximum pool size:"
	titleDepthHist  = "Distribution of pool depth:"
	titleCountHist  = "Distribution of counts"
)

type maximum struct {
	label string
	value int64
	bytes bool
}

func maxima(rep *summary.Report) []maximum {
	return []maximum{
		{label: "Maximum depth", value: int64(rep.MaxDepth)},
		{label: "Maximum single allocation", value: rep.MaxAllocation, bytes: true},
		{label: "Maximum allocs in a pool", value: int64(rep.MaxAllocsPerPool)},
		{label: "Maximum pool size", value: rep.MaxPoolSize, bytes: true},
		{label: "Maximum live pools", value: int64(rep.MaxLivePools)},
	}
}

type section struct {
	title  string
	ranges []histogram.Range
}

func sections(rep *summary.Report) []section {
	return []section{
		{title: titleSizeHist, ranges: rep.SizeHistogram},
		{title: titleDepthHist, ranges: rep.DepthHistogram},
		{title: titleCountHist, ranges: rep.CountHistogram},
	}
}

// WriteText writes the classic plain-text layout: call counts, maxima, then
// one block per histogram.
func WriteText(w io.Writer, rep *summary.Report) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, titleCallCounts)

	for _, action := range alloclog.Actions {
		fmt.Fprintf(bw, "  %s: %d\n", action, rep.Actions[action])
	}

	for _, m := range maxima(rep) {
		fmt.Fprintf(bw, "%s: %d\n", m.label, m.value)
	}

	for _, s := range sections(rep) {
		fmt.Fprintln(bw, s.title)

		for _, r := range s.ranges {
			fmt.Fprintf(bw, "  %s: %d\n", r.Label(), r.Count)
		}
	}

	return bw.Flush()
}
