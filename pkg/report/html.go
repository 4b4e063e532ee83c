package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/poolscope/pkg/summary"
)

const (
	chartWidth  = "900px"
	chartHeight = "420px"
	xAxisRotate = 30
)

// WriteHTML writes a self-contained echarts page with one bar chart per
// histogram.
func WriteHTML(w io.Writer, rep *summary.Report, options Options) error {
	title := options.Title
	if title == "" {
		title = defaultTitle
	}

	page := components.NewPage()
	page.PageTitle = title

	for _, s := range sections(rep) {
		page.AddCharts(histogramChart(s, rep))
	}

	return page.Render(w)
}

func histogramChart(s section, rep *summary.Report) *charts.Bar {
	labels := make([]string, len(s.ranges))
	data := make([]opts.BarData, len(s.ranges))

	for i, r := range s.ranges {
		labels[i] = r.Label()
		data[i] = opts.BarData{Value: r.Count}
	}

	name := strings.TrimSuffix(s.title, ":")

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{
			Title:    name,
			Subtitle: subtitle(rep),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{Rotate: xAxisRotate, Interval: "0"},
		}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Pools"}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("Pools", data)

	return bar
}

func subtitle(rep *summary.Report) string {
	return fmt.Sprintf("destroyed pools: %d, leaked: %d", len(rep.History), rep.LeakedPools)
}
