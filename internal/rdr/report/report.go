// Package report renders an HTML summary of one ingest run — per-product
// packet counts and granule emission latency — for the "info" CLI
// subcommand. This is a supplement to spec.md (see SPEC_FULL.md §6.3): it
// only surfaces numbers the ledger already has in hand.
package report

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"

	"github.com/jpss-rdr/rdrgen/internal/rdr/ledger"
)

// Render builds an HTML page summarizing the given run's ledger entries.
func Render(l *ledger.Ledger, runID string) (string, error) {
	counts, err := l.PacketCountsByProduct(runID)
	if err != nil {
		return "", err
	}
	latencies, err := l.Latencies(runID)
	if err != nil {
		return "", err
	}

	products := make([]string, 0, len(counts))
	for p := range counts {
		products = append(products, p)
	}
	sort.Strings(products)

	barData := make([]opts.BarData, 0, len(products))
	for _, p := range products {
		barData = append(barData, opts.BarData{Value: counts[p]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Packets by product", Subtitle: "run " + runID}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(products).AddSeries("packets", barData,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)

	lineData := make([]opts.LineData, len(latencies))
	xAxis := make([]string, len(latencies))
	for i, v := range latencies {
		lineData[i] = opts.LineData{Value: v / 1e6} // ns -> ms
		xAxis[i] = fmt.Sprintf("%d", i)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Granule emission latency (ms)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	line.SetXAxis(xAxis).AddSeries("latency_ms", lineData)

	var mean, stddev float64
	if len(latencies) > 0 {
		mean, stddev = stat.MeanStdDev(latencies, nil)
	}

	page := components.NewPage()
	page.AddCharts(bar, line)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}

	html := buf.String() + fmt.Sprintf(
		"<div style=\"font-family:monospace;padding:1em\">granules=%d mean_latency_ms=%.2f stddev_latency_ms=%.2f</div>",
		len(latencies), mean/1e6, stddev/1e6,
	)
	return html, nil
}
