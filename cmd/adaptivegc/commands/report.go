package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sarahrileyjo/adaptivegc/internal/simulate"
)

const (
	chartHeight = "500px"
	lineWidth   = 2

	// maxTableRows caps the table view of a run so a long simulation's
	// output stays readable; the JSON format carries every record.
	maxTableRows = 40
)

// renderResult writes a simulate.Result in the requested format. table and
// json write to out; plot writes an HTML file to outputPath.
func renderResult(out io.Writer, format, outputPath string, result simulate.Result) error {
	switch format {
	case "", "table":
		return renderTable(out, result)
	case "json":
		return renderJSON(out, result)
	case "plot":
		return renderPlot(outputPath, result)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func renderTable(out io.Writer, result simulate.Result) error {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(out)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false

	tbl.AppendHeader(table.Row{"#", "Kind", "Cause", "Eden", "Survivor", "Old", "Tenuring", "Minor Cost", "Major Cost"})

	for _, rec := range sampleRecords(result.Records, maxTableRows) {
		tbl.AppendRow(table.Row{
			rec.Index,
			kindLabel(rec.Complete),
			rec.Cause.String(),
			humanizeBytes(rec.EdenSize),
			humanizeBytes(rec.SurvivorSize),
			humanizeBytes(rec.OldSize),
			rec.TenuringThreshold,
			formatRatio(rec.MinorGcCostRatio),
			formatRatio(rec.MajorGcCostRatio),
		})
	}

	tbl.AppendFooter(table.Row{"", "", "", "", "", "", "minor", result.MinorCount, "major"})
	tbl.AppendFooter(table.Row{"", "", "", "", "", "", "", "", result.MajorCount})

	tbl.Render()

	return renderSummary(out, result.Summary)
}

func renderSummary(out io.Writer, summary simulate.Summary) error {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(out)
	tbl.SetStyle(table.StyleLight)

	tbl.AppendHeader(table.Row{"Generation", "Mean", "P95", "Min", "Max"})
	tbl.AppendRow(table.Row{
		"eden",
		humanizeBytes(uint64(summary.MeanEdenSize)),
		humanizeBytes(uint64(summary.P95EdenSize)),
		humanizeBytes(summary.MinEdenSize),
		humanizeBytes(summary.MaxEdenSize),
	})
	tbl.AppendRow(table.Row{
		"old",
		humanizeBytes(uint64(summary.MeanOldSize)),
		humanizeBytes(uint64(summary.P95OldSize)),
		humanizeBytes(summary.MinOldSize),
		humanizeBytes(summary.MaxOldSize),
	})

	tbl.Render()

	return nil
}

// sampleRecords returns an evenly spaced subset of records capped at max
// rows, always including the final record, so a long run's table stays
// readable without silently hiding the run's end state.
func sampleRecords(records []simulate.Record, max int) []simulate.Record {
	if max <= 0 || len(records) <= max {
		return records
	}

	sampled := make([]simulate.Record, 0, max)
	stride := float64(len(records)) / float64(max)

	for i := range max - 1 {
		sampled = append(sampled, records[int(float64(i)*stride)])
	}

	return append(sampled, records[len(records)-1])
}

// humanizeBytes renders a byte count the way the rest of the CLI's logging
// does (github.com/dustin/go-humanize), so table cells and log lines agree.
func humanizeBytes(v uint64) string {
	return humanize.Bytes(v)
}

func renderJSON(out io.Writer, result simulate.Result) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return nil
}

func renderPlot(outputPath string, result simulate.Result) error {
	if outputPath == "" {
		return fmt.Errorf("%w: --output is required for --format plot", ErrUnknownFormat)
	}

	line := buildSizeChart(result.Records)

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create plot output: %w", err)
	}
	defer f.Close()

	if renderErr := line.Render(f); renderErr != nil {
		return fmt.Errorf("render plot: %w", renderErr)
	}

	return nil
}

func buildSizeChart(records []simulate.Record) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Adaptive generation sizing",
			Subtitle: "Eden, survivor, and old-generation target sizes over the simulated run",
		}),
		charts.WithInitializationOpts(opts.Initialization{Height: chartHeight}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "collection"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "bytes"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	labels := make([]string, len(records))
	eden := make([]opts.LineData, len(records))
	survivor := make([]opts.LineData, len(records))
	old := make([]opts.LineData, len(records))

	for i, rec := range records {
		labels[i] = strconv.Itoa(rec.Index)
		eden[i] = opts.LineData{Value: rec.EdenSize}
		survivor[i] = opts.LineData{Value: rec.SurvivorSize}
		old[i] = opts.LineData{Value: rec.OldSize}
	}

	line.SetXAxis(labels).
		AddSeries("eden", eden, charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth})).
		AddSeries("survivor", survivor, charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth})).
		AddSeries("old", old, charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth}))

	return line
}

func kindLabel(complete bool) string {
	if complete {
		return "major"
	}

	return "minor"
}

func formatRatio(ratio float64) string {
	return strconv.FormatFloat(ratio, 'f', 4, 64)
}
