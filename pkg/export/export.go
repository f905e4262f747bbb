// Package export renders dispatch statistics as JSON, CSV or an HTML chart.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/techdispatch/core/dispatch"
)

var csvHeader = []string{
	"tier", "submitted", "accepted", "unmatched", "accept_rate",
	"mean_accept_seconds", "p50_accept_seconds", "p90_accept_seconds",
	"mean_escalation_level", "mean_broadcast_size",
}

// WriteJSON writes the statistics snapshot to w.
func WriteJSON(w io.Writer, st dispatch.Stats) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}

// WriteCSV writes one row per tier.
func WriteCSV(w io.Writer, st dispatch.Stats) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, t := range st.Tiers {
		rec := []string{
			t.Tier,
			strconv.Itoa(t.Submitted),
			strconv.Itoa(t.Accepted),
			strconv.Itoa(t.Unmatched),
			formatFloat(t.AcceptRate),
			formatFloat(t.MeanAcceptSeconds),
			formatFloat(t.P50AcceptSeconds),
			formatFloat(t.P90AcceptSeconds),
			formatFloat(t.MeanEscalationLevel),
			formatFloat(t.MeanBroadcastSize),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ChartHTML renders job outcomes and accept latency per tier as a
// self-contained HTML page.
func ChartHTML(st dispatch.Stats) (string, error) {
	outcomes := charts.NewBar()
	outcomes.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Dispatch outcomes per tier",
			Subtitle: "generated " + st.GeneratedAt.Format(time.RFC3339),
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Tier"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Jobs"}),
	)

	latency := charts.NewBar()
	latency.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Accept latency per tier"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Tier"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Seconds"}),
	)

	var tiers []string
	var submitted, accepted, unmatched, p50, p90 []opts.BarData
	for _, t := range st.Tiers {
		tiers = append(tiers, t.Tier)
		submitted = append(submitted, opts.BarData{Value: t.Submitted})
		accepted = append(accepted, opts.BarData{Value: t.Accepted})
		unmatched = append(unmatched, opts.BarData{Value: t.Unmatched})
		p50 = append(p50, opts.BarData{Value: t.P50AcceptSeconds})
		p90 = append(p90, opts.BarData{Value: t.P90AcceptSeconds})
	}
	outcomes.SetXAxis(tiers).
		AddSeries("Submitted", submitted).
		AddSeries("Accepted", accepted).
		AddSeries("Unmatched", unmatched)
	latency.SetXAxis(tiers).
		AddSeries("p50", p50).
		AddSeries("p90", p90)

	var buf bytes.Buffer
	for _, c := range []interface{ Render(io.Writer) error }{outcomes, latency} {
		if err := c.Render(&buf); err != nil {
			return "", fmt.Errorf("failed to render chart: %w", err)
		}
	}
	return buf.String(), nil
}

// Write renders st in format: json, csv or html.
func Write(w io.Writer, st dispatch.Stats, format string) error {
	switch format {
	case "json", "":
		return WriteJSON(w, st)
	case "csv":
		return WriteCSV(w, st)
	case "html":
		html, err := ChartHTML(st)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, html)
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
