package collector

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/holochain/wind-tunnel-sub001/internal/core"
)

// FormatOperationsTable writes the summary of operations. A table with no
// rows still prints its header.
func FormatOperationsTable(w io.Writer, rows []OperationRow) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Summary of operations")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "operation_id\tavg_ms\tmin_ms\tmax_ms\ttotal_operations\ttotal_duration_ms\tfailed_operations")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%d\t%.2f\t%d\n",
			r.OperationID, r.AvgMs, r.MinMs, r.MaxMs, r.TotalOperations, r.TotalDurationMs, r.FailedOperations)
	}
	_ = tw.Flush() // stdout errors are unrecoverable
}

// FormatCustomMetrics writes custom metrics grouped by name. Nothing is
// written when there are no metrics.
func FormatCustomMetrics(w io.Writer, groups []CustomMetricGroup) {
	if len(groups) == 0 {
		return
	}
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Custom Metrics")
	for _, g := range groups {
		fmt.Fprintln(w, "")
		fmt.Fprintf(w, "%s (%d)  min=%.3f avg=%.3f max=%.3f\n", g.Name, len(g.Metrics), g.Min, g.Avg, g.Max)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "#\ttime\tvalue\ttags")
		for i, m := range g.Metrics {
			fmt.Fprintf(tw, "%d\t%s\t%.3f\t%s\n", i+1, m.Timestamp.Format("15:04:05"), m.Value, formatTags(m.Attributes))
		}
		_ = tw.Flush()
	}
}

func formatTags(attrs core.Attributes) string {
	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		parts = append(parts, a.Key+"="+a.Value)
	}
	return strings.Join(parts, ", ")
}
