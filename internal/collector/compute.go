package collector

import (
	"sort"

	"github.com/holochain/wind-tunnel-sub001/internal/core"
)

// OperationRow is the summary of every record sharing one operation ID.
// Duration statistics cover successful operations; failures are counted
// separately.
type OperationRow struct {
	OperationID      string
	AvgMs            float64
	MinMs            float64
	MaxMs            float64
	TotalOperations  int
	TotalDurationMs  float64
	FailedOperations int
}

// ComputeOperationRows groups records by operation ID. Pure function, rows
// are sorted by operation ID.
func ComputeOperationRows(records []core.OperationRecord) []OperationRow {
	byID := make(map[string]*OperationRow)
	successes := make(map[string]int)

	for _, rec := range records {
		row, ok := byID[rec.OperationID]
		if !ok {
			row = &OperationRow{OperationID: rec.OperationID}
			byID[rec.OperationID] = row
		}
		row.TotalOperations++
		if rec.IsError {
			row.FailedOperations++
			continue
		}

		ms := rec.ElapsedMillis()
		if successes[rec.OperationID] == 0 || ms < row.MinMs {
			row.MinMs = ms
		}
		if ms > row.MaxMs {
			row.MaxMs = ms
		}
		row.TotalDurationMs += ms
		successes[rec.OperationID]++
	}

	rows := make([]OperationRow, 0, len(byID))
	for id, row := range byID {
		if n := successes[id]; n > 0 {
			row.AvgMs = row.TotalDurationMs / float64(n)
		}
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].OperationID < rows[j].OperationID })
	return rows
}

// CustomMetricGroup holds every custom metric with one name.
type CustomMetricGroup struct {
	Name    string
	Metrics []core.ReportMetric
	Min     float64
	Max     float64
	Avg     float64
}

// GroupCustomMetrics groups metrics by name, keeping arrival order inside a
// group. Groups are sorted by name.
func GroupCustomMetrics(metrics []core.ReportMetric) []CustomMetricGroup {
	byName := make(map[string]*CustomMetricGroup)
	for _, m := range metrics {
		g, ok := byName[m.Name]
		if !ok {
			g = &CustomMetricGroup{Name: m.Name, Min: m.Value, Max: m.Value}
			byName[m.Name] = g
		}
		g.Metrics = append(g.Metrics, m)
		if m.Value < g.Min {
			g.Min = m.Value
		}
		if m.Value > g.Max {
			g.Max = m.Value
		}
		g.Avg += m.Value
	}

	groups := make([]CustomMetricGroup, 0, len(byName))
	for _, g := range byName {
		g.Avg /= float64(len(g.Metrics))
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups
}
