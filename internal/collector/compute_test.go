package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holochain/wind-tunnel-sub001/internal/core"
)

func TestComputeOperationRows_Empty(t *testing.T) {
	assert.Empty(t, ComputeOperationRows(nil))
}

func TestComputeOperationRows_Statistics(t *testing.T) {
	rows := ComputeOperationRows([]core.OperationRecord{
		op("b", 10, false),
		op("a", 30, false),
		op("a", 10, false),
		op("a", 500, true),
		op("a", 20, false),
	})
	require.Len(t, rows, 2)

	a := rows[0]
	assert.Equal(t, "a", a.OperationID)
	assert.Equal(t, 4, a.TotalOperations)
	assert.Equal(t, 1, a.FailedOperations)
	assert.InDelta(t, 10.0, a.MinMs, 0.001)
	assert.InDelta(t, 30.0, a.MaxMs, 0.001)
	assert.InDelta(t, 20.0, a.AvgMs, 0.001)
	assert.InDelta(t, 60.0, a.TotalDurationMs, 0.001)

	assert.Equal(t, "b", rows[1].OperationID)
	assert.Equal(t, 1, rows[1].TotalOperations)
}

func TestComputeOperationRows_AllFailed(t *testing.T) {
	rows := ComputeOperationRows([]core.OperationRecord{op("x", 5, true), op("x", 7, true)})
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].FailedOperations)
	assert.Zero(t, rows[0].AvgMs)
	assert.Zero(t, rows[0].MinMs)
}

func TestComputeOperationRows_DoesNotModifyInput(t *testing.T) {
	in := []core.OperationRecord{op("b", 1, false), op("a", 2, false)}
	ComputeOperationRows(in)
	assert.Equal(t, "b", in[0].OperationID)
}

func TestGroupCustomMetrics(t *testing.T) {
	groups := GroupCustomMetrics([]core.ReportMetric{
		{Name: "wt.custom.z", Value: 4},
		{Name: "wt.custom.a", Value: 2},
		{Name: "wt.custom.a", Value: 6},
		{Name: "wt.custom.a", Value: 1},
	})
	require.Len(t, groups, 2)
	assert.Equal(t, "wt.custom.a", groups[0].Name)
	assert.Len(t, groups[0].Metrics, 3)
	assert.Equal(t, 2.0, groups[0].Metrics[0].Value)
	assert.Equal(t, 1.0, groups[0].Min)
	assert.Equal(t, 6.0, groups[0].Max)
	assert.InDelta(t, 3.0, groups[0].Avg, 0.0001)
}

func BenchmarkComputeOperationRows(b *testing.B) {
	records := make([]core.OperationRecord, 10000)
	for i := range records {
		records[i] = op("step", i%100, i%10 == 0)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ComputeOperationRows(records)
	}
}

func BenchmarkPipelineAddOperation(b *testing.B) {
	p := NewPipeline(DefaultCapacity, NoopReporter{})
	rec := op("step", 1, false)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.AddOperation(rec)
	}
	p.Close()
}
