package collector

import (
	"io"
	"os"
	"sync"

	"github.com/holochain/wind-tunnel-sub001/internal/core"
)

// InMemoryReporter keeps every record in memory and prints a summary of the
// operations when finalized. Useful while developing scenarios.
type InMemoryReporter struct {
	mu         sync.Mutex
	operations []core.OperationRecord
	custom     []core.ReportMetric
	output     io.Writer
	finalized  bool
}

func NewInMemoryReporter() *InMemoryReporter {
	return &InMemoryReporter{output: os.Stdout}
}

// SetOutput redirects the summary, which goes to stdout by default.
func (r *InMemoryReporter) SetOutput(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.output = w
}

func (r *InMemoryReporter) Name() string { return "in-memory" }

func (r *InMemoryReporter) AddOperation(rec core.OperationRecord) error {
	r.mu.Lock()
	r.operations = append(r.operations, rec)
	r.mu.Unlock()
	return nil
}

func (r *InMemoryReporter) AddCustom(m core.ReportMetric) error {
	r.mu.Lock()
	r.custom = append(r.custom, m)
	r.mu.Unlock()
	return nil
}

// Finalize prints the operations table. Only the first call prints.
func (r *InMemoryReporter) Finalize() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return nil
	}
	r.finalized = true
	FormatOperationsTable(r.output, ComputeOperationRows(r.operations))
	return nil
}

// Operations returns a copy of the collected operation records.
func (r *InMemoryReporter) Operations() []core.OperationRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.OperationRecord, len(r.operations))
	copy(out, r.operations)
	return out
}

// Custom returns a copy of the collected custom metrics.
func (r *InMemoryReporter) Custom() []core.ReportMetric {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.ReportMetric, len(r.custom))
	copy(out, r.custom)
	return out
}

// InMemoryWithCustomMetricsReporter prints the operations table followed by
// the custom metrics grouped by name.
type InMemoryWithCustomMetricsReporter struct {
	*InMemoryReporter
	once sync.Once
}

func NewInMemoryWithCustomMetricsReporter() *InMemoryWithCustomMetricsReporter {
	return &InMemoryWithCustomMetricsReporter{InMemoryReporter: NewInMemoryReporter()}
}

func (r *InMemoryWithCustomMetricsReporter) Name() string { return "in-memory-custom" }

func (r *InMemoryWithCustomMetricsReporter) Finalize() error {
	r.once.Do(func() {
		_ = r.InMemoryReporter.Finalize()
		r.InMemoryReporter.mu.Lock()
		defer r.InMemoryReporter.mu.Unlock()
		FormatCustomMetrics(r.output, GroupCustomMetrics(r.custom))
	})
	return nil
}

// NoopReporter discards everything.
type NoopReporter struct{}

func (NoopReporter) Name() string                            { return "noop" }
func (NoopReporter) AddOperation(core.OperationRecord) error { return nil }
func (NoopReporter) AddCustom(core.ReportMetric) error       { return nil }
func (NoopReporter) Finalize() error                         { return nil }
