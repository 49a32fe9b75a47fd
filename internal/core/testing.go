package core

import "sync"

// MockWriter is a thread-safe io.Writer for testing.
type MockWriter struct {
	mu   sync.Mutex
	data []byte
}

func (w *MockWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.data = append(w.data, p...)
	return len(p), nil
}

func (w *MockWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return string(w.data)
}

// RecordingReporter keeps every record it is given. Used by tests that need a
// Reporter without running a pipeline.
type RecordingReporter struct {
	mu         sync.Mutex
	operations []OperationRecord
	custom     []ReportMetric
}

func (r *RecordingReporter) AddOperation(rec OperationRecord) {
	r.mu.Lock()
	r.operations = append(r.operations, rec)
	r.mu.Unlock()
}

func (r *RecordingReporter) AddCustom(m ReportMetric) {
	r.mu.Lock()
	r.custom = append(r.custom, m)
	r.mu.Unlock()
}

// Operations returns a copy of the recorded operations.
func (r *RecordingReporter) Operations() []OperationRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]OperationRecord, len(r.operations))
	copy(out, r.operations)
	return out
}

// Custom returns a copy of the recorded custom metrics.
func (r *RecordingReporter) Custom() []ReportMetric {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ReportMetric, len(r.custom))
	copy(out, r.custom)
	return out
}
