package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/holochain/wind-tunnel-sub001/internal/core"
)

// PrometheusFileReporter aggregates records into Prometheus metrics and writes
// them in the text exposition format when the run finishes, for the node
// exporter textfile collector.
type PrometheusFileReporter struct {
	path     string
	registry *prometheus.Registry

	durations *prometheus.HistogramVec
	custom    *prometheus.GaugeVec
	samples   *prometheus.CounterVec

	once sync.Once
	err  error
}

// NewPrometheusFileReporter will write <dir>/<scenario>-<run id>.prom.
func NewPrometheusFileReporter(dir string, run RunTags) (*PrometheusFileReporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, core.ConfigErrorf("cannot create metrics directory %s: %v", dir, err)
	}
	constLabels := prometheus.Labels{TagRunID: run.RunID, TagScenarioName: run.ScenarioName}
	r := &PrometheusFileReporter{
		path:     filepath.Join(dir, fmt.Sprintf("%s-%s.prom", run.ScenarioName, run.RunID)),
		registry: prometheus.NewRegistry(),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "wt_operation_duration_milliseconds",
			Help:        "Duration of instrumented operations.",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(0.5, 2, 16),
		}, []string{core.AttrOperationID, core.AttrIsError}),
		custom: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "wt_custom_metric",
			Help:        "Last value of each custom metric.",
			ConstLabels: constLabels,
		}, []string{"name"}),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "wt_custom_metric_samples_total",
			Help:        "Number of values reported for each custom metric.",
			ConstLabels: constLabels,
		}, []string{"name"}),
	}
	r.registry.MustRegister(r.durations, r.custom, r.samples)
	return r, nil
}

// Path returns the file written on Finalize.
func (r *PrometheusFileReporter) Path() string { return r.path }

func (r *PrometheusFileReporter) Name() string { return "prometheus-file" }

func (r *PrometheusFileReporter) AddOperation(rec core.OperationRecord) error {
	r.durations.WithLabelValues(rec.OperationID, strconv.FormatBool(rec.IsError)).Observe(rec.ElapsedMillis())
	return nil
}

func (r *PrometheusFileReporter) AddCustom(m core.ReportMetric) error {
	r.custom.WithLabelValues(m.Name).Set(m.Value)
	r.samples.WithLabelValues(m.Name).Inc()
	return nil
}

// Finalize writes the metrics file. Only the first call writes.
func (r *PrometheusFileReporter) Finalize() error {
	r.once.Do(func() {
		r.err = errors.Wrapf(prometheus.WriteToTextfile(r.path, r.registry), "writing %s", r.path)
	})
	return r.err
}
