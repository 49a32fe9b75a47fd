package runner

import (
	"io"

	"github.com/holochain/wind-tunnel-sub001/internal/collector"
	"github.com/holochain/wind-tunnel-sub001/internal/scenario"
	"github.com/holochain/wind-tunnel-sub001/internal/sink"
)

// newCollectors builds the collectors for choice. Missing configuration is
// reported here, before any scenario code runs.
func newCollectors(choice scenario.ReporterChoice, run sink.RunTags, out io.Writer) ([]collector.ReportCollector, error) {
	switch choice {
	case scenario.ReporterInMemoryCustom:
		r := collector.NewInMemoryWithCustomMetricsReporter()
		r.SetOutput(out)
		return []collector.ReportCollector{r}, nil
	case scenario.ReporterInfluxClient:
		cfg, err := sink.InfluxConfigFromEnv()
		if err != nil {
			return nil, err
		}
		return []collector.ReportCollector{sink.NewInfluxClientReporter(cfg, run)}, nil
	case scenario.ReporterInfluxFile:
		dir, err := sink.MetricsDirFromEnv()
		if err != nil {
			return nil, err
		}
		r, err := sink.NewInfluxFileReporter(dir, run)
		if err != nil {
			return nil, err
		}
		return []collector.ReportCollector{r}, nil
	case scenario.ReporterPrometheusFile:
		dir, err := sink.MetricsDirFromEnv()
		if err != nil {
			return nil, err
		}
		r, err := sink.NewPrometheusFileReporter(dir, run)
		if err != nil {
			return nil, err
		}
		return []collector.ReportCollector{r}, nil
	case scenario.ReporterNoop:
		return []collector.ReportCollector{collector.NoopReporter{}}, nil
	default:
		r := collector.NewInMemoryReporter()
		r.SetOutput(out)
		return []collector.ReportCollector{r}, nil
	}
}
