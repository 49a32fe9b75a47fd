// Package sink writes records to external metrics systems.
package sink

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/holochain/wind-tunnel-sub001/internal/core"
)

// OperationMeasurement is the measurement name of every operation point.
const OperationMeasurement = "operation_duration"

// Tag keys added to every point.
const (
	TagRunID        = "run_id"
	TagScenarioName = "scenario_name"
)

// Environment variables read by the sinks.
const (
	EnvInfluxHost   = "INFLUX_HOST"
	EnvInfluxBucket = "INFLUX_BUCKET"
	EnvInfluxToken  = "INFLUX_TOKEN"
	EnvInfluxOrg    = "INFLUX_ORG"
	EnvMetricsDir   = "WT_METRICS_DIR"
)

// RunTags identify the run that produced a point.
type RunTags struct {
	RunID        string
	ScenarioName string
}

func (t RunTags) apply(tags map[string]string) map[string]string {
	if t.RunID != "" {
		tags[TagRunID] = t.RunID
	}
	if t.ScenarioName != "" {
		tags[TagScenarioName] = t.ScenarioName
	}
	return tags
}

// OperationPoint converts an operation record to
// `operation_duration,operation_id=..,is_error=.. value=<ms>`, stamped with the
// record's start time.
func OperationPoint(rec core.OperationRecord, run RunTags) *write.Point {
	tags := run.apply(rec.Attributes.Map())
	tags[core.AttrOperationID] = rec.OperationID
	tags[core.AttrIsError] = strconv.FormatBool(rec.IsError)
	if rec.AgentName != "" {
		tags["agent"] = rec.AgentName
	}
	fields := map[string]interface{}{"value": rec.ElapsedMillis()}
	return write.NewPoint(OperationMeasurement, tags, fields, rec.StartedAt)
}

// CustomPoint converts a custom metric to a point whose measurement is the
// metric name.
func CustomPoint(m core.ReportMetric, run RunTags) *write.Point {
	tags := run.apply(m.Attributes.Map())
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(m.Name, tags, map[string]interface{}{"value": m.Value}, ts)
}

// LineProtocol renders a point as one newline-terminated line with
// nanosecond precision.
func LineProtocol(p *write.Point) string {
	return strings.TrimRight(write.PointToLineProtocol(p, time.Nanosecond), "\n") + "\n"
}

// InfluxConfig is the connection to an InfluxDB server.
type InfluxConfig struct {
	Host   string
	Bucket string
	Token  string
	Org    string
}

// InfluxConfigFromEnv reads the connection from INFLUX_HOST, INFLUX_BUCKET,
// INFLUX_TOKEN and the optional INFLUX_ORG. A missing variable is a ConfigError
// naming it.
func InfluxConfigFromEnv() (InfluxConfig, error) {
	cfg := InfluxConfig{Org: os.Getenv(EnvInfluxOrg)}
	for _, v := range []struct {
		name string
		dst  *string
	}{
		{EnvInfluxHost, &cfg.Host},
		{EnvInfluxBucket, &cfg.Bucket},
		{EnvInfluxToken, &cfg.Token},
	} {
		*v.dst = os.Getenv(v.name)
		if *v.dst == "" {
			return InfluxConfig{}, core.ConfigErrorf("environment variable %s must be set to use the influx reporter", v.name)
		}
	}
	return cfg, nil
}

// MetricsDirFromEnv returns WT_METRICS_DIR, which the file reporters write into.
func MetricsDirFromEnv() (string, error) {
	dir := os.Getenv(EnvMetricsDir)
	if dir == "" {
		return "", core.ConfigErrorf("environment variable %s must be set to use a file reporter", EnvMetricsDir)
	}
	return dir, nil
}
