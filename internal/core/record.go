// Package core defines the types shared by every part of the wind tunnel runner.
package core

import (
	"time"
)

// Attribute keys that the instrumentation owns. Attributes supplied at an
// instrumentation site must not use them.
const (
	AttrOperationID = "operation_id"
	AttrIsError     = "is_error"
)

// Attribute is a single key=value pair attached to a record.
type Attribute struct {
	Key   string
	Value string
}

// Attributes is an insertion-ordered set of key=value pairs. Setting a key that
// is already present replaces its value in place.
type Attributes []Attribute

// Attrs builds Attributes from alternating keys and values. A trailing key
// without a value is ignored.
func Attrs(kv ...string) Attributes {
	a := make(Attributes, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		a = a.With(kv[i], kv[i+1])
	}
	return a
}

// With returns a copy of a with key set to value.
func (a Attributes) With(key, value string) Attributes {
	out := make(Attributes, len(a), len(a)+1)
	copy(out, a)
	for i := range out {
		if out[i].Key == key {
			out[i].Value = value
			return out
		}
	}
	return append(out, Attribute{Key: key, Value: value})
}

// Get returns the value for key.
func (a Attributes) Get(key string) (string, bool) {
	for _, attr := range a {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}

// Map copies the attributes into a map.
func (a Attributes) Map() map[string]string {
	m := make(map[string]string, len(a))
	for _, attr := range a {
		m[attr.Key] = attr.Value
	}
	return m
}

// IsReservedKey reports whether key is owned by the instrumentation.
func IsReservedKey(key string) bool {
	return key == AttrOperationID || key == AttrIsError
}

// OperationRecord is the timing of a single instrumented operation.
type OperationRecord struct {
	OperationID string
	StartedAt   time.Time
	Elapsed     time.Duration
	IsError     bool
	Attributes  Attributes
	// AgentName identifies the producer. Empty for operations made outside an agent.
	AgentName string
}

// ElapsedMillis returns the elapsed time in fractional milliseconds.
func (r OperationRecord) ElapsedMillis() float64 {
	return float64(r.Elapsed.Microseconds()) / 1000.0
}

// ReportMetric is a custom data point emitted explicitly by scenario code.
type ReportMetric struct {
	Name       string
	Value      float64
	Attributes Attributes
	Timestamp  time.Time
}

// Reporter is the ingest endpoint that instrumentation publishes to.
// Implementations must be safe for concurrent use.
type Reporter interface {
	AddOperation(OperationRecord)
	AddCustom(ReportMetric)
}

// NullReporter discards all records.
var NullReporter Reporter = nullReporter{}

type nullReporter struct{}

func (nullReporter) AddOperation(OperationRecord) {}
func (nullReporter) AddCustom(ReportMetric)       {}
