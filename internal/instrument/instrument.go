// Package instrument wraps operations with timing capture and publishes the
// results to a core.Reporter.
package instrument

import (
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/holochain/wind-tunnel-sub001/internal/core"
)

// Operation ID prefixes used by the transport client wrappers.
const (
	PrefixApp      = "app_"
	PrefixAdmin    = "admin_"
	PrefixAppAgent = "app_agent_"
)

// CustomNamespace is prepended to custom metric names.
const CustomNamespace = "wt.custom."

// Operation runs work and publishes one OperationRecord describing it. The
// error from work is returned unchanged.
func Operation(rep core.Reporter, operationID string, attrs core.Attributes, work func() error) error {
	_, err := Call(rep, operationID, attrs, func() (struct{}, error) {
		return struct{}{}, work()
	})
	return err
}

// Call runs work and publishes one OperationRecord describing it. The value
// and error from work are returned unchanged.
func Call[T any](rep core.Reporter, operationID string, attrs core.Attributes, work func() (T, error)) (T, error) {
	startedAt := time.Now()
	value, err := work()
	elapsed := time.Since(startedAt)

	publish(rep, core.OperationRecord{
		OperationID: operationID,
		StartedAt:   startedAt,
		Elapsed:     elapsed,
		IsError:     err != nil,
		Attributes:  sanitise(operationID, attrs),
	})
	return value, err
}

// Custom publishes a custom metric. The name is placed under CustomNamespace
// if it is not already.
func Custom(rep core.Reporter, name string, value float64, attrs core.Attributes) {
	if !strings.HasPrefix(name, CustomNamespace) {
		name = CustomNamespace + name
	}
	if rep == nil {
		return
	}
	rep.AddCustom(core.ReportMetric{
		Name:       name,
		Value:      value,
		Attributes: sanitise(name, attrs),
		Timestamp:  time.Now(),
	})
}

func publish(rep core.Reporter, rec core.OperationRecord) {
	if rep == nil {
		log.WithField("operation_id", rec.OperationID).Warn("Dropping operation record, no reporter configured")
		return
	}
	rep.AddOperation(rec)
}

func sanitise(source string, attrs core.Attributes) core.Attributes {
	if len(attrs) == 0 {
		return nil
	}
	out := make(core.Attributes, 0, len(attrs))
	for _, attr := range attrs {
		if core.IsReservedKey(attr.Key) {
			log.WithFields(log.Fields{"source": source, "key": attr.Key}).Warn("Ignoring reserved attribute key")
			continue
		}
		out = append(out, attr)
	}
	return out
}
