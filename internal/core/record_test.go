package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAttrs_PreservesInsertionOrder(t *testing.T) {
	a := Attrs("zome", "timed", "fn", "create", "agent", "agent-0")

	keys := make([]string, 0, len(a))
	for _, attr := range a {
		keys = append(keys, attr.Key)
	}
	assert.Equal(t, []string{"zome", "fn", "agent"}, keys)
}

func TestAttrs_IgnoresDanglingKey(t *testing.T) {
	a := Attrs("zome", "timed", "fn")
	assert.Len(t, a, 1)
}

func TestAttributes_WithReplacesInPlace(t *testing.T) {
	a := Attrs("a", "1", "b", "2")
	b := a.With("a", "3")

	v, ok := b.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "3", v)
	assert.Equal(t, "a", b[0].Key)

	// original is untouched
	v, _ = a.Get("a")
	assert.Equal(t, "1", v)
}

func TestAttributes_Map(t *testing.T) {
	m := Attrs("a", "1", "b", "2").Map()
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, m)
}

func TestIsReservedKey(t *testing.T) {
	assert.True(t, IsReservedKey("operation_id"))
	assert.True(t, IsReservedKey("is_error"))
	assert.False(t, IsReservedKey("zome"))
}

func TestOperationRecord_ElapsedMillis(t *testing.T) {
	r := OperationRecord{Elapsed: 1500 * time.Microsecond}
	assert.InDelta(t, 1.5, r.ElapsedMillis(), 0.0001)
}

func TestRecordingReporter(t *testing.T) {
	r := &RecordingReporter{}
	r.AddOperation(OperationRecord{OperationID: "demo.echo"})
	r.AddCustom(ReportMetric{Name: "wt.custom.x", Value: 1})

	assert.Len(t, r.Operations(), 1)
	assert.Len(t, r.Custom(), 1)
}
