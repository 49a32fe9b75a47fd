// Package collector moves records from instrumented agents to report collectors.
package collector

import (
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/holochain/wind-tunnel-sub001/internal/core"
	"github.com/holochain/wind-tunnel-sub001/internal/logging"
)

// DefaultCapacity is the number of records the pipeline buffers before
// producers block.
const DefaultCapacity = 1000

// ReportCollector receives every record that enters a Pipeline.
type ReportCollector interface {
	Name() string
	AddOperation(core.OperationRecord) error
	AddCustom(core.ReportMetric) error
	// Finalize is called once after the pipeline has been drained.
	Finalize() error
}

type item struct {
	operation *core.OperationRecord
	custom    *core.ReportMetric
}

// Pipeline is a bounded many-producer, single-consumer channel that dispatches
// each record to every registered collector in arrival order. A full channel
// blocks the producer rather than losing data.
type Pipeline struct {
	collectors []ReportCollector
	ch         chan item
	done       chan struct{}

	mu     sync.RWMutex
	closed bool

	closeOnce sync.Once
	received  atomic.Int64
	dropped   atomic.Int64
	startTime time.Time
	endTime   time.Time
}

// NewPipeline creates a pipeline and starts its consumer goroutine.
func NewPipeline(capacity int, collectors ...ReportCollector) *Pipeline {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	p := &Pipeline{
		collectors: collectors,
		ch:         make(chan item, capacity),
		done:       make(chan struct{}),
		startTime:  time.Now(),
	}
	go p.collect()
	return p
}

func (p *Pipeline) collect() {
	for it := range p.ch {
		p.dispatch(it)
	}
	close(p.done)
}

// AddOperation publishes an operation record. It blocks while the pipeline is full.
func (p *Pipeline) AddOperation(rec core.OperationRecord) {
	p.send(item{operation: &rec}, rec.OperationID)
}

// AddCustom publishes a custom metric. It blocks while the pipeline is full.
func (p *Pipeline) AddCustom(m core.ReportMetric) {
	p.send(item{custom: &m}, m.Name)
}

func (p *Pipeline) send(it item, id string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.dropped.Add(1)
		logging.Component("reporter").WithField("id", id).Warn("Dropping record published after the reporter was closed")
		return
	}
	p.received.Add(1)
	p.ch <- it
}

func (p *Pipeline) dispatch(it item) {
	for _, c := range p.collectors {
		c := c
		switch {
		case it.operation != nil:
			deliver(c, "add operation", func() error { return c.AddOperation(*it.operation) })
		case it.custom != nil:
			deliver(c, "add custom metric", func() error { return c.AddCustom(*it.custom) })
		}
	}
}

// deliver isolates one collector from the others: an error or panic is logged
// and never reaches the producers.
func deliver(c ReportCollector, what string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Component("reporter").WithError(core.ReporterError(c.Name(), core.PanicError(what, r))).Warn("Report collector panicked")
		}
	}()
	if err := fn(); err != nil {
		logging.Component("reporter").WithError(core.ReporterError(c.Name(), err)).Warnf("Report collector failed to %s", what)
	}
}

// Close stops accepting records, waits for the channel to drain and finalizes
// every collector. Calling Close more than once has no further effect.
func (p *Pipeline) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.endTime = time.Now()
		close(p.ch)
		p.mu.Unlock()
		<-p.done

		for _, c := range p.collectors {
			deliver(c, "finalize", c.Finalize)
		}
		logging.Component("reporter").WithFields(log.Fields{
			"received": p.received.Load(),
			"dropped":  p.dropped.Load(),
		}).Debug("Reporter pipeline finalized")
	})
}

// Received returns the number of records accepted into the pipeline.
func (p *Pipeline) Received() int64 {
	return p.received.Load()
}

// Dropped returns the number of records rejected because the pipeline was closed.
func (p *Pipeline) Dropped() int64 {
	return p.dropped.Load()
}

// Duration returns the time the pipeline has been (or was) open.
func (p *Pipeline) Duration() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.endTime.IsZero() {
		return p.endTime.Sub(p.startTime)
	}
	return time.Since(p.startTime)
}
