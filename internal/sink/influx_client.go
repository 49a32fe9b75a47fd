package sink

import (
	"context"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	log "github.com/sirupsen/logrus"

	"github.com/holochain/wind-tunnel-sub001/internal/core"
)

const (
	influxBatchSize     = 500
	influxFlushInterval = time.Second
	influxWriteTimeout  = 10 * time.Second
)

// pointWriter is the part of api.WriteAPIBlocking the reporter uses.
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxClientReporter sends every record to InfluxDB. Points are batched by a
// writer goroutine so the pipeline is not held up by network round trips.
type InfluxClientReporter struct {
	client influxdb2.Client
	writer pointWriter
	run    RunTags

	points chan *write.Point
	done   chan struct{}
	once   sync.Once
	failed int
}

// NewInfluxClientReporter connects to the server described by cfg.
func NewInfluxClientReporter(cfg InfluxConfig, run RunTags) *InfluxClientReporter {
	client := influxdb2.NewClient(cfg.Host, cfg.Token)
	r := newInfluxClientReporter(client.WriteAPIBlocking(cfg.Org, cfg.Bucket), run)
	r.client = client
	return r
}

func newInfluxClientReporter(w pointWriter, run RunTags) *InfluxClientReporter {
	r := &InfluxClientReporter{
		writer: w,
		run:    run,
		points: make(chan *write.Point, influxBatchSize*4),
		done:   make(chan struct{}),
	}
	go r.writeLoop()
	return r
}

func (r *InfluxClientReporter) Name() string { return "influx-client" }

func (r *InfluxClientReporter) AddOperation(rec core.OperationRecord) error {
	r.points <- OperationPoint(rec, r.run)
	return nil
}

func (r *InfluxClientReporter) AddCustom(m core.ReportMetric) error {
	r.points <- CustomPoint(m, r.run)
	return nil
}

// Finalize writes the remaining points and closes the client.
func (r *InfluxClientReporter) Finalize() error {
	r.once.Do(func() {
		close(r.points)
		<-r.done
		if r.client != nil {
			r.client.Close()
		}
		if r.failed > 0 {
			log.WithField("batches", r.failed).Warn("Some metrics could not be written to InfluxDB")
		}
	})
	return nil
}

func (r *InfluxClientReporter) writeLoop() {
	defer close(r.done)
	ticker := time.NewTicker(influxFlushInterval)
	defer ticker.Stop()

	batch := make([]*write.Point, 0, influxBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), influxWriteTimeout)
		defer cancel()
		if err := r.writer.WritePoint(ctx, batch...); err != nil {
			r.failed++
			log.WithError(core.ReporterError(r.Name(), err)).Warnf("Failed to write %d points", len(batch))
		}
		batch = batch[:0]
	}

	for {
		select {
		case p, ok := <-r.points:
			if !ok {
				flush()
				return
			}
			batch = append(batch, p)
			if len(batch) >= influxBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
