package sink

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/holochain/wind-tunnel-sub001/internal/core"
)

// InfluxFileReporter writes points as line protocol into a file, for a
// collector such as Telegraf to pick up later.
type InfluxFileReporter struct {
	path string
	run  RunTags

	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	closed bool
}

// NewInfluxFileReporter creates <dir>/<scenario>-<unix seconds>.influx.
func NewInfluxFileReporter(dir string, run RunTags) (*InfluxFileReporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, core.ConfigErrorf("cannot create metrics directory %s: %v", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%d.influx", run.ScenarioName, time.Now().Unix()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, core.ConfigErrorf("cannot open metrics file %s: %v", path, err)
	}
	return &InfluxFileReporter{path: path, run: run, file: f, buf: bufio.NewWriter(f)}, nil
}

// Path returns the file being written.
func (r *InfluxFileReporter) Path() string { return r.path }

func (r *InfluxFileReporter) Name() string { return "influx-file" }

func (r *InfluxFileReporter) AddOperation(rec core.OperationRecord) error {
	return r.writeLine(LineProtocol(OperationPoint(rec, r.run)))
}

func (r *InfluxFileReporter) AddCustom(m core.ReportMetric) error {
	return r.writeLine(LineProtocol(CustomPoint(m, r.run)))
}

func (r *InfluxFileReporter) writeLine(line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.Errorf("metrics file %s is closed", r.path)
	}
	_, err := r.buf.WriteString(line)
	return errors.WithStack(err)
}

// Finalize flushes and closes the file.
func (r *InfluxFileReporter) Finalize() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.buf.Flush(); err != nil {
		_ = r.file.Close()
		return errors.Wrapf(err, "flushing %s", r.path)
	}
	return errors.Wrapf(r.file.Close(), "closing %s", r.path)
}
