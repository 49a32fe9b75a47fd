package progress

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/process"
	log "github.com/sirupsen/logrus"

	"github.com/holochain/wind-tunnel-sub001/internal/logging"
	"github.com/holochain/wind-tunnel-sub001/internal/shutdown"
)

const (
	// DefaultCPUWarnThreshold is the share of total CPU, in percent, above
	// which the runner itself may be distorting the results.
	DefaultCPUWarnThreshold = 10.0
	// SampleInterval is how often the monitor samples CPU usage.
	SampleInterval = 200 * time.Millisecond
	warnEvery      = 5 * time.Second
)

// Sampler returns the process CPU usage in percent of one core since the last call.
type Sampler func() (float64, error)

// Monitor warns when the runner process uses more CPU than the threshold.
// It never fails the run.
type Monitor struct {
	listener  *shutdown.Listener
	threshold float64
	cores     int
	interval  time.Duration
	sample    Sampler

	lastWarn time.Time
	warnings int
	mu       sync.Mutex
	done     chan struct{}
}

// NewMonitor samples this process with gopsutil.
func NewMonitor(listener *shutdown.Listener, threshold float64) *Monitor {
	var sample Sampler
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		sample = func() (float64, error) { return 0, errors.Wrap(err, "opening own process") }
	} else {
		sample = func() (float64, error) { return proc.Percent(0) }
	}
	return NewMonitorWithSampler(listener, threshold, runtime.NumCPU(), SampleInterval, sample)
}

func NewMonitorWithSampler(listener *shutdown.Listener, threshold float64, cores int, interval time.Duration, sample Sampler) *Monitor {
	if threshold <= 0 {
		threshold = DefaultCPUWarnThreshold
	}
	if cores < 1 {
		cores = 1
	}
	return &Monitor{
		listener:  listener,
		threshold: threshold,
		cores:     cores,
		interval:  interval,
		sample:    sample,
		done:      make(chan struct{}),
	}
}

// Start samples in the background until the listener fires.
func (m *Monitor) Start() {
	go m.run()
}

// Wait blocks until the monitor has stopped.
func (m *Monitor) Wait() {
	<-m.done
}

func (m *Monitor) run() {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.listener.Done():
			return
		case <-ticker.C:
			m.check()
		}
	}
}

func (m *Monitor) check() {
	raw, err := m.sample()
	if err != nil {
		logging.Component("monitor").WithError(err).Debug("Could not sample CPU usage")
		return
	}
	usage, high := Normalise(raw, m.cores, m.threshold)
	if !high {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnings++
	if time.Since(m.lastWarn) < warnEvery {
		return
	}
	m.lastWarn = time.Now()
	logging.Component("monitor").WithFields(log.Fields{"usage": usage, "cores": m.cores}).
		Warnf("High CPU usage detected. Wind tunnel is using %.2f%% of the CPU, with %d available cores", usage, m.cores)
}

// HighUsageSamples is the number of samples that were over the threshold.
func (m *Monitor) HighUsageSamples() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.warnings
}

// Normalise converts per-core usage to a share of all cores and compares it
// with threshold.
func Normalise(raw float64, cores int, threshold float64) (float64, bool) {
	usage := raw / float64(cores*100) * 100
	return usage, usage > threshold
}
