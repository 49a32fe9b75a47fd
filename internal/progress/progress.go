// Package progress shows how far a fixed-length run has got and watches the
// runner's own CPU usage.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/holochain/wind-tunnel-sub001/internal/core"
	"github.com/holochain/wind-tunnel-sub001/internal/shutdown"
)

const barWidth = 40

// Progress paints a bar of elapsed against planned run time once a second
// until the run shuts down.
type Progress struct {
	planned   time.Duration
	listener  *shutdown.Listener
	clock     core.Clock
	startTime time.Time
	ticker    *time.Ticker
	stopCh    chan struct{}
	done      chan struct{}
	started   atomic.Bool
	stopped   atomic.Bool
	quiet     bool
	output    io.Writer
	mu        sync.Mutex
}

// NewProgress creates a progress bar for a run of planned length. A quiet
// progress bar prints nothing.
func NewProgress(planned time.Duration, listener *shutdown.Listener, quiet bool) *Progress {
	return &Progress{
		planned:  planned,
		listener: listener,
		clock:    core.RealClock{},
		quiet:    quiet || planned <= 0,
		output:   os.Stderr,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (p *Progress) SetOutput(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.output = w
}

// SetClock replaces the clock used to measure elapsed time. Call before Start.
func (p *Progress) SetClock(c core.Clock) {
	p.clock = c
}

func (p *Progress) Start() {
	if p.quiet || p.started.Swap(true) {
		return
	}
	p.startTime = p.clock.Now()
	p.ticker = time.NewTicker(1 * time.Second)
	go p.run()
}

func (p *Progress) run() {
	defer close(p.done)
	defer p.ticker.Stop()
	p.paint()
	for {
		select {
		case <-p.stopCh:
			return
		case <-p.listener.Done():
			log.Trace("Progress bar shutting down")
			p.clear()
			return
		case <-p.ticker.C:
			p.paint()
		}
	}
}

func (p *Progress) paint() {
	line := Render(p.clock.Since(p.startTime), p.planned)
	p.mu.Lock()
	fmt.Fprintf(p.output, "\r\033[K%s", line)
	p.mu.Unlock()
}

func (p *Progress) clear() {
	p.mu.Lock()
	fmt.Fprintf(p.output, "\r\033[K")
	p.mu.Unlock()
}

// Stop clears the bar. It is safe to call more than once, or without Start.
func (p *Progress) Stop() {
	if p.quiet || p.stopped.Swap(true) {
		return
	}
	if !p.started.Load() {
		return
	}
	select {
	case <-p.done:
	default:
		close(p.stopCh)
		<-p.done
		p.clear()
	}
}

// Printf prints a message on its own line without disturbing the bar.
func (p *Progress) Printf(format string, args ...interface{}) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\r\033[K"+format+"\n", args...)
	p.mu.Unlock()
}

// Render draws `[####>-----] [hh:mm:ss / hh:mm:ss]`. Elapsed is shown in
// whole seconds and capped at planned.
func Render(elapsed, planned time.Duration) string {
	elapsed = elapsed.Truncate(time.Second)
	if elapsed > planned {
		elapsed = planned
	}
	if elapsed < 0 {
		elapsed = 0
	}
	filled := barWidth
	if planned > 0 {
		filled = int(float64(barWidth) * elapsed.Seconds() / planned.Seconds())
	}

	bar := strings.Repeat("#", barWidth)
	if filled < barWidth {
		bar = strings.Repeat("#", filled) + ">" + strings.Repeat("-", barWidth-filled-1)
	}
	return fmt.Sprintf("[%s] [%s / %s]", bar, FormatClock(elapsed), FormatClock(planned))
}

// FormatClock formats d as hh:mm:ss.
func FormatClock(d time.Duration) string {
	s := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}
