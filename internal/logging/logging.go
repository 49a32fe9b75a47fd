// Package logging configures logrus for the runner.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/holochain/wind-tunnel-sub001/internal/core"
)

const (
	// FilterEnv holds the log filter, e.g. "info" or "warn,agent=debug".
	FilterEnv = "WT_LOG"
	// ComponentField tags an entry with the part of the runner that logged it.
	ComponentField = "component"
)

// Filter is a parsed log filter: a default level and per-component overrides.
type Filter struct {
	Level      log.Level
	Components map[string]log.Level
}

// ParseFilter parses `<level>[,<component>=<level>...]`. An empty string means info.
func ParseFilter(s string) (Filter, error) {
	f := Filter{Level: log.InfoLevel, Components: map[string]log.Level{}}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		component, levelName, scoped := strings.Cut(part, "=")
		if !scoped {
			levelName = component
		}
		level, err := log.ParseLevel(levelName)
		if err != nil {
			return Filter{}, core.ConfigErrorf("invalid %s filter %q: %v", FilterEnv, s, err)
		}
		if scoped {
			f.Components[component] = level
		} else {
			f.Level = level
		}
	}
	return f, nil
}

// MostVerbose is the lowest severity any part of the filter lets through.
func (f Filter) MostVerbose() log.Level {
	level := f.Level
	for _, l := range f.Components {
		if l > level {
			level = l
		}
	}
	return level
}

// Allows reports whether an entry at level from component passes the filter.
func (f Filter) Allows(level log.Level, component string) bool {
	if l, ok := f.Components[component]; ok {
		return level <= l
	}
	return level <= f.Level
}

// ConfigureLogging sets up the standard logger from WT_LOG, writing to stderr.
func ConfigureLogging() error {
	return Configure(os.Getenv(FilterEnv), os.Stderr)
}

// Configure sets up the standard logger with filter, writing to out.
func Configure(filter string, out io.Writer) error {
	f, err := ParseFilter(filter)
	if err != nil {
		return err
	}
	formatter := &log.TextFormatter{FullTimestamp: true}
	log.SetFormatter(formatter)
	log.StandardLogger().ReplaceHooks(make(log.LevelHooks))

	if len(f.Components) == 0 {
		log.SetOutput(out)
		log.SetLevel(f.Level)
		return nil
	}

	// Component overrides need every entry to reach the filter, so the
	// logger itself discards and the hook writes.
	log.SetOutput(io.Discard)
	log.SetLevel(f.MostVerbose())
	log.AddHook(&filterHook{filter: f, out: out, formatter: formatter})
	return nil
}

type filterHook struct {
	filter    Filter
	out       io.Writer
	formatter log.Formatter
	mu        sync.Mutex
}

func (h *filterHook) Levels() []log.Level { return log.AllLevels }

func (h *filterHook) Fire(entry *log.Entry) error {
	component, _ := entry.Data[ComponentField].(string)
	if !h.filter.Allows(entry.Level, component) {
		return nil
	}
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.out.Write(line)
	return err
}
