package scenario

import (
	"fmt"
	"time"
)

// DurationKind says how a run decides when to stop.
type DurationKind int

const (
	// DurationUnbounded runs until interrupted because nothing configured a duration.
	DurationUnbounded DurationKind = iota
	// DurationFixed stops after a number of seconds.
	DurationFixed
	// DurationSoak was asked to run until interrupted.
	DurationSoak
)

// DurationMode is the resolved run length.
type DurationMode struct {
	Kind    DurationKind
	Seconds uint64
}

func FixedSeconds(n uint64) DurationMode { return DurationMode{Kind: DurationFixed, Seconds: n} }

func Soak() DurationMode { return DurationMode{Kind: DurationSoak} }

func Unbounded() DurationMode { return DurationMode{Kind: DurationUnbounded} }

// Duration returns the planned run length, or false if the run only ends on a signal.
func (d DurationMode) Duration() (time.Duration, bool) {
	if d.Kind != DurationFixed {
		return 0, false
	}
	return time.Duration(d.Seconds) * time.Second, true
}

func (d DurationMode) String() string {
	switch d.Kind {
	case DurationFixed:
		return fmt.Sprintf("fixed:%ds", d.Seconds)
	case DurationSoak:
		return "soak"
	default:
		return "unbounded"
	}
}

// ResolveDuration applies the command line to the scenario default. soak wins
// over everything, an explicit duration of zero also means soak, then the flag,
// then the default. Nil means not given.
func ResolveDuration(soak bool, flag, def *uint64) DurationMode {
	switch {
	case soak:
		return Soak()
	case flag != nil && *flag == 0:
		return Soak()
	case flag != nil:
		return FixedSeconds(*flag)
	case def != nil:
		return FixedSeconds(*def)
	default:
		return Unbounded()
	}
}
