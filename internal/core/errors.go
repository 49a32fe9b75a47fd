package core

import (
	"github.com/pkg/errors"
)

// Error kinds. Use errors.Is to classify an error returned from a hook.
var (
	// ErrAgentBail means the agent cannot continue but the scenario can.
	ErrAgentBail = errors.New("agent is bailing")
	// ErrShutdownSignal means work was cancelled because the run is shutting down.
	ErrShutdownSignal = errors.New("execution cancelled by shutdown signal")
	// ErrScenarioFatal means the whole scenario must stop.
	ErrScenarioFatal = errors.New("scenario failed")
	// ErrConfig means the runner was started with missing or invalid input.
	ErrConfig = errors.New("invalid configuration")
	// ErrReporter means a report collector failed. It never reaches agents.
	ErrReporter = errors.New("reporter failed")
)

// kindError tags a cause with one of the error kinds above while keeping the
// cause's message, so the user sees what actually went wrong.
type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string { return e.cause.Error() }

func (e *kindError) Unwrap() error { return e.cause }

func (e *kindError) Is(target error) bool { return target == e.kind }

// Cause supports pkg/errors.Cause and stack extraction.
func (e *kindError) Cause() error { return e.cause }

func withKind(kind, cause error) error {
	if cause == nil {
		return nil
	}
	return &kindError{kind: kind, cause: cause}
}

// Bail marks err as an AgentBail.
func Bail(err error) error {
	return withKind(ErrAgentBail, errors.WithStack(err))
}

// Bailf creates an AgentBail error from a message.
func Bailf(format string, args ...any) error {
	return withKind(ErrAgentBail, errors.Errorf(format, args...))
}

// Fatal marks err as ScenarioFatal.
func Fatal(err error) error {
	return withKind(ErrScenarioFatal, errors.WithStack(err))
}

// ConfigErrorf creates a ConfigError from a message.
func ConfigErrorf(format string, args ...any) error {
	return withKind(ErrConfig, errors.Errorf(format, args...))
}

// ReporterError marks err as a ReporterFailure from the named collector.
func ReporterError(collector string, err error) error {
	return withKind(ErrReporter, errors.Wrapf(err, "collector %s", collector))
}

// PanicError converts a recovered panic value into an error.
func PanicError(where string, r any) error {
	if err, ok := r.(error); ok {
		return errors.Wrapf(err, "panic in %s", where)
	}
	return errors.Errorf("panic in %s: %v", where, r)
}

// IsBail reports whether err is an AgentBail.
func IsBail(err error) bool { return errors.Is(err, ErrAgentBail) }

// IsShutdown reports whether err was caused by the shutdown signal.
func IsShutdown(err error) bool { return errors.Is(err, ErrShutdownSignal) }
