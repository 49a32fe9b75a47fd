// Package runner drives a scenario from setup to the run summary.
package runner

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/holochain/wind-tunnel-sub001/internal/collector"
	"github.com/holochain/wind-tunnel-sub001/internal/config"
	"github.com/holochain/wind-tunnel-sub001/internal/coordinator"
	"github.com/holochain/wind-tunnel-sub001/internal/core"
	"github.com/holochain/wind-tunnel-sub001/internal/executor"
	"github.com/holochain/wind-tunnel-sub001/internal/logging"
	"github.com/holochain/wind-tunnel-sub001/internal/progress"
	"github.com/holochain/wind-tunnel-sub001/internal/scenario"
	"github.com/holochain/wind-tunnel-sub001/internal/shutdown"
	"github.com/holochain/wind-tunnel-sub001/internal/sink"
	"github.com/holochain/wind-tunnel-sub001/internal/summary"
)

// Version is recorded in every run summary. Set at build time with
// -ldflags "-X github.com/holochain/wind-tunnel-sub001/internal/runner.Version=..."
var Version = "0.1.0"

// spawnedTaskGrace bounds how long the runner waits for tasks that scenario
// code spawned on the executor.
const spawnedTaskGrace = 5 * time.Second

// Options configures one run.
type Options struct {
	config.Options

	// Stdout receives the run id lines and the in-memory report. Defaults to os.Stdout.
	Stdout io.Writer
	// HandleSignals installs the SIGINT/SIGTERM handler.
	HandleSignals bool
	// Coordinator replaces the run's shutdown coordinator.
	Coordinator *shutdown.Coordinator
	// SummaryPath overrides RUN_SUMMARY_PATH.
	SummaryPath string
	// Collectors receive every record in addition to the chosen reporter.
	Collectors []collector.ReportCollector
	// OnState is called on every state change.
	OnState func(State)
}

// Result describes a finished run.
type Result struct {
	RunID    string
	Reason   shutdown.Reason
	Statuses []coordinator.AgentStatus
	// Summary is nil when no agent reached its behaviour.
	Summary *summary.RunSummary
	States  []State
	// Received counts records accepted by the reporter.
	Received int64
	// Dropped counts records published after the reporter closed.
	Dropped int64
	// ReportingTime is how long the reporter was open.
	ReportingTime time.Duration
	// HighCPUSamples counts CPU samples of the runner over the warn threshold.
	HighCPUSamples int
}

// Scenario is a scenario definition with its value types bound, so that
// scenarios of different types can be listed and run together.
type Scenario interface {
	Name() string
	DefaultDuration() *uint64
	Run(opts Options) (Result, error)
}

type bound[RV, AV any] struct {
	def *scenario.Definition[RV, AV]
}

// Bind wraps def as a Scenario.
func Bind[RV, AV any](def *scenario.Definition[RV, AV]) Scenario {
	return bound[RV, AV]{def: def}
}

func (b bound[RV, AV]) Name() string { return b.def.Name() }

func (b bound[RV, AV]) DefaultDuration() *uint64 { return b.def.DefaultDuration() }

func (b bound[RV, AV]) Run(opts Options) (Result, error) { return Run(b.def, opts) }

// Run executes def. Errors carry one of the core error kinds: ErrConfig for
// bad input, ErrScenarioFatal when scenario setup fails, anything else is a
// failure during the run.
func Run[RV, AV any](def *scenario.Definition[RV, AV], opts Options) (Result, error) {
	states := newStateTracker(opts.OnState)
	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}

	agents := opts.Agents
	if agents == 0 {
		agents = def.DefaultAgents()
	}
	assigned, err := def.AssignBehaviours(agents, opts.Behaviours)
	if err != nil {
		return Result{States: states.states()}, err
	}
	duration := scenario.ResolveDuration(opts.Soak, opts.Duration, def.DefaultDuration())
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	choice := opts.Reporter
	if choice == "" {
		choice = def.Reporter()
	}
	tags := sink.RunTags{RunID: runID, ScenarioName: def.Name()}
	collectors, err := newCollectors(choice, tags, out)
	if err != nil {
		return Result{RunID: runID, States: states.states()}, err
	}
	collectors = append(collectors, opts.Collectors...)

	fmt.Fprintf(out, "#RunId: [%s]\n", runID)
	startedAt := time.Now()
	runSummary := &summary.RunSummary{
		RunID:              runID,
		ScenarioName:       def.Name(),
		StartedAt:          startedAt.Unix(),
		DurationMode:       duration.String(),
		AgentCount:         agents,
		AssignedBehaviours: scenario.CountBehaviours(assigned),
		Env:                captureEnv(def.CaptureEnv()),
		WindTunnelVersion:  Version,
	}
	logger := logging.Component("runner").WithFields(log.Fields{"scenario": def.Name(), "run_id": runID})
	logger.WithFields(log.Fields{"agents": agents, "duration": duration}).Info("Running scenario")

	coord := opts.Coordinator
	if coord == nil {
		coord = shutdown.NewCoordinator()
	}
	if opts.HandleSignals {
		stop := shutdown.NotifyOnInterrupt(coord, out)
		defer stop()
	}

	pipeline := collector.NewPipeline(collector.DefaultCapacity, collectors...)
	exec := executor.New(coord.NewListener())
	runnerCtx := scenario.NewRunnerContext[RV](scenario.RunnerConfig{
		Executor:         exec,
		Reporter:         pipeline,
		Coordinator:      coord,
		ConnectionString: opts.ConnectionString,
		RunID:            runID,
		ScenarioName:     def.Name(),
	})
	result := Result{RunID: runID}
	finish := func() (Result, error) {
		states.enter(StateExit)
		result.Reason = coord.Reason()
		result.Received = pipeline.Received()
		result.Dropped = pipeline.Dropped()
		result.ReportingTime = pipeline.Duration()
		result.States = states.states()
		return result, nil
	}

	states.enter(StateSetupRunning)
	if setup := def.Setup(); setup != nil {
		if err := callHook("scenario setup", func() error { return setup(runnerCtx) }); err != nil {
			logging.WithStacktrace(logger, err).Error("Scenario setup failed")
			coord.Trigger(shutdown.ReasonFatal)
			pipeline.Close()
			r, _ := finish()
			return r, core.Fatal(errors.Wrap(err, "scenario setup failed"))
		}
	}
	if coord.Fired() {
		logger.Info("Shutdown requested during scenario setup, not starting agents")
		pipeline.Close()
		return finish()
	}

	if capture := def.BuildInfo(); capture != nil {
		info, err := capture(runnerCtx)
		switch {
		case err != nil:
			logger.WithError(err).Warn("Could not capture build info")
		case info != nil:
			runSummary.BuildInfo = info
		}
	}

	states.enter(StateAgentsSpawning)
	planned, fixed := duration.Duration()
	prog := progress.NewProgress(planned, coord.NewListener(), opts.NoProgress)
	if fixed {
		stop := shutdown.AfterDuration(coord, planned)
		defer stop()
	}
	prog.Printf("Running %s with %d agents, %s", def.Name(), agents, duration)
	prog.Start()
	monitor := progress.NewMonitor(coord.NewListener(), opts.CPUWarnThreshold)
	monitor.Start()

	pool := coordinator.NewPool(def, runnerCtx, coord)
	agentsStarted := time.Now()
	pool.Spawn(assigned)
	states.enter(StateAgentsRunning)

	joined := make(chan []coordinator.AgentStatus, 1)
	go func() { joined <- pool.Wait() }()
	select {
	case <-coord.Done():
		states.enter(StateDraining)
		logger.WithField("reason", coord.Reason()).Infof("Waiting for %d agents to stop", pool.ActiveAgents())
		result.Statuses = <-joined
	case result.Statuses = <-joined:
		states.enter(StateDraining)
		logger.Info("All agents have stopped")
	}
	elapsed := time.Since(agentsStarted)
	coord.Trigger(shutdown.ReasonAgentsFinished)
	prog.Stop()
	monitor.Wait()
	result.HighCPUSamples = monitor.HighUsageSamples()
	if err := exec.Shutdown(spawnedTaskGrace); err != nil {
		logger.WithError(err).Warn("Spawned tasks did not stop")
	}

	states.enter(StateTeardownRunning)
	var runErr error
	if teardown := def.Teardown(); teardown != nil {
		if err := callHook("scenario teardown", func() error { return teardown(runnerCtx) }); err != nil {
			logging.WithStacktrace(logger, err).Error("Scenario teardown failed")
			runErr = errors.Wrap(err, "scenario teardown failed")
		}
	}

	states.enter(StateFinalising)
	pipeline.Close()
	if pool.BehaviourReached() {
		runSummary.RunDuration = uint64(elapsed / time.Second)
		runSummary.PeerEndCount = coordinator.CompletedCount(result.Statuses)
		runSummary.Fingerprint = runSummary.ComputeFingerprint()
		path := opts.SummaryPath
		if path == "" {
			path = summary.Path()
		}
		logger.WithField("path", path).Debug("Appending run summary")
		if err := summary.Append(path, runSummary); err != nil {
			logger.WithError(err).Error("Failed to append run summary")
			if runErr == nil {
				runErr = err
			}
		} else {
			result.Summary = runSummary
		}
	} else {
		logger.Warn("No agent reached its behaviour, not writing a run summary")
	}
	fmt.Fprintf(out, "#RunId: [%s]\n", runID)

	r, _ := finish()
	logger.WithFields(log.Fields{
		"received":         r.Received,
		"dropped":          r.Dropped,
		"reporting_time":   r.ReportingTime,
		"high_cpu_samples": r.HighCPUSamples,
	}).Debug("Run finished")
	return r, runErr
}

func captureEnv(names []string) map[string]string {
	env := make(map[string]string)
	for _, name := range names {
		if v, ok := os.LookupEnv(name); ok {
			env[name] = v
		}
	}
	return env
}

func callHook(name string, hook func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = core.PanicError(name, r)
		}
	}()
	return hook()
}
