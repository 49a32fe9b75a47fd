// Package scenario holds the pieces a scenario author works with: the typed
// runner and agent contexts, and the definition builder.
package scenario

import (
	"fmt"

	"github.com/holochain/wind-tunnel-sub001/internal/core"
	"github.com/holochain/wind-tunnel-sub001/internal/executor"
	"github.com/holochain/wind-tunnel-sub001/internal/shutdown"
)

// RunnerConfig carries the framework handles a RunnerContext is built from.
type RunnerConfig struct {
	Executor         *executor.Executor
	Reporter         core.Reporter
	Coordinator      *shutdown.Coordinator
	ConnectionString string
	RunID            string
	ScenarioName     string
}

// RunnerContext is shared by every agent in a run. RV starts as its zero
// value; change it from the setup hook and treat it as read-only afterwards
// unless RV guards its own fields.
type RunnerContext[RV any] struct {
	cfg   RunnerConfig
	value RV
}

func NewRunnerContext[RV any](cfg RunnerConfig) *RunnerContext[RV] {
	if cfg.Reporter == nil {
		cfg.Reporter = core.NullReporter
	}
	if cfg.Coordinator == nil {
		cfg.Coordinator = shutdown.NewCoordinator()
	}
	if cfg.Executor == nil {
		cfg.Executor = executor.New(cfg.Coordinator.NewListener())
	}
	return &RunnerContext[RV]{cfg: cfg}
}

func (c *RunnerContext[RV]) Executor() *executor.Executor { return c.cfg.Executor }

func (c *RunnerContext[RV]) Reporter() core.Reporter { return c.cfg.Reporter }

// ConnectionString is the target backend endpoint given on the command line.
func (c *RunnerContext[RV]) ConnectionString() string { return c.cfg.ConnectionString }

func (c *RunnerContext[RV]) RunID() string { return c.cfg.RunID }

func (c *RunnerContext[RV]) ScenarioName() string { return c.cfg.ScenarioName }

// Get returns the scenario's runner value.
func (c *RunnerContext[RV]) Get() *RV { return &c.value }

// NewShutdownListener returns a listener for the run's shutdown signal.
func (c *RunnerContext[RV]) NewShutdownListener() *shutdown.Listener {
	return c.cfg.Coordinator.NewListener()
}

// ForceStopScenario shuts the whole run down, as if the duration had elapsed.
func (c *RunnerContext[RV]) ForceStopScenario() {
	c.cfg.Coordinator.Trigger(shutdown.ReasonUser)
}

func (c *RunnerContext[RV]) String() string {
	return fmt.Sprintf("RunnerContext{run_id: %s, scenario: %s, value: %+v}", c.cfg.RunID, c.cfg.ScenarioName, c.value)
}

// AgentContext belongs to a single agent and is passed to each of its hooks.
type AgentContext[RV, AV any] struct {
	index     int
	name      string
	behaviour string
	runner    *RunnerContext[RV]
	listener  *shutdown.Listener
	value     AV
}

func NewAgentContext[RV, AV any](index int, behaviour string, runner *RunnerContext[RV], listener *shutdown.Listener) *AgentContext[RV, AV] {
	return &AgentContext[RV, AV]{
		index:     index,
		name:      AgentName(index),
		behaviour: behaviour,
		runner:    runner,
		listener:  listener,
	}
}

// AgentName is the name given to the agent at index.
func AgentName(index int) string {
	return fmt.Sprintf("agent-%d", index)
}

func (c *AgentContext[RV, AV]) AgentIndex() int { return c.index }

func (c *AgentContext[RV, AV]) AgentName() string { return c.name }

// AssignedBehaviour is the name of the behaviour this agent runs.
func (c *AgentContext[RV, AV]) AssignedBehaviour() string { return c.behaviour }

func (c *AgentContext[RV, AV]) RunnerContext() *RunnerContext[RV] { return c.runner }

// ShutdownListener fires when the run shuts down. Behaviours that block for a
// long time should select on it.
func (c *AgentContext[RV, AV]) ShutdownListener() *shutdown.Listener { return c.listener }

// Get returns the agent's own value.
func (c *AgentContext[RV, AV]) Get() *AV { return &c.value }

func (c *AgentContext[RV, AV]) Executor() *executor.Executor { return c.runner.Executor() }

// Reporter returns a reporter that tags every operation with this agent's name.
func (c *AgentContext[RV, AV]) Reporter() core.Reporter {
	return agentReporter{Reporter: c.runner.Reporter(), name: c.name}
}

func (c *AgentContext[RV, AV]) String() string {
	return fmt.Sprintf("AgentContext{agent: %s, behaviour: %s, value: %+v}", c.name, c.behaviour, c.value)
}

type agentReporter struct {
	core.Reporter
	name string
}

func (r agentReporter) AddOperation(rec core.OperationRecord) {
	if rec.AgentName == "" {
		rec.AgentName = r.name
	}
	r.Reporter.AddOperation(rec)
}
