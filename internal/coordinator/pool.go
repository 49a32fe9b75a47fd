// Package coordinator runs the agent population of a scenario.
package coordinator

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/holochain/wind-tunnel-sub001/internal/core"
	"github.com/holochain/wind-tunnel-sub001/internal/executor"
	"github.com/holochain/wind-tunnel-sub001/internal/logging"
	"github.com/holochain/wind-tunnel-sub001/internal/scenario"
	"github.com/holochain/wind-tunnel-sub001/internal/shutdown"
)

// Outcome is how an agent's life ended.
type Outcome int

const (
	// OutcomeCompleted means the behaviour ran until shutdown.
	OutcomeCompleted Outcome = iota
	// OutcomeBailed means the behaviour stopped the agent with core.Bail.
	OutcomeBailed
	// OutcomeSetupBailed means agent setup bailed.
	OutcomeSetupBailed
	// OutcomeSetupFailed means agent setup returned an error or panicked.
	OutcomeSetupFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeBailed:
		return "bailed"
	case OutcomeSetupBailed:
		return "setup bailed"
	case OutcomeSetupFailed:
		return "setup failed"
	default:
		return "unknown"
	}
}

// AgentStatus is published by each agent when it stops.
type AgentStatus struct {
	Index      int
	Name       string
	Behaviour  string
	Outcome    Outcome
	Iterations int
	// Err is the error that ended the agent early, if any.
	Err error
}

// Pool spawns agents on the executor and tracks them until they stop.
type Pool[RV, AV any] struct {
	def         *scenario.Definition[RV, AV]
	runner      *scenario.RunnerContext[RV]
	coordinator *shutdown.Coordinator

	handles     []*executor.JoinHandle
	statusMu    sync.Mutex
	statuses    []AgentStatus
	reached     atomic.Bool
	activeCount atomic.Int32
}

func NewPool[RV, AV any](def *scenario.Definition[RV, AV], runner *scenario.RunnerContext[RV], coordinator *shutdown.Coordinator) *Pool[RV, AV] {
	return &Pool[RV, AV]{def: def, runner: runner, coordinator: coordinator}
}

// Spawn starts one agent per entry of assigned, in index order. Spawning stops
// as soon as shutdown has fired. It returns the number of agents started.
func (p *Pool[RV, AV]) Spawn(assigned []string) int {
	for index, behaviour := range assigned {
		if p.coordinator.Fired() {
			logging.Component("agent").WithField("spawned", index).Info("Shutdown fired while spawning agents, not starting the rest")
			return index
		}
		// The loop checks its own listener; the behaviour gets a delegate it may cancel.
		loop := p.coordinator.NewListener()
		ctx := scenario.NewAgentContext[RV, AV](index, behaviour, p.runner, loop.Delegate())
		p.activeCount.Add(1)
		p.handles = append(p.handles, p.runner.Executor().Spawn(func(context.Context) error {
			defer p.activeCount.Add(-1)
			p.publish(p.runAgent(ctx, loop))
			return nil
		}))
	}
	return len(assigned)
}

// Wait blocks until every spawned agent has stopped and returns their
// statuses ordered by index.
func (p *Pool[RV, AV]) Wait() []AgentStatus {
	for _, h := range p.handles {
		if err := h.Wait(); err != nil {
			logging.Component("agent").WithError(err).Error("Agent task failed")
		}
	}
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	out := make([]AgentStatus, len(p.statuses))
	for _, s := range p.statuses {
		out[s.Index] = s
	}
	return out
}

// ActiveAgents is the number of agents that have not stopped yet.
func (p *Pool[RV, AV]) ActiveAgents() int {
	return int(p.activeCount.Load())
}

// BehaviourReached reports whether any agent got past setup.
func (p *Pool[RV, AV]) BehaviourReached() bool {
	return p.reached.Load()
}

func (p *Pool[RV, AV]) publish(s AgentStatus) {
	p.statusMu.Lock()
	p.statuses = append(p.statuses, s)
	p.statusMu.Unlock()
}

func (p *Pool[RV, AV]) runAgent(ctx *scenario.AgentContext[RV, AV], loop *shutdown.Listener) AgentStatus {
	status := AgentStatus{Index: ctx.AgentIndex(), Name: ctx.AgentName(), Behaviour: ctx.AssignedBehaviour()}
	logger := logging.Component("agent").WithFields(log.Fields{"agent": status.Name, "behaviour": status.Behaviour})

	defer p.teardownAgent(ctx, logger)

	if setup := p.def.AgentSetup(); setup != nil {
		if err := callHook("agent setup", func() error { return setup(ctx) }); err != nil {
			status.Err = err
			if core.IsBail(err) {
				status.Outcome = OutcomeSetupBailed
				logger.WithError(err).Info("Agent bailed during setup")
			} else {
				status.Outcome = OutcomeSetupFailed
				logger.WithError(err).Error("Agent setup failed")
			}
			return status
		}
	}

	p.reached.Store(true)
	behaviour := p.def.Behaviour(ctx.AssignedBehaviour())
	if behaviour == nil {
		return status
	}

	logger.Info("Agent starting behaviour")
	for !loop.ShouldShutdown() {
		err := callHook("agent behaviour", func() error { return behaviour(ctx) })
		status.Iterations++
		switch {
		case err == nil, core.IsShutdown(err):
		case core.IsBail(err):
			logger.WithError(err).Info("Agent bailed")
			status.Outcome = OutcomeBailed
			status.Err = err
			return status
		default:
			logger.WithError(err).Error("Agent behaviour failed")
		}
		runtime.Gosched()
	}
	logger.WithField("iterations", status.Iterations).Debug("Stopping agent")
	return status
}

func (p *Pool[RV, AV]) teardownAgent(ctx *scenario.AgentContext[RV, AV], logger *log.Entry) {
	teardown := p.def.AgentTeardown()
	if teardown == nil {
		return
	}
	if err := callHook("agent teardown", func() error { return teardown(ctx) }); err != nil {
		logger.WithError(err).Error("Agent teardown failed")
	}
}

// callHook runs a user hook, turning a panic into an error of that hook.
func callHook(name string, hook func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = core.PanicError(name, r)
		}
	}()
	return hook()
}

// CompletedCount returns how many agents ran their behaviour until shutdown.
func CompletedCount(statuses []AgentStatus) int {
	n := 0
	for _, s := range statuses {
		if s.Outcome == OutcomeCompleted {
			n++
		}
	}
	return n
}
