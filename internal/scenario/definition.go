package scenario

import (
	"github.com/holochain/wind-tunnel-sub001/internal/core"
	"github.com/holochain/wind-tunnel-sub001/internal/summary"
)

// DefaultAgents is used when neither the command line nor the scenario sets
// an agent count.
const DefaultAgents = 10

// ReporterChoice selects where operation records end up.
type ReporterChoice string

const (
	ReporterInMemory       ReporterChoice = "in-memory"
	ReporterInMemoryCustom ReporterChoice = "in-memory-custom"
	ReporterInfluxClient   ReporterChoice = "influx-client"
	ReporterInfluxFile     ReporterChoice = "influx-file"
	ReporterPrometheusFile ReporterChoice = "prometheus-file"
	ReporterNoop           ReporterChoice = "noop"
)

// ReporterChoices lists every valid ReporterChoice.
var ReporterChoices = []ReporterChoice{
	ReporterInMemory,
	ReporterInMemoryCustom,
	ReporterInfluxClient,
	ReporterInfluxFile,
	ReporterPrometheusFile,
	ReporterNoop,
}

// ParseReporterChoice validates a reporter name from the command line.
func ParseReporterChoice(s string) (ReporterChoice, error) {
	for _, c := range ReporterChoices {
		if string(c) == s {
			return c, nil
		}
	}
	return "", core.ConfigErrorf("unknown reporter %q, expected one of %v", s, ReporterChoices)
}

// Hook signatures. A hook reports failure by returning an error; wrap it with
// core.Bail to stop only the current agent.
type (
	SetupHook[RV any]     func(ctx *RunnerContext[RV]) error
	TeardownHook[RV any]  func(ctx *RunnerContext[RV]) error
	AgentHook[RV, AV any] func(ctx *AgentContext[RV, AV]) error
	BuildInfoHook[RV any] func(ctx *RunnerContext[RV]) (*summary.BuildInfo, error)
)

// Definition is a validated, immutable scenario.
type Definition[RV, AV any] struct {
	name            string
	defaultDuration *uint64
	defaultAgents   int
	reporter        ReporterChoice
	captureEnv      []string

	setup         SetupHook[RV]
	agentSetup    AgentHook[RV, AV]
	behaviours    map[string]AgentHook[RV, AV]
	agentTeardown AgentHook[RV, AV]
	teardown      TeardownHook[RV]
	buildInfo     BuildInfoHook[RV]
}

func (d *Definition[RV, AV]) Name() string { return d.name }

// DefaultDuration is the scenario's run length in seconds, if it has one.
func (d *Definition[RV, AV]) DefaultDuration() *uint64 {
	if d.defaultDuration == nil {
		return nil
	}
	v := *d.defaultDuration
	return &v
}

func (d *Definition[RV, AV]) DefaultAgents() int { return d.defaultAgents }

func (d *Definition[RV, AV]) Reporter() ReporterChoice { return d.reporter }

// CaptureEnv lists the environment variables recorded in the run summary.
func (d *Definition[RV, AV]) CaptureEnv() []string {
	return append([]string(nil), d.captureEnv...)
}

func (d *Definition[RV, AV]) Setup() SetupHook[RV] { return d.setup }

func (d *Definition[RV, AV]) AgentSetup() AgentHook[RV, AV] { return d.agentSetup }

// Behaviour returns the named behaviour, or nil.
func (d *Definition[RV, AV]) Behaviour(name string) AgentHook[RV, AV] { return d.behaviours[name] }

func (d *Definition[RV, AV]) AgentTeardown() AgentHook[RV, AV] { return d.agentTeardown }

func (d *Definition[RV, AV]) Teardown() TeardownHook[RV] { return d.teardown }

func (d *Definition[RV, AV]) BuildInfo() BuildInfoHook[RV] { return d.buildInfo }

// Builder assembles a Definition. The first invalid call is remembered and
// returned from Build.
type Builder[RV, AV any] struct {
	def *Definition[RV, AV]
	err error
}

func NewBuilder[RV, AV any](name string) *Builder[RV, AV] {
	b := &Builder[RV, AV]{def: &Definition[RV, AV]{
		name:          name,
		defaultAgents: DefaultAgents,
		reporter:      ReporterInMemory,
		behaviours:    make(map[string]AgentHook[RV, AV]),
	}}
	if name == "" {
		b.fail(core.ConfigErrorf("scenario name must not be empty"))
	}
	return b
}

func (b *Builder[RV, AV]) fail(err error) *Builder[RV, AV] {
	if b.err == nil {
		b.err = err
	}
	return b
}

// WithDefaultDurationS runs the scenario for n seconds unless the command line
// says otherwise.
func (b *Builder[RV, AV]) WithDefaultDurationS(n uint64) *Builder[RV, AV] {
	if n == 0 {
		return b.fail(core.ConfigErrorf("default duration of scenario %s must be at least one second", b.def.name))
	}
	b.def.defaultDuration = &n
	return b
}

func (b *Builder[RV, AV]) WithDefaultAgents(n int) *Builder[RV, AV] {
	if n < 1 {
		return b.fail(core.ConfigErrorf("scenario %s must run at least one agent, got %d", b.def.name, n))
	}
	b.def.defaultAgents = n
	return b
}

func (b *Builder[RV, AV]) WithReporter(choice ReporterChoice) *Builder[RV, AV] {
	if _, err := ParseReporterChoice(string(choice)); err != nil {
		return b.fail(err)
	}
	b.def.reporter = choice
	return b
}

// CaptureEnv records the named environment variables in the run summary.
func (b *Builder[RV, AV]) CaptureEnv(names ...string) *Builder[RV, AV] {
	b.def.captureEnv = append(b.def.captureEnv, names...)
	return b
}

// UseSetup runs fn once before any agent starts.
func (b *Builder[RV, AV]) UseSetup(fn SetupHook[RV]) *Builder[RV, AV] {
	b.def.setup = fn
	return b
}

// UseAgentSetup runs fn once per agent before its first behaviour iteration.
func (b *Builder[RV, AV]) UseAgentSetup(fn AgentHook[RV, AV]) *Builder[RV, AV] {
	b.def.agentSetup = fn
	return b
}

// UseAgentBehaviour sets the default behaviour, run in a loop until shutdown.
func (b *Builder[RV, AV]) UseAgentBehaviour(fn AgentHook[RV, AV]) *Builder[RV, AV] {
	return b.UseNamedAgentBehaviour(DefaultBehaviour, fn)
}

// UseNamedAgentBehaviour adds a behaviour that agents can be assigned with
// --behaviour name:count.
func (b *Builder[RV, AV]) UseNamedAgentBehaviour(name string, fn AgentHook[RV, AV]) *Builder[RV, AV] {
	if _, ok := b.def.behaviours[name]; ok {
		return b.fail(core.ConfigErrorf("behaviour %q is already defined", name))
	}
	if fn == nil {
		return b.fail(core.ConfigErrorf("behaviour %q has no hook", name))
	}
	b.def.behaviours[name] = fn
	return b
}

// UseAgentTeardown runs fn once per agent that started setup. Errors are logged.
func (b *Builder[RV, AV]) UseAgentTeardown(fn AgentHook[RV, AV]) *Builder[RV, AV] {
	b.def.agentTeardown = fn
	return b
}

// UseTeardown runs fn once after every agent has stopped.
func (b *Builder[RV, AV]) UseTeardown(fn TeardownHook[RV]) *Builder[RV, AV] {
	b.def.teardown = fn
	return b
}

// UseBuildInfo captures information about the target for the run summary.
func (b *Builder[RV, AV]) UseBuildInfo(fn BuildInfoHook[RV]) *Builder[RV, AV] {
	b.def.buildInfo = fn
	return b
}

// Build validates the scenario.
func (b *Builder[RV, AV]) Build() (*Definition[RV, AV], error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.def.behaviours) == 0 && b.def.setup == nil {
		return nil, core.ConfigErrorf("scenario %s needs an agent behaviour or a setup hook", b.def.name)
	}
	def := *b.def
	def.behaviours = make(map[string]AgentHook[RV, AV], len(b.def.behaviours))
	for k, v := range b.def.behaviours {
		def.behaviours[k] = v
	}
	def.captureEnv = append([]string(nil), b.def.captureEnv...)
	return &def, nil
}

// MustBuild is Build for scenarios defined at package level.
func (b *Builder[RV, AV]) MustBuild() *Definition[RV, AV] {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}
