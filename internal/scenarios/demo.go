// Package scenarios holds the scenarios shipped with the windtunnel binary.
package scenarios

import (
	"bytes"
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/holochain/wind-tunnel-sub001/internal/core"
	"github.com/holochain/wind-tunnel-sub001/internal/instrument"
	"github.com/holochain/wind-tunnel-sub001/internal/ratelimit"
	"github.com/holochain/wind-tunnel-sub001/internal/runner"
	"github.com/holochain/wind-tunnel-sub001/internal/scenario"
)

// EchoRate is the rate of each agent of the echo scenarios.
const EchoRate = 100

// EchoOperation is the operation id reported by the echo scenarios.
const EchoOperation = "demo.echo"

// All returns every scenario, in the order they are listed by the CLI.
func All() []runner.Scenario {
	return []runner.Scenario{
		runner.Bind(Noop()),
		runner.Bind(Echo()),
		runner.Bind(FlakyEcho()),
		runner.Bind(Bail()),
		runner.Bind(ZomeCall()),
	}
}

type none struct{}

// Noop agents idle until the run ends. It measures the runner itself.
func Noop() *scenario.Definition[none, none] {
	return scenario.NewBuilder[none, none]("noop").
		WithDefaultDurationS(10).
		UseAgentBehaviour(func(ctx *scenario.AgentContext[none, none]) error {
			return idle(ctx.Executor().ExecuteInPlace, 100*time.Millisecond)
		}).
		MustBuild()
}

type echoAgent struct {
	pacer *ratelimit.Pacer
	calls int
	buf   bytes.Buffer
}

type echoCtx = scenario.AgentContext[none, echoAgent]

func setupPacer(ctx *echoCtx) error {
	ctx.Get().pacer = ratelimit.NewPacer(EchoRate)
	log.WithFields(log.Fields{"agent": ctx.AgentName(), "rate": ctx.Get().pacer.Rate()}).Debug("Agent paced")
	return nil
}

// Echo times an in-process echo of a small payload, EchoRate times a second
// per agent.
func Echo() *scenario.Definition[none, echoAgent] {
	return scenario.NewBuilder[none, echoAgent]("echo").
		WithDefaultDurationS(5).
		UseAgentSetup(setupPacer).
		UseAgentBehaviour(func(ctx *echoCtx) error {
			if err := waitTurn(ctx); err != nil {
				return err
			}
			return instrument.Operation(ctx.Reporter(), EchoOperation, nil, func() error {
				return echo(&ctx.Get().buf, ctx.AgentName())
			})
		}).
		MustBuild()
}

// FlakyEcho is Echo with every other call of each agent failing.
func FlakyEcho() *scenario.Definition[none, echoAgent] {
	return scenario.NewBuilder[none, echoAgent]("flaky-echo").
		WithDefaultDurationS(5).
		UseAgentSetup(setupPacer).
		UseAgentBehaviour(func(ctx *echoCtx) error {
			if err := waitTurn(ctx); err != nil {
				return err
			}
			agent := ctx.Get()
			agent.calls++
			fail := agent.calls%2 == 0
			return instrument.Operation(ctx.Reporter(), EchoOperation, core.Attrs("flaky", "true"), func() error {
				if fail {
					return errors.Errorf("call %d failed", agent.calls)
				}
				return echo(&agent.buf, ctx.AgentName())
			})
		}).
		MustBuild()
}

type bailAgent struct {
	iteration int
}

// Bail stops agent 0 on its second iteration. The other agents idle until the
// run ends.
func Bail() *scenario.Definition[none, bailAgent] {
	return scenario.NewBuilder[none, bailAgent]("bail").
		WithDefaultDurationS(5).
		UseAgentBehaviour(func(ctx *scenario.AgentContext[none, bailAgent]) error {
			ctx.Get().iteration++
			if ctx.AgentIndex() == 0 && ctx.Get().iteration == 2 {
				return core.Bailf("%s bailing on iteration %d", ctx.AgentName(), ctx.Get().iteration)
			}
			return idle(ctx.Executor().ExecuteInPlace, 100*time.Millisecond)
		}).
		UseAgentTeardown(func(ctx *scenario.AgentContext[none, bailAgent]) error {
			log.WithFields(log.Fields{"agent": ctx.AgentName(), "iterations": ctx.Get().iteration}).Info("Agent teardown")
			return nil
		}).
		MustBuild()
}

func waitTurn(ctx *echoCtx) error {
	return ctx.Executor().ExecuteInPlace(ctx.Get().pacer.Wait)
}

func echo(buf *bytes.Buffer, payload string) error {
	buf.Reset()
	buf.WriteString(payload)
	if buf.String() != payload {
		return errors.New("echo mismatch")
	}
	return nil
}

// idle waits for d or until the run shuts down.
func idle(execute func(func(context.Context) error) error, d time.Duration) error {
	return execute(func(ctx context.Context) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	})
}
