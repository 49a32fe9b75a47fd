package scenarios

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/holochain/wind-tunnel-sub001/internal/client"
	"github.com/holochain/wind-tunnel-sub001/internal/core"
	"github.com/holochain/wind-tunnel-sub001/internal/executor"
	"github.com/holochain/wind-tunnel-sub001/internal/instrument"
	"github.com/holochain/wind-tunnel-sub001/internal/ratelimit"
	"github.com/holochain/wind-tunnel-sub001/internal/scenario"
	"github.com/holochain/wind-tunnel-sub001/internal/summary"
)

// ZomeCallRate is the rate of zome calls of each agent.
const ZomeCallRate = 40

// BuildInfoType labels the build info captured from the service.
const BuildInfoType = "testserver"

type zomeRunner struct{}

type zomeAgent struct {
	pacer  *ratelimit.Pacer
	admin  *client.AdminClient
	app    *client.AppClient
	appID  string
	calls  int
	skewMs float64
}

type zomeCtx = scenario.AgentContext[zomeRunner, zomeAgent]

// ZomeCall installs an app for every agent and calls its echo function,
// reporting the service's clock skew as a custom metric.
func ZomeCall() *scenario.Definition[zomeRunner, zomeAgent] {
	return scenario.NewBuilder[zomeRunner, zomeAgent]("zome-call").
		WithDefaultDurationS(30).
		WithDefaultAgents(5).
		CaptureEnv("CONDUCTOR_CONFIG", "CHC_ENABLED").
		UseSetup(func(ctx *scenario.RunnerContext[zomeRunner]) error {
			if ctx.ConnectionString() == "" {
				return errors.New("zome-call needs --connection-string")
			}
			return nil
		}).
		UseBuildInfo(zomeBuildInfo).
		UseAgentSetup(zomeAgentSetup).
		UseAgentBehaviour(zomeAgentBehaviour).
		UseAgentTeardown(zomeAgentTeardown).
		MustBuild()
}

func zomeBuildInfo(ctx *scenario.RunnerContext[zomeRunner]) (*summary.BuildInfo, error) {
	return executor.Run(ctx.Executor(), func(c context.Context) (*summary.BuildInfo, error) {
		admin, err := client.ConnectAdmin(c, ctx.ConnectionString(), ctx.Reporter())
		if err != nil {
			return nil, err
		}
		defer admin.Close()
		info, err := admin.Version(c)
		if err != nil {
			return nil, err
		}
		return &summary.BuildInfo{InfoType: BuildInfoType, Info: info.Raw}, nil
	})
}

func zomeAgentSetup(ctx *zomeCtx) error {
	agent := ctx.Get()
	agent.pacer = ratelimit.NewPacer(ZomeCallRate)
	agent.appID = fmt.Sprintf("%s-%s", ctx.RunnerContext().RunID(), ctx.AgentName())
	conn := ctx.RunnerContext().ConnectionString()
	return ctx.Executor().ExecuteInPlace(func(c context.Context) error {
		admin, err := client.ConnectAdmin(c, conn, ctx.Reporter())
		if err != nil {
			return core.Bail(err)
		}
		agent.admin = admin
		key, err := admin.GenerateAgentPubKey(c)
		if err != nil {
			return err
		}
		if err := admin.InstallApp(c, agent.appID, key); err != nil {
			return err
		}
		app, err := client.ConnectApp(c, conn, agent.appID, ctx.Reporter())
		if err != nil {
			return core.Bail(err)
		}
		agent.app = app
		return nil
	})
}

func zomeAgentBehaviour(ctx *zomeCtx) error {
	agent := ctx.Get()
	if err := ctx.Executor().ExecuteInPlace(agent.pacer.Wait); err != nil {
		return err
	}
	agent.calls++
	return ctx.Executor().ExecuteInPlace(func(c context.Context) error {
		sent := time.Now()
		res, err := agent.app.CallZome(c, client.ZomeCall{Zome: "test", Fn: "timestamp"})
		if err != nil {
			return err
		}
		// Server time against the midpoint of the round trip.
		mid := sent.Add(time.Since(sent) / 2)
		agent.skewMs = float64(res.Int()-mid.UnixNano()) / float64(time.Millisecond)
		instrument.Custom(ctx.Reporter(), "clock_skew_ms", agent.skewMs, core.Attrs("agent", ctx.AgentName()))

		_, err = agent.app.CallZome(c, client.ZomeCall{Zome: "test", Fn: "echo", Payload: map[string]any{
			"agent": ctx.AgentName(),
			"call":  agent.calls,
		}})
		return err
	})
}

func zomeAgentTeardown(ctx *zomeCtx) error {
	agent := ctx.Get()
	if agent.app != nil {
		agent.app.Close()
	}
	if agent.admin == nil {
		return nil
	}
	defer agent.admin.Close()
	// The run's listener has fired by now, so teardown uses its own deadline.
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := agent.admin.UninstallApp(c, agent.appID); err != nil && !core.IsBail(err) {
		return err
	}
	log.WithFields(log.Fields{"agent": ctx.AgentName(), "calls": agent.calls}).Debug("Uninstalled app")
	return nil
}
