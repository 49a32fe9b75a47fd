package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holochain/wind-tunnel-sub001/internal/core"
	"github.com/holochain/wind-tunnel-sub001/internal/runner"
	"github.com/holochain/wind-tunnel-sub001/internal/scenario"
	"github.com/holochain/wind-tunnel-sub001/internal/summary"
)

func TestExitCode(t *testing.T) {
	tests := map[string]struct {
		err  error
		want int
	}{
		"nil":      {nil, ExitSuccess},
		"config":   {core.ConfigErrorf("bad flag"), ExitConfigError},
		"fatal":    {core.Fatal(errors.New("setup failed")), ExitScenarioFatal},
		"wrapped":  {errors.Wrap(core.Fatal(errors.New("x")), "running"), ExitScenarioFatal},
		"runtime":  {errors.New("teardown failed"), ExitRuntimeError},
		"reporter": {core.ReporterError("influx", errors.New("down")), ExitRuntimeError},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExitCode(tc.err))
		})
	}
}

type values struct{}

func idleScenario() runner.Scenario {
	return runner.Bind(scenario.NewBuilder[values, values]("idle").
		WithDefaultDurationS(1).
		UseAgentBehaviour(func(ctx *scenario.AgentContext[values, values]) error {
			time.Sleep(10 * time.Millisecond)
			return nil
		}).
		MustBuild())
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(idleScenario())
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(append([]string{}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestScenarioCommand_Runs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	t.Setenv(summary.PathEnv, path)
	t.Setenv("WT_LOG", "warn")

	out, err := execute(t, "idle", "--agents", "2", "--duration", "1", "--reporter", "noop", "--no-progress", "--run-id", "cli-run")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "#RunId: [cli-run]"))

	runs, err := summary.LoadAll(path)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].AgentCount)
	assert.Equal(t, "idle", runs[0].ScenarioName)
}

func TestScenarioCommand_ConfigErrors(t *testing.T) {
	t.Setenv(summary.PathEnv, filepath.Join(t.TempDir(), "runs.jsonl"))
	tests := map[string][]string{
		"unknown flag":      {"idle", "--no-such-flag"},
		"unknown reporter":  {"idle", "--reporter", "carrier-pigeon"},
		"zero agents":       {"idle", "--agents", "0"},
		"unknown behaviour": {"idle", "--behaviour", "missing:1"},
		"bad behaviour":     {"idle", "--behaviour", "default:x"},
		"extra argument":    {"idle", "extra-arg"},
		"unknown scenario":  {"no-such-scenario"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, ExitConfigError, ExitCode(err))
		})
	}
}

func TestRootCommand_NoArgsPrintsHelp(t *testing.T) {
	out, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "idle")
	assert.Contains(t, out, "summaries")
}

func TestScenarioCommand_InvalidLogFilter(t *testing.T) {
	t.Setenv("WT_LOG", "loud")
	_, err := execute(t, "idle", "--duration", "1")
	assert.Equal(t, ExitConfigError, ExitCode(err))
}

func TestSummariesCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	require.NoError(t, summary.Append(path, &summary.RunSummary{
		RunID:        "run-1",
		ScenarioName: "idle",
		StartedAt:    1700000000,
		RunDuration:  60,
		AgentCount:   4,
		PeerEndCount: 3,
		Fingerprint:  "0123456789abcdef0123",
	}))

	out, err := execute(t, "summaries", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Run ID")
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "0123456789ab")
	assert.NotContains(t, out, "0123456789abc")
}
