package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holochain/wind-tunnel-sub001/internal/core"
	"github.com/holochain/wind-tunnel-sub001/internal/progress"
	"github.com/holochain/wind-tunnel-sub001/internal/scenario"
)

func resolve(t *testing.T, args ...string) (Options, error) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse(args))
	v, err := NewViper(fs)
	if err != nil {
		return Options{}, err
	}
	return Resolve(v)
}

func createTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestResolve_Defaults(t *testing.T) {
	o, err := resolve(t)
	require.NoError(t, err)
	assert.Zero(t, o.Agents, "unset agents leaves the scenario default in charge")
	assert.Nil(t, o.Duration)
	assert.False(t, o.Soak)
	assert.Empty(t, o.Reporter)
	assert.Equal(t, progress.DefaultCPUWarnThreshold, o.CPUWarnThreshold)
}

func TestResolve_Flags(t *testing.T) {
	o, err := resolve(t,
		"--agents", "3", "--duration", "2", "--connection-string", "ws://localhost:8888",
		"--behaviour", "writer:2", "-b", "reader", "--reporter", "noop",
		"--run-id", "abc", "--no-progress", "--cpu-warn-threshold", "25")
	require.NoError(t, err)

	assert.Equal(t, 3, o.Agents)
	require.NotNil(t, o.Duration)
	assert.Equal(t, uint64(2), *o.Duration)
	assert.Equal(t, "ws://localhost:8888", o.ConnectionString)
	assert.Equal(t, []scenario.BehaviourCount{{Name: "writer", Count: 2}, {Name: "reader", Count: 1}}, o.Behaviours)
	assert.Equal(t, scenario.ReporterNoop, o.Reporter)
	assert.Equal(t, "abc", o.RunID)
	assert.True(t, o.NoProgress)
	assert.Equal(t, 25.0, o.CPUWarnThreshold)
}

func TestResolve_ExplicitZeroDurationIsKept(t *testing.T) {
	o, err := resolve(t, "--duration", "0")
	require.NoError(t, err)
	require.NotNil(t, o.Duration)
	assert.Zero(t, *o.Duration)
}

func TestResolve_Invalid(t *testing.T) {
	for name, args := range map[string][]string{
		"zero agents":   {"--agents", "0"},
		"bad reporter":  {"--reporter", "stdout"},
		"bad behaviour": {"--behaviour", "writer:none"},
		"bad threshold": {"--cpu-warn-threshold", "0"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := resolve(t, args...)
			assert.ErrorIs(t, err, core.ErrConfig)
		})
	}
}

func TestResolve_Environment(t *testing.T) {
	t.Setenv("WT_AGENTS", "7")
	t.Setenv("WT_CONNECTION_STRING", "ws://env:1")
	t.Setenv("CONDUCTOR_CONFIG", "CI")
	t.Setenv("CHC_ENABLED", "1")

	o, err := resolve(t)
	require.NoError(t, err)
	assert.Equal(t, 7, o.Agents)
	assert.Equal(t, "ws://env:1", o.ConnectionString)
	assert.True(t, o.IsCI())
	assert.True(t, o.CHCEnabled)

	o, err = resolve(t, "--agents", "2")
	require.NoError(t, err)
	assert.Equal(t, 2, o.Agents, "flags win over the environment")
}

func TestResolve_Profile(t *testing.T) {
	path := createTempFile(t, `
agents: 4
duration: 30
connection_string: ws://profile:1
behaviours:
  - writer:1
  - reader:3
reporter: in-memory-custom
no_progress: true
`)
	o, err := resolve(t, "--config", path, "--duration", "5")
	require.NoError(t, err)

	assert.Equal(t, 4, o.Agents)
	assert.Equal(t, uint64(5), *o.Duration, "flags win over the profile")
	assert.Equal(t, "ws://profile:1", o.ConnectionString)
	assert.Len(t, o.Behaviours, 2)
	assert.Equal(t, scenario.ReporterInMemoryCustom, o.Reporter)
	assert.True(t, o.NoProgress)
}

func TestLoadProfile_Errors(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, core.ErrConfig)

	_, err = LoadProfile(createTempFile(t, "agents: [not a number"))
	assert.ErrorIs(t, err, core.ErrConfig)

	_, err = LoadProfile(createTempFile(t, "unknown_field: 1\n"))
	assert.ErrorIs(t, err, core.ErrConfig)
}

func TestLoadProfile_EmptyFile(t *testing.T) {
	p, err := LoadProfile(createTempFile(t, ""))
	require.NoError(t, err)
	assert.Nil(t, p.Agents)
}
