package summary

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSummary() *RunSummary {
	s := &RunSummary{
		RunID:              "7d3b2c1a",
		ScenarioName:       "zome_call",
		StartedAt:          1700000000,
		RunDuration:        60,
		DurationMode:       "fixed:60s",
		AgentCount:         5,
		PeerEndCount:       4,
		AssignedBehaviours: map[string]int{"writer": 2, "reader": 3},
		Env:                map[string]string{"CHC_ENABLED": "1"},
		WindTunnelVersion:  "0.1.0",
		BuildInfo: &BuildInfo{
			InfoType: "backend",
			Info:     json.RawMessage(`{"version":"0.4.0","features":["a","b"]}`),
		},
	}
	s.Fingerprint = s.ComputeFingerprint()
	return s
}

func TestFingerprint_IgnoresRunSpecificFields(t *testing.T) {
	a := testSummary()
	b := testSummary()
	b.RunID = "another"
	b.StartedAt++
	b.RunDuration = 61
	b.PeerEndCount = 5
	b.BuildInfo = nil

	assert.Equal(t, a.ComputeFingerprint(), b.ComputeFingerprint())
	assert.Len(t, a.ComputeFingerprint(), 64)
}

func TestFingerprint_ChangesWithConfiguration(t *testing.T) {
	base := testSummary().ComputeFingerprint()

	for name, mutate := range map[string]func(*RunSummary){
		"scenario":   func(s *RunSummary) { s.ScenarioName = "other" },
		"agents":     func(s *RunSummary) { s.AgentCount = 6 },
		"duration":   func(s *RunSummary) { s.DurationMode = "soak" },
		"behaviours": func(s *RunSummary) { s.AssignedBehaviours["reader"] = 4 },
		"env":        func(s *RunSummary) { s.Env["CONDUCTOR_CONFIG"] = "CI" },
		"version":    func(s *RunSummary) { s.WindTunnelVersion = "0.2.0" },
	} {
		t.Run(name, func(t *testing.T) {
			s := testSummary()
			mutate(s)
			assert.NotEqual(t, base, s.ComputeFingerprint())
		})
	}
}

func TestFingerprint_FieldBoundaries(t *testing.T) {
	tests := map[string][2]func(*RunSummary){
		"env key and value": {
			func(s *RunSummary) { s.Env = map[string]string{"AB": "c"} },
			func(s *RunSummary) { s.Env = map[string]string{"A": "Bc"} },
		},
		"scenario and duration mode": {
			func(s *RunSummary) { s.ScenarioName, s.DurationMode = "echo", "soak" },
			func(s *RunSummary) { s.ScenarioName, s.DurationMode = "echos", "oak" },
		},
		"behaviours and env": {
			func(s *RunSummary) {
				s.AssignedBehaviours = map[string]int{"a": 1}
				s.Env = map[string]string{}
			},
			func(s *RunSummary) {
				s.AssignedBehaviours = map[string]int{}
				s.Env = map[string]string{"a": "\x01\x00\x00\x00\x00\x00\x00\x00"}
			},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			a, b := testSummary(), testSummary()
			tc[0](a)
			tc[1](b)
			assert.NotEqual(t, a.ComputeFingerprint(), b.ComputeFingerprint())
		})
	}
}

func TestStoreLoad_ByteIdentical(t *testing.T) {
	var first bytes.Buffer
	require.NoError(t, Store(&first, testSummary()))

	loaded, err := Load(bytes.NewReader(first.Bytes()))
	require.NoError(t, err)

	var second bytes.Buffer
	require.NoError(t, Store(&second, loaded))
	assert.Equal(t, first.String(), second.String())
	assert.Equal(t, testSummary(), loaded)
}

func TestAppend_OneLinePerRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_summary.jsonl")

	first := testSummary()
	require.NoError(t, Append(path, first))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	second := testSummary()
	second.RunID = "second"
	second.BuildInfo = nil
	require.NoError(t, Append(path, second))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(after, before), "existing lines must not change")
	assert.Equal(t, 2, strings.Count(string(after), "\n"))
	assert.NotContains(t, strings.Split(string(after), "\n")[1], "build_info")

	runs, err := LoadAll(path)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "7d3b2c1a", runs[0].RunID)
	assert.Equal(t, "second", runs[1].RunID)
}

func TestLoadAll_ReportsBadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_summary.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"run_id\":\"a\"}\nnot json\n"), 0o644))

	_, err := LoadAll(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestPath(t *testing.T) {
	t.Setenv(PathEnv, "")
	assert.Equal(t, DefaultPath, Path())
	t.Setenv(PathEnv, "/tmp/custom.jsonl")
	assert.Equal(t, "/tmp/custom.jsonl", Path())
}
