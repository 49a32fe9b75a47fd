package scenarios

import (
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holochain/wind-tunnel-sub001/internal/client"
	"github.com/holochain/wind-tunnel-sub001/internal/collector"
	"github.com/holochain/wind-tunnel-sub001/internal/config"
	"github.com/holochain/wind-tunnel-sub001/internal/coordinator"
	"github.com/holochain/wind-tunnel-sub001/internal/core"
	"github.com/holochain/wind-tunnel-sub001/internal/runner"
	"github.com/holochain/wind-tunnel-sub001/internal/scenario"
	"github.com/holochain/wind-tunnel-sub001/testserver"
)

func oneSecond() *uint64 {
	d := uint64(1)
	return &d
}

func options(t *testing.T, agents int) (runner.Options, *collector.InMemoryReporter) {
	t.Helper()
	rec := collector.NewInMemoryReporter()
	rec.SetOutput(io.Discard)
	return runner.Options{
		Options: config.Options{
			Agents:     agents,
			Duration:   oneSecond(),
			Reporter:   scenario.ReporterNoop,
			NoProgress: true,
		},
		Stdout:      io.Discard,
		SummaryPath: filepath.Join(t.TempDir(), "run_summary.jsonl"),
		Collectors:  []collector.ReportCollector{rec},
	}, rec
}

func TestAllHaveUniqueNames(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range All() {
		assert.False(t, seen[s.Name()], s.Name())
		seen[s.Name()] = true
		assert.NotNil(t, s.DefaultDuration(), s.Name())
	}
	assert.Len(t, seen, 5)
}

func TestNoop(t *testing.T) {
	opts, rec := options(t, 3)
	res, err := runner.Run(Noop(), opts)
	require.NoError(t, err)
	assert.Empty(t, rec.Operations())
	require.NotNil(t, res.Summary)
	assert.Equal(t, 3, res.Summary.PeerEndCount)
}

func TestEchoIsPaced(t *testing.T) {
	opts, rec := options(t, 2)
	_, err := runner.Run(Echo(), opts)
	require.NoError(t, err)

	rows := collector.ComputeOperationRows(rec.Operations())
	require.Len(t, rows, 1)
	assert.Equal(t, EchoOperation, rows[0].OperationID)
	assert.InDelta(t, 2*EchoRate, rows[0].TotalOperations, 40)
	assert.Zero(t, rows[0].FailedOperations)

	perAgent := map[string]int{}
	for _, op := range rec.Operations() {
		perAgent[op.AgentName]++
	}
	require.Len(t, perAgent, 2)
	for name, n := range perAgent {
		assert.InDelta(t, EchoRate, n, 20, name)
	}
}

func TestFlakyEchoFailsEveryOtherCall(t *testing.T) {
	opts, rec := options(t, 1)
	_, err := runner.Run(FlakyEcho(), opts)
	require.NoError(t, err)

	rows := collector.ComputeOperationRows(rec.Operations())
	require.Len(t, rows, 1)
	failed := rows[0].FailedOperations
	assert.InDelta(t, rows[0].TotalOperations-failed, failed, 1)
}

func TestBailStopsAgentZero(t *testing.T) {
	opts, _ := options(t, 3)
	res, err := runner.Run(Bail(), opts)
	require.NoError(t, err)
	require.Len(t, res.Statuses, 3)
	assert.Equal(t, coordinator.OutcomeBailed, res.Statuses[0].Outcome)
	assert.Equal(t, 2, res.Statuses[0].Iterations)
	assert.Equal(t, 2, coordinator.CompletedCount(res.Statuses))
}

func TestZomeCall(t *testing.T) {
	server := testserver.NewServer()
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	opts, rec := options(t, 2)
	opts.ConnectionString = ts.URL
	res, err := runner.Run(ZomeCall(), opts)
	require.NoError(t, err)

	require.NotNil(t, res.Summary)
	require.NotNil(t, res.Summary.BuildInfo)
	assert.Equal(t, BuildInfoType, res.Summary.BuildInfo.InfoType)
	assert.Contains(t, string(res.Summary.BuildInfo.Info), testserver.Version)
	assert.Equal(t, 2, res.Summary.PeerEndCount)

	counts := map[string]int{}
	for _, op := range rec.Operations() {
		counts[op.OperationID]++
	}
	assert.Equal(t, 2, counts["admin_generate_agent_pub_key"])
	assert.Equal(t, 2, counts["admin_install_app"])
	assert.Equal(t, 2, counts["admin_uninstall_app"])
	assert.Positive(t, counts["app_call_zome"])

	var skew int
	for _, m := range rec.Custom() {
		if m.Name == "wt.custom.clock_skew_ms" {
			skew++
		}
	}
	assert.Positive(t, skew)

	admin, err := client.ConnectAdmin(context.Background(), ts.URL, core.NullReporter)
	require.NoError(t, err)
	defer admin.Close()
	apps, err := admin.ListApps(context.Background())
	require.NoError(t, err)
	assert.Empty(t, apps, "agent teardown uninstalls every app")
}

func TestZomeCallNeedsConnectionString(t *testing.T) {
	opts, _ := options(t, 1)
	_, err := runner.Run(ZomeCall(), opts)
	assert.ErrorIs(t, err, core.ErrScenarioFatal)
}
