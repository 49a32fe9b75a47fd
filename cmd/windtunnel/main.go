// Command windtunnel runs the bundled load testing scenarios.
//
// Usage:
//
//	windtunnel <scenario> [flags]
//	windtunnel summaries [--path run_summary.jsonl]
package main

import (
	"os"

	"github.com/holochain/wind-tunnel-sub001/internal/cli"
	"github.com/holochain/wind-tunnel-sub001/internal/scenarios"
)

func main() {
	os.Exit(cli.Execute(scenarios.All()...))
}
