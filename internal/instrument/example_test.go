package instrument_test

import (
	"fmt"

	"github.com/holochain/wind-tunnel-sub001/internal/core"
	"github.com/holochain/wind-tunnel-sub001/internal/instrument"
)

func ExampleCall() {
	rep := &core.RecordingReporter{}

	greeting, err := instrument.Call(rep, "demo.echo", core.Attrs("agent", "agent-0"), func() (string, error) {
		return "hello", nil
	})

	fmt.Println(greeting, err, len(rep.Operations()))
	// Output: hello <nil> 1
}
