package scenario

import (
	"sort"
	"strconv"
	"strings"

	"github.com/holochain/wind-tunnel-sub001/internal/core"
)

// DefaultBehaviour is the name of the behaviour set with UseAgentBehaviour.
const DefaultBehaviour = "default"

// BehaviourCount asks for Count agents to run the behaviour Name.
type BehaviourCount struct {
	Name  string
	Count int
}

// ParseBehaviourCount parses "name" or "name:count". The count defaults to 1.
func ParseBehaviourCount(s string) (BehaviourCount, error) {
	name, count, hasCount := strings.Cut(s, ":")
	if name == "" {
		return BehaviourCount{}, core.ConfigErrorf("no name specified for behaviour %q", s)
	}
	bc := BehaviourCount{Name: name, Count: 1}
	if hasCount {
		n, err := strconv.Atoi(count)
		if err != nil || n < 1 {
			return BehaviourCount{}, core.ConfigErrorf("invalid agent count in behaviour %q", s)
		}
		bc.Count = n
	}
	return bc, nil
}

// AssignBehaviours picks the behaviour for each of agents agents, by index.
// Explicit assignments are applied first, in order, and any remaining agents
// run the default behaviour. Without explicit assignments agents are spread
// round-robin over the behaviours sorted by name.
func (d *Definition[RV, AV]) AssignBehaviours(agents int, explicit []BehaviourCount) ([]string, error) {
	if agents < 1 {
		return nil, core.ConfigErrorf("at least one agent is required, got %d", agents)
	}
	assigned := make([]string, 0, agents)

	if len(explicit) == 0 {
		names := d.BehaviourNames()
		if len(names) == 0 {
			names = []string{DefaultBehaviour}
		}
		for i := 0; i < agents; i++ {
			assigned = append(assigned, names[i%len(names)])
		}
		return assigned, nil
	}

	for _, bc := range explicit {
		if _, ok := d.behaviours[bc.Name]; !ok {
			return nil, core.ConfigErrorf("behaviour %q is not defined by scenario %s", bc.Name, d.name)
		}
		if len(assigned)+bc.Count > agents {
			return nil, core.ConfigErrorf("behaviours are assigned to more agents than the %d requested", agents)
		}
		for i := 0; i < bc.Count; i++ {
			assigned = append(assigned, bc.Name)
		}
	}
	if remaining := agents - len(assigned); remaining > 0 {
		if _, ok := d.behaviours[DefaultBehaviour]; !ok {
			return nil, core.ConfigErrorf("%d agents have no behaviour assigned and scenario %s has no default behaviour", remaining, d.name)
		}
		for i := 0; i < remaining; i++ {
			assigned = append(assigned, DefaultBehaviour)
		}
	}
	return assigned, nil
}

// CountBehaviours tallies an assignment by behaviour name.
func CountBehaviours(assigned []string) map[string]int {
	counts := make(map[string]int)
	for _, name := range assigned {
		counts[name]++
	}
	return counts
}

// BehaviourNames returns the defined behaviour names, sorted.
func (d *Definition[RV, AV]) BehaviourNames() []string {
	names := make([]string, 0, len(d.behaviours))
	for name := range d.behaviours {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
