package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holochain/wind-tunnel-sub001/internal/core"
)

func multiBehaviourDef(t *testing.T, withDefault bool) *Definition[runnerValues, agentValues] {
	t.Helper()
	b := NewBuilder[runnerValues, agentValues]("multi").
		UseNamedAgentBehaviour("writer", noopAgent).
		UseNamedAgentBehaviour("reader", noopAgent)
	if withDefault {
		b.UseAgentBehaviour(noopAgent)
	}
	def, err := b.Build()
	require.NoError(t, err)
	return def
}

func TestParseBehaviourCount(t *testing.T) {
	tests := []struct {
		in      string
		want    BehaviourCount
		wantErr bool
	}{
		{in: "login:5", want: BehaviourCount{Name: "login", Count: 5}},
		{in: "login", want: BehaviourCount{Name: "login", Count: 1}},
		{in: ":5", wantErr: true},
		{in: "login:x", wantErr: true},
		{in: "login:0", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBehaviourCount(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAssignBehaviours_RoundRobin(t *testing.T) {
	def := multiBehaviourDef(t, false)
	got, err := def.AssignBehaviours(5, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"reader", "writer", "reader", "writer", "reader"}, got)
}

func TestAssignBehaviours_SingleDefault(t *testing.T) {
	def, err := NewBuilder[runnerValues, agentValues]("single").UseAgentBehaviour(noopAgent).Build()
	require.NoError(t, err)
	got, err := def.AssignBehaviours(3, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultBehaviour, DefaultBehaviour, DefaultBehaviour}, got)
}

func TestAssignBehaviours_Explicit(t *testing.T) {
	def := multiBehaviourDef(t, true)
	got, err := def.AssignBehaviours(5, []BehaviourCount{{"writer", 2}, {"reader", 1}})
	require.NoError(t, err)
	assert.Equal(t, []string{"writer", "writer", "reader", DefaultBehaviour, DefaultBehaviour}, got)
	assert.Equal(t, map[string]int{"writer": 2, "reader": 1, DefaultBehaviour: 2}, CountBehaviours(got))
}

func TestAssignBehaviours_Errors(t *testing.T) {
	withDefault := multiBehaviourDef(t, true)
	noDefault := multiBehaviourDef(t, false)

	_, err := withDefault.AssignBehaviours(0, nil)
	assert.ErrorIs(t, err, core.ErrConfig)

	_, err = withDefault.AssignBehaviours(2, []BehaviourCount{{"writer", 3}})
	assert.ErrorIs(t, err, core.ErrConfig)

	_, err = withDefault.AssignBehaviours(2, []BehaviourCount{{"unknown", 1}})
	assert.ErrorIs(t, err, core.ErrConfig)

	_, err = noDefault.AssignBehaviours(3, []BehaviourCount{{"writer", 1}})
	assert.ErrorIs(t, err, core.ErrConfig)
}
