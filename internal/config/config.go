// Package config resolves run options from flags, environment and an optional
// YAML run profile.
package config

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/holochain/wind-tunnel-sub001/internal/core"
	"github.com/holochain/wind-tunnel-sub001/internal/progress"
	"github.com/holochain/wind-tunnel-sub001/internal/scenario"
)

// EnvPrefix is prepended to flag names to form environment variables, e.g. WT_AGENTS.
const EnvPrefix = "WT"

// Flag names.
const (
	FlagAgents           = "agents"
	FlagDuration         = "duration"
	FlagSoak             = "soak"
	FlagConnectionString = "connection-string"
	FlagBehaviour        = "behaviour"
	FlagReporter         = "reporter"
	FlagRunID            = "run-id"
	FlagNoProgress       = "no-progress"
	FlagCPUWarnThreshold = "cpu-warn-threshold"
	FlagConfig           = "config"

	keyConductorConfig = "conductor-config"
	keyCHCEnabled      = "chc-enabled"
)

// Profile is a YAML run profile. Every field is optional and is overridden by
// environment variables and flags.
type Profile struct {
	Agents           *int     `yaml:"agents,omitempty"`
	Duration         *uint64  `yaml:"duration,omitempty"`
	Soak             *bool    `yaml:"soak,omitempty"`
	ConnectionString string   `yaml:"connection_string,omitempty"`
	Behaviours       []string `yaml:"behaviours,omitempty"`
	Reporter         string   `yaml:"reporter,omitempty"`
	RunID            string   `yaml:"run_id,omitempty"`
	NoProgress       *bool    `yaml:"no_progress,omitempty"`
	CPUWarnThreshold *float64 `yaml:"cpu_warn_threshold,omitempty"`
}

// LoadProfile reads and parses a YAML run profile.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.ConfigErrorf("reading run profile: %v", err)
	}

	var p Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, core.ConfigErrorf("parsing run profile %s: %v", path, err)
	}
	return &p, nil
}

// settings converts the profile to viper keys.
func (p *Profile) settings() map[string]any {
	m := map[string]any{}
	if p.Agents != nil {
		m[FlagAgents] = *p.Agents
	}
	if p.Duration != nil {
		m[FlagDuration] = *p.Duration
	}
	if p.Soak != nil {
		m[FlagSoak] = *p.Soak
	}
	if p.ConnectionString != "" {
		m[FlagConnectionString] = p.ConnectionString
	}
	if len(p.Behaviours) > 0 {
		m[FlagBehaviour] = p.Behaviours
	}
	if p.Reporter != "" {
		m[FlagReporter] = p.Reporter
	}
	if p.RunID != "" {
		m[FlagRunID] = p.RunID
	}
	if p.NoProgress != nil {
		m[FlagNoProgress] = *p.NoProgress
	}
	if p.CPUWarnThreshold != nil {
		m[FlagCPUWarnThreshold] = *p.CPUWarnThreshold
	}
	return m
}

// Options is the resolved configuration of one run. Zero values mean the
// scenario's own default applies.
type Options struct {
	Agents           int
	Duration         *uint64
	Soak             bool
	ConnectionString string
	Behaviours       []scenario.BehaviourCount
	Reporter         scenario.ReporterChoice
	RunID            string
	NoProgress       bool
	CPUWarnThreshold float64

	// ConductorConfig is CONDUCTOR_CONFIG; "CI" selects the CI variant of a scenario.
	ConductorConfig string
	// CHCEnabled is true when CHC_ENABLED=1.
	CHCEnabled bool
}

// IsCI reports whether the CI variant of the scenario should be used.
func (o Options) IsCI() bool {
	return o.ConductorConfig == "CI"
}

// AddFlags registers the run flags on fs.
func AddFlags(fs *pflag.FlagSet) {
	fs.Int(FlagAgents, scenario.DefaultAgents, "number of agents to run")
	fs.Uint64(FlagDuration, 0, "number of seconds to run the scenario for, 0 runs until stopped")
	fs.Bool(FlagSoak, false, "run until stopped, ignoring any configured duration")
	fs.StringP(FlagConnectionString, "c", "", "connection string for the service to test")
	fs.StringArrayP(FlagBehaviour, "b", nil, "assign a behaviour to agents as name:count, repeatable")
	fs.String(FlagReporter, "", "where to report metrics: "+joinChoices())
	fs.String(FlagRunID, "", "run id to use instead of a generated one")
	fs.Bool(FlagNoProgress, false, "do not show a progress bar")
	fs.Float64(FlagCPUWarnThreshold, progress.DefaultCPUWarnThreshold, "warn when the runner uses more than this percent of total CPU")
	fs.String(FlagConfig, "", "YAML run profile")
}

func joinChoices() string {
	names := make([]string, 0, len(scenario.ReporterChoices))
	for _, c := range scenario.ReporterChoices {
		names = append(names, string(c))
	}
	return strings.Join(names, "|")
}

// NewViper binds fs and the environment into a viper instance. The profile
// named by --config, if any, becomes the lowest-precedence layer.
func NewViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, errors.Wrap(err, "binding flags")
	}
	if err := v.BindEnv(keyConductorConfig, "CONDUCTOR_CONFIG"); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := v.BindEnv(keyCHCEnabled, "CHC_ENABLED"); err != nil {
		return nil, errors.WithStack(err)
	}

	if path := v.GetString(FlagConfig); path != "" {
		p, err := LoadProfile(path)
		if err != nil {
			return nil, err
		}
		if err := v.MergeConfigMap(p.settings()); err != nil {
			return nil, core.ConfigErrorf("applying run profile %s: %v", path, err)
		}
	}
	return v, nil
}

// Resolve reads and validates the options held by v.
func Resolve(v *viper.Viper) (Options, error) {
	o := Options{
		Soak:             v.GetBool(FlagSoak),
		ConnectionString: v.GetString(FlagConnectionString),
		RunID:            v.GetString(FlagRunID),
		NoProgress:       v.GetBool(FlagNoProgress),
		CPUWarnThreshold: v.GetFloat64(FlagCPUWarnThreshold),
		ConductorConfig:  v.GetString(keyConductorConfig),
		CHCEnabled:       v.GetString(keyCHCEnabled) == "1",
	}

	if v.IsSet(FlagAgents) {
		o.Agents = v.GetInt(FlagAgents)
		if o.Agents < 1 {
			return Options{}, core.ConfigErrorf("--%s must be at least 1, got %d", FlagAgents, o.Agents)
		}
	}
	if v.IsSet(FlagDuration) {
		d := v.GetUint64(FlagDuration)
		o.Duration = &d
	}
	if name := v.GetString(FlagReporter); name != "" {
		choice, err := scenario.ParseReporterChoice(name)
		if err != nil {
			return Options{}, err
		}
		o.Reporter = choice
	}
	for _, s := range v.GetStringSlice(FlagBehaviour) {
		bc, err := scenario.ParseBehaviourCount(s)
		if err != nil {
			return Options{}, err
		}
		o.Behaviours = append(o.Behaviours, bc)
	}
	if o.CPUWarnThreshold <= 0 {
		return Options{}, core.ConfigErrorf("--%s must be positive", FlagCPUWarnThreshold)
	}
	return o, nil
}
