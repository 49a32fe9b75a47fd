// Package summary persists one line per completed run to a JSON lines file.
package summary

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

const (
	// PathEnv overrides where run summaries are appended.
	PathEnv = "RUN_SUMMARY_PATH"
	// DefaultPath is used when PathEnv is not set.
	DefaultPath = "run_summary.jsonl"
)

// Path returns the file run summaries are appended to.
func Path() string {
	if p := os.Getenv(PathEnv); p != "" {
		return p
	}
	return DefaultPath
}

// BuildInfo describes the software the scenario ran against. Info is kept as
// raw JSON so that it is written back exactly as it was read.
type BuildInfo struct {
	InfoType string          `json:"info_type"`
	Info     json.RawMessage `json:"info"`
}

// RunSummary describes a completed run.
type RunSummary struct {
	RunID        string `json:"run_id"`
	ScenarioName string `json:"scenario_name"`
	// StartedAt is a Unix timestamp in seconds.
	StartedAt int64 `json:"started_at"`
	// RunDuration is the measured length of the run in whole seconds.
	RunDuration uint64 `json:"run_duration"`
	// DurationMode is how the run was configured to end, e.g. "fixed:60s" or "soak".
	DurationMode string `json:"duration_mode"`
	AgentCount   int    `json:"agent_count"`
	// PeerEndCount is the number of agents whose behaviour ran until shutdown.
	PeerEndCount       int               `json:"peer_end_count"`
	AssignedBehaviours map[string]int    `json:"assigned_behaviours"`
	Env                map[string]string `json:"env"`
	WindTunnelVersion  string            `json:"wind_tunnel_version"`
	Fingerprint        string            `json:"fingerprint"`
	BuildInfo          *BuildInfo        `json:"build_info,omitempty"`
}

// ComputeFingerprint hashes the parts of the summary that identify the run
// configuration, so that runs with the same setup can be compared. The run id,
// timings and build info are not included.
func (s *RunSummary) ComputeFingerprint() string {
	h := sha3.New256()
	var num [8]byte
	writeUint := func(v uint64) {
		binary.LittleEndian.PutUint64(num[:], v)
		h.Write(num[:])
	}
	// Strings are length prefixed so that adjacent fields cannot run together.
	writeString := func(v string) {
		writeUint(uint64(len(v)))
		h.Write([]byte(v))
	}

	writeString(s.ScenarioName)
	writeUint(uint64(s.AgentCount))
	writeString(s.DurationMode)
	writeUint(uint64(len(s.AssignedBehaviours)))
	for _, k := range sortedKeys(s.AssignedBehaviours) {
		writeString(k)
		writeUint(uint64(s.AssignedBehaviours[k]))
	}
	writeUint(uint64(len(s.Env)))
	for _, k := range sortedKeys(s.Env) {
		writeString(k)
		writeString(s.Env[k])
	}
	writeString(s.WindTunnelVersion)
	return hex.EncodeToString(h.Sum(nil))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Store writes s as a single JSON object without a trailing newline.
func Store(w io.Writer, s *RunSummary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "encoding run summary")
	}
	_, err = w.Write(data)
	return errors.WithStack(err)
}

// Load reads one run summary.
func Load(r io.Reader) (*RunSummary, error) {
	var s RunSummary
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, errors.Wrap(err, "decoding run summary")
	}
	return &s, nil
}

// Append adds s to the file at path as one line, creating the file if needed.
// The file is synced before Append returns.
func Append(path string, s *RunSummary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "encoding run summary")
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "writing %s", path)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "syncing %s", path)
	}
	return errors.Wrapf(f.Close(), "closing %s", path)
}

// LoadAll reads every run summary in a file written by Append.
func LoadAll(path string) ([]*RunSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	var runs []*RunSummary
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var s RunSummary
		if err := json.Unmarshal(scanner.Bytes(), &s); err != nil {
			return nil, errors.Wrapf(err, "%s line %d", path, line)
		}
		runs = append(runs, &s)
	}
	return runs, errors.Wrapf(scanner.Err(), "reading %s", path)
}
