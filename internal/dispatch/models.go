package dispatch

import (
	"fmt"
	"time"
)

// Phase is one pass over the job table. Phases run one after the other.
type Phase string

const (
	PhaseBuild   Phase = "build"   // compile the experiment binary for each option
	PhaseExecute Phase = "execute" // run the compiled experiment
)

// ParsePhase accepts "build" or "execute".
func ParsePhase(s string) (Phase, error) {
	switch Phase(s) {
	case PhaseBuild, PhaseExecute:
		return Phase(s), nil
	}
	return "", fmt.Errorf("%w: unknown phase %q", ErrInvalidOptions, s)
}

// JobOption selects the experiment variant compiled into one binary.
type JobOption struct {
	Algorithm int
	Encoding  int
	Approach  int
}

// DefaultJobOptions is the experiment matrix: DE and the rounding variants
// of UDE and U2DE under Lamarckian and Baldwinian repair.
var DefaultJobOptions = []JobOption{
	{0, 0, 0},
	{0, 0, 1},
	{0, 1, 0},
	{0, 1, 1},
	{0, 1, 2},
	{0, 1, 3},
	{0, 2, 0},
	{0, 2, 1},
}

// Job is one script submission.
type Job struct {
	Index  int
	Node   int // NUMA node
	Phase  Phase
	Option JobOption
}

// Label is used in logs and errors, e.g. "build#3".
func (j Job) Label() string {
	return fmt.Sprintf("%s#%d", j.Phase, j.Index)
}

// Options configures script generation and the worker pool.
type Options struct {
	Workers   int
	ScriptDir string
	LogDir    string
	JobName   string   // PBS job name prefix, suffixed with the job index
	Resources string   // PBS -l resource list
	Launcher  []string // command prefix the script path is appended to, empty runs the script directly
	WorkDir   string   // working directory of launched processes
	DryRun    bool     // write scripts without launching them
}

// DefaultOptions mirrors the cluster setup the experiments were run on.
func DefaultOptions() Options {
	return Options{
		Workers:   8,
		ScriptDir: "sh",
		LogDir:    "./out",
		JobName:   "MymixintDEJob",
		Resources: "nodes=1:ppn=4:mem=16gb",
		Launcher:  []string{"nohup"},
	}
}

// Result is the outcome of one job.
type Result struct {
	Job      Job
	Script   string
	ExitCode int
	StdOut   []byte
	StdErr   []byte
	Error    error
	Skipped  bool // dry run or cancelled before start
	Duration time.Duration
}
