package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/user/coco_analyzer_go/internal/ctxlog"
)

// waitDelay bounds how long a cancelled job may keep its output pipes open.
const waitDelay = 2 * time.Second

var (
	// ErrInvalidOptions is returned for unusable dispatcher settings.
	ErrInvalidOptions = errors.New("invalid dispatch options")
	// ErrJobFailed is returned when a launched job exits non-zero or cannot start.
	ErrJobFailed = errors.New("job failed")
	// ErrJobCancelled is returned when a job's context ends before it completes.
	ErrJobCancelled = errors.New("job cancelled")
)

// Validate checks the options and reports every problem at once.
func (o Options) Validate() error {
	var err *multierror.Error
	if o.Workers <= 0 {
		err = multierror.Append(err, fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidOptions, o.Workers))
	}
	if strings.TrimSpace(o.ScriptDir) == "" {
		err = multierror.Append(err, fmt.Errorf("%w: script directory is empty", ErrInvalidOptions))
	}
	if strings.TrimSpace(o.JobName) == "" {
		err = multierror.Append(err, fmt.Errorf("%w: job name is empty", ErrInvalidOptions))
	}
	return err.ErrorOrNil()
}

// Dispatcher writes job scripts and launches them on a bounded pool.
type Dispatcher struct {
	fs   afero.Fs
	opts Options
}

// New returns a Dispatcher writing scripts to fsys.
func New(fsys afero.Fs, opts Options) (*Dispatcher, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Dispatcher{fs: fsys, opts: opts}, nil
}

// Handle tracks one submitted job.
type Handle struct {
	job    Job
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	result Result
}

// Job returns the submitted job.
func (h *Handle) Job() Job { return h.job }

// Done is closed once the job has finished or been skipped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Cancel stops the job. A queued job is skipped; a running one is killed.
func (h *Handle) Cancel() { h.cancel() }

// Wait blocks until the job is done or ctx ends.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		return Result{Job: h.job}, ctx.Err()
	}
}

// Batch is a set of jobs submitted together.
type Batch struct {
	handles []*Handle
	queued  chan struct{}
	group   *errgroup.Group
}

// Handles returns one handle per job, in submission order.
func (b *Batch) Handles() []*Handle { return b.handles }

// Wait blocks until every job is done. Results are in submission order;
// the error collects every failed or cancelled job.
func (b *Batch) Wait() ([]Result, error) {
	<-b.queued
	_ = b.group.Wait() // workers always return nil

	results := make([]Result, len(b.handles))
	var merr *multierror.Error
	for i, h := range b.handles {
		results[i] = h.result
		if h.result.Error != nil {
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", h.job.Label(), h.result.Error))
		}
	}
	return results, merr.ErrorOrNil()
}

// Submit queues jobs and returns immediately. At most Options.Workers jobs
// run at once; jobs share nothing and may finish in any order.
func (d *Dispatcher) Submit(ctx context.Context, jobs []Job) *Batch {
	g := new(errgroup.Group)
	g.SetLimit(d.opts.Workers)

	b := &Batch{
		handles: make([]*Handle, len(jobs)),
		queued:  make(chan struct{}),
		group:   g,
	}
	for i, job := range jobs {
		jctx, cancel := context.WithCancel(ctx)
		b.handles[i] = &Handle{job: job, ctx: jctx, cancel: cancel, done: make(chan struct{})}
	}

	// g.Go blocks while the pool is full, so queueing happens off the caller's goroutine.
	go func() {
		defer close(b.queued)
		for _, h := range b.handles {
			g.Go(func() error {
				d.run(h)
				return nil
			})
		}
	}()
	return b
}

// RunPhases submits the job table once per phase, waiting for each batch
// before the next. A phase with failures stops the run.
func (d *Dispatcher) RunPhases(ctx context.Context, options []JobOption, nodes []int, phases []Phase) ([]Result, error) {
	var all []Result
	for _, phase := range phases {
		ctxlog.Info(ctx, "starting phase", "phase", phase, "jobs", len(options), "workers", d.opts.Workers)
		results, err := d.Submit(ctx, BuildJobs(options, nodes, phase)).Wait()
		all = append(all, results...)
		if err != nil {
			return all, fmt.Errorf("phase %s: %w", phase, err)
		}
	}
	return all, nil
}

func (d *Dispatcher) run(h *Handle) {
	start := time.Now()
	res := Result{Job: h.job}
	defer close(h.done)
	defer h.cancel()
	defer func() {
		res.Duration = time.Since(start)
		h.result = res
	}()

	logger := ctxlog.Logger(h.ctx).With("job", h.job.Label(), "node", h.job.Node)

	if err := h.ctx.Err(); err != nil {
		res.Skipped = true
		res.ExitCode = -1
		res.Error = fmt.Errorf("%w before start: %w", ErrJobCancelled, err)
		logger.Warn("job cancelled before start")
		return
	}

	script, err := WriteScript(d.fs, h.job, d.opts)
	res.Script = script
	if err != nil {
		res.ExitCode = -1
		res.Error = err
		return
	}
	if d.opts.DryRun {
		res.Skipped = true
		logger.Info("dry run, script written", "script", script)
		return
	}

	target := script
	if d.opts.WorkDir != "" && !filepath.IsAbs(target) {
		if abs, err := filepath.Abs(target); err == nil {
			target = abs
		}
	}
	args := append(slices.Clone(d.opts.Launcher), target)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(h.ctx, args[0], args[1:]...)
	cmd.Dir = d.opts.WorkDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	logger.Info("launching job", "script", script, "launcher", d.opts.Launcher)
	err = cmd.Run()
	res.StdOut, res.StdErr = stdout.Bytes(), stderr.Bytes()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		logger.Info("job finished", "duration", time.Since(start).Round(time.Millisecond))
	case h.ctx.Err() != nil:
		res.ExitCode = -1
		res.Error = fmt.Errorf("%w: %w", ErrJobCancelled, h.ctx.Err())
		logger.Warn("job cancelled")
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		res.Error = fmt.Errorf("%w: exit code %d", ErrJobFailed, res.ExitCode)
		logger.Error("job exited with error", "exitCode", res.ExitCode, "stderr", strings.TrimSpace(stderr.String()))
	default:
		res.ExitCode = -1
		res.Error = fmt.Errorf("%w: %w", ErrJobFailed, err)
		logger.Error("job could not be started", "error", err)
	}
}
