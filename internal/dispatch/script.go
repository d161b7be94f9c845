package dispatch

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"text/template"

	"github.com/spf13/afero"
)

const scriptMode = 0o755

var scriptTemplate = template.Must(template.New("job").Parse(`#!/bin/bash
#PBS -N {{ .JobName }}_{{ .Job.Index }}
#PBS -l {{ .Resources }}
#PBS -l numactrl={{ .Job.Node }}
#PBS -o {{ .LogDir }}/output_{{ .Job.Index }}.log
#PBS -e {{ .LogDir }}/error_{{ .Job.Index }}.log

{{ .Command }}
`))

type scriptData struct {
	Job       Job
	JobName   string
	Resources string
	LogDir    string
	Command   string
}

// BuildJobs numbers options from zero and assigns NUMA nodes round robin.
func BuildJobs(options []JobOption, nodes []int, phase Phase) []Job {
	jobs := make([]Job, len(options))
	for i, opt := range options {
		node := 0
		if len(nodes) > 0 {
			node = nodes[i%len(nodes)]
		}
		jobs[i] = Job{Index: i, Node: node, Phase: phase, Option: opt}
	}
	return jobs
}

// Command is the shell line a job runs.
func Command(job Job) string {
	if job.Phase == PhaseBuild {
		return fmt.Sprintf("make ALGORITHM=%d ENCODING=%d APPROACH=%d NUM=%d",
			job.Option.Algorithm, job.Option.Encoding, job.Option.Approach, job.Index)
	}
	return fmt.Sprintf("./example_experiment%d", job.Index)
}

// ScriptPath is {dir}/temp_job_{phase}_{index}.sh.
func ScriptPath(dir string, job Job) string {
	return filepath.Join(dir, fmt.Sprintf("temp_job_%s_%d.sh", job.Phase, job.Index))
}

// RenderScript writes the PBS job script for job.
func RenderScript(w io.Writer, job Job, opts Options) error {
	return scriptTemplate.Execute(w, scriptData{
		Job:       job,
		JobName:   opts.JobName,
		Resources: opts.Resources,
		LogDir:    opts.LogDir,
		Command:   Command(job),
	})
}

// WriteScript renders the job script into the script directory and makes it
// executable. It returns the script path.
func WriteScript(fsys afero.Fs, job Job, opts Options) (string, error) {
	var buf bytes.Buffer
	if err := RenderScript(&buf, job, opts); err != nil {
		return "", fmt.Errorf("failed to render script for %s: %w", job.Label(), err)
	}

	if err := fsys.MkdirAll(opts.ScriptDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create script directory: %w", err)
	}
	path := ScriptPath(opts.ScriptDir, job)
	if err := afero.WriteFile(fsys, path, buf.Bytes(), scriptMode); err != nil {
		return "", fmt.Errorf("failed to write script: %w", err)
	}
	// WriteFile's mode is filtered by the umask.
	if err := fsys.Chmod(path, scriptMode); err != nil {
		return "", fmt.Errorf("failed to make script executable: %w", err)
	}
	return path, nil
}
