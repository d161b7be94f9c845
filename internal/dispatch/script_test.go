package dispatch

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildJobs(t *testing.T) {
	jobs := BuildJobs(DefaultJobOptions, []int{0, 1}, PhaseBuild)
	require.Len(t, jobs, 8)

	for i, j := range jobs {
		assert.Equal(t, i, j.Index)
		assert.Equal(t, i%2, j.Node)
		assert.Equal(t, PhaseBuild, j.Phase)
	}
	assert.Equal(t, JobOption{0, 1, 3}, jobs[5].Option)

	noNodes := BuildJobs(DefaultJobOptions[:2], nil, PhaseExecute)
	assert.Equal(t, 0, noNodes[1].Node)
}

func TestCommand(t *testing.T) {
	job := Job{Index: 4, Phase: PhaseBuild, Option: JobOption{Algorithm: 0, Encoding: 1, Approach: 2}}
	assert.Equal(t, "make ALGORITHM=0 ENCODING=1 APPROACH=2 NUM=4", Command(job))

	job.Phase = PhaseExecute
	assert.Equal(t, "./example_experiment4", Command(job))
}

func TestRenderScript(t *testing.T) {
	job := Job{Index: 3, Node: 1, Phase: PhaseBuild, Option: JobOption{0, 1, 1}}

	var buf bytes.Buffer
	require.NoError(t, RenderScript(&buf, job, DefaultOptions()))

	want := `#!/bin/bash
#PBS -N MymixintDEJob_3
#PBS -l nodes=1:ppn=4:mem=16gb
#PBS -l numactrl=1
#PBS -o ./out/output_3.log
#PBS -e ./out/error_3.log

make ALGORITHM=0 ENCODING=1 APPROACH=1 NUM=3
`
	assert.Equal(t, want, buf.String())
}

func TestWriteScript(t *testing.T) {
	fsys := afero.NewMemMapFs()
	opts := DefaultOptions()
	job := Job{Index: 2, Phase: PhaseExecute}

	path, err := WriteScript(fsys, job, opts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("sh", "temp_job_execute_2.sh"), path)

	info, err := fsys.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, "-rwxr-xr-x", info.Mode().Perm().String())

	content, err := afero.ReadFile(fsys, path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "./example_experiment2")
}

func TestWriteScript_ReadOnly(t *testing.T) {
	_, err := WriteScript(afero.NewReadOnlyFs(afero.NewMemMapFs()), Job{}, DefaultOptions())
	assert.ErrorContains(t, err, "failed to create script directory")
}

func TestParsePhase(t *testing.T) {
	p, err := ParsePhase("execute")
	require.NoError(t, err)
	assert.Equal(t, PhaseExecute, p)

	_, err = ParsePhase("deploy")
	assert.ErrorIs(t, err, ErrInvalidOptions)
}
