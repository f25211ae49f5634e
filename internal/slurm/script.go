// Package slurm turns containerized command lines into complete sbatch
// submission scripts with deterministic, shell-safe resource directives.
package slurm

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/shopspring/decimal"

	"github.com/hpcfold/foldsub/internal/apptainer"
)

// ResourceSpec describes the resource request for one submitted job.
type ResourceSpec struct {
	CPUs      int
	MemoryGB  float64 // total for the job, split across CPUs in the script
	TimeLimit string  // SLURM walltime string, e.g. "08:00:00"
	Partition string
	GPUs      int    // a positive count forces the GPU partition
	JobName   string // final job name; quoted on emission
}

// Generator emits sbatch scripts for a fixed account and cluster layout.
type Generator struct {
	Account      string // SLURM account code, required
	GPUPartition string // partition used whenever GPUs are requested
}

// Script produces the full text of an sbatch submission script wrapping cmd.
// The command must begin with the "apptainer run" marker; anything else is a
// programming defect in the caller and panics.
func (g *Generator) Script(cmd apptainer.Command, spec ResourceSpec) string {
	if len(cmd) < 2 || cmd[0] != apptainer.Runtime || cmd[1] != apptainer.RunMode {
		panic(fmt.Sprintf("slurm: command does not start with %q %q: %v",
			apptainer.Runtime, apptainer.RunMode, []string(cmd)))
	}

	partition := spec.Partition
	if spec.GPUs > 0 {
		partition = g.GPUPartition
	}

	directives := []string{
		"#SBATCH --job-name=" + quote(spec.JobName),
		"#SBATCH --account=" + quote(g.Account),
		"#SBATCH --time=" + quote(spec.TimeLimit),
		"#SBATCH --ntasks=1",
		"#SBATCH --mem-per-cpu=" + MemPerCPU(spec.MemoryGB, spec.CPUs) + "GB",
		"#SBATCH --cpus-per-task=" + strconv.Itoa(spec.CPUs),
	}
	if spec.GPUs > 0 {
		directives = append(directives, "#SBATCH --gpus="+strconv.Itoa(spec.GPUs))
	}
	if partition != "" {
		directives = append(directives, "#SBATCH --partition="+quote(partition))
	}

	// Sorted emission keeps the script independent of directive build order.
	sort.Strings(directives)

	lines := []string{
		"#!/usr/bin/env bash",
		"set -e",
		"set -u",
		"set -o pipefail",
		"",
	}
	lines = append(lines, directives...)
	lines = append(lines, "", joinCommand(cmd))

	return strings.Join(lines, "\n")
}

// MemPerCPU derives the per-CPU memory request in gigabytes:
// max(1.0, round(totalGB/cpus, 2)), rendered with two significant digits.
func MemPerCPU(totalGB float64, cpus int) string {
	per := decimal.NewFromFloat(totalGB).
		Div(decimal.NewFromInt(int64(cpus))).
		Round(2)

	v, _ := per.Float64()
	if v < 1.0 {
		v = 1.0
	}
	return strconv.FormatFloat(v, 'g', 2, 64)
}

// joinCommand shell-quotes every token after the runtime marker and joins the
// result with line continuations, one token per line. The marker itself stays
// unquoted so the submitted script reads naturally.
func joinCommand(cmd apptainer.Command) string {
	quoted := make([]string, 0, len(cmd)-1)
	quoted = append(quoted, shellquote.Join(cmd[0], cmd[1]))
	for _, tok := range cmd[2:] {
		quoted = append(quoted, quote(tok))
	}
	return strings.Join(quoted, " \\\n    ")
}

func quote(tok string) string {
	return shellquote.Join(tok)
}
