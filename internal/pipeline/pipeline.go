// Package pipeline chains the ColabFold search and predict stages into a pair
// of generated submission scripts.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hpcfold/foldsub/internal/apptainer"
	"github.com/hpcfold/foldsub/internal/config"
	"github.com/hpcfold/foldsub/internal/slurm"
)

// ErrOutputNotEmpty is returned when the output folder already has content and
// the caller did not request an overwrite.
var ErrOutputNotEmpty = errors.New("output folder is not empty")

// Params holds the caller-supplied inputs for one generation run.
type Params struct {
	Image     string // Apptainer image file
	QueryFile string // FASTA file with the proteins to be modeled
	CacheDir  string // ColabFold cache folder
	OutputDir string // folder receiving both generated scripts
	CPUs      int    // CPU count for the search stage
	JobName   string // optional human-friendly job name
	Force     bool   // overwrite existing script files
}

// Pipeline generates the search and predict submission scripts for one run.
type Pipeline struct {
	cfg    *config.Config
	logger *zap.Logger
}

// New creates a Pipeline. Each run is tagged with a fresh run ID in the logs.
func New(cfg *config.Config, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		logger: logger.With(zap.String("run_id", uuid.NewString())),
	}
}

// Run builds both stage commands, checks the output folder is safe to write
// into, and writes the two submission scripts. Both scripts are composed fully
// in memory before either file is created; any failure aborts the whole run.
func (p *Pipeline) Run(params Params) error {
	account, err := config.AccountCode()
	if err != nil {
		return err
	}

	searchCmd, searchOut := apptainer.SearchCommand(
		params.Image, params.CacheDir, params.QueryFile, params.OutputDir, params.CPUs)

	// The predict stage reads the search stage's container-side output folder.
	batchCmd, _ := apptainer.BatchCommand(
		params.Image, params.CacheDir, searchOut, params.OutputDir)

	gen := &slurm.Generator{
		Account:      account,
		GPUPartition: p.cfg.GPUPartition,
	}

	searchScript := gen.Script(searchCmd, slurm.ResourceSpec{
		CPUs:      params.CPUs,
		MemoryGB:  p.cfg.Search.MemoryGB,
		TimeLimit: p.cfg.Search.TimeLimit,
		Partition: p.cfg.DefaultPartition,
		JobName:   jobName(params.JobName, "colabfold_search"),
	})

	batchScript := gen.Script(batchCmd, slurm.ResourceSpec{
		CPUs:      1,
		MemoryGB:  p.cfg.Predict.MemoryGB,
		TimeLimit: p.cfg.Predict.TimeLimit,
		Partition: p.cfg.DefaultPartition,
		GPUs:      p.cfg.Predict.GPUs,
		JobName:   jobName(params.JobName, "colabfold_batch"),
	})

	if err := p.checkOutputFolder(params); err != nil {
		return err
	}

	searchPath := filepath.Join(params.OutputDir, p.cfg.SearchScriptName)
	batchPath := filepath.Join(params.OutputDir, p.cfg.PredictScriptName)

	if params.Force {
		for _, path := range []string{searchPath, batchPath} {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove previous script %q: %w", path, err)
			}
		}
	}

	if err := os.MkdirAll(params.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output folder %q: %w", params.OutputDir, err)
	}

	p.logger.Info("writing colabfold_search runner", zap.String("path", searchPath))
	if err := os.WriteFile(searchPath, []byte(searchScript), 0644); err != nil {
		return fmt.Errorf("failed to write search script: %w", err)
	}

	p.logger.Info("writing colabfold_batch runner", zap.String("path", batchPath))
	if err := os.WriteFile(batchPath, []byte(batchScript), 0644); err != nil {
		return fmt.Errorf("failed to write predict script: %w", err)
	}

	return nil
}

// checkOutputFolder is the pre-flight safety check covering both scripts at
// once: the output folder must be nonexistent, empty, or forced.
func (p *Pipeline) checkOutputFolder(params Params) error {
	if params.Force {
		return nil
	}

	entries, err := os.ReadDir(params.OutputDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to inspect output folder %q: %w", params.OutputDir, err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("refusing to write into non-empty folder %q (pass --force to overwrite): %w",
			params.OutputDir, ErrOutputNotEmpty)
	}
	return nil
}

// jobName resolves the final job name for one stage: the stage's tool name by
// default, or the caller's name suffixed with it.
func jobName(supplied, stage string) string {
	if supplied == "" {
		return stage
	}
	return supplied + "_" + stage
}
