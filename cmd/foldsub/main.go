package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hpcfold/foldsub/internal/config"
	"github.com/hpcfold/foldsub/internal/logging"
	"github.com/hpcfold/foldsub/internal/pipeline"
)

var (
	Version   = "dev"     // Injected at build time
	BuildDate = "unknown" // Injected at build time
)

// CLI flags
var (
	configPath  = flag.String("config", filepath.Join("configs", "config.yaml"), "Path to the configuration file")
	ncpus       = flag.Int("ncpus", 0, "Maximum number of CPUs to use for the search stage (required, positive)")
	jobName     = flag.String("job-name", "", "A human-friendly job name")
	force       = flag.Bool("force", false, "Overwrite existing script file(s)")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(),
		"Usage: %s [flags] <apptainer-img> <query-file> <cache-folder> <output-folder>\n\n"+
			"Generates SLURM submission scripts for the ColabFold search and predict stages.\n\n"+
			"Arguments:\n"+
			"  apptainer-img   Path to colabfold's Apptainer image\n"+
			"  query-file      Path to a FASTA file with the proteins to be modeled\n"+
			"  cache-folder    Path to colabfold's cache folder\n"+
			"  output-folder   Path to a folder where to store the generated scripts\n\n"+
			"Flags:\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("foldsub %s (built %s)\n", Version, BuildDate)
		return
	}

	if flag.NArg() != 4 {
		usage()
		os.Exit(2)
	}
	image := flag.Arg(0)
	queryFile := flag.Arg(1)
	cacheDir := flag.Arg(2)
	outputDir := flag.Arg(3)

	if err := validateArgs(image, queryFile, cacheDir, *ncpus); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: failed to load configuration: %v\n", os.Args[0], err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: failed to setup logger: %v\n", os.Args[0], err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting foldsub",
		zap.String("version", Version),
		zap.String("buildDate", BuildDate),
		zap.String("output_folder", outputDir),
	)

	p := pipeline.New(cfg, logger)
	err = p.Run(pipeline.Params{
		Image:     image,
		QueryFile: queryFile,
		CacheDir:  cacheDir,
		OutputDir: outputDir,
		CPUs:      *ncpus,
		JobName:   *jobName,
		Force:     *force,
	})
	if err != nil {
		logger.Fatal("Script generation failed", zap.Error(err))
	}

	logger.Info("Submission scripts generated")
}

// validateArgs rejects user-input errors before any configuration is touched
// or output produced.
func validateArgs(image, queryFile, cacheDir string, cpus int) error {
	if err := existingFile(image); err != nil {
		return fmt.Errorf("apptainer-img: %w", err)
	}
	if err := existingFile(queryFile); err != nil {
		return fmt.Errorf("query-file: %w", err)
	}
	if err := existingFolder(cacheDir); err != nil {
		return fmt.Errorf("cache-folder: %w", err)
	}
	if cpus <= 0 {
		return fmt.Errorf("--ncpus must be a positive integer, got %d", cpus)
	}
	return nil
}

func existingFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("not an existing file: %q", path)
	}
	if info.IsDir() {
		return fmt.Errorf("not a file: %q", path)
	}
	return nil
}

func existingFolder(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("not an existing folder: %q", path)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a folder: %q", path)
	}
	return nil
}
