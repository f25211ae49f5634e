package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hpcfold/foldsub/internal/config"
)

// testSetup creates an image file, query file, and cache folder under a temp
// directory and returns ready-to-use run parameters.
func testSetup(t *testing.T) Params {
	t.Helper()
	t.Setenv(config.AccountEnvVar, "nn9999k")

	dir := t.TempDir()
	image := filepath.Join(dir, "img.sif")
	query := filepath.Join(dir, "q.fasta")
	cache := filepath.Join(dir, "cache")

	if err := os.WriteFile(image, []byte("sif"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(query, []byte(">p1\nMKV\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(cache, 0755); err != nil {
		t.Fatal(err)
	}

	return Params{
		Image:     image,
		QueryFile: query,
		CacheDir:  cache,
		OutputDir: filepath.Join(dir, "out"),
		CPUs:      4,
	}
}

func testPipeline(t *testing.T) *Pipeline {
	t.Helper()
	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	return New(cfg, zap.NewNop())
}

func TestRunWritesBothScripts(t *testing.T) {
	params := testSetup(t)
	p := testPipeline(t)

	if err := p.Run(params); err != nil {
		t.Fatalf("Run: %v", err)
	}

	search := readScript(t, params.OutputDir, "run_colabfold_search.sh")
	predict := readScript(t, params.OutputDir, "run_colabfold_batch.sh")

	for _, want := range []string{
		"/input/q.fasta",
		"/tmp/cache",
		"/output/search",
		"#SBATCH --cpus-per-task=4",
		"#SBATCH --mem-per-cpu=2.5GB",
		"#SBATCH --time=08:00:00",
		"#SBATCH --account=nn9999k",
		"#SBATCH --partition=normal",
		"--threads=4",
	} {
		if !strings.Contains(search, want) {
			t.Errorf("search script missing %q:\n%s", want, search)
		}
	}

	for _, want := range []string{
		"--bind=/output/search:/input", // chained from the search stage
		"/output/predict",
		"#SBATCH --gpus=1",
		"#SBATCH --partition=accel",
		"#SBATCH --cpus-per-task=1",
		"#SBATCH --mem-per-cpu=8GB",
		"#SBATCH --time=04:00:00",
	} {
		if !strings.Contains(predict, want) {
			t.Errorf("predict script missing %q:\n%s", want, predict)
		}
	}

	if strings.Contains(predict, "--partition=normal") {
		t.Errorf("predict script must run on the GPU partition:\n%s", predict)
	}
}

func TestRunDefaultAndSuppliedJobNames(t *testing.T) {
	params := testSetup(t)
	p := testPipeline(t)

	if err := p.Run(params); err != nil {
		t.Fatalf("Run: %v", err)
	}
	search := readScript(t, params.OutputDir, "run_colabfold_search.sh")
	if !strings.Contains(search, "#SBATCH --job-name=colabfold_search\n") {
		t.Errorf("default job name missing:\n%s", search)
	}

	params.JobName = "p53 dimer"
	params.Force = true
	if err := p.Run(params); err != nil {
		t.Fatalf("Run with job name: %v", err)
	}
	search = readScript(t, params.OutputDir, "run_colabfold_search.sh")
	if !strings.Contains(search, "#SBATCH --job-name='p53 dimer_colabfold_search'\n") {
		t.Errorf("supplied job name not suffixed and quoted:\n%s", search)
	}
	predict := readScript(t, params.OutputDir, "run_colabfold_batch.sh")
	if !strings.Contains(predict, "#SBATCH --job-name='p53 dimer_colabfold_batch'\n") {
		t.Errorf("predict job name not suffixed and quoted:\n%s", predict)
	}
}

func TestRunRefusesNonEmptyOutput(t *testing.T) {
	params := testSetup(t)
	p := testPipeline(t)

	if err := os.Mkdir(params.OutputDir, 0755); err != nil {
		t.Fatal(err)
	}
	leftover := filepath.Join(params.OutputDir, "results.txt")
	if err := os.WriteFile(leftover, []byte("old results"), 0644); err != nil {
		t.Fatal(err)
	}

	err := p.Run(params)
	if !errors.Is(err, ErrOutputNotEmpty) {
		t.Fatalf("Run = %v, want ErrOutputNotEmpty", err)
	}

	// Neither script may exist after a refused run.
	for _, name := range []string{"run_colabfold_search.sh", "run_colabfold_batch.sh"} {
		if _, err := os.Stat(filepath.Join(params.OutputDir, name)); !os.IsNotExist(err) {
			t.Errorf("script %q written despite refusal", name)
		}
	}
}

func TestRunForceOverwritesStaleScripts(t *testing.T) {
	params := testSetup(t)
	p := testPipeline(t)

	if err := os.Mkdir(params.OutputDir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"run_colabfold_search.sh", "run_colabfold_batch.sh"} {
		if err := os.WriteFile(filepath.Join(params.OutputDir, name), []byte("stale"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	params.Force = true
	if err := p.Run(params); err != nil {
		t.Fatalf("Run with force: %v", err)
	}

	for _, name := range []string{"run_colabfold_search.sh", "run_colabfold_batch.sh"} {
		content := readScript(t, params.OutputDir, name)
		if content == "stale" {
			t.Errorf("script %q not regenerated", name)
		}
		if !strings.HasPrefix(content, "#!/usr/bin/env bash\n") {
			t.Errorf("script %q missing shebang:\n%s", name, content)
		}
	}
}

func TestRunForceWithoutExistingScripts(t *testing.T) {
	params := testSetup(t)
	params.Force = true
	p := testPipeline(t)

	// Missing files are not an error under force.
	if err := p.Run(params); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func readScript(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("reading %s: %v", name, err)
	}
	return string(data)
}
