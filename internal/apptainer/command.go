package apptainer

import (
	"fmt"
	"path"
)

// Command is the ordered argument list for one containerized tool invocation.
// The first two tokens are always "apptainer run".
type Command []string

// Marker tokens that open every generated command.
const (
	Runtime = "apptainer"
	RunMode = "run"
)

// SearchCommand builds the argument list for the colabfold_search stage and
// returns it together with the container-side folder the stage writes to.
// MMSEQS_IGNORE_INDEX must be set or mmseqs mmaps the prebuilt index and
// produces wrong results on cache folders copied between filesystems.
func SearchCommand(image, cacheDir, queryFile, outputDir string, ncpus int) (Command, string) {
	cache := BindCache(cacheDir)
	query, queryDest := BindQueryFile(queryFile)
	output := BindOutputFolder(outputDir)

	searchOut := path.Join(OutputMount, "search")

	cmd := Command{
		Runtime,
		RunMode,
		cache.Flag(),
		query.Flag(),
		output.Flag(),
		image,
		"--env=MMSEQS_IGNORE_INDEX=1",
		"colabfold_search",
		fmt.Sprintf("--threads=%d", ncpus),
		queryDest,
		CacheMount,
		searchOut,
	}

	return cmd, searchOut
}

// BatchCommand builds the argument list for the colabfold_batch prediction
// stage. The input folder is typically the search stage's output folder.
// colabfold_batch exposes no thread-count flag.
func BatchCommand(image, cacheDir, inputDir, outputDir string) (Command, string) {
	cache := BindCache(cacheDir)
	input := BindInputFolder(inputDir)
	output := BindOutputFolder(outputDir)

	predictOut := path.Join(OutputMount, "predict")

	cmd := Command{
		Runtime,
		RunMode,
		cache.Flag(),
		input.Flag(),
		output.Flag(),
		image,
		"colabfold_batch",
		InputMount,
		predictOut,
	}

	return cmd, predictOut
}
