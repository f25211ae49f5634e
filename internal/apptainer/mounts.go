// Package apptainer builds command lines that run ColabFold tools inside an
// Apptainer container, mapping host paths onto fixed container mount points.
package apptainer

import (
	"path"
	"path/filepath"
)

// Fixed container-side mount points. Host paths vary per run; these do not.
const (
	CacheMount  = "/tmp/cache"
	InputMount  = "/input"
	OutputMount = "/output"
)

// Bind describes a single host-to-container bind mount.
type Bind struct {
	Source   string // host path, resolved to absolute form
	Target   string // container path
	ReadOnly bool
}

// Flag renders the bind as an apptainer --bind argument.
func (b Bind) Flag() string {
	flag := "--bind=" + b.Source + ":" + b.Target
	if b.ReadOnly {
		flag += ":ro"
	}
	return flag
}

// BindCache maps a host cache folder onto the fixed cache mount, read-write.
func BindCache(hostDir string) Bind {
	return Bind{Source: resolve(hostDir), Target: CacheMount}
}

// BindQueryFile maps a host query file into the input mount, read-only,
// preserving its original filename. It returns the bind and the file's
// container-side path.
func BindQueryFile(hostFile string) (Bind, string) {
	src := resolve(hostFile)
	dest := path.Join(InputMount, filepath.Base(src))
	return Bind{Source: src, Target: dest, ReadOnly: true}, dest
}

// BindInputFolder maps a host folder onto the input mount, read-write.
func BindInputFolder(hostDir string) Bind {
	return Bind{Source: resolve(hostDir), Target: InputMount}
}

// BindOutputFolder maps a host folder onto the output mount, read-write.
func BindOutputFolder(hostDir string) Bind {
	return Bind{Source: resolve(hostDir), Target: OutputMount}
}

func resolve(hostPath string) string {
	abs, err := filepath.Abs(hostPath)
	if err != nil {
		return filepath.Clean(hostPath)
	}
	return abs
}
