package transfer

import (
	"os"
	"sync"
)

// tmpFiles tracks in-progress temporary files so they can be removed if the
// process is interrupted mid-copy.
var tmpFiles = &tmpRegistry{}

type tmpRegistry struct {
	paths map[string]struct{}
	mu    sync.Mutex
}

func (r *tmpRegistry) add(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paths == nil {
		r.paths = make(map[string]struct{})
	}
	r.paths[path] = struct{}{}
}

func (r *tmpRegistry) remove(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.paths, path)
}

// CleanupTempFiles removes every temporary download file that has not yet
// been renamed into place.
func CleanupTempFiles() {
	tmpFiles.mu.Lock()
	paths := make([]string, 0, len(tmpFiles.paths))
	for p := range tmpFiles.paths {
		paths = append(paths, p)
	}
	tmpFiles.paths = nil
	tmpFiles.mu.Unlock()

	for _, p := range paths {
		_ = os.Remove(p)
	}
}
