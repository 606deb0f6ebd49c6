package util

import (
	"fmt"
	"os"
	"sort"
	"sync"
)

// StagingRegistry records the staging directories this process created and
// has not removed yet.
type StagingRegistry struct {
	mu   sync.Mutex
	dirs map[string]struct{}
}

func NewStagingRegistry() *StagingRegistry {
	return &StagingRegistry{dirs: map[string]struct{}{}}
}

// Staged is the registry shared by every chapter run of this process.
var Staged = NewStagingRegistry()

func (r *StagingRegistry) Track(dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirs[dir] = struct{}{}
}

func (r *StagingRegistry) Release(dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.dirs, dir)
}

// Dirs lists the tracked directories in lexical order.
func (r *StagingRegistry) Dirs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.dirs))
	for d := range r.dirs {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// RemoveAll deletes every tracked directory and forgets the ones that are
// gone. Directories of other processes sharing the same root are untouched.
func (r *StagingRegistry) RemoveAll() {
	for _, d := range r.Dirs() {
		if err := os.RemoveAll(d); err != nil {
			fmt.Printf("Error cleaning up %s: %v\n", d, err)
			continue
		}
		r.Release(d)
		fmt.Printf("Removed %s\n", d)
	}
}
