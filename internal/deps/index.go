package deps

import (
	"slices"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

// Index tracks the packages imported by each file of a project.
type Index struct {
	mu    sync.RWMutex
	files map[string][]string
}

func NewIndex() *Index {
	return &Index{files: make(map[string][]string)}
}

// Update rescans path. Non-script files are ignored. It reports whether the
// project-wide package set changed.
func (x *Index) Update(path string, content []byte) bool {
	if !IsScript(path) {
		return false
	}
	pkgs := Scan(content)

	x.mu.Lock()
	defer x.mu.Unlock()

	before := x.allLocked()
	if len(pkgs) == 0 {
		delete(x.files, path)
	} else {
		x.files[path] = pkgs
	}
	return !before.Equal(x.allLocked())
}

// Remove drops path. It reports whether the project-wide package set changed.
func (x *Index) Remove(path string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.files[path]; !ok {
		return false
	}
	before := x.allLocked()
	delete(x.files, path)
	return !before.Equal(x.allLocked())
}

// Packages returns every package imported anywhere in the project, sorted.
func (x *Index) Packages() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := x.allLocked().ToSlice()
	slices.Sort(out)
	return out
}

// Files returns path -> packages for every file that imports something.
func (x *Index) Files() map[string][]string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make(map[string][]string, len(x.files))
	for p, pkgs := range x.files {
		out[p] = slices.Clone(pkgs)
	}
	return out
}

func (x *Index) allLocked() mapset.Set[string] {
	all := mapset.NewThreadUnsafeSet[string]()
	for _, pkgs := range x.files {
		all.Append(pkgs...)
	}
	return all
}
