package syncpath

import (
	"path"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

var DefaultExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".json", ".css", ".md"}

// Extensions is the allowlist of file extensions that take part in sync.
type Extensions struct {
	set mapset.Set[string]
}

func NewExtensions(exts ...string) *Extensions {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	set := mapset.NewThreadUnsafeSet[string]()
	for _, ext := range exts {
		if ext = NormalizeExt(ext); ext != "" {
			set.Add(ext)
		}
	}
	return &Extensions{set: set}
}

// NormalizeExt lowercases ext and ensures a leading dot.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext == "." {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// IsSupported reports whether the file at p has an allowed extension.
func (e *Extensions) IsSupported(p string) bool {
	ext := strings.ToLower(path.Ext(Normalize(p)))
	if ext == "" {
		return false
	}
	return e.set.Contains(ext)
}

// List returns the allowlist in sorted order.
func (e *Extensions) List() []string {
	out := e.set.ToSlice()
	slices.Sort(out)
	return out
}
