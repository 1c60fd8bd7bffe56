package syncpath

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var ErrOutsideRoot = errors.New("path is outside the project root")

// Normalize rewrites path into its canonical slash form.
// Backslashes become forward slashes, redundant separators collapse, "." segments are
// dropped and each ".." pops one segment. A ".." with nothing left to pop is ignored.
// A leading "/" is kept. Normalize never touches the filesystem.
func Normalize(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	absolute := strings.HasPrefix(path, "/")

	stack := make([]string, 0, strings.Count(path, "/")+1)
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, seg)
		}
	}

	joined := strings.Join(stack, "/")
	if absolute {
		return "/" + joined
	}
	if joined == "" {
		return "."
	}
	return joined
}

// Canonical returns the lookup key for path: the normalized path with a sanitized file name.
// Different spellings of the same logical file produce the same key.
func Canonical(path string) string {
	norm := Normalize(path)
	i := strings.LastIndex(norm, "/")
	clean, err := SanitizeFileName(norm[i+1:])
	if err != nil {
		return norm
	}
	return norm[:i+1] + clean
}

// RelFromRoot converts an OS path under root into a normalized relative path.
// The root itself and anything outside it are rejected.
func RelFromRoot(root, absPath string) (string, error) {
	rel, err := filepath.Rel(root, absPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, absPath)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, absPath)
	}
	rel = Normalize(rel)
	if rel == "." {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, absPath)
	}
	return rel, nil
}

// ToOS joins a canonical relative path onto root using the OS separator.
// Leading slashes and ".." segments in rel cannot escape root.
func ToOS(root, rel string) string {
	rel = strings.TrimPrefix(Normalize("/"+rel), "/")
	return filepath.Join(root, filepath.FromSlash(rel))
}
