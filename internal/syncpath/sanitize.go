package syncpath

import (
	"errors"
	"fmt"
	"strings"
)

// Substitute replaces every character that is not safe across filesystems and URLs.
const Substitute = '_'

var (
	ErrEmptyName     = errors.New("file name is empty after sanitization")
	ErrNameCollision = errors.New("sanitized file name collides with an existing file")
)

// SanitizeError reports a name that cannot be brought into the sync namespace.
type SanitizeError struct {
	Raw       string
	Sanitized string
	Err       error
}

func (e *SanitizeError) Error() string {
	if e.Sanitized == "" {
		return fmt.Sprintf("sanitize %q: %v", e.Raw, e.Err)
	}
	return fmt.Sprintf("sanitize %q -> %q: %v", e.Raw, e.Sanitized, e.Err)
}

func (e *SanitizeError) Unwrap() error {
	return e.Err
}

// SanitizeFileName maps a single path segment onto [A-Za-z0-9._-], replacing every
// other byte sequence (one per rune) with Substitute. Names that are empty or reduce
// to "." or ".." are rejected with ErrEmptyName.
func SanitizeFileName(name string) (string, error) {
	if strings.ContainsAny(name, "/\\") {
		return "", &SanitizeError{Raw: name, Err: fmt.Errorf("%w: name contains a separator", ErrEmptyName)}
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if isSafe(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(Substitute)
		}
	}

	clean := b.String()
	switch clean {
	case "", ".", "..":
		return "", &SanitizeError{Raw: name, Sanitized: clean, Err: ErrEmptyName}
	}
	return clean, nil
}

// NeedsSanitize reports whether name would change under SanitizeFileName.
func NeedsSanitize(name string) bool {
	for _, r := range name {
		if !isSafe(r) {
			return true
		}
	}
	return false
}

func isSafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '-', r == '_':
		return true
	}
	return false
}
