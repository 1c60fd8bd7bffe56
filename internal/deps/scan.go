// Package deps pulls package names out of import declarations in script files.
// It is a regex scanner, not a parser: it looks at import, export-from, require
// and dynamic import forms and nothing else.
package deps

import (
	"path"
	"regexp"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

var scriptExts = mapset.NewSet(".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs")

var (
	// import x from 'a' | import { x } from 'a' | import * as x from 'a' | import type { X } from 'a'
	reImportFrom = regexp.MustCompile(`(?m)^\s*import\s+(?:type\s+)?[^'"]*?\s+from\s*['"]([^'"]+)['"]`)
	// import 'a'
	reImportBare = regexp.MustCompile(`(?m)^\s*import\s*['"]([^'"]+)['"]`)
	// export { x } from 'a' | export * from 'a'
	reExportFrom = regexp.MustCompile(`(?m)^\s*export\s+(?:type\s+)?(?:\*|\{[^}]*\})(?:\s+as\s+[\w$]+)?\s*from\s*['"]([^'"]+)['"]`)
	// require('a') | import('a')
	reCall = regexp.MustCompile(`\b(?:require|import)\s*\(\s*['"]([^'"]+)['"]\s*\)`)
)

// IsScript reports whether p is a file the scanner understands.
func IsScript(p string) bool {
	return scriptExts.Contains(strings.ToLower(path.Ext(p)))
}

// Scan returns the sorted, de-duplicated package names imported by content.
// Relative, absolute, URL and node: builtin specifiers are skipped.
func Scan(content []byte) []string {
	found := mapset.NewThreadUnsafeSet[string]()
	for _, re := range []*regexp.Regexp{reImportFrom, reImportBare, reExportFrom, reCall} {
		for _, m := range re.FindAllSubmatch(content, -1) {
			if name, ok := PackageName(string(m[1])); ok {
				found.Add(name)
			}
		}
	}

	out := found.ToSlice()
	slices.Sort(out)
	return out
}

// PackageName maps an import specifier to the package it names.
// "@scope/pkg/sub" becomes "@scope/pkg" and "pkg/sub" becomes "pkg".
func PackageName(spec string) (string, bool) {
	spec = strings.TrimSpace(spec)
	switch {
	case spec == "":
		return "", false
	case strings.HasPrefix(spec, "."), strings.HasPrefix(spec, "/"):
		return "", false
	case strings.Contains(spec, "://"), strings.HasPrefix(spec, "node:"), strings.HasPrefix(spec, "data:"):
		return "", false
	case strings.HasPrefix(spec, "#"), strings.HasPrefix(spec, "~/"):
		// subpath imports and editor aliases point inside the project
		return "", false
	}

	parts := strings.Split(spec, "/")
	if strings.HasPrefix(spec, "@") {
		if len(parts) < 2 || parts[1] == "" {
			return "", false
		}
		return parts[0] + "/" + parts[1], true
	}
	return parts[0], true
}
