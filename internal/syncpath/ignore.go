package syncpath

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFileName is read from the project root and appended to the defaults.
const IgnoreFileName = ".codelinkignore"

var defaultIgnoreLines = []string{
	// codelink
	".codelink/",
	"*.codelink-tmp",
	// js
	"node_modules/",
	"dist/",
	"build/",
	".next/",
	".turbo/",
	".cache/",
	// vcs
	".git/",
	// IDE/Editor-specific
	".vscode/",
	".idea/",
	"*.swp",
	"*.swo",
	"*~",
	// OS-specific
	".DS_Store",
	"Thumbs.db",
}

type IgnoreList struct {
	baseDir string
	ignore  *gitignore.GitIgnore
}

func NewIgnoreList(baseDir string) *IgnoreList {
	return &IgnoreList{baseDir: baseDir, ignore: gitignore.CompileIgnoreLines(defaultIgnoreLines...)}
}

// Load (re)compiles the rules from the defaults and the project's ignore file.
func (s *IgnoreList) Load() {
	ignorePath := filepath.Join(s.baseDir, IgnoreFileName)
	lines := append([]string{}, defaultIgnoreLines...)

	file, err := os.Open(ignorePath)
	if err == nil {
		defer file.Close()

		rules := 0
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			lines = append(lines, line)
			rules++
		}
		if err := scanner.Err(); err != nil {
			slog.Warn("read ignore file", "path", ignorePath, "error", err)
		} else {
			slog.Debug("loaded ignore file", "path", ignorePath, "rules", rules)
		}
	} else if !os.IsNotExist(err) {
		slog.Warn("open ignore file", "path", ignorePath, "error", err)
	}

	s.ignore = gitignore.CompileIgnoreLines(lines...)
}

// ShouldIgnore accepts either a path relative to the base dir or an absolute path under it.
func (s *IgnoreList) ShouldIgnore(path string) bool {
	rel, ok := s.rel(path)
	return ok && s.ignore.MatchesPath(rel)
}

// ShouldIgnoreDir is ShouldIgnore for a directory, so rules like "dist/" apply to it.
func (s *IgnoreList) ShouldIgnoreDir(path string) bool {
	rel, ok := s.rel(path)
	return ok && s.ignore.MatchesPath(rel+"/")
}

func (s *IgnoreList) rel(path string) (string, bool) {
	if filepath.IsAbs(path) {
		rel, err := RelFromRoot(s.baseDir, path)
		if err != nil {
			return "", false
		}
		return rel, true
	}
	rel := Normalize(path)
	return rel, rel != "." && !strings.HasPrefix(rel, "/")
}
