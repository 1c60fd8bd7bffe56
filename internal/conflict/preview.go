package conflict

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	difflib "github.com/pmezard/go-difflib/difflib"
)

const (
	DefaultPreviewBytes = 256 * 1024
	defaultContext      = 3
	defaultCacheSize    = 512
)

// Preview produces a unified diff between the local and remote content of path.
// Inputs larger than maxBytes together produce a placeholder.
func Preview(path string, local, remote []byte, maxBytes int) string {
	if maxBytes <= 0 {
		maxBytes = DefaultPreviewBytes
	}
	if len(local)+len(remote) > maxBytes {
		return omitted(path)
	}

	u := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(local)),
		B:        difflib.SplitLines(string(remote)),
		FromFile: "local/" + path,
		ToFile:   "remote/" + path,
		Context:  defaultContext,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil || strings.TrimSpace(s) == "" {
		return omitted(path)
	}
	return s
}

func omitted(path string) string {
	return fmt.Sprintf("--- local/%s\n+++ remote/%s\n@@ diff omitted @@\n", path, path)
}

// ContentCache keeps recently synced content so conflicts on those paths can show a diff.
type ContentCache struct {
	cache *lru.Cache[string, []byte]
}

func NewContentCache(size int) *ContentCache {
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		panic(err)
	}
	return &ContentCache{cache: cache}
}

func (c *ContentCache) Put(path string, content []byte) {
	if len(content) > DefaultPreviewBytes {
		c.cache.Remove(path)
		return
	}
	c.cache.Add(path, content)
}

func (c *ContentCache) Get(path string) ([]byte, bool) {
	return c.cache.Get(path)
}

func (c *ContentCache) Remove(path string) {
	c.cache.Remove(path)
}

func (c *ContentCache) Purge() {
	c.cache.Purge()
}
