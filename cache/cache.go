// Package cache keeps rendered post views on disk so repeated reads of a post
// skip the database. Entries are dropped whenever the post changes.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

type ViewCache struct {
	dir    string
	maxAge time.Duration
}

// New returns a cache rooted at dir. A zero maxAge disables it.
func New(dir string, maxAge time.Duration) *ViewCache {
	return &ViewCache{dir: dir, maxAge: maxAge}
}

func (c *ViewCache) Enabled() bool {
	return c != nil && c.maxAge > 0
}

// Path returns the cache file for a post view.
func (c *ViewCache) Path(postID uint) string {
	hash := generateHash("post:" + strconv.FormatUint(uint64(postID), 10))
	return filepath.Join(c.dir, "posts", fmt.Sprintf("%d_%s.json", postID, hash[:16]))
}

func generateHash(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}

func (c *ViewCache) Write(postID uint, body []byte) error {
	if !c.Enabled() {
		return nil
	}
	if err := os.MkdirAll(filepath.Join(c.dir, "posts"), 0755); err != nil {
		return err
	}
	return os.WriteFile(c.Path(postID), body, 0644)
}

// Read returns the cached view if it exists and is younger than maxAge.
func (c *ViewCache) Read(postID uint) ([]byte, bool) {
	if !c.Enabled() {
		return nil, false
	}

	path := c.Path(postID)
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if time.Since(info.ModTime()) > c.maxAge {
		return nil, false
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return body, true
}

// Clear drops the cached view of a post. Missing entries are not an error.
func (c *ViewCache) Clear(postID uint) error {
	if c == nil {
		return nil
	}
	err := os.Remove(c.Path(postID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (c *ViewCache) ClearAll() error {
	if c == nil {
		return nil
	}
	return os.RemoveAll(filepath.Join(c.dir, "posts"))
}

// ClearOld removes entries older than maxAge.
func (c *ViewCache) ClearOld() error {
	if !c.Enabled() {
		return nil
	}

	root := filepath.Join(c.dir, "posts")
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		if time.Since(info.ModTime()) > c.maxAge {
			os.Remove(path)
		}
		return nil
	})
}
