package cache

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/AdrienSalicis/WindDatas/internal/metrics"
	"github.com/AdrienSalicis/WindDatas/internal/models"
)

// Key identifies one raw provider payload: a station (or site, for gridded
// providers) and the date window requested.
type Key struct {
	Provider models.Provider
	Subject  string // station id, or site key for gridded providers
	Start    time.Time
	End      time.Time
}

func (k Key) name() string {
	subject := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, k.Subject)
	return fmt.Sprintf("%s_%s_%s.raw", subject, k.Start.Format("20060102"), k.End.Format("20060102"))
}

// Cache stores raw provider payloads on disk so re-runs over the same window
// skip the network.
type Cache struct {
	dir    string
	maxAge time.Duration
}

// New creates a payload cache under dir. A zero maxAge never expires entries.
func New(dir string, maxAge time.Duration) *Cache {
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("cache: could not create %s: %v", dir, err)
	}
	return &Cache{dir: dir, maxAge: maxAge}
}

func (c *Cache) path(k Key) string {
	return filepath.Join(c.dir, string(k.Provider), k.name())
}

// Get returns the cached payload if present and not stale.
func (c *Cache) Get(k Key) ([]byte, bool) {
	path := c.path(k)
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if c.maxAge > 0 && time.Since(info.ModTime()) > c.maxAge {
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	metrics.PayloadCacheHits.WithLabelValues(string(k.Provider)).Inc()
	return data, true
}

// Set stores a payload, replacing any previous entry atomically.
func (c *Cache) Set(k Key, data []byte) error {
	path := c.path(k)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return os.Rename(tmp, path)
}

// Delete removes an entry; a missing entry is not an error.
func (c *Cache) Delete(k Key) error {
	if err := os.Remove(c.path(k)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// List returns the cached entry names for a provider, sorted.
func (c *Cache) List(provider models.Provider) []string {
	entries, err := os.ReadDir(filepath.Join(c.dir, string(provider)))
	if err != nil {
		return nil
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".raw" {
			names = append(names, strings.TrimSuffix(entry.Name(), ".raw"))
		}
	}
	sort.Strings(names)
	return names
}
