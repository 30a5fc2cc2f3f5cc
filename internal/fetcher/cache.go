package fetcher

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Cache stores fetched pages as one json file per url.
type Cache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

type cacheEntry struct {
	Page      Page      `json:"page"`
	FetchedAt time.Time `json:"fetched_at"`
}

// NewCache creates dir when needed. A ttl of zero keeps entries forever.
func NewCache(dir string, ttl time.Duration) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("cache dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir, ttl: ttl, now: time.Now}, nil
}

func (c *Cache) path(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".json")
}

// Get returns a fresh cached page. Expired entries are removed.
func (c *Cache) Get(rawURL string) (Page, bool) {
	path := c.path(rawURL)
	data, err := os.ReadFile(path)
	if err != nil {
		return Page{}, false
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil || entry.Page.URL != rawURL {
		return Page{}, false
	}

	if c.ttl > 0 && c.now().Sub(entry.FetchedAt) > c.ttl {
		_ = os.Remove(path)
		return Page{}, false
	}
	return entry.Page, true
}

func (c *Cache) Put(page Page) error {
	data, err := json.Marshal(cacheEntry{Page: page, FetchedAt: c.now()})
	if err != nil {
		return err
	}

	path := c.path(page.URL)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return os.Rename(tmp, path)
}
