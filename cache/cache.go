package cache

import (
	"crypto/sha256"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"boxout/utils"
)

// Cache is a best-effort file-backed store for upstream JSON responses.
// Entries are keyed by a digest of the endpoint and its sorted query
// parameters, so identical requests always land on the same file. Writes go
// through a temp file and a rename; concurrent writers for the same key race
// harmlessly since both bodies are byte-identical.
type Cache struct {
	dir string
}

func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) path(endpoint string, params url.Values) string {
	sum := sha256.Sum256([]byte(endpoint + "?" + params.Encode()))
	return filepath.Join(c.dir, fmt.Sprintf("%x.json", sum))
}

// Get returns the cached body for the request, if any. A missing or
// unreadable file is not an error, the caller just goes to the network.
func (c *Cache) Get(endpoint string, params url.Values) ([]byte, bool) {
	body, err := os.ReadFile(c.path(endpoint, params))
	if err != nil {
		return nil, false
	}
	return body, true
}

func (c *Cache) Put(endpoint string, params url.Values, body []byte) error {
	tmp, err := os.CreateTemp(c.dir, "put-*")
	if err != nil {
		return utils.ErrorWithTrace(err)
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return utils.ErrorWithTrace(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return utils.ErrorWithTrace(err)
	}
	if err := os.Rename(tmp.Name(), c.path(endpoint, params)); err != nil {
		_ = os.Remove(tmp.Name())
		return utils.ErrorWithTrace(err)
	}
	return nil
}

func (c *Cache) prune(maxAge time.Duration) error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return utils.ErrorWithTrace(err)
	}
	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(c.dir, e.Name()))
		}
	}
	return nil
}

// Janitor drops cache files older than maxAge on a fixed interval.
func (c *Cache) Janitor(interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	for range ticker.C {
		if err := c.prune(maxAge); err != nil {
			log.Println(err)
		}
	}
}
