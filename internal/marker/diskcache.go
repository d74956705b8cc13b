package marker

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"rivet/internal/actions"
	"rivet/internal/modgraph"
	"rivet/internal/outfs"
)

// Current schema version - increment when DiskPayload format changes
const diskCacheSchemaVersion uint16 = 1

// DiskCache stores extraction results by module content digest so unchanged
// modules are not re-parsed across builds. Thread-safe.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// DiskPayload is the on-disk record for one module.
type DiskPayload struct {
	// Schema version for safe invalidation when format changes
	Schema uint16

	Path        string
	ContentHash modgraph.Digest

	// Parallel slices, in marker order. Empty means "no actions".
	IDs   []string
	Names []string
}

// OpenDiskCache opens (creating if needed) a cache rooted at dir. An empty
// dir selects $XDG_CACHE_HOME/<app> (or ~/.cache/<app>).
func OpenDiskCache(dir, app string) (*DiskCache, error) {
	if dir == "" {
		base := os.Getenv("XDG_CACHE_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			base = filepath.Join(home, ".cache")
		}
		dir = filepath.Join(base, app)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

// Dir returns the cache root.
func (c *DiskCache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

func (c *DiskCache) pathFor(key modgraph.Digest) string {
	return filepath.Join(c.dir, "actions", hex.EncodeToString(key[:])+".mp")
}

// Put serializes and writes a payload to the disk cache.
func (c *DiskCache) Put(key modgraph.Digest, payload *DiskPayload) error {
	if c == nil {
		return nil
	}
	data, err := msgpack.Marshal(payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return outfs.WriteFile(c.pathFor(key), data, 0o644)
}

// Get reads and deserializes a payload. Returns false when absent or written
// by a different schema version.
func (c *DiskCache) Get(key modgraph.Digest, out *DiskPayload) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	if err := msgpack.NewDecoder(f).Decode(out); err != nil {
		return false, fmt.Errorf("decode cache entry: %w", err)
	}
	if out.Schema != diskCacheSchemaVersion || out.ContentHash != key {
		return false, nil
	}
	return true, nil
}

// DropAll invalidates the cache, useful after format changes.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		return err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	return os.RemoveAll(old)
}

func actionsToPayload(ident string, content modgraph.Digest, am *actions.ActionMap) *DiskPayload {
	payload := &DiskPayload{
		Schema:      diskCacheSchemaVersion,
		Path:        ident,
		ContentHash: content,
	}
	for _, a := range am.All() {
		payload.IDs = append(payload.IDs, string(a.ID))
		payload.Names = append(payload.Names, a.Name)
	}
	return payload
}

func payloadToActions(payload *DiskPayload) (*actions.ActionMap, bool) {
	if payload == nil || payload.Schema != diskCacheSchemaVersion || len(payload.IDs) != len(payload.Names) {
		return nil, false
	}
	if len(payload.IDs) == 0 {
		return nil, true
	}
	am := actions.NewActionMap()
	for i, id := range payload.IDs {
		if !am.Add(actions.ActionID(id), payload.Names[i]) {
			return nil, false
		}
	}
	return am, true
}
