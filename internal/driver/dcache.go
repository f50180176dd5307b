package driver

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"eva/internal/diag"
	"eva/internal/source"
)

// Current schema version - increment when CheckPayload format changes.
const checkCacheSchemaVersion uint16 = 1

// CheckCache stores check results keyed by source content hash, so
// `eva check` can skip files that have not changed. Only diagnostics
// are cached, never compiled code.
// Thread-safe for concurrent access.
type CheckCache struct {
	mu  sync.RWMutex
	dir string
}

// CachedDiagnostic is one diagnostic flattened for storage.
type CachedDiagnostic struct {
	Severity uint8
	Code     uint16
	Message  string
	Line     uint32
	Col      uint32
}

// CheckPayload is the cached result of checking one file.
type CheckPayload struct {
	// Schema version for safe invalidation when the format changes.
	Schema uint16

	Path        string
	Diagnostics []CachedDiagnostic
}

// OpenCheckCache initializes a cache at the standard location.
func OpenCheckCache(app string) (*CheckCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, app, "check")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &CheckCache{dir: dir}, nil
}

func (c *CheckCache) pathFor(key [32]byte) string {
	return filepath.Join(c.dir, hex.EncodeToString(key[:])+".msgpack")
}

// Load returns the cached payload for the content hash, if present and
// schema-compatible.
func (c *CheckCache) Load(key [32]byte) (*CheckPayload, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.pathFor(key))
	if err != nil {
		return nil, false
	}
	var payload CheckPayload
	if err := msgpack.Unmarshal(data, &payload); err != nil {
		return nil, false
	}
	if payload.Schema != checkCacheSchemaVersion {
		return nil, false
	}
	return &payload, true
}

// Store writes the payload for the content hash.
func (c *CheckCache) Store(key [32]byte, payload *CheckPayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	payload.Schema = checkCacheSchemaVersion
	data, err := msgpack.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal check payload: %w", err)
	}

	tmp := c.pathFor(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.pathFor(key))
}

// PayloadFromResult flattens a result's diagnostics for caching.
func PayloadFromResult(path string, res *Result) *CheckPayload {
	payload := &CheckPayload{Path: path}
	for _, d := range res.Bag.Items() {
		line, col := uint32(0), uint32(0)
		if res.FileSet != nil {
			start, _ := res.FileSet.Resolve(d.Primary)
			line, col = start.Line, start.Col
		}
		payload.Diagnostics = append(payload.Diagnostics, CachedDiagnostic{
			Severity: uint8(d.Severity),
			Code:     uint16(d.Code),
			Message:  d.Message,
			Line:     line,
			Col:      col,
		})
	}
	return payload
}

// HasErrors reports whether the cached result carried errors.
func (p *CheckPayload) HasErrors() bool {
	for _, d := range p.Diagnostics {
		if diag.Severity(d.Severity) >= diag.SevError {
			return true
		}
	}
	return false
}

// ContentKey hashes a file the way the cache keys it.
func ContentKey(path string) ([32]byte, error) {
	fs := source.NewFileSet()
	id, err := fs.Load(path)
	if err != nil {
		return [32]byte{}, err
	}
	return fs.Get(id).Hash, nil
}
