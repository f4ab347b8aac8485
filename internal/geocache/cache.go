// Package geocache persists geocoding outcomes keyed by normalized location
// so that no location is sent to a provider twice.
package geocache

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"maps"
	"os"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/resort-geocoder/internal/fileutil"
)

// ErrCorrupt is returned by Load when the cache file exists but cannot be parsed.
var ErrCorrupt = eris.New("geocache: corrupt cache file")

// Coordinates is a resolved point.
type Coordinates struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	MatchedQuery string  `json:"matched_query,omitempty"`
}

// Entry is either a successful resolution or a FailureMarker.
type Entry struct {
	Coords *Coordinates
}

// FailureMarker records that every candidate for a location was exhausted.
var FailureMarker = Entry{}

// Success builds an entry holding coordinates.
func Success(lat, lon float64, matchedQuery string) Entry {
	return Entry{Coords: &Coordinates{Latitude: lat, Longitude: lon, MatchedQuery: matchedQuery}}
}

// Failed reports whether e is a FailureMarker.
func (e Entry) Failed() bool { return e.Coords == nil }

// MarshalJSON writes coordinates as an object and a FailureMarker as null.
func (e Entry) MarshalJSON() ([]byte, error) {
	if e.Coords == nil {
		return []byte("null"), nil
	}
	return json.Marshal(e.Coords)
}

// UnmarshalJSON accepts null, an object, or the legacy [lat, lon] pair.
func (e *Entry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		e.Coords = nil
		return nil
	case len(data) > 0 && data[0] == '[':
		var pair []float64
		if err := json.Unmarshal(data, &pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return eris.Errorf("geocache: coordinate pair has %d elements", len(pair))
		}
		e.Coords = &Coordinates{Latitude: pair[0], Longitude: pair[1]}
		return nil
	default:
		var c Coordinates
		if err := json.Unmarshal(data, &c); err != nil {
			return err
		}
		e.Coords = &c
		return nil
	}
}

// Stats summarises cache contents.
type Stats struct {
	Entries   int `json:"entries"`
	Successes int `json:"successes"`
	Failures  int `json:"failures"`
}

// Cache maps normalized location strings to entries. It is owned by a single
// goroutine and is not safe for concurrent use.
type Cache struct {
	path    string
	entries map[string]Entry
	dirty   int
}

// New returns an empty cache bound to path. Call Load to read it.
func New(path string) *Cache {
	return &Cache{path: path, entries: make(map[string]Entry)}
}

// Open creates a cache bound to path and loads it.
func Open(path string) (*Cache, error) {
	c := New(path)
	if err := c.Load(); err != nil {
		return nil, err
	}
	return c, nil
}

// Path returns the backing file path.
func (c *Cache) Path() string { return c.path }

// Load replaces the in-memory contents with the file. A missing file yields
// an empty cache; an unparseable file returns ErrCorrupt.
func (c *Cache) Load() error {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		c.entries = make(map[string]Entry)
		c.dirty = 0
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "geocache: read %s", c.path)
	}

	entries := make(map[string]Entry)
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &entries); err != nil {
			return eris.Wrapf(ErrCorrupt, "%s: %v", c.path, err)
		}
	}

	c.entries = entries
	c.dirty = 0
	zap.L().Debug("geocache: loaded", zap.String("path", c.path), zap.Int("entries", len(entries)))
	return nil
}

// Get returns the entry for key, if any.
func (c *Cache) Get(key string) (Entry, bool) {
	e, ok := c.entries[key]
	return e, ok
}

// Put stores entry under key, overwriting any previous value.
func (c *Cache) Put(key string, e Entry) {
	c.entries[key] = e
	c.dirty++
}

// Delete removes key and reports whether it was present.
func (c *Cache) Delete(key string) bool {
	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	c.dirty++
	return true
}

// DeleteFailures removes every FailureMarker and returns how many were removed.
func (c *Cache) DeleteFailures() int {
	var n int
	for k, e := range c.entries {
		if e.Failed() {
			delete(c.entries, k)
			n++
		}
	}
	c.dirty += n
	return n
}

// Clear removes every entry.
func (c *Cache) Clear() int {
	n := len(c.entries)
	c.entries = make(map[string]Entry)
	c.dirty += n
	return n
}

// Len returns the number of entries.
func (c *Cache) Len() int { return len(c.entries) }

// Dirty returns the number of modifications since the last Load or Flush.
func (c *Cache) Dirty() int { return c.dirty }

// Keys returns all keys in sorted order.
func (c *Cache) Keys() []string {
	return slices.Sorted(maps.Keys(c.entries))
}

// Stats counts successes and failures.
func (c *Cache) Stats() Stats {
	s := Stats{Entries: len(c.entries)}
	for _, e := range c.entries {
		if e.Failed() {
			s.Failures++
		} else {
			s.Successes++
		}
	}
	return s
}

// Rekey rewrites every key through normalize. When several keys collapse to
// one, a success wins over a FailureMarker; among successes the first key in
// sorted order wins. It returns the number of keys that changed or merged.
func (c *Cache) Rekey(normalize func(string) string) int {
	out := make(map[string]Entry, len(c.entries))
	var changed int
	for _, k := range c.Keys() {
		e := c.entries[k]
		nk := normalize(k)
		if nk != k {
			changed++
		}
		prev, ok := out[nk]
		if !ok || (prev.Failed() && !e.Failed()) {
			out[nk] = e
		}
	}
	c.entries = out
	c.dirty += changed
	return changed
}

// Flush writes the cache atomically: a temp file in the same directory is
// written, synced, and renamed over the target.
func (c *Cache) Flush() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return eris.Wrap(err, "geocache: marshal")
	}

	if err := fileutil.WriteAtomic(c.path, append(data, '\n')); err != nil {
		return eris.Wrap(err, "geocache: flush")
	}

	zap.L().Debug("geocache: flushed",
		zap.String("path", c.path),
		zap.Int("entries", len(c.entries)),
		zap.Int("changes", c.dirty),
	)
	c.dirty = 0
	return nil
}
