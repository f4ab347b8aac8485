package geocache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "geocode_cache.json"))
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Load())
	assert.Equal(t, 0, c.Len())
}

func TestLoad_Corrupt(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, os.WriteFile(c.Path(), []byte(`{"Negril, Jamaica": [18.2`), 0o644))

	err := c.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestLoad_EmptyFile(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, os.WriteFile(c.Path(), []byte("  \n"), 0o644))

	require.NoError(t, c.Load())
	assert.Equal(t, 0, c.Len())
}

func TestLoad_LegacyPairs(t *testing.T) {
	c := newTestCache(t)
	legacy := `{
		"Princeville, Kauai, Hawaii": [22.2236, -159.4853],
		"Atlantis": null
	}`
	require.NoError(t, os.WriteFile(c.Path(), []byte(legacy), 0o644))

	require.NoError(t, c.Load())

	e, ok := c.Get("Princeville, Kauai, Hawaii")
	require.True(t, ok)
	require.False(t, e.Failed())
	assert.InDelta(t, 22.2236, e.Coords.Latitude, 1e-9)
	assert.InDelta(t, -159.4853, e.Coords.Longitude, 1e-9)

	e, ok = c.Get("Atlantis")
	require.True(t, ok)
	assert.True(t, e.Failed())
}

func TestLoad_BadPairLength(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, os.WriteFile(c.Path(), []byte(`{"x": [1, 2, 3]}`), 0o644))

	assert.ErrorIs(t, c.Load(), ErrCorrupt)
}

func TestPutFlushLoad_RoundTrip(t *testing.T) {
	c := newTestCache(t)
	c.Put("Negril, Jamaica", Success(18.268389, -78.347393, "Negril, Jamaica"))
	c.Put("Puerto del Carmen, Lanzarote, Canary Islands, Spain", Success(28.9236, -13.6654, "Puerto del Carmen, Spain"))
	c.Put("Atlantis", FailureMarker)
	assert.Equal(t, 3, c.Dirty())

	require.NoError(t, c.Flush())
	assert.Equal(t, 0, c.Dirty())

	reloaded, err := Open(c.Path())
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.Len())

	e, ok := reloaded.Get("Negril, Jamaica")
	require.True(t, ok)
	assert.Equal(t, 18.268389, e.Coords.Latitude)
	assert.Equal(t, -78.347393, e.Coords.Longitude)

	e, ok = reloaded.Get("Puerto del Carmen, Lanzarote, Canary Islands, Spain")
	require.True(t, ok)
	assert.Equal(t, "Puerto del Carmen, Spain", e.Coords.MatchedQuery)

	e, ok = reloaded.Get("Atlantis")
	require.True(t, ok)
	assert.True(t, e.Failed())

	_, ok = reloaded.Get("Nowhere")
	assert.False(t, ok)
}

func TestFlush_WritesNullForFailures(t *testing.T) {
	c := newTestCache(t)
	c.Put("Atlantis", FailureMarker)
	require.NoError(t, c.Flush())

	data, err := os.ReadFile(c.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Atlantis": null`)
}

func TestFlush_LeavesNoTempFiles(t *testing.T) {
	c := newTestCache(t)
	c.Put("Negril, Jamaica", Success(18.27, -78.35, ""))
	require.NoError(t, c.Flush())
	require.NoError(t, c.Flush())

	entries, err := os.ReadDir(filepath.Dir(c.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "geocode_cache.json", entries[0].Name())
}

func TestFlush_CreatesDirectory(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "nested", "out", "cache.json"))
	c.Put("a", FailureMarker)
	require.NoError(t, c.Flush())

	_, err := os.Stat(c.Path())
	assert.NoError(t, err)
}

func TestPut_Overwrites(t *testing.T) {
	c := newTestCache(t)
	c.Put("k", FailureMarker)
	c.Put("k", Success(1, 2, ""))

	e, ok := c.Get("k")
	require.True(t, ok)
	assert.False(t, e.Failed())
	assert.Equal(t, 1, c.Len())
}

func TestDeleteAndClear(t *testing.T) {
	c := newTestCache(t)
	c.Put("a", Success(1, 1, ""))
	c.Put("b", FailureMarker)
	c.Put("c", FailureMarker)

	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))

	assert.Equal(t, 2, c.DeleteFailures())
	assert.Equal(t, 0, c.Len())

	c.Put("d", Success(1, 1, ""))
	assert.Equal(t, 1, c.Clear())
	assert.Equal(t, 0, c.Len())
}

func TestStats(t *testing.T) {
	c := newTestCache(t)
	c.Put("a", Success(1, 1, ""))
	c.Put("b", Success(2, 2, ""))
	c.Put("c", FailureMarker)

	assert.Equal(t, Stats{Entries: 3, Successes: 2, Failures: 1}, c.Stats())
}

func TestRekey_SuccessWinsOverFailure(t *testing.T) {
	c := newTestCache(t)
	c.Put("Princeville, Kaua`i, Hawai`i", FailureMarker)
	c.Put("Princeville, Kauai, Hawaii", Success(22.2236, -159.4853, ""))
	c.Put("negril,jamaica", Success(18.27, -78.35, ""))

	changed := c.Rekey(func(s string) string {
		s = strings.ReplaceAll(s, "`", "")
		return strings.ReplaceAll(s, ",jamaica", ", jamaica")
	})

	assert.Equal(t, 2, changed)
	assert.Equal(t, 2, c.Len())

	e, ok := c.Get("Princeville, Kauai, Hawaii")
	require.True(t, ok)
	assert.False(t, e.Failed())

	_, ok = c.Get("negril, jamaica")
	assert.True(t, ok)
}

func TestKeysSorted(t *testing.T) {
	c := newTestCache(t)
	c.Put("b", FailureMarker)
	c.Put("a", FailureMarker)
	c.Put("c", FailureMarker)

	assert.Equal(t, []string{"a", "b", "c"}, c.Keys())
}
