package monitoring

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics()

	m.RecordOutcome("found")
	m.RecordOutcome("found")
	m.RecordOutcome("cache_hit")
	m.ObserveProviderCall("nominatim", "found", 120*time.Millisecond)
	m.ObserveProviderCall("nominatim", "timeout", 10*time.Second)
	m.CacheFlushed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Records.WithLabelValues("found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Records.WithLabelValues("cache_hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("nominatim", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheFlushes))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ProviderDuration))
}

func TestMetrics_PrivateRegistry(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.RecordOutcome("found")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Records.WithLabelValues("found")))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.RecordOutcome("not_found")
	m.CacheFlushed()

	path := filepath.Join(t.TempDir(), "resort_geocoder.prom")
	require.NoError(t, m.WriteTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `resort_geocoder_records_total{outcome="not_found"} 1`)
	assert.Contains(t, string(raw), "resort_geocoder_cache_flushes_total 1")
}

func TestMetrics_WriteTextfile_BadDir(t *testing.T) {
	m := NewMetrics()
	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write textfile")
}
