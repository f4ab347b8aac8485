package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/resort-geocoder/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	finished := created.Add(90 * time.Second)
	stats := model.NewRunStats()
	stats.Total = 4
	stats.CacheHits = 3
	stats.NewFailures = 1
	stats.ProviderCalls = 7

	runs := []model.Run{
		{ID: "0123456789abcdef", Provider: "nominatim", Status: model.RunStatusComplete, Stats: stats, CreatedAt: created, UpdatedAt: finished, FinishedAt: &finished},
		{ID: "short", Provider: "google", Status: model.RunStatusRunning, CreatedAt: created, UpdatedAt: created},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)
	out := buf.String()

	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "0123456789abcdef")
	assert.Contains(t, out, "75.0%")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "2026-03-01 12:00")
	assert.Contains(t, out, "short")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abcdefgh", truncateID("abcdefghijkl"))
	assert.Equal(t, "abc", truncateID("abc"))
}
