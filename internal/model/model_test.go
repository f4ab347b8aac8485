package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStatusValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status RunStatus
		want   string
	}{
		{RunStatusRunning, "running"},
		{RunStatusComplete, "complete"},
		{RunStatusFailed, "failed"},
		{RunStatusInterrupted, "interrupted"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, string(tt.status))
	}
}

func TestResort_JSONNullCoordinates(t *testing.T) {
	t.Parallel()

	var r Resort
	require.NoError(t, json.Unmarshal([]byte(`{"code":"ABC","name":"Sunset","location":"Negril, Jamaica","tier":null,"all_inclusive":true}`), &r))
	assert.False(t, r.HasCoordinates())
	assert.Nil(t, r.Tier)
	assert.True(t, r.AllInclusive)

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"latitude":null`)
	assert.Contains(t, string(out), `"longitude":null`)
}

func TestResort_SetCoordinates(t *testing.T) {
	t.Parallel()

	var r Resort
	r.SetCoordinates(18.27, -78.35)
	require.True(t, r.HasCoordinates())
	assert.Equal(t, 18.27, *r.Latitude)
	assert.Equal(t, -78.35, *r.Longitude)

	r.ClearCoordinates()
	assert.False(t, r.HasCoordinates())
}

func TestRunStats_SuccessRate(t *testing.T) {
	t.Parallel()

	s := NewRunStats()
	assert.Zero(t, s.SuccessRate())

	s.OverrideHits = 1
	s.CacheHits = 2
	s.NewSuccesses = 5
	s.NewFailures = 1
	s.CacheFailures = 1

	assert.Equal(t, 8, s.Geocoded())
	assert.Equal(t, 2, s.Unresolved())
	assert.InDelta(t, 0.8, s.SuccessRate(), 1e-9)
}
