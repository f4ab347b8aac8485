package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariations_IdentityFirst(t *testing.T) {
	t.Parallel()

	qs := Queries("Negril, Jamaica")
	require.NotEmpty(t, qs)
	assert.Equal(t, "Negril, Jamaica", qs[0])
	assert.Len(t, qs, 1)
}

func TestVariations_CanaryIslands(t *testing.T) {
	t.Parallel()

	qs := Queries("Puerto del Carmen, Lanzarote, Canary Islands, Spain")
	assert.Equal(t, []string{
		"Puerto del Carmen, Lanzarote, Canary Islands, Spain",
		"Puerto del Carmen, Spain",
		"Puerto del Carmen, Lanzarote, Spain",
		"Lanzarote, Spain",
	}, qs)
}

func TestVariations_Parenthetical(t *testing.T) {
	t.Parallel()

	qs := Queries("Hotel Zone (Cancun), Mexico")
	assert.Equal(t, []string{
		"Hotel Zone (Cancun), Mexico",
		"Hotel Zone, Mexico",
		"Cancun, Mexico",
	}, qs)
}

func TestVariations_Descriptors(t *testing.T) {
	t.Parallel()

	var strategies []string
	var queries []string
	for c := range Variations("Seven Mile Beach, Negril, Jamaica") {
		strategies = append(strategies, c.Strategy)
		queries = append(queries, c.Query)
	}

	assert.Equal(t, []string{"identity", "drop_descriptors", "city_country"}, strategies)
	assert.Equal(t, []string{
		"Seven Mile Beach, Negril, Jamaica",
		"Seven Mile, Negril, Jamaica",
		"Seven Mile Beach, Jamaica",
	}, queries)
}

func TestVariations_NearPrefix(t *testing.T) {
	t.Parallel()

	qs := Queries("near Montego Bay, Jamaica")
	assert.Equal(t, []string{"near Montego Bay, Jamaica", "Montego Bay, Jamaica"}, qs)
}

func TestVariations_DutchCaribbean(t *testing.T) {
	t.Parallel()

	qs := Queries("Palm-Eagle Beach, Aruba, Dutch Caribbean")
	assert.Contains(t, qs, "Palm-Eagle Beach, Aruba")
	assert.Equal(t, "Palm-Eagle Beach, Aruba, Dutch Caribbean", qs[0])
}

func TestVariations_RegionSuffix(t *testing.T) {
	t.Parallel()

	qs := Queries("Freeport, Lucaya, Grand Bahama Island, Bahamas")
	assert.Contains(t, qs, "Freeport, Bahamas")
	assert.Contains(t, qs, "Freeport, Lucaya, Bahamas")
}

func TestVariations_Deduplicated(t *testing.T) {
	t.Parallel()

	// city_country and drop_region agree on three-part inputs.
	qs := Queries("Porlamar, Margarita Island, Venezuela")
	seen := map[string]int{}
	for _, q := range qs {
		seen[q]++
	}
	for q, n := range seen {
		assert.Equal(t, 1, n, "duplicate candidate %q", q)
	}
	assert.Contains(t, qs, "Porlamar, Venezuela")
}

func TestVariations_StopsEarly(t *testing.T) {
	t.Parallel()

	var n int
	for range Variations("Puerto del Carmen, Lanzarote, Canary Islands, Spain") {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestVariations_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Queries(""))
}

func TestStrategies_Independent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fn   func(string) (string, bool)
		in   string
		want string
		ok   bool
	}{
		{"drop parenthetical", dropParenthetical, "Cancun (Hotel Zone), Mexico", "Cancun, Mexico", true},
		{"drop parenthetical no match", dropParenthetical, "Cancun, Mexico", "", false},
		{"parenthetical as place empty", parentheticalAsPlace, "Cancun (), Mexico", "", false},
		{"city country short", cityCountry, "Negril, Jamaica", "", false},
		{"dutch caribbean absent", dropDutchCaribbean, "Aruba", "", false},
		{"canary island only needs four parts", canaryIslandOnly, "Lanzarote, Canary Islands, Spain", "", false},
		{"algarve", dropRegion, "Albufeira, Algarve, Portugal", "Albufeira, Portugal", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := tt.fn(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, joinParts(splitParts(got)))
			}
		})
	}
}
