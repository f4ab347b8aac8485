package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"grave accents", "Princeville, Kaua`i, Hawai`i", "Princeville, Kauai, Hawaii"},
		{"okina", "Kapalua, Maui, Hawaiʻi", "Kapalua, Maui, Hawaii"},
		{"apostrophe", "Ko Olina, O'ahu, Hawaii", "Ko Olina, Oahu, Hawaii"},
		{"right single quote", "Kīhei, Maui, Hawai’i", "Kīhei, Maui, Hawaii"},
		{"decomposed to composed", "Cancu\u0301n, Mexico", "Canc\u00fan, Mexico"},
		{"typo", "Boracay, Phillipines", "Boracay, Philippines"},
		{"typo only on word boundary", "Phillipinesville, Spain", "Phillipinesville, Spain"},
		{"whitespace collapse", "  Negril ,   Jamaica  ", "Negril, Jamaica"},
		{"redundant commas", "Negril,, Jamaica,", "Negril, Jamaica"},
		{"tabs and newlines", "Negril,\tWestmoreland\n, Jamaica", "Negril, Westmoreland, Jamaica"},
		{"empty", "", ""},
		{"only separators", " , ,", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Princeville, Kaua`i, Hawai`i",
		"Puerto del Carmen, Lanzarote, Canary Islands, Spain",
		"  Seven Mile Beach ,, Negril , Jamaica ",
		"Cancún (Hotel Zone), Mexico",
		"Hawaiʻi ʻ ` ' ’",
		"Carribean  Sea,   Phillipines",
		"Orient Bay, St. Martin, Dutch Caribbean",
		"",
	}

	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestNormalize_InvalidUTF8Unchanged(t *testing.T) {
	t.Parallel()

	raw := "Negril,\xff Jamaica"
	assert.Equal(t, raw, Normalize(raw))
}

func TestNormalize_SharedKey(t *testing.T) {
	t.Parallel()

	a := Normalize("Princeville, Kaua`i, Hawai`i")
	b := Normalize("Princeville,Kauaʻi,  Hawaiʻi")
	assert.Equal(t, a, b)

	want := Normalize("Puerto del Carmen, Spain")
	for _, in := range []string{
		"Puerto\u00a0del Carmen, Spain",
		"Puerto \u00a0 del Carmen, Spain",
		"Puerto\u202fdel Carmen,\u00a0Spain\u00a0",
	} {
		assert.Equal(t, want, Normalize(in), "%q", in)
	}
}
