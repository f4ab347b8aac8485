// Package location canonicalizes free-form resort location strings and
// derives the ordered rewrite candidates tried against a geocoder.
package location

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// quoteGlyphs are the apostrophe-like marks that show up in transcribed
// Hawaiian and Polynesian place names (Kaua`i, Hawaiʻi, O'ahu).
var quoteGlyphs = runes.In(&unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x0027, Hi: 0x0027, Stride: 1}, // apostrophe
		{Lo: 0x0060, Hi: 0x0060, Stride: 1}, // grave accent
		{Lo: 0x00B4, Hi: 0x00B4, Stride: 1}, // acute accent
		{Lo: 0x02B9, Hi: 0x02BC, Stride: 1}, // modifier prime, okina, modifier apostrophe
		{Lo: 0x02BF, Hi: 0x02BF, Stride: 1}, // modifier left half ring
		{Lo: 0x02C8, Hi: 0x02C8, Stride: 1}, // modifier vertical line
		{Lo: 0x2018, Hi: 0x2019, Stride: 1}, // single quotation marks
	},
})

// typos maps known transcription errors in the source catalog to the
// spelling geocoders recognise. Matched on word boundaries, case-sensitive.
var typos = map[string]string{
	"Phillipines":  "Philippines",
	"Phillippines": "Philippines",
	"Carribean":    "Caribbean",
	"Carribbean":   "Caribbean",
	"Domincan":     "Dominican",
	"Mexcio":       "Mexico",
	"Portugual":    "Portugal",
	"Jamacia":      "Jamaica",
}

var typoPattern = buildTypoPattern()

func buildTypoPattern() *regexp.Regexp {
	words := make([]string, 0, len(typos))
	for w := range typos {
		words = append(words, regexp.QuoteMeta(w))
	}
	return regexp.MustCompile(`\b(` + strings.Join(words, "|") + `)\b`)
}

// Normalize returns the canonical form of raw used as the cache key.
// It strips quote-like glyphs, composes to NFC, fixes known typos, and
// rewrites separators as "Part, Part, Part". Invalid UTF-8 is returned
// unchanged. Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	if !utf8.ValidString(raw) {
		return raw
	}

	t := transform.Chain(norm.NFC, runes.Remove(quoteGlyphs), norm.NFC)
	s, _, err := transform.String(t, raw)
	if err != nil {
		return raw
	}

	s = joinParts(splitParts(s))
	return typoPattern.ReplaceAllStringFunc(s, func(m string) string {
		return typos[m]
	})
}

// splitParts splits s on commas, collapses internal Unicode whitespace
// (including no-break spaces) in each part and drops empty parts.
func splitParts(s string) []string {
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func joinParts(parts []string) string {
	return strings.Join(parts, ", ")
}
