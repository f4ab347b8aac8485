package location

import (
	"iter"
	"regexp"
	"strings"
)

// Candidate is one query string to try against a geocoder, tagged with the
// rewrite that produced it.
type Candidate struct {
	Strategy string
	Query    string
}

// Strategy rewrites a normalized location. It reports false when the rewrite
// does not apply to the input.
type Strategy struct {
	Name    string
	Rewrite func(string) (string, bool)
}

// Strategies is the fixed priority order in which rewrites are attempted.
// Each rewrite is applied to the normalized input independently.
var Strategies = []Strategy{
	{Name: "identity", Rewrite: identity},
	{Name: "drop_parenthetical", Rewrite: dropParenthetical},
	{Name: "parenthetical_as_place", Rewrite: parentheticalAsPlace},
	{Name: "drop_descriptors", Rewrite: dropDescriptors},
	{Name: "city_country", Rewrite: cityCountry},
	{Name: "drop_dutch_caribbean", Rewrite: dropDutchCaribbean},
	{Name: "drop_region", Rewrite: dropRegion},
	{Name: "canary_island_only", Rewrite: canaryIslandOnly},
}

// Variations yields the deduplicated rewrite candidates for normalized in
// priority order. The first candidate is always the input itself. Consumers
// may stop early; later rewrites are not computed.
func Variations(normalized string) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		seen := make(map[string]struct{}, len(Strategies))
		for _, s := range Strategies {
			q, ok := s.Rewrite(normalized)
			if !ok {
				continue
			}
			q = joinParts(splitParts(q))
			if q == "" {
				continue
			}
			if _, dup := seen[q]; dup {
				continue
			}
			seen[q] = struct{}{}
			if !yield(Candidate{Strategy: s.Name, Query: q}) {
				return
			}
		}
	}
}

// Queries collects the candidate query strings for normalized.
func Queries(normalized string) []string {
	var out []string
	for c := range Variations(normalized) {
		out = append(out, c.Query)
	}
	return out
}

var (
	parenthetical = regexp.MustCompile(`\s*\(([^()]*)\)`)
	descriptors   = regexp.MustCompile(`(?i)\b(beach|island|resort|area|near)\b`)
)

func identity(s string) (string, bool) {
	return s, s != ""
}

// "Cancun (Hotel Zone), Mexico" -> "Cancun, Mexico"
func dropParenthetical(s string) (string, bool) {
	if !parenthetical.MatchString(s) {
		return "", false
	}
	return parenthetical.ReplaceAllString(s, ""), true
}

// "Hotel Zone (Cancun), Mexico" -> "Cancun, Mexico"
func parentheticalAsPlace(s string) (string, bool) {
	parts := splitParts(s)
	for i, p := range parts {
		m := parenthetical.FindStringSubmatch(p)
		if m == nil {
			continue
		}
		inner := strings.TrimSpace(m[1])
		if inner == "" {
			return "", false
		}
		out := append([]string{}, parts[:i]...)
		out = append(out, inner)
		out = append(out, parts[i+1:]...)
		return joinParts(out), true
	}
	return "", false
}

// "Seven Mile Beach, Negril, Jamaica" -> "Seven Mile, Negril, Jamaica"
func dropDescriptors(s string) (string, bool) {
	if !descriptors.MatchString(s) {
		return "", false
	}
	return descriptors.ReplaceAllString(s, ""), true
}

// "City, Region, ..., Country" -> "City, Country"
func cityCountry(s string) (string, bool) {
	parts := splitParts(s)
	if len(parts) < 3 {
		return "", false
	}
	return joinParts([]string{parts[0], parts[len(parts)-1]}), true
}

// "Palm Beach, Aruba, Dutch Caribbean" -> "Palm Beach, Aruba"
func dropDutchCaribbean(s string) (string, bool) {
	if !strings.HasSuffix(s, ", Dutch Caribbean") {
		return "", false
	}
	return strings.TrimSuffix(s, ", Dutch Caribbean"), true
}

// "Costa Adeje, Tenerife, Canary Islands, Spain" -> "Tenerife, Spain"
func canaryIslandOnly(s string) (string, bool) {
	parts := splitParts(s)
	if len(parts) < 4 || !strings.HasSuffix(s, "Canary Islands, Spain") {
		return "", false
	}
	return joinParts([]string{parts[len(parts)-3], parts[len(parts)-1]}), true
}

// regionSuffixes are trailing "Region, Country" pairs that geocoders fail to
// resolve alongside a town name.
var regionSuffixes = []string{
	"Canary Islands, Spain",
	"Margarita Island, Venezuela",
	"Grand Bahama Island, Bahamas",
	"Great Exuma, Bahamas",
	"Algarve, Portugal",
}

// "Freeport, Lucaya, Grand Bahama Island, Bahamas" -> "Freeport, Lucaya, Bahamas"
func dropRegion(s string) (string, bool) {
	parts := splitParts(s)
	if len(parts) < 3 {
		return "", false
	}
	for _, suffix := range regionSuffixes {
		if strings.HasSuffix(s, ", "+suffix) {
			out := append([]string{}, parts[:len(parts)-2]...)
			out = append(out, parts[len(parts)-1])
			return joinParts(out), true
		}
	}
	return "", false
}
