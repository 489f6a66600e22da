package catalog

import (
	"regexp"
	"strings"
)

// DedupNormalize canonicalizes a title for catalog-key identity (§4.3).
// Seasons remain distinct anime: "Foo" and "Foo Season 2" normalize
// differently because "season 2" survives the transform.
func DedupNormalize(title string) string {
	s := strings.ToLower(title)
	s = strings.ReplaceAll(s, "clássico", "")
	s = strings.ReplaceAll(s, "classico", "")
	s = strings.ReplaceAll(s, ":", "")
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "(", "")
	s = strings.ReplaceAll(s, ")", "")
	s = strings.ReplaceAll(s, "part", "season")
	s = strings.ReplaceAll(s, "temporada", "season")
	s = strings.ReplaceAll(s, " ", "")
	return s
}

var searchFilterPunct = regexp.MustCompile(`[-:()!?.]`)
var whitespaceRun = regexp.MustCompile(`\s+`)

// SearchFilterNormalize canonicalizes a title for substring filtering
// (§4.3): lower-case, punctuation to space, collapse whitespace.
func SearchFilterNormalize(s string) string {
	s = strings.ToLower(s)
	s = searchFilterPunct.ReplaceAllString(s, " ")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// trailingMarkers strips season/part/cour/arc/dublado-style suffixes
// from a title before generating search variations.
var trailingMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bseason\s*\d+\b`),
	regexp.MustCompile(`(?i)\bpart\s*\d+\b`),
	regexp.MustCompile(`(?i)\bcour\s*\d+\b`),
	regexp.MustCompile(`(?i)\barc\b.*$`),
	regexp.MustCompile(`(?i)\bdublado\b`),
	regexp.MustCompile(`(?i)\btemporada\s*\d+\b`),
}

var nonAlnumSpace = regexp.MustCompile(`[^a-z0-9 ]`)

// Variations generates the progressive-fallback search variants of a
// canonical "Romaji / English" title (§4.3): the romaji half (if a
// " / " separator is present), trailing season/part/cour/arc/dublado
// markers stripped, reduced to alphanumerics and spaces, then the full
// cleaned string followed by its 3-word, 2-word, and 1-word prefixes,
// deduplicated in order (grounded on normalize_anime_title's
// `" ".join(words[:3])`/`words[:2]`/`words[:1]` in
// original_source/services/anime_service.py).
func Variations(title string) []string {
	base := title
	if idx := strings.Index(base, " / "); idx != -1 {
		base = base[:idx]
	}

	cleaned := strings.ToLower(base)
	for _, marker := range trailingMarkers {
		cleaned = marker.ReplaceAllString(cleaned, "")
	}
	cleaned = nonAlnumSpace.ReplaceAllString(cleaned, "")
	cleaned = whitespaceRun.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return nil
	}

	words := strings.Fields(cleaned)
	candidates := []string{cleaned}
	for _, n := range []int{3, 2, 1} {
		if len(words) > n {
			candidates = append(candidates, strings.Join(words[:n], " "))
		}
	}

	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// ReduceQuery emits the prefixes of a space-separated query from its
// full word count W down to the minimum floor M, in that order
// (§4.3). M is clamped to at least 1.
func ReduceQuery(query string, minWords int) []string {
	if minWords < 1 {
		minWords = 1
	}
	words := strings.Fields(query)
	if len(words) == 0 {
		return nil
	}
	if minWords > len(words) {
		minWords = len(words)
	}

	out := make([]string, 0, len(words)-minWords+1)
	for w := len(words); w >= minWords; w-- {
		out = append(out, strings.Join(words[:w], " "))
	}
	return out
}
