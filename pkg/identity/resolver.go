package identity

import (
	"context"
	"strings"
	"time"

	"github.com/animecore/animecore/pkg/anilist"
	"github.com/animecore/animecore/pkg/cachestore"
	"github.com/lithammer/fuzzysearch/levenshtein"
)

// Searcher is the narrow slice of the AniList client the resolver
// needs. Defined here rather than depended on concretely so the
// resolver can be tested against a fake without a network round trip.
type Searcher interface {
	Search(ctx context.Context, query string) []anilist.MediaSummary
}

const (
	negativeTTL = 24 * time.Hour
	positiveTTL = 30 * 24 * time.Hour
)

// Resolver implements catalog.IdentityResolver: it fuzzy-matches a
// scraper-reported title against AniList search results and caches
// both outcomes (§4.6).
type Resolver struct {
	search    Searcher
	cache     *cachestore.Store
	mappings  *MappingStore
	threshold int
	candidateLimit int
}

// New constructs a Resolver. threshold is clamped to [70,100] and
// candidateLimit to at least 1, per §9's bounds on the fuzzy-match
// configuration.
func New(search Searcher, cache *cachestore.Store, mappings *MappingStore, threshold, candidateLimit int) *Resolver {
	if threshold < 70 {
		threshold = 70
	}
	if threshold > 100 {
		threshold = 100
	}
	if candidateLimit < 1 {
		candidateLimit = 1
	}
	return &Resolver{search: search, cache: cache, mappings: mappings, threshold: threshold, candidateLimit: candidateLimit}
}

func cacheKey(scraperTitle string) string {
	return "anilist_id:" + strings.ToLower(scraperTitle)
}

type cachedOutcome struct {
	Found bool  `json:"found"`
	ID    int64 `json:"id,omitempty"`
}

// Resolve looks up scraperTitle's AniList ID, consulting the cache
// (including negative entries) before querying AniList, and caches
// whatever the outcome is (§4.6).
func (r *Resolver) Resolve(ctx context.Context, scraperTitle string) (int64, bool) {
	key := cacheKey(scraperTitle)

	var cached cachedOutcome
	if hit, err := r.cache.Get(key, &cached); err == nil && hit {
		return cached.ID, cached.Found
	}

	candidates := r.search.Search(ctx, scraperTitle)
	if len(candidates) > r.candidateLimit {
		candidates = candidates[:r.candidateLimit]
	}

	lowerTitle := strings.ToLower(scraperTitle)
	var bestID int64
	bestScore := -1.0
	for _, cand := range candidates {
		score := matchScore(lowerTitle, cand.Title.Romaji, cand.Title.English)
		if score > bestScore {
			bestScore = score
			bestID = cand.ID
		}
	}

	found := bestScore >= float64(r.threshold)/100.0
	if found {
		r.cache.Set(key, cachedOutcome{Found: true, ID: bestID}, positiveTTL)
		return bestID, true
	}

	r.cache.Set(key, cachedOutcome{Found: false}, negativeTTL)
	return 0, false
}

// Confirm persists scraperTitle as the user-confirmed mapping for
// anilistID, enabling future SwitchSource lookups (§4.6: "scraper_title
// is the exact catalog entry the user confirmed"). Resolve itself never
// calls this — an auto-discovered match is a guess until the flow
// controller's reuse prompt confirms it. SearchTitle is stored as
// scraperTitle as well; the search query that produced the entry is
// not recorded.
func (r *Resolver) Confirm(anilistID int64, scraperTitle string) error {
	if r.mappings == nil {
		return nil
	}
	return r.mappings.Put(anilistID, Mapping{ScraperTitle: scraperTitle, SearchTitle: scraperTitle})
}

// matchScore is the resolver's acceptance score: the higher of the
// lowercased Levenshtein ratio against the romaji and English titles
// (§4.6: "score = max(lev_ratio(scraper_title, romaji),
// lev_ratio(scraper_title, english))").
func matchScore(lowerScraperTitle, romaji, english string) float64 {
	best := lowerRatio(lowerScraperTitle, romaji)
	if e := lowerRatio(lowerScraperTitle, english); e > best {
		best = e
	}
	return best
}

func lowerRatio(lowerA, b string) float64 {
	if b == "" {
		return 0
	}
	lowerB := strings.ToLower(b)
	maxLen := len(lowerA)
	if len(lowerB) > maxLen {
		maxLen = len(lowerB)
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(lowerA, lowerB)
	return 1 - float64(dist)/float64(maxLen)
}

// SwitchSource returns the remembered search title for anilistID and
// whether one exists, so the caller can re-run that search for a
// different source and keep the same AniList mapping (§4.6
// "search_title preserved for switch source"). It does not search or
// resolve anything itself.
func (r *Resolver) SwitchSource(ctx context.Context, anilistID int64) (string, bool) {
	if r.mappings == nil {
		return "", false
	}
	m, ok := r.mappings.Get(anilistID)
	if !ok {
		return "", false
	}
	return m.SearchTitle, true
}
