package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/animecore/animecore/pkg/cachestore"
	"github.com/lithammer/fuzzysearch/levenshtein"
	"golang.org/x/sync/errgroup"
)

// AnimeCandidate is one (url, source, params) tuple for a catalog
// title. Immutable after add.
type AnimeCandidate struct {
	URL    string            `json:"url"`
	Source string            `json:"source"`
	Params map[string]string `json:"params,omitempty"`
}

// EpisodeList is the ordered episode list a single plugin produced for
// an anime.
type EpisodeList struct {
	AnimeTitle string   `json:"anime_title"`
	Titles     []string `json:"titles"`
	URLs       []string `json:"urls"`
	Source     string   `json:"source"`
}

// SearchMetadata is the last-search audit object, overwritten on each
// search and read by the UI to annotate results (§3).
type SearchMetadata struct {
	OriginalQuery string `json:"original_query"`
	UsedQuery     string `json:"used_query"`
	UsedWords     int    `json:"used_words"`
	TotalWords    int    `json:"total_words"`
	MinWords      int    `json:"min_words"`
	Source        string `json:"source"` // "cache" or "scraper"
}

// IdentityResolver is the narrow slice of pkg/identity the catalog
// depends on, kept as an interface here to avoid a package cycle
// (identity never needs to import catalog).
type IdentityResolver interface {
	Resolve(ctx context.Context, scraperTitle string) (anilistID int64, found bool)
}

// adaptiveDeadline returns the per-attempt fan-out deadline selected
// from the word count of the attempted query (§4.4).
func adaptiveDeadline(words int) time.Duration {
	switch {
	case words <= 2:
		return 10 * time.Second
	case words <= 4:
		return 15 * time.Second
	default:
		return 20 * time.Second
	}
}

// Catalog is the aggregating search core (C4): fan-out, dedup,
// ranking, and progressive reduction over a set of registered
// plugins. It is intended as a single owned value passed explicitly
// through the flow controller, not a global (§9 design notes) — the
// mutex below is its only concurrency primitive, guarding the three
// in-memory maps plugin callbacks mutate during a single search.
type Catalog struct {
	mu sync.Mutex

	registry *Registry
	cache    *cachestore.Store
	identity IdentityResolver

	cacheTTL time.Duration
	minWords int

	animeToCandidates map[string][]AnimeCandidate
	animeEpisodes     map[string][]EpisodeList
	normIndex         map[string]string // title -> dedup-normalized form
	animeToAnilistID  map[string]int64
	lastMetadata      SearchMetadata
}

// New constructs a Catalog over registry, backed by cache for search
// snapshots, resolving identities through identity. cacheTTL is the
// configured search/episode cache duration; minWords is the
// progressive-reduce floor M.
func New(registry *Registry, cache *cachestore.Store, identity IdentityResolver, cacheTTL time.Duration, minWords int) *Catalog {
	return &Catalog{
		registry:          registry,
		cache:             cache,
		identity:          identity,
		cacheTTL:          cacheTTL,
		minWords:          minWords,
		animeToCandidates: make(map[string][]AnimeCandidate),
		animeEpisodes:     make(map[string][]EpisodeList),
		normIndex:         make(map[string]string),
		animeToAnilistID:  make(map[string]int64),
	}
}

// addAnime implements the add_anime sink (§4.4): compute the
// dedup-normalized form; append to an existing entry sharing that
// form, or create a new one. Never reorders existing candidates.
func (c *Catalog) addAnime(title, url, source string, params map[string]string) {
	n := DedupNormalize(title)

	c.mu.Lock()
	defer c.mu.Unlock()

	for existingTitle, existingNorm := range c.normIndex {
		if existingNorm == n {
			c.animeToCandidates[existingTitle] = append(c.animeToCandidates[existingTitle], AnimeCandidate{
				URL: url, Source: source, Params: params,
			})
			return
		}
	}

	c.normIndex[title] = n
	c.animeToCandidates[title] = append(c.animeToCandidates[title], AnimeCandidate{
		URL: url, Source: source, Params: params,
	})
}

// addEpisodeList implements the add_episode_list sink (§4.2): accepts
// iff titles and urls are equal length and every url is http(s)
// (testable property 3).
func (c *Catalog) addEpisodeList(animeTitle string, titles, urls []string, source string) error {
	if len(titles) != len(urls) {
		return fmt.Errorf("episode list for %q: %d titles but %d urls", animeTitle, len(titles), len(urls))
	}
	for _, u := range urls {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("episode list for %q: non-http(s) url %q", animeTitle, u)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.animeEpisodes[animeTitle] = append(c.animeEpisodes[animeTitle], EpisodeList{
		AnimeTitle: animeTitle, Titles: titles, URLs: urls, Source: source,
	})
	return nil
}

func (c *Catalog) clearAttempt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.animeToCandidates = make(map[string][]AnimeCandidate)
	c.animeEpisodes = make(map[string][]EpisodeList)
	c.normIndex = make(map[string]string)
}

func (c *Catalog) resultCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.animeToCandidates)
}

type searchSnapshot struct {
	Candidates map[string][]AnimeCandidate `json:"candidates"`
}

func (c *Catalog) snapshot() searchSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]AnimeCandidate, len(c.animeToCandidates))
	for title, cands := range c.animeToCandidates {
		cp := make([]AnimeCandidate, len(cands))
		copy(cp, cands)
		out[title] = cp
	}
	return searchSnapshot{Candidates: out}
}

func (c *Catalog) rehydrate(snap searchSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.animeToCandidates = make(map[string][]AnimeCandidate, len(snap.Candidates))
	c.normIndex = make(map[string]string, len(snap.Candidates))
	for title, cands := range snap.Candidates {
		c.animeToCandidates[title] = cands
		c.normIndex[title] = DedupNormalize(title)
	}
}

// Search is the unified algorithm (§4.4, §9 Open Questions: treated as
// authoritative over any narrower cache-less or fixed-deadline
// variant): cache-first, then progressive-reduce fan-out with an
// adaptive per-attempt deadline, then auto-discover identities, then
// cache the final non-empty result.
func (c *Catalog) Search(ctx context.Context, query string) error {
	cacheKey := "search:" + strings.ToLower(query)

	if c.cache != nil {
		var snap searchSnapshot
		found, err := c.cache.Get(cacheKey, &snap)
		if err == nil && found {
			c.rehydrate(snap)
			c.mu.Lock()
			c.lastMetadata = SearchMetadata{
				OriginalQuery: query,
				UsedQuery:     query,
				Source:        "cache",
			}
			c.mu.Unlock()
			c.autoDiscoverIdentities(ctx)
			return nil
		}
	}

	words := strings.Fields(query)
	total := len(words)
	prefixes := ReduceQuery(query, c.minWords)

	for _, partial := range prefixes {
		c.clearAttempt()

		w := len(strings.Fields(partial))
		deadline := adaptiveDeadline(w)
		attemptCtx, cancel := context.WithTimeout(ctx, deadline)

		c.fanOutSearch(attemptCtx, partial)
		cancel()

		if c.resultCount() > 0 {
			c.mu.Lock()
			c.lastMetadata = SearchMetadata{
				OriginalQuery: query,
				UsedQuery:     partial,
				UsedWords:     w,
				TotalWords:    total,
				MinWords:      c.minWords,
				Source:        "scraper",
			}
			c.mu.Unlock()
			break
		}
	}

	// Word-prefix reduction alone misses titles that only resolve once
	// season/part markers are stripped (e.g. an AniList sequel's raw
	// romaji title). Fall back to the Variations forms (markers stripped,
	// then 3/2/1-word prefixes) before giving up (§4.3/§4.11
	// per-variation retry).
	if c.resultCount() == 0 {
		for _, variant := range Variations(query) {
			c.clearAttempt()

			w := len(strings.Fields(variant))
			deadline := adaptiveDeadline(w)
			attemptCtx, cancel := context.WithTimeout(ctx, deadline)

			c.fanOutSearch(attemptCtx, variant)
			cancel()

			if c.resultCount() > 0 {
				c.mu.Lock()
				c.lastMetadata = SearchMetadata{
					OriginalQuery: query,
					UsedQuery:     variant,
					UsedWords:     w,
					TotalWords:    total,
					MinWords:      c.minWords,
					Source:        "scraper",
				}
				c.mu.Unlock()
				break
			}
		}
	}

	c.autoDiscoverIdentities(ctx)

	if c.resultCount() > 0 && c.cache != nil {
		_ = c.cache.Set(cacheKey, c.snapshot(), c.cacheTTL)
	}

	return nil
}

// fanOutSearch runs SearchAnime on every registered plugin
// concurrently, sharing attemptCtx's deadline. Outstanding tasks are
// cancelled, not awaited, once the deadline elapses; their partial
// writes (already applied under the catalog mutex) are retained.
func (c *Catalog) fanOutSearch(attemptCtx context.Context, partial string) {
	plugins := c.registry.All()
	if len(plugins) == 0 {
		return
	}

	sink := func(title, url, source string, params map[string]string) {
		if attemptCtx.Err() != nil {
			return
		}
		c.addAnime(title, url, source, params)
	}

	var wg sync.WaitGroup
	done := make(chan struct{})
	for _, p := range plugins {
		wg.Add(1)
		go func(p Plugin) {
			defer wg.Done()
			_ = p.SearchAnime(attemptCtx, partial, sink)
		}(p)
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-attemptCtx.Done():
	}
}

// autoDiscoverIdentities resolves AniList IDs for any catalog entries
// that don't yet have one (§4.4 step 3 / §4.6).
func (c *Catalog) autoDiscoverIdentities(ctx context.Context) {
	if c.identity == nil {
		return
	}

	c.mu.Lock()
	titles := make([]string, 0, len(c.animeToCandidates))
	for title := range c.animeToCandidates {
		if _, known := c.animeToAnilistID[title]; !known {
			titles = append(titles, title)
		}
	}
	c.mu.Unlock()

	for _, title := range titles {
		id, found := c.identity.Resolve(ctx, title)
		if !found {
			continue
		}
		c.mu.Lock()
		c.animeToAnilistID[title] = id
		c.mu.Unlock()
	}
}

// LastSearchMetadata returns the audit object from the most recent
// search.
func (c *Catalog) LastSearchMetadata() SearchMetadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastMetadata
}

// AnilistID returns the previously-discovered AniList ID for a
// catalog title, if any.
func (c *Catalog) AnilistID(title string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.animeToAnilistID[title]
	return id, ok
}

// ClearAnilistID discards a previously auto-discovered AniList
// association for title. Used when the user declines the flow
// controller's identity-mapping reuse prompt, so sync and sequel
// offers are skipped rather than applied against an unconfirmed guess
// (§4.6).
func (c *Catalog) ClearAnilistID(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.animeToAnilistID, title)
}

// Sources returns the sorted source names carrying candidates for
// title.
func (c *Catalog) Sources(title string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	cands := c.animeToCandidates[title]
	out := make([]string, 0, len(cands))
	for _, cand := range cands {
		out = append(out, cand.Source)
	}
	sort.Strings(out)
	return out
}

func lowerRatio(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}

// TitlesWithSources builds "Title [src1, src2]" for every entry
// matching filter (substring, case-insensitive; empty matches all).
// When originalQuery is non-empty, entries are ranked by descending
// ascii-lower Levenshtein ratio against the entry's title, ties
// broken alphabetically by the decorated display string; otherwise
// entries are sorted alphabetically by title (§4.4 ranking).
func (c *Catalog) TitlesWithSources(filter, originalQuery string) []string {
	c.mu.Lock()
	titles := make([]string, 0, len(c.animeToCandidates))
	for title := range c.animeToCandidates {
		titles = append(titles, title)
	}
	c.mu.Unlock()

	lowerFilter := strings.ToLower(filter)
	type decorated struct {
		title   string
		display string
		score   float64
	}
	entries := make([]decorated, 0, len(titles))
	for _, title := range titles {
		if lowerFilter != "" && !strings.Contains(strings.ToLower(title), lowerFilter) {
			continue
		}
		display := fmt.Sprintf("%s [%s]", title, strings.Join(c.Sources(title), ", "))
		score := 0.0
		if originalQuery != "" {
			score = lowerRatio(originalQuery, title)
		}
		entries = append(entries, decorated{title: title, display: display, score: score})
	}

	sort.Slice(entries, func(i, j int) bool {
		if originalQuery == "" {
			return entries[i].title < entries[j].title
		}
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].display < entries[j].display
	})

	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.display
	}
	return out
}

// Titles returns catalog titles whose lower-cased form contains
// lower-cased filter, sorted ascending.
func (c *Catalog) Titles(filter string) []string {
	c.mu.Lock()
	titles := make([]string, 0, len(c.animeToCandidates))
	for title := range c.animeToCandidates {
		titles = append(titles, title)
	}
	c.mu.Unlock()

	lowerFilter := strings.ToLower(filter)
	out := make([]string, 0, len(titles))
	for _, title := range titles {
		if lowerFilter == "" || strings.Contains(strings.ToLower(title), lowerFilter) {
			out = append(out, title)
		}
	}
	sort.Strings(out)
	return out
}

// SearchEpisodes fans out search_episodes to every candidate of anime
// whose source matches sourceFilter (or every candidate if
// sourceFilter is empty), joining all before returning.
func (c *Catalog) SearchEpisodes(ctx context.Context, anime, sourceFilter string) error {
	c.mu.Lock()
	cands := append([]AnimeCandidate(nil), c.animeToCandidates[anime]...)
	c.mu.Unlock()

	sink := func(animeTitle string, titles, urls []string, source string) {
		_ = c.addEpisodeList(animeTitle, titles, urls, source)
	}

	// Every source's episode list is joined regardless of whether a
	// sibling source errors — one source's failure never hides another's
	// results, so errors are swallowed per-task rather than propagated.
	var g errgroup.Group
	for _, cand := range cands {
		if sourceFilter != "" && cand.Source != sourceFilter {
			continue
		}
		plugin, ok := c.registry.Get(cand.Source)
		if !ok {
			continue
		}
		p, url, params := plugin, cand.URL, cand.Params
		g.Go(func() error {
			_ = p.SearchEpisodes(ctx, anime, url, params, sink)
			return nil
		})
	}
	g.Wait()
	return nil
}

// EpisodeList returns the longest per-source episode list for anime,
// unreversed (§4.4, testable property 4).
func (c *Catalog) EpisodeList(anime string) *EpisodeList {
	c.mu.Lock()
	defer c.mu.Unlock()

	lists := c.animeEpisodes[anime]
	if len(lists) == 0 {
		return nil
	}
	longest := lists[0]
	for _, l := range lists[1:] {
		if len(l.Titles) > len(longest.Titles) {
			longest = l
		}
	}
	out := longest
	return &out
}

// EpisodeURLAndSource returns the first (url, source) whose list has
// episodeNumber1Based (§4.4, testable property 5).
func (c *Catalog) EpisodeURLAndSource(anime string, episodeNumber1Based int) (url, source string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := episodeNumber1Based - 1
	if idx < 0 {
		return "", "", false
	}
	for _, l := range c.animeEpisodes[anime] {
		if idx < len(l.URLs) {
			return l.URLs[idx], l.Source, true
		}
	}
	return "", "", false
}
