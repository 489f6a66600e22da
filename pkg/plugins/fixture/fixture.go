// Package fixture implements an in-memory reference plugin satisfying
// catalog.Plugin, used by `-d/--debug` mode (§6) as a deterministic
// source without network access. The test suites use their own stub
// plugins rather than this package.
package fixture

import (
	"context"
	"strconv"
	"strings"

	"github.com/animecore/animecore/pkg/catalog"
)

// Anime is one fixture catalog entry.
type Anime struct {
	Title    string
	URL      string
	Episodes []string
}

// Plugin is a deterministic, in-memory catalog.Plugin.
type Plugin struct {
	anime []Anime
}

// New returns a fixture plugin seeded with anime.
func New(anime ...Anime) *Plugin {
	return &Plugin{anime: anime}
}

func (p *Plugin) Name() string        { return "fixture" }
func (p *Plugin) Languages() []string { return []string{"en"} }

// SearchAnime returns every fixture entry whose title contains query
// (case-insensitive substring), matching the catalog's own
// search-filter semantics.
func (p *Plugin) SearchAnime(ctx context.Context, query string, add catalog.AddAnimeFunc) error {
	lowered := strings.ToLower(query)
	for _, a := range p.anime {
		if lowered == "" || strings.Contains(strings.ToLower(a.Title), lowered) {
			add(a.Title, a.URL, p.Name(), nil)
		}
	}
	return nil
}

// SearchEpisodes returns the fixed episode list for animeTitle.
func (p *Plugin) SearchEpisodes(ctx context.Context, animeTitle, url string, params map[string]string, add catalog.AddEpisodeListFunc) error {
	for _, a := range p.anime {
		if a.Title == animeTitle {
			titles := make([]string, len(a.Episodes))
			urls := make([]string, len(a.Episodes))
			for i, ep := range a.Episodes {
				titles[i] = ep
				urls[i] = a.URL + "/ep" + strconv.Itoa(i+1)
			}
			add(animeTitle, titles, urls, p.Name())
			return nil
		}
	}
	return nil
}

// ExtractStream returns a fake stream URL derived from episodeURL.
func (p *Plugin) ExtractStream(ctx context.Context, episodeURL string) (*catalog.VideoStream, error) {
	return &catalog.VideoStream{URL: episodeURL + ".m3u8"}, nil
}
