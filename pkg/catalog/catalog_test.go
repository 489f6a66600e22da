package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubPlugin struct {
	name      string
	languages []string
	results   map[string][]string // query -> titles
	delay     time.Duration
}

func (p *stubPlugin) Name() string        { return p.name }
func (p *stubPlugin) Languages() []string { return p.languages }

func (p *stubPlugin) SearchAnime(ctx context.Context, query string, add AddAnimeFunc) error {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for _, title := range p.results[query] {
		add(title, "https://example.com/"+title, p.name, nil)
	}
	return nil
}

func (p *stubPlugin) SearchEpisodes(ctx context.Context, animeTitle, url string, params map[string]string, add AddEpisodeListFunc) error {
	add(animeTitle, []string{"Episode 1", "Episode 2"}, []string{"https://example.com/e1", "https://example.com/e2"}, p.name)
	return nil
}

func (p *stubPlugin) ExtractStream(ctx context.Context, episodeURL string) (*VideoStream, error) {
	return &VideoStream{URL: episodeURL}, nil
}

func newTestCatalog(t *testing.T, plugins ...Plugin) *Catalog {
	t.Helper()
	reg := NewRegistry(t.TempDir() + "/prefs.json")
	for _, p := range plugins {
		reg.Register(p)
	}
	return New(reg, nil, nil, time.Hour, 1)
}

func TestAddAnimeDedup(t *testing.T) {
	c := newTestCatalog(t)
	c.addAnime("Kimetsu no Yaiba: Hashira Geiko-hen", "https://a.example/1", "srcA", nil)
	c.addAnime("Kimetsu no Yaiba Hashira Geiko hen", "https://a.example/2", "srcB", nil)

	require.Len(t, c.animeToCandidates, 1)
	for _, cands := range c.animeToCandidates {
		require.Len(t, cands, 2)
	}
}

func TestAddAnimeDistinctSeasons(t *testing.T) {
	c := newTestCatalog(t)
	c.addAnime("Foo", "https://a.example/1", "srcA", nil)
	c.addAnime("Foo Season 2", "https://a.example/2", "srcA", nil)

	require.Len(t, c.animeToCandidates, 2)
}

func TestAddEpisodeListRejectsMismatch(t *testing.T) {
	c := newTestCatalog(t)
	err := c.addEpisodeList("Foo", []string{"Ep 1", "Ep 2"}, []string{"https://a.example/1"}, "srcA")
	require.Error(t, err)
}

func TestAddEpisodeListRejectsNonHTTP(t *testing.T) {
	c := newTestCatalog(t)
	err := c.addEpisodeList("Foo", []string{"Ep 1"}, []string{"ftp://a.example/1"}, "srcA")
	require.Error(t, err)
}

func TestEpisodeListReturnsLongest(t *testing.T) {
	c := newTestCatalog(t)
	require.NoError(t, c.addEpisodeList("Foo", []string{"E1"}, []string{"https://a/1"}, "short"))
	require.NoError(t, c.addEpisodeList("Foo", []string{"E1", "E2", "E3"}, []string{"https://a/1", "https://a/2", "https://a/3"}, "long"))

	list := c.EpisodeList("Foo")
	require.NotNil(t, list)
	require.Equal(t, "long", list.Source)
	require.Equal(t, []string{"E1", "E2", "E3"}, list.Titles)
}

func TestEpisodeURLAndSource(t *testing.T) {
	c := newTestCatalog(t)
	require.NoError(t, c.addEpisodeList("Foo", []string{"E1", "E2"}, []string{"https://a/1", "https://a/2"}, "srcA"))

	url, source, ok := c.EpisodeURLAndSource("Foo", 2)
	require.True(t, ok)
	require.Equal(t, "https://a/2", url)
	require.Equal(t, "srcA", source)
}

func TestSearchProgressiveReduce(t *testing.T) {
	plugin := &stubPlugin{
		name:      "p",
		languages: []string{"en"},
		results: map[string][]string{
			"Spy x Family": {"Spy x Family"},
		},
	}
	c := newTestCatalog(t, plugin)

	err := c.Search(context.Background(), "Spy x Family Season 2 Part 2")
	require.NoError(t, err)

	meta := c.LastSearchMetadata()
	require.Equal(t, 3, meta.UsedWords)
	require.Equal(t, "Spy x Family", meta.UsedQuery)
	require.Equal(t, "scraper", meta.Source)
	require.Contains(t, c.Titles(""), "Spy x Family")
}

func TestSearchRanking(t *testing.T) {
	c := newTestCatalog(t)
	c.addAnime("Dandadan", "https://a/1", "srcA", nil)
	c.addAnime("Dandadan Season 2", "https://a/2", "srcA", nil)

	ranked := c.TitlesWithSources("", "Dandadan")
	require.True(t, len(ranked) >= 2)
	require.Contains(t, ranked[0], "Dandadan [")
	require.NotContains(t, ranked[0], "Season")
}
