package identity

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/animecore/animecore/pkg/anilist"
	"github.com/animecore/animecore/pkg/cachestore"
	"github.com/stretchr/testify/require"
)

type stubSearcher struct {
	results []anilist.MediaSummary
}

func (s stubSearcher) Search(ctx context.Context, query string) []anilist.MediaSummary {
	return s.results
}

func newTestStore(t *testing.T) *cachestore.Store {
	t.Helper()
	store, err := cachestore.Open(t.TempDir(), 4, "")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestResolveAcceptsAboveThreshold(t *testing.T) {
	searcher := stubSearcher{results: []anilist.MediaSummary{
		{ID: 101922, Title: anilist.Title{Romaji: "Kimetsu no Yaiba", English: "Demon Slayer"}},
	}}
	mappings := OpenMappingStore(filepath.Join(t.TempDir(), "mappings.json"))
	r := New(searcher, newTestStore(t), mappings, 90, 10)

	id, found := r.Resolve(context.Background(), "Kimetsu no Yaiba")
	require.True(t, found)
	require.Equal(t, int64(101922), id)

	_, ok := mappings.Get(101922)
	require.False(t, ok, "Resolve alone must not persist a mapping without confirmation")

	require.NoError(t, r.Confirm(id, "Kimetsu no Yaiba"))
	m, ok := mappings.Get(101922)
	require.True(t, ok)
	require.Equal(t, "Kimetsu no Yaiba", m.SearchTitle)
}

func TestResolveRejectsBelowThreshold(t *testing.T) {
	searcher := stubSearcher{results: []anilist.MediaSummary{
		{ID: 1, Title: anilist.Title{Romaji: "Completely Unrelated Series"}},
	}}
	mappings := OpenMappingStore(filepath.Join(t.TempDir(), "mappings.json"))
	r := New(searcher, newTestStore(t), mappings, 90, 10)

	_, found := r.Resolve(context.Background(), "Kimetsu no Yaiba")
	require.False(t, found)
}

func TestResolveCachesOutcome(t *testing.T) {
	calls := 0
	searcher := countingSearcher{inner: stubSearcher{results: []anilist.MediaSummary{
		{ID: 5, Title: anilist.Title{Romaji: "Frieren"}},
	}}, calls: &calls}
	mappings := OpenMappingStore(filepath.Join(t.TempDir(), "mappings.json"))
	r := New(searcher, newTestStore(t), mappings, 90, 10)

	id1, found1 := r.Resolve(context.Background(), "Frieren")
	id2, found2 := r.Resolve(context.Background(), "Frieren")

	require.Equal(t, found1, found2)
	require.Equal(t, id1, id2)
	require.Equal(t, 1, calls)
}

type countingSearcher struct {
	inner stubSearcher
	calls *int
}

func (c countingSearcher) Search(ctx context.Context, query string) []anilist.MediaSummary {
	*c.calls++
	return c.inner.Search(ctx, query)
}

func TestMappingStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.json")
	s := OpenMappingStore(path)
	require.NoError(t, s.Put(101922, Mapping{ScraperTitle: "Kimetsu no Yaiba", SearchTitle: "Demon Slayer"}))

	reloaded := OpenMappingStore(path)
	m, ok := reloaded.Get(101922)
	require.True(t, ok)
	require.Equal(t, "Demon Slayer", m.SearchTitle)
}
