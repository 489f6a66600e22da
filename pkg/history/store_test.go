package history

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s := Open(path)

	require.NoError(t, s.Set("Kimetsu no Yaiba", Record{Timestamp: 1000, EpisodeIndex: 4, AnilistID: 101922, Source: "animefire"}))

	rec, ok := s.Get("Kimetsu no Yaiba")
	require.True(t, ok)
	require.Equal(t, 4, rec.EpisodeIndex)
	require.Equal(t, int64(101922), rec.AnilistID)
}

func TestSetPersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s := Open(path)
	require.NoError(t, s.Set("Frieren", Record{Timestamp: 500, EpisodeIndex: 2}))

	reloaded := Open(path)
	rec, ok := reloaded.Get("Frieren")
	require.True(t, ok)
	require.Equal(t, 2, rec.EpisodeIndex)
	require.EqualValues(t, 500, rec.Timestamp)
}

func TestTimestampMonotonicNonDecreasing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s := Open(path)
	require.NoError(t, s.Set("Dandadan", Record{Timestamp: 1000, EpisodeIndex: 1}))
	require.NoError(t, s.Set("Dandadan", Record{Timestamp: 500, EpisodeIndex: 2}))

	rec, ok := s.Get("Dandadan")
	require.True(t, ok)
	require.EqualValues(t, 1000, rec.Timestamp)
	require.Equal(t, 2, rec.EpisodeIndex)
}

func TestListSortedByTimestampDesc(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s := Open(path)
	require.NoError(t, s.Set("Old Anime", Record{Timestamp: 100, EpisodeIndex: 1}))
	require.NoError(t, s.Set("New Anime", Record{Timestamp: 999, EpisodeIndex: 1}))

	list := s.ListSortedByTimestampDesc()
	require.Len(t, list, 2)
	require.Equal(t, "New Anime", list[0].Title)
	require.Equal(t, "Old Anime", list[1].Title)
}

func TestDeleteRemovesEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s := Open(path)
	require.NoError(t, s.Set("Gone", Record{Timestamp: 1, EpisodeIndex: 0}))
	require.NoError(t, s.Delete("Gone"))

	_, ok := s.Get("Gone")
	require.False(t, ok)
}

func TestOpenMigratesLegacyShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	legacy := `{"Old Show": [["http://a/ep1", "http://a/ep2"], 4]}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0644))

	s := Open(path)
	rec, ok := s.Get("Old Show")
	require.True(t, ok)
	require.Equal(t, 4, rec.EpisodeIndex)
	require.Greater(t, rec.Timestamp, int64(0))
}

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "missing.json"))
	require.Empty(t, s.ListSortedByTimestampDesc())
}
