package cachestore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "cache"), 4, "")
	require.NoError(t, err)
	defer store.Close()

	type payload struct {
		Title string
	}

	require.NoError(t, store.Set("search:dandadan", payload{Title: "Dandadan"}, time.Hour))

	var out payload
	found, err := store.Get("search:dandadan", &out)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "Dandadan", out.Title)
}

func TestStoreExpiry(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "cache"), 4, "")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Set("anilist_id:kimetsu", 12345, -time.Second))

	var out int
	found, err := store.Get("anilist_id:kimetsu", &out)
	require.NoError(t, err)
	require.False(t, found)
}

func TestStoreMiss(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "cache"), 4, "")
	require.NoError(t, err)
	defer store.Close()

	var out string
	found, err := store.Get("missing:key", &out)
	require.NoError(t, err)
	require.False(t, found)
}
