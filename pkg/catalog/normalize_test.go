package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDedupNormalize(t *testing.T) {
	require.Equal(t,
		DedupNormalize("Kimetsu no Yaiba: Hashira Geiko-hen"),
		DedupNormalize("Kimetsu no Yaiba Hashira Geiko hen"),
	)
	require.NotEqual(t, DedupNormalize("Foo"), DedupNormalize("Foo Season 2"))
}

func TestSearchFilterNormalize(t *testing.T) {
	require.Equal(t, "jujutsu kaisen 0", SearchFilterNormalize("Jujutsu Kaisen: 0!"))
}

func TestVariations(t *testing.T) {
	vars := Variations("Tate no Yuusha no Nariagari Season 2 / The Rising of the Shield Hero")
	require.NotEmpty(t, vars)
	require.Equal(t, "tate no yuusha no nariagari", vars[0])
	require.Contains(t, vars, "tate no yuusha")
	require.Contains(t, vars, "tate no")
	require.Contains(t, vars, "tate")
	require.NotContains(t, vars, "tat")
}

func TestReduceQuery(t *testing.T) {
	got := ReduceQuery("Spy x Family Season 2 Part 2", 1)
	require.Equal(t, []string{
		"Spy x Family Season 2 Part 2",
		"Spy x Family Season 2 Part",
		"Spy x Family Season 2",
		"Spy x Family Season",
		"Spy x Family",
		"Spy x",
		"Spy",
	}, got)
}

func TestReduceQueryMinFloor(t *testing.T) {
	got := ReduceQuery("One Piece", 2)
	require.Equal(t, []string{"One Piece"}, got)
}
