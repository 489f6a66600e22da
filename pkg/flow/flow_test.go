package flow

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/animecore/animecore/pkg/history"
	"github.com/stretchr/testify/require"
)

func TestManagerShowDispatchesAction(t *testing.T) {
	ran := false
	menu := NewMenu("root")
	menu.AddItem("Option A", "a", func(ctx context.Context) error {
		ran = true
		return nil
	})

	mgr := NewManager(context.Background(), func(m *Menu) (string, error) { return "a", nil })
	require.NoError(t, mgr.Show(menu))
	require.True(t, ran)
}

func TestManagerShowDescendsIntoSubMenu(t *testing.T) {
	ran := false
	sub := NewMenu("sub")
	sub.AddItem("Deep", "deep", func(ctx context.Context) error {
		ran = true
		return nil
	})

	root := NewMenu("root")
	root.AddSubMenu("Go deeper", "deeper", sub)

	calls := 0
	present := func(m *Menu) (string, error) {
		calls++
		if m.Title == "root" {
			return "deeper", nil
		}
		return "deep", nil
	}

	mgr := NewManager(context.Background(), present)
	require.NoError(t, mgr.Show(root))
	require.True(t, ran)
	require.Equal(t, 2, calls)
}

func TestManagerShowInvalidSelection(t *testing.T) {
	menu := NewMenu("root")
	menu.AddItem("Only", "only", nil)

	mgr := NewManager(context.Background(), func(m *Menu) (string, error) { return "missing", nil })
	require.Error(t, mgr.Show(menu))
}

func TestDisplayTitleStripsSourceSuffix(t *testing.T) {
	require.Equal(t, "Dandadan", displayTitle("Dandadan [animefire, otherhost]"))
	require.Equal(t, "No Sources", displayTitle("No Sources"))
}

func TestResumeEpisodeIndexUnseenStartsAtZero(t *testing.T) {
	c := &Controller{History: history.Open(filepath.Join(t.TempDir(), "history.json"))}
	require.Equal(t, 0, c.resumeEpisodeIndex("Never Watched"))
}

func TestResumeEpisodeIndexContinuesAfterLastWatched(t *testing.T) {
	hist := history.Open(filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, hist.Set("Frieren", history.Record{Timestamp: 1, EpisodeIndex: 3}))
	c := &Controller{History: hist}
	require.Equal(t, 4, c.resumeEpisodeIndex("Frieren"))
}
