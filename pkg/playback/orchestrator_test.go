package playback

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/animecore/animecore/pkg/anilist"
	"github.com/animecore/animecore/pkg/catalog"
	"github.com/animecore/animecore/pkg/history"
	"github.com/stretchr/testify/require"
)

// fakeAnilistClient implements ProgressClient without a network round
// trip, letting tests exercise the status-transition branches of
// SyncProgress.
type fakeAnilistClient struct {
	entry            *anilist.ListEntry
	setStatusOK      bool
	updateProgressOK bool
	addToListOK      bool
	viewer           *anilist.Viewer

	gotStatus []anilist.Status
	viewerCalled bool
}

func (f *fakeAnilistClient) IsAuthenticated() bool { return true }
func (f *fakeAnilistClient) ListEntry(ctx context.Context, id int64) *anilist.ListEntry {
	return f.entry
}
func (f *fakeAnilistClient) AddToList(ctx context.Context, mediaID int64) bool {
	return f.addToListOK
}
func (f *fakeAnilistClient) SetStatus(ctx context.Context, mediaID int64, status anilist.Status) bool {
	f.gotStatus = append(f.gotStatus, status)
	return f.setStatusOK
}
func (f *fakeAnilistClient) UpdateProgress(ctx context.Context, mediaID int64, episode int) bool {
	return f.updateProgressOK
}
func (f *fakeAnilistClient) Viewer(ctx context.Context) *anilist.Viewer {
	f.viewerCalled = true
	return f.viewer
}

type fakeExtractor struct {
	delay  time.Duration
	stream *catalog.VideoStream
	err    error
}

func (f fakeExtractor) ExtractStream(ctx context.Context, episodeURL string) (*catalog.VideoStream, error) {
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return f.stream, f.err
}

func TestResolveStreamPrefersPreferredSource(t *testing.T) {
	candidates := []Candidate{
		{URL: "http://slow/ep1", Source: "slow"},
		{URL: "http://fast/ep1", Source: "animefire"},
	}
	extractors := map[string]Extractor{
		"slow":      fakeExtractor{delay: 50 * time.Millisecond, stream: &catalog.VideoStream{URL: "slow.m3u8"}},
		"animefire": fakeExtractor{delay: time.Millisecond, stream: &catalog.VideoStream{URL: "fast.m3u8"}},
	}

	stream, source, err := ResolveStream(context.Background(), candidates, extractors, "animefire")
	require.NoError(t, err)
	require.Equal(t, "animefire", source)
	require.Equal(t, "fast.m3u8", stream.URL)
}

func TestResolveStreamFallsBackWhenPreferredFails(t *testing.T) {
	candidates := []Candidate{
		{URL: "http://pref/ep1", Source: "animefire"},
		{URL: "http://alt/ep1", Source: "otherhost"},
	}
	extractors := map[string]Extractor{
		"animefire": fakeExtractor{delay: time.Millisecond, err: errors.New("extraction failed")},
		"otherhost": fakeExtractor{delay: time.Millisecond, stream: &catalog.VideoStream{URL: "alt.m3u8"}},
	}

	stream, source, err := ResolveStream(context.Background(), candidates, extractors, "animefire")
	require.NoError(t, err)
	require.Equal(t, "otherhost", source)
	require.Equal(t, "alt.m3u8", stream.URL)
}

func TestResolveStreamNoCandidates(t *testing.T) {
	_, _, err := ResolveStream(context.Background(), nil, map[string]Extractor{}, "")
	require.Error(t, err)
}

func TestResolveStreamAllFail(t *testing.T) {
	candidates := []Candidate{{URL: "http://a/ep1", Source: "a"}}
	extractors := map[string]Extractor{
		"a": fakeExtractor{delay: time.Millisecond, err: errors.New("boom")},
	}
	_, _, err := ResolveStream(context.Background(), candidates, extractors, "")
	require.Error(t, err)
}

func TestSyncProgressWritesHistoryWithoutAnilist(t *testing.T) {
	hist := history.Open(filepath.Join(t.TempDir(), "history.json"))
	err := SyncProgress(context.Background(), hist, nil, "Frieren", 3, 0, "animefire", 28)
	require.NoError(t, err)

	rec, ok := hist.Get("Frieren")
	require.True(t, ok)
	require.Equal(t, 3, rec.EpisodeIndex)
}

func TestSyncProgressPromotesPlanningToCurrent(t *testing.T) {
	hist := history.Open(filepath.Join(t.TempDir(), "history.json"))
	client := &fakeAnilistClient{
		entry:            &anilist.ListEntry{Status: anilist.StatusPlanning},
		setStatusOK:      true,
		updateProgressOK: true,
	}

	err := SyncProgress(context.Background(), hist, client, "Frieren", 3, 101, "animefire", 28)
	require.NoError(t, err)
	require.Equal(t, []anilist.Status{anilist.StatusCurrent}, client.gotStatus)
	require.False(t, client.viewerCalled, "Viewer must not be called on the happy path")
}

func TestSyncProgressTransitionsCompletedToRepeating(t *testing.T) {
	hist := history.Open(filepath.Join(t.TempDir(), "history.json"))
	client := &fakeAnilistClient{
		entry:            &anilist.ListEntry{Status: anilist.StatusCompleted},
		setStatusOK:      true,
		updateProgressOK: true,
	}

	err := SyncProgress(context.Background(), hist, client, "Frieren", 0, 101, "animefire", 28)
	require.NoError(t, err)
	require.Equal(t, []anilist.Status{anilist.StatusRepeating}, client.gotStatus)
	require.False(t, client.viewerCalled)
}

func TestSyncProgressReVerifiesSessionOnWriteFailure(t *testing.T) {
	hist := history.Open(filepath.Join(t.TempDir(), "history.json"))
	client := &fakeAnilistClient{
		entry:            &anilist.ListEntry{Status: anilist.StatusPlanning},
		setStatusOK:      false,
		updateProgressOK: false,
		viewer:           &anilist.Viewer{ID: 1},
	}

	err := SyncProgress(context.Background(), hist, client, "Frieren", 3, 101, "animefire", 28)
	require.Error(t, err)
	require.True(t, client.viewerCalled, "a failed write must re-verify the session")
}
