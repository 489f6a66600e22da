// Package playback implements the playback orchestrator (C9):
// priority-tiered racing stream resolution and post-playback progress
// synchronization against the history store and AniList.
package playback

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/animecore/animecore/pkg/anilist"
	"github.com/animecore/animecore/pkg/catalog"
	"github.com/animecore/animecore/pkg/history"
)

const preferredSourceDeadline = 15 * time.Second

// Extractor is the narrow slice of catalog.Plugin the orchestrator
// races — a single episode URL in, a single stream out.
type Extractor interface {
	ExtractStream(ctx context.Context, episodeURL string) (*catalog.VideoStream, error)
}

// Candidate is one (url, source) pair available for an episode.
type Candidate struct {
	URL    string
	Source string
}

// ResolveStream races the candidates for one episode, tier by tier:
// preferred-source candidates race each other first with a 15s
// deadline; if none win, every remaining candidate races with no
// extra deadline. The first VideoStream wins; the rest are cancelled,
// not awaited (§4.9).
func ResolveStream(ctx context.Context, candidates []Candidate, extractors map[string]Extractor, preferredSource string) (*catalog.VideoStream, string, error) {
	if len(candidates) == 0 {
		return nil, "", fmt.Errorf("playback: episode not available in any active source")
	}

	var preferred, rest []Candidate
	for _, c := range candidates {
		if preferredSource != "" && c.Source == preferredSource {
			preferred = append(preferred, c)
		} else {
			rest = append(rest, c)
		}
	}

	if len(preferred) > 0 {
		deadlineCtx, cancel := context.WithTimeout(ctx, preferredSourceDeadline)
		stream, source := race(deadlineCtx, preferred, extractors)
		cancel()
		if stream != nil {
			return stream, source, nil
		}
	}

	if len(rest) > 0 {
		stream, source := race(ctx, rest, extractors)
		if stream != nil {
			return stream, source, nil
		}
	}

	return nil, "", fmt.Errorf("playback: all sources failed to resolve a stream")
}

// race runs one extraction attempt per candidate concurrently and
// returns the first success. A failing extractor counts as an ordinary
// loss (its error is dropped, not logged) and never kills siblings
// (§4.9 "per-task isolation"); once every attempt has lost, race
// returns nil.
func race(ctx context.Context, candidates []Candidate, extractors map[string]Extractor) (*catalog.VideoStream, string) {
	type result struct {
		stream *catalog.VideoStream
		source string
	}

	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	resultCh := make(chan result, len(candidates))
	launched := 0
	for _, c := range candidates {
		ext, ok := extractors[c.Source]
		if !ok {
			continue
		}
		launched++
		go func(c Candidate, ext Extractor) {
			stream, err := ext.ExtractStream(attemptCtx, c.URL)
			if err != nil {
				stream = nil
			}
			// A loss is reported as a nil stream so the loop below can
			// count it instead of waiting on it.
			select {
			case resultCh <- result{stream: stream, source: c.Source}:
			case <-attemptCtx.Done():
			}
		}(c, ext)
	}

	for remaining := launched; remaining > 0; {
		select {
		case r := <-resultCh:
			if r.stream != nil {
				return r.stream, r.source
			}
			remaining--
		case <-ctx.Done():
			return nil, ""
		}
	}
	return nil, ""
}

// ProgressClient is the narrow slice of *anilist.Client SyncProgress
// needs, defined here so tests can exercise the AniList-present branch
// against a fake instead of a network round trip.
type ProgressClient interface {
	IsAuthenticated() bool
	ListEntry(ctx context.Context, id int64) *anilist.ListEntry
	AddToList(ctx context.Context, mediaID int64) bool
	SetStatus(ctx context.Context, mediaID int64, status anilist.Status) bool
	UpdateProgress(ctx context.Context, mediaID int64, episode int) bool
	Viewer(ctx context.Context) *anilist.Viewer
}

// SyncProgress writes a completed-episode watch to history, then, if
// authenticated and an anilist_id is known, updates the AniList list
// entry: adds CURRENT if absent, promotes PLANNING->CURRENT, or
// transitions COMPLETED->REPEATING (§4.9). Each write's success is
// checked; a PLANNING->CURRENT or COMPLETED->REPEATING transition is
// only treated as applied once its SetStatus call reports success. A
// failed write re-verifies the session with Viewer() before giving up,
// matching the teacher's re-auth-before-giving-up pattern — that call
// only happens on the failure path, not after every sync.
func SyncProgress(ctx context.Context, hist *history.Store, client ProgressClient, animeTitle string, episodeIndex int, anilistID int64, source string, totalEpisodes int) error {
	if err := hist.Set(animeTitle, history.Record{
		Timestamp:     time.Now().Unix(),
		EpisodeIndex:  episodeIndex,
		AnilistID:     anilistID,
		Source:        source,
		TotalEpisodes: totalEpisodes,
	}); err != nil {
		return fmt.Errorf("sync progress: history: %w", err)
	}

	if client == nil || !client.IsAuthenticated() || anilistID == 0 {
		return nil
	}

	ok := true
	entry := client.ListEntry(ctx, anilistID)
	if entry == nil {
		ok = client.AddToList(ctx, anilistID) && ok
		ok = client.UpdateProgress(ctx, anilistID, episodeIndex+1) && ok
	} else {
		switch entry.Status {
		case anilist.StatusPlanning:
			ok = client.SetStatus(ctx, anilistID, anilist.StatusCurrent) && ok
		case anilist.StatusCompleted:
			ok = client.SetStatus(ctx, anilistID, anilist.StatusRepeating) && ok
		}
		ok = client.UpdateProgress(ctx, anilistID, episodeIndex+1) && ok
	}

	if ok {
		return nil
	}
	if client.Viewer(ctx) == nil {
		return fmt.Errorf("sync progress: anilist session appears invalid")
	}
	return fmt.Errorf("sync progress: anilist update rejected despite a valid session")
}

// OfferSequel returns the first sequel of anilistID, if AniList lists
// one, so the flow controller can offer to continue into it after the
// last episode (§4.9).
func OfferSequel(ctx context.Context, client *anilist.Client, anilistID int64) *anilist.MediaSummary {
	if client == nil || anilistID == 0 {
		return nil
	}
	sequels := client.Sequels(ctx, anilistID)
	if len(sequels) == 0 {
		return nil
	}
	sort.Slice(sequels, func(i, j int) bool { return sequels[i].ID < sequels[j].ID })
	return &sequels[0]
}
