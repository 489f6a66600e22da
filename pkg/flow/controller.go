// Package flow is the interactive flow controller (C11): it drives
// search -> select -> play -> sync, asks the user to confirm
// auto-discovered identity mappings, resumes at the episode after the
// last one recorded in history (there is no per-episode
// previous/current/next/other/restart menu), and handles source
// switching and sequel continuation. Grounded on Wraient-pair/pkg/appcore/app.go
// for overall wiring and pkg/ui/menu_manager.go + pkg/ui/cli.go for
// presentation, both adapted in this package (menu.go, cli.go).
package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/animecore/animecore/pkg/anilist"
	"github.com/animecore/animecore/pkg/catalog"
	"github.com/animecore/animecore/pkg/history"
	"github.com/animecore/animecore/pkg/identity"
	"github.com/animecore/animecore/pkg/logger"
	"github.com/animecore/animecore/pkg/playback"
	"github.com/animecore/animecore/pkg/player"
	"go.uber.org/zap"
)

// Controller wires the catalog, identity resolver, AniList client,
// history store, playback orchestrator, and player driver into a
// single interactive loop.
type Controller struct {
	Catalog         *catalog.Catalog
	Registry        *catalog.Registry
	Resolver        *identity.Resolver
	Anilist         *anilist.Client
	History         *history.Store
	Player          *player.Driver
	Present         Presenter
	PreferredSource string

	// Debug skips spawning the real player subprocess (§6 `-d/--debug`):
	// playEpisode still resolves the stream and syncs progress, it just
	// never shells out to mpv.
	Debug bool
}

// RunQuery runs the full search -> select -> episode -> play loop for
// an initial query (§6 `-q/--query`).
func (c *Controller) RunQuery(ctx context.Context, query string) error {
	if err := c.Catalog.Search(ctx, query); err != nil {
		return fmt.Errorf("search: %w", err)
	}

	anime, err := c.selectAnime(ctx, query)
	if err != nil {
		return err
	}
	return c.watchLoop(ctx, anime)
}

// RunContinueWatching resumes the most recently watched anime (§6
// `-c/--continue_watching`).
func (c *Controller) RunContinueWatching(ctx context.Context) error {
	entries := c.History.ListSortedByTimestampDesc()
	if len(entries) == 0 {
		return fmt.Errorf("continue watching: no watch history")
	}
	title := entries[0].Title
	if err := c.Catalog.Search(ctx, title); err != nil {
		return fmt.Errorf("continue watching: search: %w", err)
	}
	return c.watchLoop(ctx, title)
}

func (c *Controller) selectAnime(ctx context.Context, originalQuery string) (string, error) {
	titles := c.Catalog.TitlesWithSources("", originalQuery)
	if len(titles) == 0 {
		return "", fmt.Errorf("no anime found for %q", originalQuery)
	}

	menu := NewMenu("Select anime")
	for _, t := range titles {
		title := displayTitle(t)
		menu.AddItem(t, title, nil)
	}

	selected, err := c.present(menu)
	if err != nil {
		return "", err
	}

	c.confirmIdentityMapping(ctx, selected)
	return selected, nil
}

// confirmIdentityMapping asks the user to confirm an auto-discovered
// AniList identity before it is persisted for reuse (§4.6: reuse is
// something the user confirms, not something auto-committed). A title
// already mapped via a prior confirmation is skipped silently.
func (c *Controller) confirmIdentityMapping(ctx context.Context, anime string) {
	anilistID, ok := c.Catalog.AnilistID(anime)
	if !ok {
		return
	}
	if _, confirmed := c.Resolver.SwitchSource(ctx, anilistID); confirmed {
		return
	}

	menu := NewMenu(fmt.Sprintf("Match %q to this AniList entry?", anime))
	menu.AddItem("Yes", "yes", nil)
	menu.AddItem("No", "no", nil)
	choice, err := c.present(menu)
	if err != nil || choice != "yes" {
		c.Catalog.ClearAnilistID(anime)
		return
	}

	if err := c.Resolver.Confirm(anilistID, anime); err != nil {
		logger.Warn("confirm identity mapping failed", zap.String("anime", anime), zap.Error(err))
	}
}

// displayTitle strips the catalog's "[source1, source2]" suffix off a
// TitlesWithSources row, leaving the bare title used as the map key
// everywhere else (history, identity, episode lookups).
func displayTitle(row string) string {
	if idx := strings.LastIndex(row, " ["); idx > 0 {
		return row[:idx]
	}
	return row
}

func (c *Controller) present(menu *Menu) (string, error) {
	present := c.Present
	if present == nil {
		present = PresentCLI
	}
	return present(menu)
}

func (c *Controller) watchLoop(ctx context.Context, anime string) error {
	if err := c.Catalog.SearchEpisodes(ctx, anime, ""); err != nil {
		return fmt.Errorf("search episodes: %w", err)
	}
	episodes := c.Catalog.EpisodeList(anime)
	if episodes == nil || len(episodes.Titles) == 0 {
		return fmt.Errorf("no episodes found for %q", anime)
	}

	start := c.resumeEpisodeIndex(anime)

	for idx := start; idx < len(episodes.Titles); idx++ {
		outcome, err := c.playEpisode(ctx, anime, idx, len(episodes.Titles))
		if err != nil {
			logger.Error("play episode failed", zap.String("anime", anime), zap.Int("episode", idx), zap.Error(err))
			return err
		}
		if outcome != player.OutcomeOK {
			return nil
		}
		if idx == len(episodes.Titles)-1 {
			c.offerSequel(ctx, anime)
		}
	}
	return nil
}

// resumeEpisodeIndex returns the zero-based episode to start from:
// the episode after the last one recorded in history, or 0 if unseen.
func (c *Controller) resumeEpisodeIndex(anime string) int {
	rec, ok := c.History.Get(anime)
	if !ok {
		return 0
	}
	return rec.EpisodeIndex + 1
}

func (c *Controller) playEpisode(ctx context.Context, anime string, episodeIndex, totalEpisodes int) (player.Outcome, error) {
	candidates := c.episodeCandidates(anime, episodeIndex+1)
	if len(candidates) == 0 {
		return "", fmt.Errorf("episode %d not available for %q", episodeIndex+1, anime)
	}
	extractors := c.extractorsFor(candidates)

	stream, usedSource, err := playback.ResolveStream(ctx, candidates, extractors, c.PreferredSource)
	if err != nil {
		return "", fmt.Errorf("resolve stream: %w", err)
	}

	outcome := player.OutcomeOK
	if c.Debug {
		logger.Info("debug mode: skipping player launch",
			zap.String("anime", anime), zap.Int("episode", episodeIndex+1), zap.String("stream", stream.URL))
	} else {
		var playErr error
		outcome, playErr = c.Player.Play(ctx, stream, fmt.Sprintf("%s - Episode %d", anime, episodeIndex+1))
		if playErr != nil && outcome == player.OutcomeError {
			return outcome, playErr
		}
	}

	if outcome == player.OutcomeOK {
		anilistID, _ := c.Catalog.AnilistID(anime)
		if err := playback.SyncProgress(ctx, c.History, c.Anilist, anime, episodeIndex, anilistID, usedSource, totalEpisodes); err != nil {
			logger.Warn("sync progress failed", zap.String("anime", anime), zap.Error(err))
		}
	}
	return outcome, nil
}

// episodeCandidates gathers every (url, source) pair for episodeNumber
// across every episode list the catalog joined for anime.
func (c *Controller) episodeCandidates(anime string, episodeNumber int) []playback.Candidate {
	var out []playback.Candidate
	for _, source := range c.Catalog.Sources(anime) {
		if err := c.Catalog.SearchEpisodes(context.Background(), anime, source); err != nil {
			continue
		}
		if url, src, ok := c.Catalog.EpisodeURLAndSource(anime, episodeNumber); ok {
			out = append(out, playback.Candidate{URL: url, Source: src})
		}
	}
	return out
}

func (c *Controller) extractorsFor(candidates []playback.Candidate) map[string]playback.Extractor {
	out := make(map[string]playback.Extractor, len(candidates))
	for _, cand := range candidates {
		if p, ok := c.Registry.Get(cand.Source); ok {
			out[cand.Source] = p
		}
	}
	return out
}

// offerSequel checks AniList for a sequel after the last episode and,
// if one exists and is accepted, re-runs the flow against it (§4.9).
func (c *Controller) offerSequel(ctx context.Context, anime string) {
	anilistID, ok := c.Catalog.AnilistID(anime)
	if !ok {
		return
	}
	sequel := playback.OfferSequel(ctx, c.Anilist, anilistID)
	if sequel == nil {
		return
	}

	menu := NewMenu(fmt.Sprintf("Continue into %s?", sequel.Title.Romaji))
	menu.AddItem("Yes", "yes", nil)
	menu.AddItem("No", "no", nil)
	choice, err := c.present(menu)
	if err != nil || choice != "yes" {
		return
	}

	title := sequel.Title.Romaji
	if err := c.Catalog.Search(ctx, title); err != nil {
		logger.Warn("sequel search failed", zap.String("title", title), zap.Error(err))
		return
	}
	_ = c.watchLoop(ctx, title)
}

// SwitchSource re-resolves anime against a different plugin, reusing
// the identity mapping's remembered search title so the AniList
// identity carries over (§4.6 "switch source").
func (c *Controller) SwitchSource(ctx context.Context, anime string, newSource string) error {
	anilistID, ok := c.Catalog.AnilistID(anime)
	if !ok {
		return c.Catalog.SearchEpisodes(ctx, anime, newSource)
	}

	searchTitle, ok := c.Resolver.SwitchSource(ctx, anilistID)
	if !ok {
		searchTitle = anime
	}
	if err := c.Catalog.Search(ctx, searchTitle); err != nil {
		return fmt.Errorf("switch source: %w", err)
	}
	return c.Catalog.SearchEpisodes(ctx, anime, newSource)
}
