package flow

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/animecore/animecore/pkg/anilist"
)

// RunInteractive drives the root menu until the user quits (§4.11: a
// root menu offering search, continue-watching, the AniList submenu,
// and manga, rendered disabled since this repo doesn't implement it).
func (c *Controller) RunInteractive(ctx context.Context) error {
	return NewManager(ctx, c.present).Show(c.RootMenu())
}

// RootMenu is the top-level entry point (§4.11).
func (c *Controller) RootMenu() *Menu {
	menu := NewMenu("animecore")
	menu.AddItem("Search", "search", func(ctx context.Context) error {
		query, err := promptLine("Search: ")
		if err != nil {
			return err
		}
		return c.RunQuery(ctx, query)
	})
	menu.AddItem("Continue watching", "continue", func(ctx context.Context) error {
		return c.RunContinueWatching(ctx)
	})
	menu.AddSubMenu("AniList", "anilist", c.AnilistMenu())

	manga := menu.AddItem("Manga", "manga", nil)
	manga.Enabled = false
	manga.Description = "manga browsing is not implemented in this build"

	return menu
}

// AnilistMenu is the AniList sub-menu (§4.11): trending anime, the
// authenticated user's list, and recent list activity. Grounded on
// Wraient-pair/pkg/ui/anilist.go's ShowMainMenu's list of
// {Label, Value} actions feeding the same anime-search/selection flow.
func (c *Controller) AnilistMenu() *Menu {
	menu := NewMenu("AniList")
	menu.AddItem("Trending", "trending", func(ctx context.Context) error {
		return c.browseTrending(ctx)
	})
	menu.AddItem("My list", "my-list", func(ctx context.Context) error {
		return c.browseUserList(ctx, anilist.StatusCurrent)
	})
	menu.AddItem("Recent activity", "recent", func(ctx context.Context) error {
		return c.browseRecentActivity(ctx)
	})
	return menu
}

// browseTrending lists the current trending page and, on selection,
// searches the catalog for the chosen title and plays it.
func (c *Controller) browseTrending(ctx context.Context) error {
	results := c.Anilist.Trending(ctx, 1, 20, nil, nil)
	if len(results) == 0 {
		return fmt.Errorf("anilist: no trending results")
	}
	return c.presentMediaSummaries(ctx, "Trending", results)
}

// browseUserList lists the authenticated viewer's list entries at
// status and, on selection, searches the catalog for the chosen title.
func (c *Controller) browseUserList(ctx context.Context, status anilist.Status) error {
	entries := c.Anilist.UserList(ctx, status)
	if len(entries) == 0 {
		return fmt.Errorf("anilist: list is empty for status %s", status)
	}

	menu := NewMenu("My list")
	for _, e := range entries {
		title := displayAnilistTitle(e.Media.Title)
		label := fmt.Sprintf("%s (%d/%d)", title, e.Progress, e.Media.Episodes)
		menu.AddItem(label, title, func(ctx context.Context) error {
			return c.searchAndWatch(ctx, title)
		})
	}
	choice, err := c.present(menu)
	if err != nil {
		return err
	}
	return c.searchAndWatch(ctx, choice)
}

// browseRecentActivity lists the viewer's recent list activity.
func (c *Controller) browseRecentActivity(ctx context.Context) error {
	activities := c.Anilist.RecentActivities(ctx, 20)
	if len(activities) == 0 {
		return fmt.Errorf("anilist: no recent activity")
	}

	menu := NewMenu("Recent activity")
	for _, a := range activities {
		title := displayAnilistTitle(a.Media.Title)
		label := fmt.Sprintf("%s - %s", title, a.Status)
		menu.AddItem(label, title, func(ctx context.Context) error {
			return c.searchAndWatch(ctx, title)
		})
	}
	choice, err := c.present(menu)
	if err != nil {
		return err
	}
	return c.searchAndWatch(ctx, choice)
}

// presentMediaSummaries renders results as a menu and, on selection,
// searches the catalog for the chosen title and plays it.
func (c *Controller) presentMediaSummaries(ctx context.Context, title string, results []anilist.MediaSummary) error {
	menu := NewMenu(title)
	for _, r := range results {
		name := displayAnilistTitle(r.Title)
		menu.AddItem(name, name, func(ctx context.Context) error {
			return c.searchAndWatch(ctx, name)
		})
	}
	choice, err := c.present(menu)
	if err != nil {
		return err
	}
	return c.searchAndWatch(ctx, choice)
}

// searchAndWatch runs the catalog search for an AniList-sourced title
// and jumps straight into the watch loop once an anime is selected.
func (c *Controller) searchAndWatch(ctx context.Context, title string) error {
	if err := c.Catalog.Search(ctx, title); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	anime, err := c.selectAnime(ctx, title)
	if err != nil {
		return err
	}
	return c.watchLoop(ctx, anime)
}

func displayAnilistTitle(t anilist.Title) string {
	if t.Romaji != "" {
		return t.Romaji
	}
	return t.English
}

// promptLine reads one line of free-text input from stdin, trimming
// the trailing newline.
func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
