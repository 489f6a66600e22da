package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/animecore/animecore/pkg/anilist"
	"github.com/animecore/animecore/pkg/cachestore"
	"github.com/animecore/animecore/pkg/catalog"
	"github.com/animecore/animecore/pkg/config"
	"github.com/animecore/animecore/pkg/flow"
	"github.com/animecore/animecore/pkg/history"
	"github.com/animecore/animecore/pkg/identity"
	"github.com/animecore/animecore/pkg/logger"
	"github.com/animecore/animecore/pkg/player"
	"github.com/animecore/animecore/pkg/plugins/fixture"
	"github.com/animecore/animecore/pkg/plugins/htmlsource"
	flagset "github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	var (
		query            string
		continueWatching bool
		debug            bool
	)
	flagset.StringVarP(&query, "query", "q", "", "search query")
	flagset.BoolVarP(&continueWatching, "continue_watching", "c", false, "resume the most recently watched anime")
	flagset.BoolVarP(&debug, "debug", "d", false, "run with the in-memory fixture source and skip spawning the player")
	flagset.Parse(os.Args[1:])

	if err := logger.Initialize(debug); err != nil {
		fmt.Fprintln(os.Stderr, "animecore: logger init:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := config.Initialize(); err != nil {
		fmt.Fprintln(os.Stderr, "animecore: config init:", err)
		os.Exit(1)
	}

	args := flagset.Args()
	if len(args) >= 1 && args[0] == "anilist" {
		if err := runAnilistCommand(args[1:]); err != nil {
			fmt.Fprintln(os.Stderr, "animecore:", err)
			os.Exit(1)
		}
		return
	}

	ctrl, err := buildController(debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, "animecore:", err)
		os.Exit(1)
	}

	ctx := context.Background()
	switch {
	case continueWatching:
		err = ctrl.RunContinueWatching(ctx)
	case query != "":
		err = ctrl.RunQuery(ctx, query)
	default:
		err = ctrl.RunInteractive(ctx)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "animecore:", err)
		os.Exit(1)
	}
}

func runAnilistCommand(args []string) error {
	sub := "menu"
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "auth":
		cfg := config.Get()
		client := anilist.NewClient(config.GetConfigDir(), anilist.Config{
			ClientID:     cfg.Anilist.ClientID,
			ClientSecret: cfg.Anilist.ClientSecret,
			RedirectPort: cfg.Anilist.RedirectPort,
		})
		return client.Authenticate(context.Background())
	case "menu":
		ctrl, err := buildController(false)
		if err != nil {
			return err
		}
		mgr := flow.NewManager(context.Background(), flow.PresentCLI)
		return mgr.Show(ctrl.AnilistMenu())
	default:
		return fmt.Errorf("anilist: unknown subcommand %q", sub)
	}
}

func buildController(debug bool) (*flow.Controller, error) {
	cfg := config.Get()
	dataDir := config.GetDataDir()

	cache, err := cachestore.Open(filepath.Join(dataDir, "cache"), cfg.Cache.ShardCount, filepath.Join(dataDir, "scraper_cache.json"))
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	anilistClient := anilist.NewClient(config.GetConfigDir(), anilist.Config{
		ClientID:     cfg.Anilist.ClientID,
		ClientSecret: cfg.Anilist.ClientSecret,
		RedirectPort: cfg.Anilist.RedirectPort,
	})

	mappings := identity.OpenMappingStore(filepath.Join(dataDir, "anilist_mappings.json"))
	resolver := identity.New(anilistClient, cache, mappings, cfg.Identity.FuzzyThreshold, cfg.Identity.CandidateLimit)

	registry := catalog.NewRegistry(filepath.Join(dataDir, "plugin_preferences.json"))
	extensions, err := catalog.OpenExtensionStore(filepath.Join(dataDir, "extensions.db"))
	if err != nil {
		return nil, fmt.Errorf("open extension store: %w", err)
	}
	loadPlugins(registry, extensions, cfg, debug)

	cacheTTL := time.Duration(cfg.Cache.DurationHours) * time.Hour
	cat := catalog.New(registry, cache, resolver, cacheTTL, cfg.Search.ProgressiveSearchMinWords)

	hist := history.Open(filepath.Join(dataDir, "history.json"))

	return &flow.Controller{
		Catalog:  cat,
		Registry: registry,
		Resolver: resolver,
		Anilist:  anilistClient,
		History:  hist,
		Player: player.New(player.Config{
			PlayerPath:       cfg.Playback.PlayerPath,
			Fullscreen:       true,
			CursorAutohide:   true,
			CacheEnabled:     true,
			ReadaheadSeconds: cfg.Playback.ReadaheadSeconds,
			PlaybackSpeed:    cfg.Playback.PlaybackSpeed,
			MaxHeight:        1080,
		}),
		PreferredSource: cfg.Playback.PreferredSource,
		Debug:           debug,
	}, nil
}

// loadPlugins registers the active plugin set (the fixture in debug
// mode or every configured scraper otherwise), then records each
// registered plugin in the extension store so `extensions.db` answers
// "what is installed" without re-scanning the plugin directory (§4.1
// domain-stack addition).
func loadPlugins(registry *catalog.Registry, extensions *catalog.ExtensionStore, cfg *config.Config, debug bool) {
	if debug || cfg.Search.FixturePlugin != "" {
		registry.Load([]catalog.Plugin{fixture.New(
			fixture.Anime{Title: "Kimetsu no Yaiba", URL: "https://fixture.invalid/kny", Episodes: []string{"Episode 1", "Episode 2"}},
		)}, cfg.Plugins.Languages)
	} else {
		var candidates []catalog.Plugin
		if cfg.Plugins.Directory != "" {
			candidates = append(candidates, htmlsource.New("animefire", "https://animefire.plus", []string{"pt-BR"}, 2))
		}
		registry.Load(candidates, cfg.Plugins.Languages)
	}

	recordExtensions(registry, extensions)
}

func recordExtensions(registry *catalog.Registry, extensions *catalog.ExtensionStore) {
	for _, p := range registry.All() {
		lang := ""
		if langs := p.Languages(); len(langs) > 0 {
			lang = langs[0]
		}
		rec := catalog.ExtensionRecord{
			Package:  "github.com/animecore/animecore/pkg/plugins/" + p.Name(),
			Name:     p.Name(),
			Language: lang,
			Version:  "built-in",
			Path:     "pkg/plugins/" + p.Name(),
		}
		if err := extensions.Put(rec); err != nil {
			logger.Warn("record extension failed", zap.String("plugin", p.Name()), zap.Error(err))
		}
	}
}
