// Package htmlsource is a reference scraper plugin that discovers
// anime by parsing a search-results page with goquery selectors,
// grounded on the GoAnime example's searchAnimeOnPage/ParseAnimes
// pattern (selector ".row.ml-1.mr-1 a"). It demonstrates the C2
// contract for a plugin whose transport is plain HTML scraping rather
// than a JSON API.
package htmlsource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/animecore/animecore/pkg/catalog"
	"golang.org/x/time/rate"
)

// Plugin scrapes a single configured HTML site.
type Plugin struct {
	name      string
	baseURL   string
	languages []string
	client    *http.Client
	limiter   *rate.Limiter
}

// New returns an htmlsource plugin rooted at baseURL, identified by
// name, rate-limited to requestsPerSecond outbound requests.
func New(name, baseURL string, languages []string, requestsPerSecond float64) *Plugin {
	return &Plugin{
		name:      name,
		baseURL:   strings.TrimRight(baseURL, "/"),
		languages: languages,
		client:    &http.Client{Timeout: 10 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

func (p *Plugin) Name() string        { return p.name }
func (p *Plugin) Languages() []string { return p.languages }

func (p *Plugin) get(ctx context.Context, path string) (*goquery.Document, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("htmlsource %s: unexpected status %d", p.name, resp.StatusCode)
	}

	return goquery.NewDocumentFromReader(resp.Body)
}

// SearchAnime scrapes the search-results page for query, calling add
// for each `.row.ml-1.mr-1 a` anchor found (grounded on
// alvarorichard-GoAnime's searchAnimeOnPage selector).
func (p *Plugin) SearchAnime(ctx context.Context, query string, add catalog.AddAnimeFunc) error {
	doc, err := p.get(ctx, "/?s="+url.QueryEscape(query))
	if err != nil {
		return err
	}

	doc.Find(".row.ml-1.mr-1 a").Each(func(_ int, sel *goquery.Selection) {
		if ctx.Err() != nil {
			return
		}
		title := strings.TrimSpace(sel.Text())
		href, ok := sel.Attr("href")
		if title == "" || !ok {
			return
		}
		if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
			href = p.baseURL + href
		}
		add(title, href, p.Name(), nil)
	})

	return ctx.Err()
}

// SearchEpisodes scrapes the anime page at url for its episode list.
func (p *Plugin) SearchEpisodes(ctx context.Context, animeTitle, episodeListURL string, params map[string]string, add catalog.AddEpisodeListFunc) error {
	doc, err := p.get(ctx, strings.TrimPrefix(episodeListURL, p.baseURL))
	if err != nil {
		return err
	}

	var titles, urls []string
	doc.Find(".episodes a").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		if !strings.HasPrefix(href, "http") {
			href = p.baseURL + href
		}
		titles = append(titles, strings.TrimSpace(sel.Text()))
		urls = append(urls, href)
	})

	if len(titles) == 0 {
		return nil
	}
	add(animeTitle, titles, urls, p.Name())
	return nil
}

// ExtractStream scrapes the episode page for a direct video source.
func (p *Plugin) ExtractStream(ctx context.Context, episodeURL string) (*catalog.VideoStream, error) {
	doc, err := p.get(ctx, strings.TrimPrefix(episodeURL, p.baseURL))
	if err != nil {
		return nil, err
	}

	src, ok := doc.Find("video source").First().Attr("src")
	if !ok || src == "" {
		return nil, fmt.Errorf("htmlsource %s: no stream found at %s", p.name, episodeURL)
	}
	return &catalog.VideoStream{URL: src}, nil
}
