package anilist

import (
	"context"
	"encoding/json"
	"sort"
	"time"
)

func (c *Client) doViewer(ctx context.Context) (*Viewer, error) {
	const q = `query { Viewer { id name statistics { anime { count episodesWatched } } } }`
	body, err := c.graphqlRequest(ctx, q, nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Data struct {
			Viewer *Viewer `json:"Viewer"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}
	return result.Data.Viewer, nil
}

// Viewer returns the authenticated user, or nil on auth failure
// (§4.7). A failed viewer() call is also used by callers to verify
// whether the token is still valid after a sync failure (§4.9).
func (c *Client) Viewer(ctx context.Context) *Viewer {
	if !c.IsAuthenticated() {
		return nil
	}
	v, err := c.doViewer(ctx)
	if err != nil {
		return nil
	}
	return v
}

const mediaFields = `
	id
	title { romaji english native }
	synonyms
	description
	format
	status
	episodes
	genres
	studios { nodes { name } }
	seasonYear
	season
	averageScore
	coverImage { large }
	startDate { year month day }
	endDate { year month day }
`

type rawMedia struct {
	ID    int64 `json:"id"`
	Title Title `json:"title"`
	Synonyms []string `json:"synonyms"`
	Description string `json:"description"`
	Format      string `json:"format"`
	Status      string `json:"status"`
	Episodes    int    `json:"episodes"`
	Genres      []string `json:"genres"`
	Studios     struct {
		Nodes []struct {
			Name string `json:"name"`
		} `json:"nodes"`
	} `json:"studios"`
	SeasonYear   int     `json:"seasonYear"`
	Season       string  `json:"season"`
	AverageScore float64 `json:"averageScore"`
	CoverImage   struct {
		Large string `json:"large"`
	} `json:"coverImage"`
	StartDate dateParts `json:"startDate"`
	EndDate   dateParts `json:"endDate"`
}

type dateParts struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

func (d dateParts) toTime() time.Time {
	if d.Year == 0 {
		return time.Time{}
	}
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

func (m rawMedia) toAnimeInfo() AnimeInfo {
	studios := make([]string, 0, len(m.Studios.Nodes))
	for _, s := range m.Studios.Nodes {
		studios = append(studios, s.Name)
	}
	return AnimeInfo{
		ID:           m.ID,
		Title:        m.Title,
		Synonyms:     m.Synonyms,
		Description:  m.Description,
		Format:       m.Format,
		Status:       m.Status,
		Episodes:     m.Episodes,
		Genres:       m.Genres,
		Studios:      studios,
		SeasonYear:   m.SeasonYear,
		Season:       m.Season,
		AverageScore: m.AverageScore,
		CoverImage:   m.CoverImage.Large,
		StartDate:    m.StartDate.toTime(),
		EndDate:      m.EndDate.toTime(),
	}
}

func (m rawMedia) toSummary() MediaSummary {
	return MediaSummary{
		ID:           m.ID,
		Title:        m.Title,
		Episodes:     m.Episodes,
		CoverImage:   m.CoverImage.Large,
		AverageScore: m.AverageScore,
		SeasonYear:   m.SeasonYear,
		Season:       m.Season,
	}
}

// Search returns up to ~10 candidate anime matching query (§4.7).
func (c *Client) Search(ctx context.Context, query string) []MediaSummary {
	q := `query ($search: String) { Page(page: 1, perPage: 10) { media(search: $search, type: ANIME) { ` + mediaFields + ` } } }`
	body, err := c.graphqlRequest(ctx, q, map[string]interface{}{"search": query})
	if err != nil {
		return nil
	}

	var result struct {
		Data struct {
			Page struct {
				Media []rawMedia `json:"media"`
			} `json:"Page"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil
	}

	out := make([]MediaSummary, 0, len(result.Data.Page.Media))
	for _, m := range result.Data.Page.Media {
		out = append(out, m.toSummary())
	}
	return out
}

// Trending returns page/perPage anime sorted by trending score,
// optionally filtered by year/season (§4.7).
func (c *Client) Trending(ctx context.Context, page, perPage int, year *int, season *Season) []MediaSummary {
	q := `
	query ($page: Int, $perPage: Int, $year: Int, $season: MediaSeason) {
		Page(page: $page, perPage: $perPage) {
			media(sort: TRENDING_DESC, type: ANIME, seasonYear: $year, season: $season) { ` + mediaFields + ` }
		}
	}`
	vars := map[string]interface{}{"page": page, "perPage": perPage}
	if year != nil {
		vars["year"] = *year
	}
	if season != nil {
		vars["season"] = string(*season)
	}

	body, err := c.graphqlRequest(ctx, q, vars)
	if err != nil {
		return nil
	}

	var result struct {
		Data struct {
			Page struct {
				Media []rawMedia `json:"media"`
			} `json:"Page"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil
	}

	out := make([]MediaSummary, 0, len(result.Data.Page.Media))
	for _, m := range result.Data.Page.Media {
		out = append(out, m.toSummary())
	}
	return out
}

// Media returns the full anime record for id, or nil on failure.
func (c *Client) Media(ctx context.Context, id int64) *AnimeInfo {
	q := `query ($id: Int) { Media(id: $id, type: ANIME) { ` + mediaFields + ` } }`
	body, err := c.graphqlRequest(ctx, q, map[string]interface{}{"id": id})
	if err != nil {
		return nil
	}

	var result struct {
		Data struct {
			Media *rawMedia `json:"Media"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil || result.Data.Media == nil {
		return nil
	}
	info := result.Data.Media.toAnimeInfo()
	return &info
}

// UserList returns the authenticated user's list entries for status,
// sorted by createdAt descending (§4.7).
func (c *Client) UserList(ctx context.Context, status Status) []ListEntry {
	if !c.IsAuthenticated() {
		return nil
	}
	q := `
	query ($userId: Int, $status: MediaListStatus) {
		MediaListCollection(userId: $userId, type: ANIME, status: $status) {
			lists { entries { id status progress score createdAt media { ` + mediaFields + ` } } }
		}
	}`
	body, err := c.graphqlRequest(ctx, q, map[string]interface{}{
		"userId": c.token.UserID,
		"status": string(status),
	})
	if err != nil {
		return nil
	}

	var result struct {
		Data struct {
			MediaListCollection struct {
				Lists []struct {
					Entries []struct {
						ID        int64    `json:"id"`
						Status    string   `json:"status"`
						Progress  int      `json:"progress"`
						Score     float64  `json:"score"`
						CreatedAt int64    `json:"createdAt"`
						Media     rawMedia `json:"media"`
					} `json:"entries"`
				} `json:"lists"`
			} `json:"MediaListCollection"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil
	}

	var out []ListEntry
	for _, list := range result.Data.MediaListCollection.Lists {
		for _, e := range list.Entries {
			out = append(out, ListEntry{
				ID:        e.ID,
				Status:    Status(e.Status),
				Progress:  e.Progress,
				Score:     e.Score,
				CreatedAt: time.Unix(e.CreatedAt, 0),
				Media:     e.Media.toAnimeInfo(),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// ListEntry returns the authenticated user's list entry for anime id,
// or nil if absent.
func (c *Client) ListEntry(ctx context.Context, id int64) *ListEntry {
	if !c.IsAuthenticated() {
		return nil
	}
	q := `
	query ($userId: Int, $mediaId: Int) {
		MediaList(userId: $userId, mediaId: $mediaId) {
			id status progress score createdAt media { ` + mediaFields + ` }
		}
	}`
	body, err := c.graphqlRequest(ctx, q, map[string]interface{}{
		"userId": c.token.UserID, "mediaId": id,
	})
	if err != nil {
		return nil
	}

	var result struct {
		Data struct {
			MediaList *struct {
				ID        int64    `json:"id"`
				Status    string   `json:"status"`
				Progress  int      `json:"progress"`
				Score     float64  `json:"score"`
				CreatedAt int64    `json:"createdAt"`
				Media     rawMedia `json:"media"`
			} `json:"MediaList"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil || result.Data.MediaList == nil {
		return nil
	}
	e := result.Data.MediaList
	return &ListEntry{
		ID: e.ID, Status: Status(e.Status), Progress: e.Progress, Score: e.Score,
		CreatedAt: time.Unix(e.CreatedAt, 0), Media: e.Media.toAnimeInfo(),
	}
}

// saveListEntry is the single mutation backing UpdateProgress,
// SetStatus, and AddToList — "the mutation accepts both in one call"
// (§4.7).
func (c *Client) saveListEntry(ctx context.Context, mediaID int64, status *Status, progress *int) bool {
	q := `
	mutation ($mediaId: Int, $status: MediaListStatus, $progress: Int) {
		SaveMediaListEntry(mediaId: $mediaId, status: $status, progress: $progress) { id }
	}`
	vars := map[string]interface{}{"mediaId": mediaID}
	if status != nil {
		vars["status"] = string(*status)
	}
	if progress != nil {
		vars["progress"] = *progress
	}
	_, err := c.graphqlRequest(ctx, q, vars)
	return err == nil
}

// UpdateProgress saves {mediaId, progress} (§4.7).
func (c *Client) UpdateProgress(ctx context.Context, mediaID int64, episode int) bool {
	return c.saveListEntry(ctx, mediaID, nil, &episode)
}

// SetStatus updates only the list status.
func (c *Client) SetStatus(ctx context.Context, mediaID int64, status Status) bool {
	return c.saveListEntry(ctx, mediaID, &status, nil)
}

// AddToList adds mediaID to the user's list with status CURRENT.
func (c *Client) AddToList(ctx context.Context, mediaID int64) bool {
	status := StatusCurrent
	return c.saveListEntry(ctx, mediaID, &status, nil)
}

// Sequels returns relations of id whose relationType is SEQUEL.
func (c *Client) Sequels(ctx context.Context, id int64) []MediaSummary {
	q := `
	query ($id: Int) {
		Media(id: $id, type: ANIME) {
			relations {
				edges {
					relationType
					node { ` + mediaFields + ` }
				}
			}
		}
	}`
	body, err := c.graphqlRequest(ctx, q, map[string]interface{}{"id": id})
	if err != nil {
		return nil
	}

	var result struct {
		Data struct {
			Media struct {
				Relations struct {
					Edges []struct {
						RelationType string   `json:"relationType"`
						Node         rawMedia `json:"node"`
					} `json:"edges"`
				} `json:"relations"`
			} `json:"Media"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil
	}

	var out []MediaSummary
	for _, e := range result.Data.Media.Relations.Edges {
		if e.RelationType == "SEQUEL" {
			out = append(out, e.Node.toSummary())
		}
	}
	return out
}

// RecentActivities returns up to limit recent list-activity entries
// for the authenticated user.
func (c *Client) RecentActivities(ctx context.Context, limit int) []Activity {
	if !c.IsAuthenticated() {
		return nil
	}
	q := `
	query ($userId: Int, $perPage: Int) {
		Page(page: 1, perPage: $perPage) {
			activities(userId: $userId, type: ANIME_LIST, sort: ID_DESC) {
				... on ListActivity {
					id status progress createdAt
					media { ` + mediaFields + ` }
				}
			}
		}
	}`
	body, err := c.graphqlRequest(ctx, q, map[string]interface{}{
		"userId": c.token.UserID, "perPage": limit,
	})
	if err != nil {
		return nil
	}

	var result struct {
		Data struct {
			Page struct {
				Activities []struct {
					ID        int64    `json:"id"`
					Status    string   `json:"status"`
					Progress  string   `json:"progress"`
					CreatedAt int64    `json:"createdAt"`
					Media     rawMedia `json:"media"`
				} `json:"activities"`
			} `json:"Page"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil
	}

	out := make([]Activity, 0, len(result.Data.Page.Activities))
	for _, a := range result.Data.Page.Activities {
		out = append(out, Activity{
			ID: a.ID, Status: a.Status, Progress: a.Progress,
			CreatedAt: time.Unix(a.CreatedAt, 0), Media: a.Media.toSummary(),
		})
	}
	return out
}
