package anilist

import "time"

// Title holds the three title renderings AniList exposes.
type Title struct {
	Romaji  string `json:"romaji"`
	English string `json:"english"`
	Native  string `json:"native"`
}

// Viewer is the authenticated user (§4.7 viewer()).
type Viewer struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Statistics struct {
		Anime struct {
			Count        int `json:"count"`
			EpisodesWatched int `json:"episodesWatched"`
		} `json:"anime"`
	} `json:"statistics"`
}

// MediaSummary is the compact anime shape used by trending/search
// results.
type MediaSummary struct {
	ID           int64   `json:"id"`
	Title        Title   `json:"title"`
	Episodes     int     `json:"episodes,omitempty"`
	CoverImage   string  `json:"cover_image,omitempty"`
	AverageScore float64 `json:"average_score,omitempty"`
	SeasonYear   int     `json:"season_year,omitempty"`
	Season       string  `json:"season,omitempty"`
}

// AnimeInfo is the full media record returned by Media(id).
type AnimeInfo struct {
	ID          int64    `json:"id"`
	Title       Title     `json:"title"`
	Synonyms    []string  `json:"synonyms,omitempty"`
	Description string    `json:"description,omitempty"`
	Format      string    `json:"format,omitempty"`
	Status      string    `json:"status,omitempty"`
	Episodes    int       `json:"episodes,omitempty"`
	Genres      []string  `json:"genres,omitempty"`
	Studios     []string  `json:"studios,omitempty"`
	SeasonYear  int       `json:"season_year,omitempty"`
	Season      string    `json:"season,omitempty"`
	AverageScore float64  `json:"average_score,omitempty"`
	CoverImage  string    `json:"cover_image,omitempty"`
	StartDate   time.Time `json:"start_date,omitempty"`
	EndDate     time.Time `json:"end_date,omitempty"`
}

// Status is a MediaListStatus value.
type Status string

const (
	StatusCurrent   Status = "CURRENT"
	StatusPlanning  Status = "PLANNING"
	StatusCompleted Status = "COMPLETED"
	StatusPaused    Status = "PAUSED"
	StatusDropped   Status = "DROPPED"
	StatusRepeating Status = "REPEATING"
)

// Season is a MediaSeason value.
type Season string

const (
	SeasonWinter Season = "WINTER"
	SeasonSpring Season = "SPRING"
	SeasonSummer Season = "SUMMER"
	SeasonFall   Season = "FALL"
)

// ListEntry is one row in a user's anime list (§4.7 user_list,
// list_entry).
type ListEntry struct {
	ID        int64     `json:"id"`
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"`
	Score     float64   `json:"score,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Media     AnimeInfo `json:"media"`
}

// Activity is one entry in the recent-activities feed.
type Activity struct {
	ID        int64     `json:"id"`
	Status    string    `json:"status"`
	Progress  string    `json:"progress,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Media     MediaSummary `json:"media"`
}
