package api

import "time"

// Media type values accepted by the backend.
const (
	TypeMovie  = "movie"
	TypeSeries = "series"
)

// Item is one tracked movie or series.
type Item struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // movie | series
	Title     string    `json:"title"`
	Year      int       `json:"year,omitempty"`
	Watched   bool      `json:"watched"`
	PosterURL string    `json:"posterUrl,omitempty"`
	AddedAt   time.Time `json:"addedAt,omitzero"`
}

// Key returns the stable (type, id) identity used for duplicate detection.
func (i Item) Key() string {
	return i.Type + ":" + i.ID
}

// ItemRef identifies an item without carrying its metadata.
type ItemRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Key returns the stable (type, id) identity used for duplicate detection.
func (r ItemRef) Key() string {
	return r.Type + ":" + r.ID
}

// List is a user-created collection of items.
type List struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Items []Item `json:"items,omitempty"`
}

// Watchlist is the full payload returned by GET /api/watchlist. It is
// persisted wholesale as the offline snapshot.
type Watchlist struct {
	Movies []Item `json:"movies"`
	Series []Item `json:"series"`
	Lists  []List `json:"lists"`
}
