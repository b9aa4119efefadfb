package model

// Track is one playlist entry as resolved by a scraper or the catalog API.
// Tracks are never stored individually; only the flattened corpus is.
type Track struct {
	Title   string `json:"title"`
	Artists string `json:"artists"` // one or more names, already joined
}
