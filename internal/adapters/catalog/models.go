package catalog

import "time"

// Video is the catalog's view of a candidate item
type Video struct {
	VideoID      string    `json:"video_id"`
	ChannelID    string    `json:"channel_id"`
	Title        string    `json:"title"`
	DurationSecs int       `json:"duration_secs"`
	Views        int64     `json:"views"`
	PublishedAt  time.Time `json:"published_at"`

	// KeywordHits is the catalog's relevance count for the query that found it
	// zero for videos returned by non-keyword strategies
	KeywordHits int `json:"keyword_hits"`
}

// page is the wire shape every listing endpoint returns
type page struct {
	Videos []Video `json:"videos"`
}
