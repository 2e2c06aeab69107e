package models

import "time"

// Ad is the metadata record created on an ad's first write
type Ad struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StreamSummary describes one stream of an ad
type StreamSummary struct {
	Stream          StreamType `json:"stream"`
	VersionCount    int        `json:"versionCount"`
	ActiveVersionID string     `json:"activeVersionId,omitempty"`
	DraftVersionID  string     `json:"draftVersionId,omitempty"`
}

// AdSummary is the ad record plus per-stream pointers
type AdSummary struct {
	Ad
	Streams       []StreamSummary `json:"streams"`
	TotalDuration float64         `json:"totalDuration"`
	LayoutHash    string          `json:"layoutHash,omitempty"`
}
