package models

import "time"

// MixerTrack is a flattened, stream-agnostic track as fed to the timeline compiler
type MixerTrack struct {
	ID    string     `json:"id"`
	URL   string     `json:"url,omitempty"`
	Label string     `json:"label"`
	Type  StreamType `json:"type"`

	// StartTime pins the track; when nil the start is computed from PlayAfter
	StartTime         *float64 `json:"startTime,omitempty"`
	Duration          *float64 `json:"duration,omitempty"`
	EstimatedDuration *float64 `json:"estimatedDuration,omitempty"`

	PlayAfter       Anchor        `json:"playAfter"`
	Overlap         float64       `json:"overlap,omitempty"`
	ConcurrentGroup string        `json:"concurrentGroup,omitempty"`
	IsConcurrent    bool          `json:"isConcurrent,omitempty"`
	Intent          *SFXPlacement `json:"placement,omitempty"`

	Volume float64 `json:"volume"`
}

// CalculatedTrack is a mixer track with its resolved position
type CalculatedTrack struct {
	MixerTrack
	ActualStartTime float64 `json:"actualStartTime"`
	ActualDuration  float64 `json:"actualDuration"`
}

// End is the absolute end of the track in seconds
func (t CalculatedTrack) End() float64 {
	return t.ActualStartTime + t.ActualDuration
}

// MixerState is the derived, persisted layout of an ad's active versions
type MixerState struct {
	AdID             string            `json:"adId"`
	Tracks           []MixerTrack      `json:"tracks"`
	CalculatedTracks []CalculatedTrack `json:"calculatedTracks"`
	TotalDuration    float64           `json:"totalDuration"`

	// MixedAudioURL survives a rebuild only while LayoutHash is unchanged
	MixedAudioURL string `json:"mixedAudioUrl,omitempty"`
	LayoutHash    string `json:"layoutHash"`

	// SourceVersions maps each contributing stream to the active version used
	SourceVersions map[StreamType]string `json:"sourceVersions"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

// EmptyMixerState is the state of an ad that has never been rebuilt
func EmptyMixerState(adID string) *MixerState {
	return &MixerState{
		AdID:             adID,
		Tracks:           []MixerTrack{},
		CalculatedTracks: []CalculatedTrack{},
		SourceVersions:   map[StreamType]string{},
	}
}

// MixerRebuiltEvent is published after every persisted rebuild
type MixerRebuiltEvent struct {
	AdID           string                `json:"adId"`
	LayoutHash     string                `json:"layoutHash"`
	TotalDuration  float64               `json:"totalDuration"`
	TrackCount     int                   `json:"trackCount"`
	SourceVersions map[StreamType]string `json:"sourceVersions"`
	MixedAudioURL  string                `json:"mixedAudioUrl,omitempty"`
}
