package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// AnchorKind selects what a track starts after
type AnchorKind int

const (
	// AnchorPrevious follows the preceding track of the same stream type (the default)
	AnchorPrevious AnchorKind = iota
	// AnchorStart pins the track to the timeline origin
	AnchorStart
	// AnchorAfter follows a specific track by id
	AnchorAfter
)

// Anchor is the resolved form of a track's playAfter value.
// On the wire it is the legacy string: "start", "previous" or a track id.
type Anchor struct {
	Kind    AnchorKind
	TrackID string
}

// StartAnchor pins a track to 0
func StartAnchor() Anchor { return Anchor{Kind: AnchorStart} }

// PreviousAnchor follows the preceding same-type track
func PreviousAnchor() Anchor { return Anchor{Kind: AnchorPrevious} }

// AfterAnchor follows the track with the given id
func AfterAnchor(id string) Anchor { return Anchor{Kind: AnchorAfter, TrackID: id} }

// ParseAnchor maps a playAfter string to an anchor; blank means previous
func ParseAnchor(s string) Anchor {
	s = strings.TrimSpace(s)
	switch {
	case s == "", strings.EqualFold(s, "previous"):
		return PreviousAnchor()
	case strings.EqualFold(s, "start"):
		return StartAnchor()
	default:
		return AfterAnchor(s)
	}
}

func (a Anchor) String() string {
	switch a.Kind {
	case AnchorStart:
		return "start"
	case AnchorAfter:
		return a.TrackID
	default:
		return "previous"
	}
}

func (a Anchor) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Anchor) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = PreviousAnchor()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("playAfter must be a string: %w", err)
	}
	*a = ParseAnchor(s)
	return nil
}

// SFXPlacementType is the structured intent for a sound effect relative to the voice track
type SFXPlacementType string

const (
	PlaceBeforeVoices   SFXPlacementType = "beforeVoices"
	PlaceWithFirstVoice SFXPlacementType = "withFirstVoice"
	PlaceAfterVoice     SFXPlacementType = "afterVoice"
	PlaceEnd            SFXPlacementType = "end"
)

// SFXPlacement takes precedence over a cue's legacy playAfter/overlap fields
type SFXPlacement struct {
	Type SFXPlacementType `json:"type"`
	// Index is the zero-based voice track for afterVoice
	Index int `json:"index,omitempty"`
}

// Valid reports whether the placement has a known type and a usable index
func (p SFXPlacement) Valid() bool {
	switch p.Type {
	case PlaceBeforeVoices, PlaceWithFirstVoice, PlaceEnd:
		return true
	case PlaceAfterVoice:
		return p.Index >= 0
	}
	return false
}
