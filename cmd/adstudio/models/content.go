package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Content is the stream-specific payload of a version.
// Implementations are *VoiceContent, *MusicContent and *SFXContent.
type Content interface {
	Stream() StreamType
	Validate() error
	// AssignIDs fills in missing track ids
	AssignIDs(newID func() string)
	isContent()
}

// VoiceContent is an ordered script of voice tracks
type VoiceContent struct {
	Tracks []VoiceTrack `json:"tracks"`
}

type VoiceTrack struct {
	ID                string   `json:"id,omitempty"`
	VoiceID           string   `json:"voiceId"`
	VoiceName         string   `json:"voiceName,omitempty"`
	Text              string   `json:"text"`
	Speed             *float64 `json:"speed,omitempty"`
	Provider          string   `json:"provider,omitempty"`
	Volume            *float64 `json:"volume,omitempty"`
	StartTime         *float64 `json:"startTime,omitempty"`
	PlayAfter         Anchor   `json:"playAfter"`
	Overlap           float64  `json:"overlap,omitempty"`
	IsConcurrent      bool     `json:"isConcurrent,omitempty"`
	ConcurrentGroup   string   `json:"concurrentGroup,omitempty"`
	GeneratedURL      string   `json:"generatedUrl,omitempty"`
	GeneratedDuration *float64 `json:"generatedDuration,omitempty"`
}

// MusicContent is a single background cue that always starts at 0
type MusicContent struct {
	ID                string   `json:"id,omitempty"`
	Prompt            string   `json:"prompt,omitempty"`
	Provider          string   `json:"provider,omitempty"`
	TargetDuration    *float64 `json:"targetDuration,omitempty"`
	Volume            *float64 `json:"volume,omitempty"`
	GeneratedURL      string   `json:"generatedUrl,omitempty"`
	GeneratedDuration *float64 `json:"generatedDuration,omitempty"`
}

// SFXContent is an ordered list of sound effect cues
type SFXContent struct {
	Cues []SFXCue `json:"cues"`
}

type SFXCue struct {
	ID          string        `json:"id,omitempty"`
	Description string        `json:"description,omitempty"`
	Placement   *SFXPlacement `json:"placement,omitempty"`
	// Legacy placement, ignored when Placement is set
	PlayAfter         *Anchor  `json:"playAfter,omitempty"`
	Overlap           float64  `json:"overlap,omitempty"`
	StartTime         *float64 `json:"startTime,omitempty"`
	Duration          *float64 `json:"duration,omitempty"`
	Volume            *float64 `json:"volume,omitempty"`
	GeneratedURL      string   `json:"generatedUrl,omitempty"`
	GeneratedDuration *float64 `json:"generatedDuration,omitempty"`
}

func (*VoiceContent) Stream() StreamType { return StreamVoice }
func (*MusicContent) Stream() StreamType { return StreamMusic }
func (*SFXContent) Stream() StreamType { return StreamSFX }

func (*VoiceContent) isContent() {}
func (*MusicContent) isContent() {}
func (*SFXContent) isContent() {}

// DecodeContent decodes raw JSON into the content type of the given stream.
// Unknown fields are rejected.
func DecodeContent(stream StreamType, raw []byte) (Content, error) {
	var content Content
	switch stream {
	case StreamVoice:
		content = &VoiceContent{}
	case StreamMusic:
		content = &MusicContent{}
	case StreamSFX:
		content = &SFXContent{}
	default:
		return nil, fmt.Errorf("unknown stream type %q", stream)
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%s content is empty", stream)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(content); err != nil {
		return nil, fmt.Errorf("invalid %s content: %w", stream, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("invalid %s content: trailing data", stream)
	}

	return content, nil
}

// EncodeContent encodes content to its wire form
func EncodeContent(c Content) (json.RawMessage, error) {
	if c == nil {
		return nil, fmt.Errorf("content is nil")
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s content: %w", c.Stream(), err)
	}
	return data, nil
}

// CloneContent returns a deep copy of c
func CloneContent(c Content) (Content, error) {
	data, err := EncodeContent(c)
	if err != nil {
		return nil, err
	}
	return DecodeContent(c.Stream(), data)
}

func (c *VoiceContent) Validate() error {
	if len(c.Tracks) == 0 {
		return fmt.Errorf("voice content needs at least one track")
	}
	ids := make(map[string]bool, len(c.Tracks))
	for i, t := range c.Tracks {
		if err := uniqueID(ids, t.ID); err != nil {
			return fmt.Errorf("tracks[%d]: %w", i, err)
		}
		if err := firstError(
			finite("overlap", &t.Overlap),
			nonNegative("volume", t.Volume),
			nonNegative("startTime", t.StartTime),
			nonNegative("generatedDuration", t.GeneratedDuration),
		); err != nil {
			return fmt.Errorf("tracks[%d]: %w", i, err)
		}
	}
	return nil
}

func (c *MusicContent) Validate() error {
	return firstError(
		nonNegative("volume", c.Volume),
		nonNegative("targetDuration", c.TargetDuration),
		nonNegative("generatedDuration", c.GeneratedDuration),
	)
}

func (c *SFXContent) Validate() error {
	if len(c.Cues) == 0 {
		return fmt.Errorf("sfx content needs at least one cue")
	}
	ids := make(map[string]bool, len(c.Cues))
	for i, cue := range c.Cues {
		if err := uniqueID(ids, cue.ID); err != nil {
			return fmt.Errorf("cues[%d]: %w", i, err)
		}
		if cue.Placement != nil && !cue.Placement.Valid() {
			return fmt.Errorf("cues[%d]: invalid placement %q (index %d)", i, cue.Placement.Type, cue.Placement.Index)
		}
		if err := firstError(
			finite("overlap", &cue.Overlap),
			nonNegative("duration", cue.Duration),
			nonNegative("volume", cue.Volume),
			nonNegative("startTime", cue.StartTime),
			nonNegative("generatedDuration", cue.GeneratedDuration),
		); err != nil {
			return fmt.Errorf("cues[%d]: %w", i, err)
		}
	}
	return nil
}

func (c *VoiceContent) AssignIDs(newID func() string) {
	for i := range c.Tracks {
		if c.Tracks[i].ID == "" {
			c.Tracks[i].ID = newID()
		}
	}
}

func (c *MusicContent) AssignIDs(newID func() string) {
	if c.ID == "" {
		c.ID = newID()
	}
}

func (c *SFXContent) AssignIDs(newID func() string) {
	for i := range c.Cues {
		if c.Cues[i].ID == "" {
			c.Cues[i].ID = newID()
		}
	}
}

func uniqueID(seen map[string]bool, id string) error {
	if id == "" {
		return nil
	}
	if seen[id] {
		return fmt.Errorf("duplicate id %q", id)
	}
	seen[id] = true
	return nil
}

func finite(name string, v *float64) error {
	if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
		return fmt.Errorf("%s must be a finite number", name)
	}
	return nil
}

func nonNegative(name string, v *float64) error {
	if err := finite(name, v); err != nil {
		return err
	}
	if v != nil && *v < 0 {
		return fmt.Errorf("%s must be >= 0, got %v", name, *v)
	}
	return nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
