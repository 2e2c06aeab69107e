package models

import (
	"fmt"
	"strings"
)

// StreamType identifies one of the three independent audio layers of an ad
type StreamType string

const (
	StreamVoice StreamType = "voice"
	StreamMusic StreamType = "music"
	StreamSFX   StreamType = "sfx"
)

// AllStreams lists the streams in mixer flattening order
var AllStreams = []StreamType{StreamVoice, StreamMusic, StreamSFX}

// ParseStreamType parses a stream name from a path or payload
func ParseStreamType(s string) (StreamType, error) {
	st := StreamType(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown stream type %q", s)
	}
	return st, nil
}

// Valid reports whether s is one of the known streams
func (s StreamType) Valid() bool {
	switch s {
	case StreamVoice, StreamMusic, StreamSFX:
		return true
	}
	return false
}

// VersionStatus is the lifecycle state of a version. Active is a pointer, not a status.
type VersionStatus string

const (
	StatusDraft  VersionStatus = "draft"
	StatusFrozen VersionStatus = "frozen"
)

// CreatedBy records who authored a version
type CreatedBy string

const (
	CreatedByUser CreatedBy = "user"
	CreatedByLLM  CreatedBy = "llm"
)

// ParseCreatedBy parses an author tag; empty means user
func ParseCreatedBy(s string) (CreatedBy, error) {
	switch CreatedBy(strings.ToLower(strings.TrimSpace(s))) {
	case "", CreatedByUser:
		return CreatedByUser, nil
	case CreatedByLLM:
		return CreatedByLLM, nil
	default:
		return "", fmt.Errorf("unknown author %q", s)
	}
}
