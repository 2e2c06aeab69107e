// Package compiler turns placement intents into an absolute timeline.
// Compile is pure and never fails: malformed placement degrades to a conservative start.
package compiler

import (
	"math"

	"github.com/lyzr/adstudio/cmd/adstudio/models"
)

// DurationResolver picks the duration a track occupies on the timeline
type DurationResolver interface {
	Resolve(track models.MixerTrack) float64
}

// DefaultResolver prefers a measured duration, then an estimate, then a per-type default
type DefaultResolver struct {
	Voice float64
	Music float64
	SFX   float64
}

func (r DefaultResolver) Resolve(track models.MixerTrack) float64 {
	// a measured zero is a real zero-width track
	if d, ok := finitePtr(track.Duration); ok && d >= 0 {
		return d
	}
	if d, ok := finitePtr(track.EstimatedDuration); ok && d > 0 {
		return d
	}

	switch track.Type {
	case models.StreamVoice:
		return r.Voice
	case models.StreamMusic:
		return r.Music
	case models.StreamSFX:
		return r.SFX
	default:
		return 0
	}
}

// Result is the compiled timeline
type Result struct {
	Tracks        []models.CalculatedTrack
	TotalDuration float64
}

// ============================================================================
// Compilation
// ============================================================================

// timeline accumulates what later tracks may anchor to
type timeline struct {
	tracks      []models.CalculatedTrack
	byID        map[string]int
	lastOfType  map[models.StreamType]int
	groupStarts map[string]float64
	voices      []int
	maxEnd      float64
}

// Compile resolves start times for tracks in input order. A track may only anchor
// to tracks that precede it, so forward and unknown references fall back to previous.
func Compile(tracks []models.MixerTrack, resolver DurationResolver) Result {
	tl := &timeline{
		tracks:      make([]models.CalculatedTrack, 0, len(tracks)),
		byID:        make(map[string]int, len(tracks)),
		lastOfType:  make(map[models.StreamType]int),
		groupStarts: make(map[string]float64),
	}

	for _, track := range tracks {
		duration := clampNonNegative(resolver.Resolve(track))
		start := clampNonNegative(tl.start(track))

		if track.ConcurrentGroup != "" {
			if _, seen := tl.groupStarts[track.ConcurrentGroup]; !seen {
				tl.groupStarts[track.ConcurrentGroup] = start
			}
		}

		tl.add(models.CalculatedTrack{
			MixerTrack:      track,
			ActualStartTime: start,
			ActualDuration:  duration,
		})
	}

	return Result{
		Tracks:        tl.tracks,
		TotalDuration: tl.maxEnd,
	}
}

func (tl *timeline) add(ct models.CalculatedTrack) {
	idx := len(tl.tracks)
	tl.tracks = append(tl.tracks, ct)

	// first occurrence wins for duplicate ids
	if ct.ID != "" {
		if _, exists := tl.byID[ct.ID]; !exists {
			tl.byID[ct.ID] = idx
		}
	}
	tl.lastOfType[ct.Type] = idx
	if ct.Type == models.StreamVoice {
		tl.voices = append(tl.voices, idx)
	}
	if end := ct.End(); end > tl.maxEnd {
		tl.maxEnd = end
	}
}

// start applies, in order: concurrent group, pinned start, sfx intent,
// ungrouped concurrency, then playAfter minus overlap.
func (tl *timeline) start(track models.MixerTrack) float64 {
	if track.ConcurrentGroup != "" {
		if groupStart, seen := tl.groupStarts[track.ConcurrentGroup]; seen {
			return groupStart
		}
	}

	if pinned, ok := finitePtr(track.StartTime); ok {
		return pinned
	}

	if track.Intent != nil && track.Intent.Valid() {
		return tl.intentStart(*track.Intent)
	}

	if track.IsConcurrent && track.ConcurrentGroup == "" {
		if prev, ok := tl.lastOfType[track.Type]; ok {
			return tl.tracks[prev].ActualStartTime
		}
		return 0
	}

	return tl.anchorEnd(track) - clampNonNegative(track.Overlap)
}

func (tl *timeline) anchorEnd(track models.MixerTrack) float64 {
	switch track.PlayAfter.Kind {
	case models.AnchorStart:
		return 0
	case models.AnchorAfter:
		if idx, ok := tl.byID[track.PlayAfter.TrackID]; ok {
			return tl.tracks[idx].End()
		}
	}

	if prev, ok := tl.lastOfType[track.Type]; ok {
		return tl.tracks[prev].End()
	}
	return 0
}

func (tl *timeline) intentStart(p models.SFXPlacement) float64 {
	switch p.Type {
	case models.PlaceWithFirstVoice:
		if len(tl.voices) == 0 {
			return 0
		}
		return tl.tracks[tl.voices[0]].ActualStartTime
	case models.PlaceAfterVoice:
		if len(tl.voices) == 0 {
			return 0
		}
		i := p.Index
		if i < 0 {
			i = 0
		}
		if i >= len(tl.voices) {
			i = len(tl.voices) - 1
		}
		return tl.tracks[tl.voices[i]].End()
	case models.PlaceEnd:
		return tl.maxEnd
	default:
		// beforeVoices
		return 0
	}
}

// clampNonNegative maps NaN, infinities and negatives to 0
func clampNonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func finitePtr(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}
