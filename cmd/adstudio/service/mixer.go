package service

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lyzr/adstudio/cmd/adstudio/compiler"
	"github.com/lyzr/adstudio/cmd/adstudio/models"
	"github.com/lyzr/adstudio/cmd/adstudio/repository"
	"github.com/lyzr/adstudio/common/config"
	"github.com/lyzr/adstudio/common/logger"
	"github.com/lyzr/adstudio/common/telemetry"
	"golang.org/x/sync/errgroup"
)

const labelTextLimit = 40

// EventPublisher receives mixer.rebuilt notifications
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, message []byte) error
}

// MixerOptions holds mixer defaults
type MixerOptions struct {
	VoiceVolume         float64
	MusicVolume         float64
	SFXVolume           float64
	VoiceWordsPerSecond float64
	Durations           compiler.DefaultResolver
	Topic               string
}

// MixerOptionsFromConfig maps the mixer and queue config sections to options
func MixerOptionsFromConfig(cfg *config.Config) MixerOptions {
	return MixerOptions{
		VoiceVolume:         cfg.Mixer.VoiceVolume,
		MusicVolume:         cfg.Mixer.MusicVolume,
		SFXVolume:           cfg.Mixer.SFXVolume,
		VoiceWordsPerSecond: cfg.Mixer.VoiceWordsPerSecond,
		Durations: compiler.DefaultResolver{
			Voice: cfg.Mixer.DefaultVoiceDuration,
			Music: cfg.Mixer.DefaultMusicDuration,
			SFX:   cfg.Mixer.DefaultSFXDuration,
		},
		Topic: cfg.Queue.MixerTopic,
	}
}

// MixerService derives and persists the mixer state from each stream's active version
type MixerService struct {
	versions  *VersionService
	repo      *repository.MixerRepository
	ads       *repository.AdRepository
	publisher EventPublisher
	telemetry *telemetry.Telemetry
	opts      MixerOptions
	log       *logger.Logger
	now       func() time.Time
}

// NewMixerService creates a new mixer service. publisher and tel may be nil.
func NewMixerService(versions *VersionService, repo *repository.MixerRepository, ads *repository.AdRepository, publisher EventPublisher, tel *telemetry.Telemetry, opts MixerOptions, log *logger.Logger) *MixerService {
	if opts.VoiceWordsPerSecond <= 0 {
		opts.VoiceWordsPerSecond = 2.5
	}
	return &MixerService{
		versions:  versions,
		repo:      repo,
		ads:       ads,
		publisher: publisher,
		telemetry: tel,
		opts:      opts,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type streamTracks struct {
	versionID string
	tracks    []models.MixerTrack
}

// Rebuild recomputes and stores the mixer state of an ad. A stream that cannot be
// read or flattened contributes no tracks; the others are still mixed.
func (s *MixerService) Rebuild(ctx context.Context, adID string) (*models.MixerState, error) {
	start := time.Now()
	log := s.log.WithAdID(adID)

	if _, err := s.ads.Get(ctx, adID); err != nil {
		return nil, notFound(err, "ad %s", adID)
	}

	unlock, err := s.repo.LockAd(ctx, adID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			log.Warn("failed to release mixer lock", "error", err)
		}
	}()

	loaded := make([]streamTracks, len(models.AllStreams))
	g, gctx := errgroup.WithContext(ctx)
	for i, stream := range models.AllStreams {
		g.Go(func() error {
			st, err := s.loadStream(gctx, adID, stream)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn("skipping stream in mixer rebuild", "stream", stream, "error", err)
				return nil
			}
			loaded[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("mixer rebuild interrupted: %w", err)
	}

	state := &models.MixerState{
		AdID:           adID,
		Tracks:         []models.MixerTrack{},
		SourceVersions: map[models.StreamType]string{},
		UpdatedAt:      s.now(),
	}
	for i, stream := range models.AllStreams {
		state.Tracks = append(state.Tracks, loaded[i].tracks...)
		if loaded[i].versionID != "" {
			state.SourceVersions[stream] = loaded[i].versionID
		}
	}

	result := compiler.Compile(state.Tracks, s.opts.Durations)
	state.CalculatedTracks = result.Tracks
	state.TotalDuration = result.TotalDuration

	state.LayoutHash, err = layoutHash(result)
	if err != nil {
		return nil, err
	}

	previous, err := s.repo.Get(ctx, adID)
	switch {
	case err == nil:
		if previous.LayoutHash == state.LayoutHash {
			state.MixedAudioURL = previous.MixedAudioURL
		}
	case !errors.Is(err, repository.ErrNotFound):
		log.Warn("failed to read previous mixer state", "error", err)
	}

	if err := s.repo.Save(ctx, state); err != nil {
		return nil, err
	}

	s.publish(ctx, state)
	s.telemetry.RecordDuration("mixer.rebuild", start,
		"ad_id", adID,
		"tracks", len(state.Tracks),
	)

	log.Info("mixer rebuilt",
		"tracks", len(state.Tracks),
		"total_duration", state.TotalDuration,
		"layout_hash", state.LayoutHash,
		"kept_mix", state.MixedAudioURL != "",
	)

	return state, nil
}

// Get returns the stored mixer state, or an empty state for an ad never rebuilt
func (s *MixerService) Get(ctx context.Context, adID string) (*models.MixerState, error) {
	state, err := s.repo.Get(ctx, adID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if _, err := s.ads.Get(ctx, adID); err != nil {
		return nil, notFound(err, "ad %s", adID)
	}
	return models.EmptyMixerState(adID), nil
}

// SetMixedAudioURL records a rendered mix. A non-empty layoutHash must match the
// current layout, so a render of an outdated timeline is rejected.
func (s *MixerService) SetMixedAudioURL(ctx context.Context, adID, url, layoutHash string) (*models.MixerState, error) {
	if strings.TrimSpace(url) == "" {
		return nil, validationError("mixed audio url is required")
	}

	unlock, err := s.repo.LockAd(ctx, adID)
	if err != nil {
		return nil, err
	}
	defer unlock(context.WithoutCancel(ctx))

	state, err := s.repo.Get(ctx, adID)
	if err != nil {
		return nil, notFound(err, "mixer state for ad %s", adID)
	}
	if layoutHash != "" && layoutHash != state.LayoutHash {
		return nil, fmt.Errorf("%w: rendered %s, current %s", ErrStaleLayout, layoutHash, state.LayoutHash)
	}

	state.MixedAudioURL = url
	state.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, state); err != nil {
		return nil, err
	}

	s.log.WithAdID(adID).Info("recorded mixed audio", "layout_hash", state.LayoutHash)
	return state, nil
}

// Delete drops the mixer state of an ad
func (s *MixerService) Delete(ctx context.Context, adID string) error {
	unlock, err := s.repo.LockAd(ctx, adID)
	if err != nil {
		return err
	}
	defer unlock(context.WithoutCancel(ctx))

	return s.repo.Delete(ctx, adID)
}

func (s *MixerService) loadStream(ctx context.Context, adID string, stream models.StreamType) (streamTracks, error) {
	activeID, ok, err := s.versions.GetActiveVersion(ctx, adID, stream)
	if err != nil || !ok {
		return streamTracks{}, err
	}

	v, err := s.versions.GetVersion(ctx, adID, stream, activeID)
	if err != nil {
		return streamTracks{}, err
	}

	tracks, err := s.flatten(v)
	if err != nil {
		return streamTracks{}, err
	}
	return streamTracks{versionID: activeID, tracks: tracks}, nil
}

func (s *MixerService) flatten(v *models.Version) ([]models.MixerTrack, error) {
	if v.Content == nil {
		return nil, fmt.Errorf("version %s has no content", v.ID)
	}
	if v.Content.Stream() != v.Stream {
		return nil, fmt.Errorf("version %s holds %s content in the %s stream", v.ID, v.Content.Stream(), v.Stream)
	}

	switch c := v.Content.(type) {
	case *models.VoiceContent:
		return s.flattenVoice(v.ID, c), nil
	case *models.MusicContent:
		return s.flattenMusic(v.ID, c), nil
	case *models.SFXContent:
		return s.flattenSFX(v.ID, c), nil
	default:
		return nil, fmt.Errorf("unsupported content type %T", c)
	}
}

func (s *MixerService) flattenVoice(versionID string, c *models.VoiceContent) []models.MixerTrack {
	tracks := make([]models.MixerTrack, 0, len(c.Tracks))
	for i, t := range c.Tracks {
		speaker := t.VoiceName
		if speaker == "" {
			speaker = fmt.Sprintf("Voice %d", i+1)
		}

		tracks = append(tracks, models.MixerTrack{
			ID:                trackID(t.ID, versionID, "voice", i),
			URL:               t.GeneratedURL,
			Label:             speaker + ": " + truncate(t.Text, labelTextLimit),
			Type:              models.StreamVoice,
			StartTime:         t.StartTime,
			Duration:          t.GeneratedDuration,
			EstimatedDuration: s.estimateSpeech(t.Text, t.Speed),
			PlayAfter:         t.PlayAfter,
			Overlap:           t.Overlap,
			ConcurrentGroup:   t.ConcurrentGroup,
			IsConcurrent:      t.IsConcurrent,
			Volume:            volume(t.Volume, s.opts.VoiceVolume),
		})
	}
	return tracks
}

func (s *MixerService) flattenMusic(versionID string, c *models.MusicContent) []models.MixerTrack {
	label := "Music"
	if c.Prompt != "" {
		label += ": " + truncate(c.Prompt, labelTextLimit)
	}

	return []models.MixerTrack{{
		ID:                trackID(c.ID, versionID, "music", 0),
		URL:               c.GeneratedURL,
		Label:             label,
		Type:              models.StreamMusic,
		Duration:          c.GeneratedDuration,
		EstimatedDuration: c.TargetDuration,
		PlayAfter:         models.StartAnchor(),
		Volume:            volume(c.Volume, s.opts.MusicVolume),
	}}
}

func (s *MixerService) flattenSFX(versionID string, c *models.SFXContent) []models.MixerTrack {
	tracks := make([]models.MixerTrack, 0, len(c.Cues))
	for i, cue := range c.Cues {
		track := models.MixerTrack{
			ID:                trackID(cue.ID, versionID, "sfx", i),
			URL:               cue.GeneratedURL,
			Label:             "SFX: " + truncate(cue.Description, labelTextLimit),
			Type:              models.StreamSFX,
			StartTime:         cue.StartTime,
			Duration:          cue.GeneratedDuration,
			EstimatedDuration: cue.Duration,
			PlayAfter:         models.PreviousAnchor(),
			Overlap:           cue.Overlap,
			Volume:            volume(cue.Volume, s.opts.SFXVolume),
		}
		if cue.PlayAfter != nil {
			track.PlayAfter = *cue.PlayAfter
		}
		if cue.Placement != nil {
			placement := *cue.Placement
			track.Intent = &placement
		}
		tracks = append(tracks, track)
	}
	return tracks
}

// estimateSpeech guesses a voice line's length from its word count and speed
func (s *MixerService) estimateSpeech(text string, speed *float64) *float64 {
	words := len(strings.Fields(text))
	if words == 0 {
		return nil
	}
	seconds := float64(words) / s.opts.VoiceWordsPerSecond
	if speed != nil && *speed > 0 {
		seconds /= *speed
	}
	return &seconds
}

func (s *MixerService) publish(ctx context.Context, state *models.MixerState) {
	if s.publisher == nil || s.opts.Topic == "" {
		return
	}

	event, err := json.Marshal(models.MixerRebuiltEvent{
		AdID:           state.AdID,
		LayoutHash:     state.LayoutHash,
		TotalDuration:  state.TotalDuration,
		TrackCount:     len(state.CalculatedTracks),
		SourceVersions: state.SourceVersions,
		MixedAudioURL:  state.MixedAudioURL,
	})
	if err != nil {
		s.log.Error("failed to encode mixer event", "error", err)
		return
	}

	if err := s.publisher.Publish(ctx, s.opts.Topic, state.AdID, event); err != nil {
		s.log.Warn("failed to publish mixer event", "ad_id", state.AdID, "error", err)
	}
}

// layoutHash fingerprints the compiled timeline, content-addressed like a CAS id
func layoutHash(result compiler.Result) (string, error) {
	canonical, err := json.Marshal(struct {
		Tracks        []models.CalculatedTrack `json:"tracks"`
		TotalDuration float64                  `json:"totalDuration"`
	}{result.Tracks, result.TotalDuration})
	if err != nil {
		return "", fmt.Errorf("failed to hash layout: %w", err)
	}
	return fmt.Sprintf("sha256:%x", sha256.Sum256(canonical)), nil
}

func trackID(id, versionID, kind string, index int) string {
	if id != "" {
		return id
	}
	return fmt.Sprintf("%s-%s-%d", versionID, kind, index)
}

func volume(v *float64, fallback float64) float64 {
	if v != nil && *v >= 0 {
		return *v
	}
	return fallback
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
