package service

import (
	"context"
	"fmt"

	"github.com/lyzr/adstudio/cmd/adstudio/models"
	"github.com/lyzr/adstudio/common/logger"
)

// ActivationResult is the activated version plus the mixer state that includes it
type ActivationResult struct {
	Version *models.Version    `json:"version"`
	Mixer   *models.MixerState `json:"mixer"`
}

// VersionDeletion is a delete result plus the rebuilt mixer when the active version went away
type VersionDeletion struct {
	DeleteResult
	Mixer *models.MixerState `json:"mixer,omitempty"`
}

// StudioService couples version pointer changes to mixer rebuilds
type StudioService struct {
	versions *VersionService
	mixer    *MixerService
	log      *logger.Logger
}

// NewStudioService creates a new studio service
func NewStudioService(versions *VersionService, mixer *MixerService, log *logger.Logger) *StudioService {
	return &StudioService{
		versions: versions,
		mixer:    mixer,
		log:      log,
	}
}

// Activate sets the active version and rebuilds the mixer before returning,
// so a following mixer read observes the activation.
func (s *StudioService) Activate(ctx context.Context, adID string, stream models.StreamType, versionID string, opts ActivateOptions) (*ActivationResult, error) {
	v, err := s.versions.SetActiveVersion(ctx, adID, stream, versionID, opts)
	if err != nil {
		return nil, err
	}

	state, err := s.mixer.Rebuild(ctx, adID)
	if err != nil {
		return nil, fmt.Errorf("activated %s but mixer rebuild failed: %w", versionID, err)
	}

	return &ActivationResult{Version: v, Mixer: state}, nil
}

// DeleteVersion deletes a version and rebuilds the mixer if it was active
func (s *StudioService) DeleteVersion(ctx context.Context, adID string, stream models.StreamType, versionID string) (*VersionDeletion, error) {
	result, err := s.versions.DeleteVersion(ctx, adID, stream, versionID)
	if err != nil {
		return nil, err
	}

	deletion := &VersionDeletion{DeleteResult: result}
	if !result.WasActive {
		return deletion, nil
	}

	state, err := s.mixer.Rebuild(ctx, adID)
	if err != nil {
		return nil, fmt.Errorf("deleted active version %s but mixer rebuild failed: %w", versionID, err)
	}
	deletion.Mixer = state

	s.log.WithStream(adID, string(stream)).Info("stream emptied from mixer", "version_id", versionID)
	return deletion, nil
}
