package service

import (
	"context"

	"github.com/lyzr/adstudio/cmd/adstudio/models"
	"github.com/lyzr/adstudio/cmd/adstudio/repository"
	"github.com/lyzr/adstudio/common/logger"
)

// AdService reads and deletes whole ads
type AdService struct {
	repo     *repository.AdRepository
	versions *VersionService
	mixer    *MixerService
	log      *logger.Logger
}

// NewAdService creates a new ad service
func NewAdService(repo *repository.AdRepository, versions *VersionService, mixer *MixerService, log *logger.Logger) *AdService {
	return &AdService{
		repo:     repo,
		versions: versions,
		mixer:    mixer,
		log:      log,
	}
}

// Get returns the ad record with per-stream pointers and the mixer summary
func (s *AdService) Get(ctx context.Context, adID string) (*models.AdSummary, error) {
	ad, err := s.repo.Get(ctx, adID)
	if err != nil {
		return nil, notFound(err, "ad %s", adID)
	}

	summary := &models.AdSummary{Ad: *ad, Streams: make([]models.StreamSummary, 0, len(models.AllStreams))}
	for _, stream := range models.AllStreams {
		versions, err := s.versions.ListVersions(ctx, adID, stream)
		if err != nil {
			return nil, err
		}
		activeID, _, err := s.versions.GetActiveVersion(ctx, adID, stream)
		if err != nil {
			return nil, err
		}
		draftID, _, err := s.versions.DraftVersion(ctx, adID, stream)
		if err != nil {
			return nil, err
		}

		summary.Streams = append(summary.Streams, models.StreamSummary{
			Stream:          stream,
			VersionCount:    len(versions),
			ActiveVersionID: activeID,
			DraftVersionID:  draftID,
		})
	}

	state, err := s.mixer.Get(ctx, adID)
	if err != nil {
		return nil, err
	}
	summary.TotalDuration = state.TotalDuration
	summary.LayoutHash = state.LayoutHash

	return summary, nil
}

// Delete removes an ad with every stream's versions and its mixer state
func (s *AdService) Delete(ctx context.Context, adID string) error {
	if _, err := s.repo.Get(ctx, adID); err != nil {
		return notFound(err, "ad %s", adID)
	}

	removed := 0
	for _, stream := range models.AllStreams {
		n, err := s.versions.DeleteStream(ctx, adID, stream)
		if err != nil {
			return err
		}
		removed += n
	}

	if err := s.mixer.Delete(ctx, adID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, adID); err != nil {
		return err
	}

	s.log.WithAdID(adID).Info("deleted ad", "versions_removed", removed)
	return nil
}
