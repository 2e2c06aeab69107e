package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lyzr/adstudio/cmd/adstudio/models"
	"github.com/lyzr/adstudio/cmd/adstudio/repository"
	"github.com/lyzr/adstudio/common/kv"
	"github.com/lyzr/adstudio/common/logger"
)

// CreateOptions tunes CreateVersion
type CreateOptions struct {
	ParentVersionID string
	RequestText     string
	// AutoFreezeDraft freezes an existing draft instead of failing with a draft conflict
	AutoFreezeDraft bool
}

// CloneOptions tunes CloneVersion
type CloneOptions struct {
	RequestText     string
	AutoFreezeDraft bool
}

// ActivateOptions tunes SetActiveVersion
type ActivateOptions struct {
	// ForceFreeze replaces a different active version instead of failing
	ForceFreeze bool
}

// VersionPatch is a partial update of a draft
type VersionPatch struct {
	// Content is a merge patch object or a JSON Patch operation array
	Content     json.RawMessage `json:"content,omitempty"`
	RequestText *string         `json:"requestText,omitempty"`
}

// DeleteResult reports whether the deleted version was the active one
type DeleteResult struct {
	VersionID string `json:"versionId"`
	WasActive bool   `json:"wasActive"`
}

// VersionService manages the draft/frozen/active lifecycle of stream versions
type VersionService struct {
	repo    *repository.VersionRepository
	ads     *repository.AdRepository
	content *ContentNormalizer
	log     *logger.Logger
	now     func() time.Time
}

// NewVersionService creates a new version service
func NewVersionService(repo *repository.VersionRepository, ads *repository.AdRepository, content *ContentNormalizer, log *logger.Logger) *VersionService {
	return &VersionService{
		repo:    repo,
		ads:     ads,
		content: content,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateVersion stores new content as the stream's draft
func (s *VersionService) CreateVersion(ctx context.Context, adID string, stream models.StreamType, raw json.RawMessage, createdBy models.CreatedBy, opts CreateOptions) (*models.Version, error) {
	if err := checkScope(adID, stream); err != nil {
		return nil, err
	}

	content, err := s.content.Normalize(stream, raw)
	if err != nil {
		return nil, err
	}

	unlock, err := s.repo.LockStream(ctx, adID, stream)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, unlock)

	var parentID *string
	if opts.ParentVersionID != "" {
		if _, err := s.repo.Get(ctx, adID, stream, opts.ParentVersionID); err != nil {
			return nil, notFound(err, "parent version %s", opts.ParentVersionID)
		}
		parentID = &opts.ParentVersionID
	}

	v, err := s.insertDraft(ctx, adID, stream, content, createdBy, parentID, opts.RequestText, opts.AutoFreezeDraft)
	if err != nil {
		return nil, err
	}

	s.log.WithStream(adID, string(stream)).Info("created version",
		"version_id", v.ID,
		"created_by", v.CreatedBy,
	)

	return v, nil
}

// GetVersion retrieves a version
func (s *VersionService) GetVersion(ctx context.Context, adID string, stream models.StreamType, versionID string) (*models.Version, error) {
	if err := checkScope(adID, stream); err != nil {
		return nil, err
	}

	v, err := s.repo.Get(ctx, adID, stream, versionID)
	if err != nil {
		return nil, notFound(err, "version %s/%s/%s", adID, stream, versionID)
	}
	return v, nil
}

// ListVersions returns all versions of a stream in creation order
func (s *VersionService) ListVersions(ctx context.Context, adID string, stream models.StreamType) ([]*models.Version, error) {
	if err := checkScope(adID, stream); err != nil {
		return nil, err
	}

	ids, err := s.repo.Index(ctx, adID, stream)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	versions := make([]*models.Version, 0, len(ids))
	for _, id := range ids {
		v, err := s.repo.Get(ctx, adID, stream, id)
		if errors.Is(err, repository.ErrNotFound) {
			s.log.WithStream(adID, string(stream)).Warn("version index points at missing version", "version_id", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}

	return versions, nil
}

// UpdateVersion patches a draft. Frozen versions are immutable.
func (s *VersionService) UpdateVersion(ctx context.Context, adID string, stream models.StreamType, versionID string, patch VersionPatch) (*models.Version, error) {
	if err := checkScope(adID, stream); err != nil {
		return nil, err
	}

	unlock, err := s.repo.LockStream(ctx, adID, stream)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, unlock)

	v, err := s.repo.Get(ctx, adID, stream, versionID)
	if err != nil {
		return nil, notFound(err, "version %s/%s/%s", adID, stream, versionID)
	}
	if !v.IsDraft() {
		return nil, fmt.Errorf("%w: %s", ErrImmutableVersion, versionID)
	}

	if len(patch.Content) > 0 {
		patched, err := s.content.ApplyPatch(v.Content, patch.Content)
		if err != nil {
			return nil, err
		}
		content, err := s.content.Normalize(stream, patched)
		if err != nil {
			return nil, err
		}
		v.Content = content
	}
	if patch.RequestText != nil {
		v.RequestText = *patch.RequestText
	}

	v.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, v); err != nil {
		return nil, err
	}

	s.log.WithStream(adID, string(stream)).Info("updated draft", "version_id", versionID)
	return v, nil
}

// CloneVersion copies a version's content into a new draft whose parent is the source
func (s *VersionService) CloneVersion(ctx context.Context, adID string, stream models.StreamType, sourceID string, createdBy models.CreatedBy, opts CloneOptions) (*models.Version, error) {
	if err := checkScope(adID, stream); err != nil {
		return nil, err
	}

	unlock, err := s.repo.LockStream(ctx, adID, stream)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, unlock)

	source, err := s.repo.Get(ctx, adID, stream, sourceID)
	if err != nil {
		return nil, notFound(err, "source version %s/%s/%s", adID, stream, sourceID)
	}

	content, err := models.CloneContent(source.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to copy content of %s: %w", sourceID, err)
	}

	if createdBy == "" {
		createdBy = source.CreatedBy
	}

	v, err := s.insertDraft(ctx, adID, stream, content, createdBy, &sourceID, opts.RequestText, opts.AutoFreezeDraft)
	if err != nil {
		return nil, err
	}

	s.log.WithStream(adID, string(stream)).Info("cloned version",
		"source_id", sourceID,
		"version_id", v.ID,
	)

	return v, nil
}

// DeleteVersion removes a version, clearing the draft and active pointers if they referenced it.
// Children keep their now-dangling parent id.
func (s *VersionService) DeleteVersion(ctx context.Context, adID string, stream models.StreamType, versionID string) (DeleteResult, error) {
	result := DeleteResult{VersionID: versionID}
	if err := checkScope(adID, stream); err != nil {
		return result, err
	}

	unlock, err := s.repo.LockStream(ctx, adID, stream)
	if err != nil {
		return result, err
	}
	defer s.release(ctx, unlock)

	if _, err := s.repo.Get(ctx, adID, stream, versionID); err != nil {
		return result, notFound(err, "version %s/%s/%s", adID, stream, versionID)
	}

	activeID, err := s.repo.ActiveID(ctx, adID, stream)
	if err != nil {
		return result, err
	}
	if activeID == versionID {
		if err := s.repo.SetActiveID(ctx, adID, stream, ""); err != nil {
			return result, err
		}
		result.WasActive = true
	}

	draftID, err := s.repo.DraftID(ctx, adID, stream)
	if err != nil {
		return result, err
	}
	if draftID == versionID {
		if err := s.repo.SetDraftID(ctx, adID, stream, ""); err != nil {
			return result, err
		}
	}

	if err := s.removeFromIndex(ctx, adID, stream, versionID); err != nil {
		return result, err
	}
	if err := s.repo.Delete(ctx, adID, stream, versionID); err != nil {
		return result, err
	}

	s.log.WithStream(adID, string(stream)).Info("deleted version",
		"version_id", versionID,
		"was_active", result.WasActive,
	)

	return result, nil
}

// SetActiveVersion points the stream at a version, freezing it if it is a draft.
// Re-activating the current active version is a no-op.
func (s *VersionService) SetActiveVersion(ctx context.Context, adID string, stream models.StreamType, versionID string, opts ActivateOptions) (*models.Version, error) {
	if err := checkScope(adID, stream); err != nil {
		return nil, err
	}

	unlock, err := s.repo.LockStream(ctx, adID, stream)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, unlock)

	v, err := s.repo.Get(ctx, adID, stream, versionID)
	if err != nil {
		return nil, notFound(err, "version %s/%s/%s", adID, stream, versionID)
	}

	activeID, err := s.repo.ActiveID(ctx, adID, stream)
	if err != nil {
		return nil, err
	}
	if activeID == versionID {
		return v, nil
	}
	if activeID != "" && !opts.ForceFreeze {
		// a pointer left dangling by an interrupted delete does not block activation
		if _, err := s.repo.Get(ctx, adID, stream, activeID); err == nil {
			return nil, &AlreadyActiveError{ActiveID: activeID}
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	if v.IsDraft() {
		if err := s.freeze(ctx, v); err != nil {
			return nil, err
		}
	}

	if err := s.repo.SetActiveID(ctx, adID, stream, versionID); err != nil {
		return nil, err
	}
	if _, err := s.ads.Touch(ctx, adID, s.now()); err != nil {
		return nil, err
	}

	s.log.WithStream(adID, string(stream)).Info("activated version",
		"version_id", versionID,
		"previous_active", activeID,
	)

	return v, nil
}

// FreezeVersion freezes a draft without activating it; frozen versions are returned as is
func (s *VersionService) FreezeVersion(ctx context.Context, adID string, stream models.StreamType, versionID string) (*models.Version, error) {
	if err := checkScope(adID, stream); err != nil {
		return nil, err
	}

	unlock, err := s.repo.LockStream(ctx, adID, stream)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, unlock)

	v, err := s.repo.Get(ctx, adID, stream, versionID)
	if err != nil {
		return nil, notFound(err, "version %s/%s/%s", adID, stream, versionID)
	}
	if v.IsDraft() {
		if err := s.freeze(ctx, v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// GetActiveVersion returns the active version id and whether one is set
func (s *VersionService) GetActiveVersion(ctx context.Context, adID string, stream models.StreamType) (string, bool, error) {
	if err := checkScope(adID, stream); err != nil {
		return "", false, err
	}

	id, err := s.repo.ActiveID(ctx, adID, stream)
	if err != nil {
		return "", false, err
	}
	return id, id != "", nil
}

// DraftVersion returns the current draft id and whether the stream has one
func (s *VersionService) DraftVersion(ctx context.Context, adID string, stream models.StreamType) (string, bool, error) {
	if err := checkScope(adID, stream); err != nil {
		return "", false, err
	}

	id, err := s.repo.DraftID(ctx, adID, stream)
	if err != nil {
		return "", false, err
	}
	return id, id != "", nil
}

// Lineage walks parent ids from a version to its root. A parent that no longer
// exists ends the walk with a Missing entry; a repeated id ends it silently.
func (s *VersionService) Lineage(ctx context.Context, adID string, stream models.StreamType, versionID string) ([]models.LineageEntry, error) {
	v, err := s.GetVersion(ctx, adID, stream, versionID)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{}
	var lineage []models.LineageEntry

	for v != nil && !visited[v.ID] {
		visited[v.ID] = true
		createdAt := v.CreatedAt
		lineage = append(lineage, models.LineageEntry{
			VersionID:   v.ID,
			Status:      v.Status,
			CreatedBy:   v.CreatedBy,
			RequestText: v.RequestText,
			CreatedAt:   &createdAt,
		})

		if v.ParentVersionID == nil || *v.ParentVersionID == "" {
			break
		}
		parentID := *v.ParentVersionID
		if visited[parentID] {
			break
		}

		parent, err := s.repo.Get(ctx, adID, stream, parentID)
		if errors.Is(err, repository.ErrNotFound) {
			lineage = append(lineage, models.LineageEntry{VersionID: parentID, Missing: true})
			break
		}
		if err != nil {
			return nil, err
		}
		v = parent
	}

	return lineage, nil
}

// DeleteStream removes every version and pointer of a stream
func (s *VersionService) DeleteStream(ctx context.Context, adID string, stream models.StreamType) (int, error) {
	if err := checkScope(adID, stream); err != nil {
		return 0, err
	}

	unlock, err := s.repo.LockStream(ctx, adID, stream)
	if err != nil {
		return 0, err
	}
	defer s.release(ctx, unlock)

	return s.repo.DeleteStream(ctx, adID, stream)
}

// insertDraft enforces the one-draft rule and writes a new draft. Caller holds the stream lock.
func (s *VersionService) insertDraft(ctx context.Context, adID string, stream models.StreamType, content models.Content, createdBy models.CreatedBy, parentID *string, requestText string, autoFreeze bool) (*models.Version, error) {
	if err := s.resolveExistingDraft(ctx, adID, stream, autoFreeze); err != nil {
		return nil, err
	}

	id, err := s.repo.NextID(ctx, adID, stream)
	if err != nil {
		return nil, err
	}

	if createdBy == "" {
		createdBy = models.CreatedByUser
	}

	now := s.now()
	v := &models.Version{
		ID:              id,
		AdID:            adID,
		Stream:          stream,
		Status:          models.StatusDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
		CreatedBy:       createdBy,
		ParentVersionID: parentID,
		RequestText:     requestText,
		Content:         content,
	}

	if err := s.repo.Save(ctx, v); err != nil {
		return nil, err
	}

	ids, err := s.repo.Index(ctx, adID, stream)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveIndex(ctx, adID, stream, append(ids, id)); err != nil {
		return nil, err
	}
	if err := s.repo.SetDraftID(ctx, adID, stream, id); err != nil {
		return nil, err
	}
	if _, err := s.ads.Touch(ctx, adID, now); err != nil {
		return nil, err
	}

	return v, nil
}

func (s *VersionService) resolveExistingDraft(ctx context.Context, adID string, stream models.StreamType, autoFreeze bool) error {
	draftID, err := s.repo.DraftID(ctx, adID, stream)
	if err != nil || draftID == "" {
		return err
	}

	draft, err := s.repo.Get(ctx, adID, stream, draftID)
	if errors.Is(err, repository.ErrNotFound) {
		s.log.WithStream(adID, string(stream)).Warn("clearing dangling draft pointer", "version_id", draftID)
		return s.repo.SetDraftID(ctx, adID, stream, "")
	}
	if err != nil {
		return err
	}

	if !draft.IsDraft() {
		return s.repo.SetDraftID(ctx, adID, stream, "")
	}
	if !autoFreeze {
		return &DraftConflictError{DraftID: draftID}
	}

	s.log.WithStream(adID, string(stream)).Info("auto-freezing draft", "version_id", draftID)
	return s.freeze(ctx, draft)
}

// freeze marks a draft frozen and clears the draft pointer if it named it. Caller holds the stream lock.
func (s *VersionService) freeze(ctx context.Context, v *models.Version) error {
	v.Status = models.StatusFrozen
	v.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, v); err != nil {
		return err
	}

	draftID, err := s.repo.DraftID(ctx, v.AdID, v.Stream)
	if err != nil {
		return err
	}
	if draftID == v.ID {
		return s.repo.SetDraftID(ctx, v.AdID, v.Stream, "")
	}
	return nil
}

func (s *VersionService) removeFromIndex(ctx context.Context, adID string, stream models.StreamType, versionID string) error {
	ids, err := s.repo.Index(ctx, adID, stream)
	if err != nil {
		return err
	}
	kept := ids[:0]
	for _, id := range ids {
		if id != versionID {
			kept = append(kept, id)
		}
	}
	return s.repo.SaveIndex(ctx, adID, stream, kept)
}

func (s *VersionService) release(ctx context.Context, unlock kv.Unlocker) {
	if err := unlock(context.WithoutCancel(ctx)); err != nil {
		s.log.WarnContext(ctx, "failed to release lock", "error", err)
	}
}

func checkScope(adID string, stream models.StreamType) error {
	if strings.TrimSpace(adID) == "" || strings.ContainsAny(adID, ": ") {
		return validationError("invalid ad id %q", adID)
	}
	if !stream.Valid() {
		return validationError("unknown stream %q", stream)
	}
	return nil
}
