package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lyzr/adstudio/cmd/adstudio/models"
	"github.com/lyzr/adstudio/common/kv"
)

// ErrNotFound is returned when a version, pointer or record is missing
var ErrNotFound = kv.ErrNotFound

// VersionRepository stores versions, the per-stream index and the draft/active pointers.
// Callers serialize writes to one stream with LockStream.
type VersionRepository struct {
	store kv.Store
}

// NewVersionRepository creates a new version repository
func NewVersionRepository(store kv.Store) *VersionRepository {
	return &VersionRepository{store: store}
}

// LockStream acquires the mutation lock for one (ad, stream)
func (r *VersionRepository) LockStream(ctx context.Context, adID string, stream models.StreamType) (kv.Unlocker, error) {
	unlock, err := r.store.Lock(ctx, streamLockKey(adID, stream))
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s/%s: %w", adID, stream, err)
	}
	return unlock, nil
}

// NextID allocates the next version id for a stream (v1, v2, ...)
func (r *VersionRepository) NextID(ctx context.Context, adID string, stream models.StreamType) (string, error) {
	n, err := r.store.Incr(ctx, streamKey(adID, stream, "seq"))
	if err != nil {
		return "", fmt.Errorf("failed to allocate version id: %w", err)
	}
	return fmt.Sprintf("v%d", n), nil
}

// Get retrieves a version by id
func (r *VersionRepository) Get(ctx context.Context, adID string, stream models.StreamType, versionID string) (*models.Version, error) {
	data, err := r.store.Get(ctx, versionKey(adID, stream, versionID))
	if err != nil {
		return nil, fmt.Errorf("failed to get version %s: %w", versionID, err)
	}

	v := &models.Version{}
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("failed to decode version %s: %w", versionID, err)
	}
	return v, nil
}

// Save writes a version
func (r *VersionRepository) Save(ctx context.Context, v *models.Version) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode version %s: %w", v.ID, err)
	}
	if err := r.store.Set(ctx, versionKey(v.AdID, v.Stream, v.ID), data); err != nil {
		return fmt.Errorf("failed to save version %s: %w", v.ID, err)
	}
	return nil
}

// Delete removes a version record
func (r *VersionRepository) Delete(ctx context.Context, adID string, stream models.StreamType, versionID string) error {
	if err := r.store.Delete(ctx, versionKey(adID, stream, versionID)); err != nil {
		return fmt.Errorf("failed to delete version %s: %w", versionID, err)
	}
	return nil
}

// Index returns version ids in creation order; an untouched stream has none
func (r *VersionRepository) Index(ctx context.Context, adID string, stream models.StreamType) ([]string, error) {
	data, err := r.store.Get(ctx, streamKey(adID, stream, "index"))
	if errors.Is(err, kv.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version index: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("failed to decode version index: %w", err)
	}
	return ids, nil
}

// SaveIndex replaces the version index of a stream
func (r *VersionRepository) SaveIndex(ctx context.Context, adID string, stream models.StreamType, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode version index: %w", err)
	}
	if err := r.store.Set(ctx, streamKey(adID, stream, "index"), data); err != nil {
		return fmt.Errorf("failed to save version index: %w", err)
	}
	return nil
}

// ActiveID returns the active version id, or "" when none is set
func (r *VersionRepository) ActiveID(ctx context.Context, adID string, stream models.StreamType) (string, error) {
	return r.pointer(ctx, streamKey(adID, stream, "active"))
}

// SetActiveID points the stream at a version; "" clears the pointer
func (r *VersionRepository) SetActiveID(ctx context.Context, adID string, stream models.StreamType, versionID string) error {
	return r.setPointer(ctx, streamKey(adID, stream, "active"), versionID)
}

// DraftID returns the draft version id, or "" when the stream has no draft
func (r *VersionRepository) DraftID(ctx context.Context, adID string, stream models.StreamType) (string, error) {
	return r.pointer(ctx, streamKey(adID, stream, "draft"))
}

// SetDraftID records the stream's draft; "" clears the pointer
func (r *VersionRepository) SetDraftID(ctx context.Context, adID string, stream models.StreamType, versionID string) error {
	return r.setPointer(ctx, streamKey(adID, stream, "draft"), versionID)
}

// DeleteStream removes every version, pointer and the id counter of a stream
func (r *VersionRepository) DeleteStream(ctx context.Context, adID string, stream models.StreamType) (int, error) {
	ids, err := r.Index(ctx, adID, stream)
	if err != nil {
		return 0, err
	}

	keys := make([]string, 0, len(ids)+4)
	for _, id := range ids {
		keys = append(keys, versionKey(adID, stream, id))
	}
	keys = append(keys,
		streamKey(adID, stream, "index"),
		streamKey(adID, stream, "draft"),
		streamKey(adID, stream, "active"),
		streamKey(adID, stream, "seq"),
	)

	if err := r.store.Delete(ctx, keys...); err != nil {
		return 0, fmt.Errorf("failed to delete %s stream: %w", stream, err)
	}
	return len(ids), nil
}

func (r *VersionRepository) pointer(ctx context.Context, key string) (string, error) {
	data, err := r.store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return string(data), nil
}

func (r *VersionRepository) setPointer(ctx context.Context, key, value string) error {
	var err error
	if value == "" {
		err = r.store.Delete(ctx, key)
	} else {
		err = r.store.Set(ctx, key, []byte(value))
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
