package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lyzr/adstudio/cmd/adstudio/models"
	"github.com/lyzr/adstudio/common/kv"
)

// MixerRepository stores one mixer state per ad
type MixerRepository struct {
	store kv.Store
}

// NewMixerRepository creates a new mixer repository
func NewMixerRepository(store kv.Store) *MixerRepository {
	return &MixerRepository{store: store}
}

// LockAd serializes rebuilds and writes of one ad's mixer state
func (r *MixerRepository) LockAd(ctx context.Context, adID string) (kv.Unlocker, error) {
	unlock, err := r.store.Lock(ctx, mixerLockKey(adID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock mixer for %s: %w", adID, err)
	}
	return unlock, nil
}

// Get retrieves the mixer state of an ad
func (r *MixerRepository) Get(ctx context.Context, adID string) (*models.MixerState, error) {
	data, err := r.store.Get(ctx, mixerKey(adID))
	if err != nil {
		return nil, fmt.Errorf("failed to get mixer state: %w", err)
	}

	state := &models.MixerState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to decode mixer state: %w", err)
	}
	return state, nil
}

// Save replaces the mixer state of an ad
func (r *MixerRepository) Save(ctx context.Context, state *models.MixerState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode mixer state: %w", err)
	}
	if err := r.store.Set(ctx, mixerKey(state.AdID), data); err != nil {
		return fmt.Errorf("failed to save mixer state: %w", err)
	}
	return nil
}

// Delete removes the mixer state of an ad
func (r *MixerRepository) Delete(ctx context.Context, adID string) error {
	if err := r.store.Delete(ctx, mixerKey(adID)); err != nil {
		return fmt.Errorf("failed to delete mixer state: %w", err)
	}
	return nil
}
