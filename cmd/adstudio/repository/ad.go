package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lyzr/adstudio/cmd/adstudio/models"
	"github.com/lyzr/adstudio/common/kv"
)

// AdRepository stores ad metadata records
type AdRepository struct {
	store kv.Store
}

// NewAdRepository creates a new ad repository
func NewAdRepository(store kv.Store) *AdRepository {
	return &AdRepository{store: store}
}

// Get retrieves an ad record
func (r *AdRepository) Get(ctx context.Context, adID string) (*models.Ad, error) {
	data, err := r.store.Get(ctx, adMetaKey(adID))
	if err != nil {
		return nil, fmt.Errorf("failed to get ad %s: %w", adID, err)
	}

	ad := &models.Ad{}
	if err := json.Unmarshal(data, ad); err != nil {
		return nil, fmt.Errorf("failed to decode ad %s: %w", adID, err)
	}
	return ad, nil
}

// Touch creates the ad record on first write and bumps UpdatedAt afterwards
func (r *AdRepository) Touch(ctx context.Context, adID string, now time.Time) (*models.Ad, error) {
	ad, err := r.Get(ctx, adID)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		ad = &models.Ad{ID: adID, CreatedAt: now}
	case err != nil:
		return nil, err
	}
	ad.UpdatedAt = now

	data, err := json.Marshal(ad)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ad %s: %w", adID, err)
	}
	if err := r.store.Set(ctx, adMetaKey(adID), data); err != nil {
		return nil, fmt.Errorf("failed to save ad %s: %w", adID, err)
	}
	return ad, nil
}

// Delete removes the ad record
func (r *AdRepository) Delete(ctx context.Context, adID string) error {
	if err := r.store.Delete(ctx, adMetaKey(adID)); err != nil {
		return fmt.Errorf("failed to delete ad %s: %w", adID, err)
	}
	return nil
}
