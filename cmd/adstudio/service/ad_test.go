package service

import (
	"context"
	"testing"

	"github.com/lyzr/adstudio/cmd/adstudio/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.activate(t, "ad-1", models.StreamVoice, voiceJSON)
	f.create(t, "ad-1", models.StreamVoice, voiceJSON)

	summary, err := f.ads.Get(ctx, "ad-1")
	require.NoError(t, err)
	assert.Equal(t, "ad-1", summary.ID)
	require.Len(t, summary.Streams, 3)

	voice := summary.Streams[0]
	assert.Equal(t, models.StreamVoice, voice.Stream)
	assert.Equal(t, 2, voice.VersionCount)
	assert.Equal(t, "v1", voice.ActiveVersionID)
	assert.Equal(t, "v2", voice.DraftVersionID)

	assert.Equal(t, 0, summary.Streams[1].VersionCount)
	assert.Equal(t, 8.0, summary.TotalDuration)
}

func TestAdDeleteCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.activate(t, "ad-1", models.StreamVoice, voiceJSON)
	f.activate(t, "ad-1", models.StreamMusic, musicJSON)
	f.create(t, "ad-1", models.StreamSFX, sfxJSON)
	f.create(t, "ad-2", models.StreamSFX, sfxJSON)

	require.NoError(t, f.ads.Delete(ctx, "ad-1"))

	_, err := f.ads.Get(ctx, "ad-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.mixer.Get(ctx, "ad-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// only ad-2's meta, version, index and draft pointer remain
	assert.Equal(t, 4, f.store.Len())

	assert.ErrorIs(t, f.ads.Delete(ctx, "ad-1"), ErrNotFound)
}
