package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/lyzr/adstudio/cmd/adstudio/compiler"
	"github.com/lyzr/adstudio/cmd/adstudio/models"
	"github.com/lyzr/adstudio/cmd/adstudio/repository"
	"github.com/lyzr/adstudio/common/kv"
	"github.com/lyzr/adstudio/common/logger"
	"github.com/lyzr/adstudio/common/validation"
	"github.com/stretchr/testify/require"
)

const (
	voiceJSON = `{"tracks":[
		{"id":"a","voiceId":"alloy","text":"Hello there","playAfter":"start","generatedDuration":5},
		{"id":"b","voiceId":"alloy","text":"Buy now","overlap":1,"generatedDuration":4}
	]}`
	musicJSON = `{"prompt":"warm acoustic bed","targetDuration":20}`
	sfxJSON   = `{"cues":[{"id":"ding","description":"bell ding","placement":{"type":"afterVoice","index":0},"generatedDuration":1}]}`
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.MixerRebuiltEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, topic, key string, message []byte) error {
	var event models.MixerRebuiltEvent
	if err := json.Unmarshal(message, &event); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type fixture struct {
	store     *kv.MemoryStore
	repo      *repository.VersionRepository
	versions  *VersionService
	mixer     *MixerService
	studio    *StudioService
	ads       *AdService
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logger.Discard()
	store := kv.NewMemoryStore(log, kv.LockOptions{TTL: time.Second, Wait: 5 * time.Second})

	rules, err := validation.NewEvaluator()
	require.NoError(t, err)

	versionRepo := repository.NewVersionRepository(store)
	adRepo := repository.NewAdRepository(store)
	publisher := &recordingPublisher{}

	versions := NewVersionService(versionRepo, adRepo, NewContentNormalizer(rules), log)
	mixer := NewMixerService(versions, repository.NewMixerRepository(store), adRepo, publisher, nil, MixerOptions{
		VoiceVolume:         1.0,
		MusicVolume:         0.3,
		SFXVolume:           0.7,
		VoiceWordsPerSecond: 2.5,
		Durations:           compiler.DefaultResolver{Voice: 3, Music: 30, SFX: 2},
		Topic:               "mixer.rebuilt",
	}, log)

	return &fixture{
		store:     store,
		repo:      versionRepo,
		versions:  versions,
		mixer:     mixer,
		studio:    NewStudioService(versions, mixer, log),
		ads:       NewAdService(adRepo, versions, mixer, log),
		publisher: publisher,
	}
}

func (f *fixture) create(t *testing.T, adID string, stream models.StreamType, content string) *models.Version {
	t.Helper()
	v, err := f.versions.CreateVersion(context.Background(), adID, stream, json.RawMessage(content), models.CreatedByUser, CreateOptions{AutoFreezeDraft: true})
	require.NoError(t, err)
	return v
}

func (f *fixture) activate(t *testing.T, adID string, stream models.StreamType, content string) *models.Version {
	t.Helper()
	v := f.create(t, adID, stream, content)
	_, err := f.studio.Activate(context.Background(), adID, stream, v.ID, ActivateOptions{ForceFreeze: true})
	require.NoError(t, err)
	return v
}

func startsByID(state *models.MixerState) map[string]float64 {
	out := make(map[string]float64, len(state.CalculatedTracks))
	for _, ct := range state.CalculatedTracks {
		out[ct.ID] = ct.ActualStartTime
	}
	return out
}
