package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/lyzr/adstudio/cmd/adstudio/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateVersionOneDraftPerStream(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	v1, err := f.versions.CreateVersion(ctx, "ad-1", models.StreamVoice, json.RawMessage(voiceJSON), models.CreatedByLLM, CreateOptions{RequestText: "first cut"})
	require.NoError(t, err)
	assert.Equal(t, "v1", v1.ID)
	assert.Equal(t, models.StatusDraft, v1.Status)
	assert.Equal(t, models.CreatedByLLM, v1.CreatedBy)
	assert.Equal(t, "first cut", v1.RequestText)

	_, err = f.versions.CreateVersion(ctx, "ad-1", models.StreamVoice, json.RawMessage(voiceJSON), models.CreatedByUser, CreateOptions{})
	require.ErrorIs(t, err, ErrDraftConflict)
	var conflict *DraftConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "v1", conflict.DraftID)

	// other streams are independent
	_, err = f.versions.CreateVersion(ctx, "ad-1", models.StreamMusic, json.RawMessage(musicJSON), models.CreatedByUser, CreateOptions{})
	require.NoError(t, err)

	v2, err := f.versions.CreateVersion(ctx, "ad-1", models.StreamVoice, json.RawMessage(voiceJSON), models.CreatedByUser, CreateOptions{AutoFreezeDraft: true, ParentVersionID: "v1"})
	require.NoError(t, err)
	assert.Equal(t, "v2", v2.ID)
	require.NotNil(t, v2.ParentVersionID)
	assert.Equal(t, "v1", *v2.ParentVersionID)

	frozen, err := f.versions.GetVersion(ctx, "ad-1", models.StreamVoice, "v1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFrozen, frozen.Status)

	draftID, ok, err := f.versions.DraftVersion(ctx, "ad-1", models.StreamVoice)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", draftID)

	// auto-freeze never activates
	_, ok, err = f.versions.GetActiveVersion(ctx, "ad-1", models.StreamVoice)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateVersionValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name    string
		adID    string
		stream  models.StreamType
		content string
	}{
		{"not json", "ad-1", models.StreamVoice, `{"tracks":`},
		{"array instead of object", "ad-1", models.StreamVoice, `[]`},
		{"no tracks", "ad-1", models.StreamVoice, `{"tracks":[]}`},
		{"blank text", "ad-1", models.StreamVoice, `{"tracks":[{"voiceId":"alloy","text":""}]}`},
		{"unknown field", "ad-1", models.StreamVoice, `{"tracks":[{"voiceId":"alloy","text":"hi","pitch":2}]}`},
		{"music without a cue", "ad-1", models.StreamMusic, `{"provider":"suno"}`},
		{"sfx without placement", "ad-1", models.StreamSFX, `{"cues":[{"description":"pop"}]}`},
		{"sfx unknown placement", "ad-1", models.StreamSFX, `{"cues":[{"description":"pop","placement":{"type":"middle"}}]}`},
		{"unknown stream", "ad-1", models.StreamType("video"), `{}`},
		{"blank ad", " ", models.StreamMusic, musicJSON},
		{"ad id with separator", "ad:1", models.StreamMusic, musicJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.versions.CreateVersion(ctx, tt.adID, tt.stream, json.RawMessage(tt.content), models.CreatedByUser, CreateOptions{})
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	assert.Equal(t, 0, f.store.Len(), "rejected content leaves no trace")
}

func TestCreateVersionAssignsTrackIDs(t *testing.T) {
	f := newFixture(t)

	v := f.create(t, "ad-1", models.StreamVoice, `{"tracks":[{"voiceId":"alloy","text":"Hi"},{"id":"keep","voiceId":"alloy","text":"Bye"}]}`)

	tracks := v.Content.(*models.VoiceContent).Tracks
	assert.NotEmpty(t, tracks[0].ID)
	assert.Equal(t, "keep", tracks[1].ID)
}

func TestCreateVersionUnknownParent(t *testing.T) {
	f := newFixture(t)

	_, err := f.versions.CreateVersion(context.Background(), "ad-1", models.StreamMusic, json.RawMessage(musicJSON), models.CreatedByUser, CreateOptions{ParentVersionID: "v42"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateVersion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	v := f.create(t, "ad-1", models.StreamVoice, voiceJSON)

	// JSON Patch edits one track in place
	updated, err := f.versions.UpdateVersion(ctx, "ad-1", models.StreamVoice, v.ID, VersionPatch{
		Content: json.RawMessage(`[{"op":"replace","path":"/tracks/1/text","value":"Buy it today"}]`),
	})
	require.NoError(t, err)
	assert.Equal(t, "Buy it today", updated.Content.(*models.VoiceContent).Tracks[1].Text)
	assert.Equal(t, v.CreatedAt, updated.CreatedAt)
	assert.Equal(t, v.CreatedBy, updated.CreatedBy)

	// a merge patch replaces arrays wholesale
	text := "shorter script"
	updated, err = f.versions.UpdateVersion(ctx, "ad-1", models.StreamVoice, v.ID, VersionPatch{
		Content:     json.RawMessage(`{"tracks":[{"voiceId":"nova","text":"One line"}]}`),
		RequestText: &text,
	})
	require.NoError(t, err)
	tracks := updated.Content.(*models.VoiceContent).Tracks
	require.Len(t, tracks, 1)
	assert.NotEmpty(t, tracks[0].ID)
	assert.Equal(t, "shorter script", updated.RequestText)

	// patches producing invalid content are rejected
	_, err = f.versions.UpdateVersion(ctx, "ad-1", models.StreamVoice, v.ID, VersionPatch{
		Content: json.RawMessage(`[{"op":"remove","path":"/tracks/0"}]`),
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.versions.UpdateVersion(ctx, "ad-1", models.StreamVoice, v.ID, VersionPatch{Content: json.RawMessage(`"nope"`)})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.versions.UpdateVersion(ctx, "ad-1", models.StreamVoice, "v9", VersionPatch{})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.versions.FreezeVersion(ctx, "ad-1", models.StreamVoice, v.ID)
	require.NoError(t, err)

	_, err = f.versions.UpdateVersion(ctx, "ad-1", models.StreamVoice, v.ID, VersionPatch{RequestText: &text})
	assert.ErrorIs(t, err, ErrImmutableVersion)
}

func TestCloneVersion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	source := f.create(t, "ad-1", models.StreamSFX, sfxJSON)

	_, err := f.versions.CloneVersion(ctx, "ad-1", models.StreamSFX, source.ID, models.CreatedByLLM, CloneOptions{})
	require.ErrorIs(t, err, ErrDraftConflict)

	clone, err := f.versions.CloneVersion(ctx, "ad-1", models.StreamSFX, source.ID, "", CloneOptions{AutoFreezeDraft: true, RequestText: "louder"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, clone.Status)
	assert.Equal(t, source.ID, *clone.ParentVersionID)
	assert.Equal(t, source.CreatedBy, clone.CreatedBy)
	assert.Equal(t, source.Content, clone.Content)

	// editing the clone leaves the source untouched
	_, err = f.versions.UpdateVersion(ctx, "ad-1", models.StreamSFX, clone.ID, VersionPatch{
		Content: json.RawMessage(`[{"op":"replace","path":"/cues/0/description","value":"gong"}]`),
	})
	require.NoError(t, err)

	reloaded, err := f.versions.GetVersion(ctx, "ad-1", models.StreamSFX, source.ID)
	require.NoError(t, err)
	assert.Equal(t, "bell ding", reloaded.Content.(*models.SFXContent).Cues[0].Description)

	_, err = f.versions.CloneVersion(ctx, "ad-1", models.StreamSFX, "v99", models.CreatedByUser, CloneOptions{AutoFreezeDraft: true})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetActiveVersion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	v1 := f.create(t, "ad-1", models.StreamMusic, musicJSON)

	activated, err := f.versions.SetActiveVersion(ctx, "ad-1", models.StreamMusic, v1.ID, ActivateOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusFrozen, activated.Status)

	_, hasDraft, err := f.versions.DraftVersion(ctx, "ad-1", models.StreamMusic)
	require.NoError(t, err)
	assert.False(t, hasDraft)

	// re-activating is a no-op
	_, err = f.versions.SetActiveVersion(ctx, "ad-1", models.StreamMusic, v1.ID, ActivateOptions{})
	require.NoError(t, err)

	v2 := f.create(t, "ad-1", models.StreamMusic, `{"prompt":"darker synth"}`)

	_, err = f.versions.SetActiveVersion(ctx, "ad-1", models.StreamMusic, v2.ID, ActivateOptions{})
	require.ErrorIs(t, err, ErrAlreadyActive)
	var active *AlreadyActiveError
	require.ErrorAs(t, err, &active)
	assert.Equal(t, v1.ID, active.ActiveID)

	_, err = f.versions.SetActiveVersion(ctx, "ad-1", models.StreamMusic, v2.ID, ActivateOptions{ForceFreeze: true})
	require.NoError(t, err)

	id, ok, err := f.versions.GetActiveVersion(ctx, "ad-1", models.StreamMusic)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, v2.ID, id)

	_, err = f.versions.SetActiveVersion(ctx, "ad-1", models.StreamMusic, "v7", ActivateOptions{ForceFreeze: true})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteVersion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	v1 := f.create(t, "ad-1", models.StreamVoice, voiceJSON)
	_, err := f.versions.SetActiveVersion(ctx, "ad-1", models.StreamVoice, v1.ID, ActivateOptions{})
	require.NoError(t, err)
	v2 := f.create(t, "ad-1", models.StreamVoice, voiceJSON)

	result, err := f.versions.DeleteVersion(ctx, "ad-1", models.StreamVoice, v2.ID)
	require.NoError(t, err)
	assert.False(t, result.WasActive)

	// deleting the draft frees the slot
	_, err = f.versions.CreateVersion(ctx, "ad-1", models.StreamVoice, json.RawMessage(voiceJSON), models.CreatedByUser, CreateOptions{})
	require.NoError(t, err)

	result, err = f.versions.DeleteVersion(ctx, "ad-1", models.StreamVoice, v1.ID)
	require.NoError(t, err)
	assert.True(t, result.WasActive)

	_, ok, err := f.versions.GetActiveVersion(ctx, "ad-1", models.StreamVoice)
	require.NoError(t, err)
	assert.False(t, ok)

	versions, err := f.versions.ListVersions(ctx, "ad-1", models.StreamVoice)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "v3", versions[0].ID, "ids are never reused")

	_, err = f.versions.DeleteVersion(ctx, "ad-1", models.StreamVoice, v1.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLineage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	v1 := f.create(t, "ad-1", models.StreamMusic, musicJSON)
	v2, err := f.versions.CloneVersion(ctx, "ad-1", models.StreamMusic, v1.ID, models.CreatedByLLM, CloneOptions{AutoFreezeDraft: true, RequestText: "slower"})
	require.NoError(t, err)
	v3, err := f.versions.CloneVersion(ctx, "ad-1", models.StreamMusic, v2.ID, models.CreatedByUser, CloneOptions{AutoFreezeDraft: true})
	require.NoError(t, err)

	lineage, err := f.versions.Lineage(ctx, "ad-1", models.StreamMusic, v3.ID)
	require.NoError(t, err)
	require.Len(t, lineage, 3)
	assert.Equal(t, []string{v3.ID, v2.ID, v1.ID}, []string{lineage[0].VersionID, lineage[1].VersionID, lineage[2].VersionID})
	assert.Equal(t, "slower", lineage[1].RequestText)

	// deleting a middle version leaves the child's parent id dangling
	_, err = f.versions.DeleteVersion(ctx, "ad-1", models.StreamMusic, v2.ID)
	require.NoError(t, err)

	lineage, err = f.versions.Lineage(ctx, "ad-1", models.StreamMusic, v3.ID)
	require.NoError(t, err)
	require.Len(t, lineage, 2)
	assert.Equal(t, v2.ID, lineage[1].VersionID)
	assert.True(t, lineage[1].Missing)

	_, err = f.versions.Lineage(ctx, "ad-1", models.StreamMusic, v2.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLineageStopsOnCycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	v1 := f.create(t, "ad-1", models.StreamMusic, musicJSON)
	v2 := f.create(t, "ad-1", models.StreamMusic, musicJSON)

	// corrupt the chain by hand: v1 -> v2 -> v1
	v1.ParentVersionID = &v2.ID
	require.NoError(t, f.repo.Save(ctx, v1))
	v2.ParentVersionID = &v1.ID
	require.NoError(t, f.repo.Save(ctx, v2))

	lineage, err := f.versions.Lineage(ctx, "ad-1", models.StreamMusic, v2.ID)
	require.NoError(t, err)
	assert.Len(t, lineage, 2)
}

func TestConcurrentCreatesKeepOneDraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const writers = 20
	ids := make(chan string, writers)
	var wg sync.WaitGroup

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			content := fmt.Sprintf(`{"prompt":"take %d"}`, i)
			v, err := f.versions.CreateVersion(ctx, "ad-1", models.StreamMusic, json.RawMessage(content), models.CreatedByLLM, CreateOptions{AutoFreezeDraft: true})
			if assert.NoError(t, err) {
				ids <- v.ID
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, writers)

	versions, err := f.versions.ListVersions(ctx, "ad-1", models.StreamMusic)
	require.NoError(t, err)
	require.Len(t, versions, writers)

	drafts := 0
	for _, v := range versions {
		if v.IsDraft() {
			drafts++
		}
	}
	assert.Equal(t, 1, drafts)
}
