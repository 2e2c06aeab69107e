package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/adstudio/cmd/adstudio/container"
	admiddleware "github.com/lyzr/adstudio/cmd/adstudio/middleware"
	"github.com/lyzr/adstudio/cmd/adstudio/routes"
	"github.com/lyzr/adstudio/common/bootstrap"
	"github.com/lyzr/adstudio/common/config"
	"github.com/lyzr/adstudio/common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const voiceBody = `{"content":{"tracks":[
	{"id":"a","voiceId":"alloy","text":"Hello there","playAfter":"start","generatedDuration":5},
	{"id":"b","voiceId":"alloy","text":"Buy now","overlap":1,"generatedDuration":4}
]}}`

func testConfig() *config.Config {
	return &config.Config{
		Service: config.ServiceConfig{Name: "adstudio-test", Port: 8080},
		Store:   config.StoreConfig{Backend: "memory", LockTTL: time.Second, LockWait: 5 * time.Second},
		Queue:   config.QueueConfig{Type: "memory", BufferSize: 16, MixerTopic: "mixer.rebuilt"},
		Mixer: config.MixerConfig{
			VoiceVolume:          1.0,
			MusicVolume:          0.3,
			SFXVolume:            0.7,
			DefaultVoiceDuration: 3,
			DefaultMusicDuration: 30,
			DefaultSFXDuration:   2,
			VoiceWordsPerSecond:  2.5,
		},
	}
}

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	ctx := context.Background()

	components, err := bootstrap.Setup(ctx, "adstudio-test",
		bootstrap.WithCustomConfig(testConfig()),
		bootstrap.WithCustomLogger(logger.Discard()),
		bootstrap.WithoutTelemetry(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { components.Shutdown(ctx) })

	c, err := container.NewContainer(components)
	require.NoError(t, err)

	e := echo.New()
	e.Use(admiddleware.ExtractActor())
	routes.RegisterAdRoutes(e, c)
	return e
}

func do(t *testing.T, e *echo.Echo, method, path, body string, headers ...string) (int, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Body.Len() == 0 {
		return rec.Code, nil
	}
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func TestCreateGetAndList(t *testing.T) {
	e := newServer(t)

	code, body := do(t, e, http.MethodPost, "/api/v1/ads/ad-1/streams/voice/versions", voiceBody, "X-Actor", "llm")
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "v1", body["id"])
	assert.Equal(t, "draft", body["status"])
	assert.Equal(t, "llm", body["createdBy"])

	code, body = do(t, e, http.MethodGet, "/api/v1/ads/ad-1/streams/voice/versions/v1", "")
	require.Equal(t, http.StatusOK, code)
	content := body["content"].(map[string]interface{})
	assert.Len(t, content["tracks"], 2)

	code, body = do(t, e, http.MethodGet, "/api/v1/ads/ad-1/streams/voice/versions", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["versions"], 1)
	assert.Equal(t, "v1", body["draftVersionId"])
	assert.Equal(t, "", body["activeVersionId"])

	// a clone with no actor keeps the source's author
	code, _ = do(t, e, http.MethodPost, "/api/v1/ads/ad-1/streams/voice/versions/v1/freeze", "")
	require.Equal(t, http.StatusOK, code)
	code, body = do(t, e, http.MethodPost, "/api/v1/ads/ad-1/streams/voice/versions/v1/clone", `{}`)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "llm", body["createdBy"])
}

func TestRequestErrors(t *testing.T) {
	e := newServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		header []string
		want   int
	}{
		{"unknown stream", http.MethodGet, "/api/v1/ads/ad-1/streams/video/versions", "", nil, http.StatusBadRequest},
		{"missing content", http.MethodPost, "/api/v1/ads/ad-1/streams/voice/versions", `{}`, nil, http.StatusBadRequest},
		{"invalid content", http.MethodPost, "/api/v1/ads/ad-1/streams/voice/versions", `{"content":{"tracks":[]}}`, nil, http.StatusBadRequest},
		{"bad actor", http.MethodPost, "/api/v1/ads/ad-1/streams/voice/versions", voiceBody, []string{"X-Actor", "robot"}, http.StatusBadRequest},
		{"missing version", http.MethodGet, "/api/v1/ads/ad-1/streams/voice/versions/v9", "", nil, http.StatusNotFound},
		{"unknown ad", http.MethodGet, "/api/v1/ads/nope", "", nil, http.StatusNotFound},
		{"rebuild unknown ad", http.MethodPost, "/api/v1/ads/nope/mixer/rebuild", "", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, e, tt.method, tt.path, tt.body, tt.header...)
			assert.Equal(t, tt.want, code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestDraftConflictReportsDraft(t *testing.T) {
	e := newServer(t)

	code, _ := do(t, e, http.MethodPost, "/api/v1/ads/ad-1/streams/voice/versions", voiceBody)
	require.Equal(t, http.StatusCreated, code)

	code, body := do(t, e, http.MethodPost, "/api/v1/ads/ad-1/streams/voice/versions", voiceBody)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "v1", body["draftVersionId"])

	withFreeze := strings.TrimSuffix(voiceBody, "}") + `,"autoFreezeDraft":true}`
	code, body = do(t, e, http.MethodPost, "/api/v1/ads/ad-1/streams/voice/versions", withFreeze)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "v2", body["id"])

	code, body = do(t, e, http.MethodGet, "/api/v1/ads/ad-1/streams/voice/versions/v1", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "frozen", body["status"])
}

func TestPatchFreezeAndClone(t *testing.T) {
	e := newServer(t)

	do(t, e, http.MethodPost, "/api/v1/ads/ad-1/streams/voice/versions", voiceBody)

	patch := `{"content":[{"op":"replace","path":"/tracks/1/text","value":"Shop today"}],"requestText":"punchier close"}`
	code, body := do(t, e, http.MethodPatch, "/api/v1/ads/ad-1/streams/voice/versions/v1", patch)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "punchier close", body["requestText"])

	code, body = do(t, e, http.MethodPost, "/api/v1/ads/ad-1/streams/voice/versions/v1/freeze", "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "frozen", body["status"])

	code, _ = do(t, e, http.MethodPatch, "/api/v1/ads/ad-1/streams/voice/versions/v1", patch)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, e, http.MethodPost, "/api/v1/ads/ad-1/streams/voice/versions/v1/clone", `{"requestText":"try again"}`)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "v2", body["id"])
	assert.Equal(t, "v1", body["parentVersionId"])

	code, body = do(t, e, http.MethodGet, "/api/v1/ads/ad-1/streams/voice/versions/v2/lineage", "")
	require.Equal(t, http.StatusOK, code)
	lineage := body["lineage"].([]interface{})
	require.Len(t, lineage, 2)
	assert.Equal(t, "v2", lineage[0].(map[string]interface{})["versionId"])
	assert.Equal(t, "v1", lineage[1].(map[string]interface{})["versionId"])
}

func TestActivateRebuildsMixer(t *testing.T) {
	e := newServer(t)

	do(t, e, http.MethodPost, "/api/v1/ads/ad-1/streams/voice/versions", voiceBody)

	code, body := do(t, e, http.MethodGet, "/api/v1/ads/ad-1/streams/voice/active", "")
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, body["activeVersionId"])

	code, body = do(t, e, http.MethodPost, "/api/v1/ads/ad-1/streams/voice/versions/v1/activate", `{}`)
	require.Equal(t, http.StatusOK, code, body)
	mixer := body["mixer"].(map[string]interface{})
	assert.Equal(t, 8.0, mixer["totalDuration"])

	code, body = do(t, e, http.MethodPost, "/api/v1/ads/ad-1/streams/voice/versions/v1/activate", `{}`)
	require.Equal(t, http.StatusOK, code, body)

	code, body = do(t, e, http.MethodGet, "/api/v1/ads/ad-1/streams/voice/active", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "v1", body["activeVersionId"])

	code, body = do(t, e, http.MethodGet, "/api/v1/ads/ad-1/mixer", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 8.0, body["totalDuration"])
	hash := body["layoutHash"].(string)
	require.NotEmpty(t, hash)

	code, _ = do(t, e, http.MethodPut, "/api/v1/ads/ad-1/mixer/mixed-audio", `{"url":"https://cdn/mix.mp3","layoutHash":"sha256:stale"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, e, http.MethodPut, "/api/v1/ads/ad-1/mixer/mixed-audio", `{"url":"https://cdn/mix.mp3","layoutHash":"`+hash+`"}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "https://cdn/mix.mp3", body["mixedAudioUrl"])
}

func TestDeleteActiveVersionAndAd(t *testing.T) {
	e := newServer(t)

	do(t, e, http.MethodPost, "/api/v1/ads/ad-1/streams/voice/versions", voiceBody)
	do(t, e, http.MethodPost, "/api/v1/ads/ad-1/streams/voice/versions/v1/activate", `{}`)

	code, body := do(t, e, http.MethodGet, "/api/v1/ads/ad-1", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ad-1", body["id"])
	assert.Equal(t, 8.0, body["totalDuration"])

	code, body = do(t, e, http.MethodDelete, "/api/v1/ads/ad-1/streams/voice/versions/v1", "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, true, body["wasActive"])
	mixer := body["mixer"].(map[string]interface{})
	assert.Equal(t, 0.0, mixer["totalDuration"])

	code, _ = do(t, e, http.MethodDelete, "/api/v1/ads/ad-1", "")
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = do(t, e, http.MethodGet, "/api/v1/ads/ad-1", "")
	assert.Equal(t, http.StatusNotFound, code)
}
