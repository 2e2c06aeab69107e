package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/adstudio/cmd/adstudio/container"
	"github.com/lyzr/adstudio/cmd/adstudio/service"
	"github.com/lyzr/adstudio/common/logger"
)

// MixerHandler handles mixer state requests
type MixerHandler struct {
	mixer *service.MixerService
	log   *logger.Logger
}

// NewMixerHandler creates a new mixer handler
func NewMixerHandler(c *container.Container) *MixerHandler {
	return &MixerHandler{
		mixer: c.MixerService,
		log:   c.Components.Logger,
	}
}

type mixedAudioRequest struct {
	URL        string `json:"url"`
	LayoutHash string `json:"layoutHash"`
}

// GetMixer returns the ad's mixer state
// GET /api/v1/ads/:ad_id/mixer
func (h *MixerHandler) GetMixer(c echo.Context) error {
	state, err := h.mixer.Get(c.Request().Context(), c.Param("ad_id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, state)
}

// RebuildMixer recomputes the mixer state from the active versions
// POST /api/v1/ads/:ad_id/mixer/rebuild
func (h *MixerHandler) RebuildMixer(c echo.Context) error {
	state, err := h.mixer.Rebuild(c.Request().Context(), c.Param("ad_id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, state)
}

// SetMixedAudio records the rendered mix for the current layout
// PUT /api/v1/ads/:ad_id/mixer/mixed-audio
func (h *MixerHandler) SetMixedAudio(c echo.Context) error {
	var req mixedAudioRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	state, err := h.mixer.SetMixedAudioURL(c.Request().Context(), c.Param("ad_id"), req.URL, req.LayoutHash)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, state)
}
