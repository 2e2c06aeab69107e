package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/adstudio/cmd/adstudio/container"
	"github.com/lyzr/adstudio/cmd/adstudio/service"
	"github.com/lyzr/adstudio/common/logger"
)

// AdHandler handles whole-ad requests
type AdHandler struct {
	ads *service.AdService
	log *logger.Logger
}

// NewAdHandler creates a new ad handler
func NewAdHandler(c *container.Container) *AdHandler {
	return &AdHandler{
		ads: c.AdService,
		log: c.Components.Logger,
	}
}

// GetAd returns the ad with per-stream pointers
// GET /api/v1/ads/:ad_id
func (h *AdHandler) GetAd(c echo.Context) error {
	summary, err := h.ads.Get(c.Request().Context(), c.Param("ad_id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, summary)
}

// DeleteAd deletes the ad and everything under it
// DELETE /api/v1/ads/:ad_id
func (h *AdHandler) DeleteAd(c echo.Context) error {
	if err := h.ads.Delete(c.Request().Context(), c.Param("ad_id")); err != nil {
		return respondError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
