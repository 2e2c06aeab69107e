package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/adstudio/cmd/adstudio/container"
	"github.com/lyzr/adstudio/cmd/adstudio/middleware"
	"github.com/lyzr/adstudio/cmd/adstudio/service"
	"github.com/lyzr/adstudio/common/logger"
)

// VersionHandler handles per-stream version requests
type VersionHandler struct {
	versions *service.VersionService
	studio   *service.StudioService
	log      *logger.Logger
}

// NewVersionHandler creates a new version handler
func NewVersionHandler(c *container.Container) *VersionHandler {
	return &VersionHandler{
		versions: c.VersionService,
		studio:   c.StudioService,
		log:      c.Components.Logger,
	}
}

type createVersionRequest struct {
	Content         json.RawMessage `json:"content"`
	ParentVersionID string          `json:"parentVersionId"`
	RequestText     string          `json:"requestText"`
	AutoFreezeDraft bool            `json:"autoFreezeDraft"`
}

type cloneVersionRequest struct {
	RequestText     string `json:"requestText"`
	AutoFreezeDraft bool   `json:"autoFreezeDraft"`
}

type activateVersionRequest struct {
	ForceFreeze bool `json:"forceFreeze"`
}

// ListVersions lists a stream's versions with its pointers
// GET /api/v1/ads/:ad_id/streams/:stream/versions
func (h *VersionHandler) ListVersions(c echo.Context) error {
	ctx := c.Request().Context()
	adID := c.Param("ad_id")
	stream, ok, err := streamParam(c)
	if !ok {
		return err
	}

	versions, err := h.versions.ListVersions(ctx, adID, stream)
	if err != nil {
		return respondError(c, h.log, err)
	}
	activeID, _, err := h.versions.GetActiveVersion(ctx, adID, stream)
	if err != nil {
		return respondError(c, h.log, err)
	}
	draftID, _, err := h.versions.DraftVersion(ctx, adID, stream)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"versions":        versions,
		"activeVersionId": activeID,
		"draftVersionId":  draftID,
	})
}

// CreateVersion creates the stream's draft
// POST /api/v1/ads/:ad_id/streams/:stream/versions
func (h *VersionHandler) CreateVersion(c echo.Context) error {
	stream, ok, err := streamParam(c)
	if !ok {
		return err
	}

	var req createVersionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(req.Content) == 0 {
		return badRequest(c, "content is required")
	}

	v, err := h.versions.CreateVersion(c.Request().Context(), c.Param("ad_id"), stream, req.Content, middleware.GetActor(c), service.CreateOptions{
		ParentVersionID: req.ParentVersionID,
		RequestText:     req.RequestText,
		AutoFreezeDraft: req.AutoFreezeDraft,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(http.StatusCreated, v)
}

// GetVersion returns one version
// GET /api/v1/ads/:ad_id/streams/:stream/versions/:version_id
func (h *VersionHandler) GetVersion(c echo.Context) error {
	stream, ok, err := streamParam(c)
	if !ok {
		return err
	}

	v, err := h.versions.GetVersion(c.Request().Context(), c.Param("ad_id"), stream, c.Param("version_id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, v)
}

// UpdateVersion patches a draft
// PATCH /api/v1/ads/:ad_id/streams/:stream/versions/:version_id
func (h *VersionHandler) UpdateVersion(c echo.Context) error {
	stream, ok, err := streamParam(c)
	if !ok {
		return err
	}

	var patch service.VersionPatch
	if err := c.Bind(&patch); err != nil {
		return badRequest(c, "invalid request body")
	}

	v, err := h.versions.UpdateVersion(c.Request().Context(), c.Param("ad_id"), stream, c.Param("version_id"), patch)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, v)
}

// DeleteVersion deletes a version, rebuilding the mixer if it was active
// DELETE /api/v1/ads/:ad_id/streams/:stream/versions/:version_id
func (h *VersionHandler) DeleteVersion(c echo.Context) error {
	stream, ok, err := streamParam(c)
	if !ok {
		return err
	}

	deletion, err := h.studio.DeleteVersion(c.Request().Context(), c.Param("ad_id"), stream, c.Param("version_id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, deletion)
}

// CloneVersion copies a version into a new draft
// POST /api/v1/ads/:ad_id/streams/:stream/versions/:version_id/clone
func (h *VersionHandler) CloneVersion(c echo.Context) error {
	stream, ok, err := streamParam(c)
	if !ok {
		return err
	}

	var req cloneVersionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	// without an explicit actor the clone keeps the source's author
	actor, _ := middleware.LookupActor(c)
	v, err := h.versions.CloneVersion(c.Request().Context(), c.Param("ad_id"), stream, c.Param("version_id"), actor, service.CloneOptions{
		RequestText:     req.RequestText,
		AutoFreezeDraft: req.AutoFreezeDraft,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, v)
}

// ActivateVersion makes a version active and returns the rebuilt mixer
// POST /api/v1/ads/:ad_id/streams/:stream/versions/:version_id/activate
func (h *VersionHandler) ActivateVersion(c echo.Context) error {
	stream, ok, err := streamParam(c)
	if !ok {
		return err
	}

	var req activateVersionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	result, err := h.studio.Activate(c.Request().Context(), c.Param("ad_id"), stream, c.Param("version_id"), service.ActivateOptions{
		ForceFreeze: req.ForceFreeze,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, result)
}

// FreezeVersion freezes a draft without activating it
// POST /api/v1/ads/:ad_id/streams/:stream/versions/:version_id/freeze
func (h *VersionHandler) FreezeVersion(c echo.Context) error {
	stream, ok, err := streamParam(c)
	if !ok {
		return err
	}

	v, err := h.versions.FreezeVersion(c.Request().Context(), c.Param("ad_id"), stream, c.Param("version_id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, v)
}

// GetLineage returns the ancestry of a version
// GET /api/v1/ads/:ad_id/streams/:stream/versions/:version_id/lineage
func (h *VersionHandler) GetLineage(c echo.Context) error {
	stream, ok, err := streamParam(c)
	if !ok {
		return err
	}

	lineage, err := h.versions.Lineage(c.Request().Context(), c.Param("ad_id"), stream, c.Param("version_id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"lineage": lineage,
	})
}

// GetActiveVersion returns the active version of a stream; an unset pointer is not an error
// GET /api/v1/ads/:ad_id/streams/:stream/active
func (h *VersionHandler) GetActiveVersion(c echo.Context) error {
	ctx := c.Request().Context()
	adID := c.Param("ad_id")
	stream, ok, err := streamParam(c)
	if !ok {
		return err
	}

	activeID, found, err := h.versions.GetActiveVersion(ctx, adID, stream)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if !found {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"activeVersionId": nil,
			"version":         nil,
		})
	}

	v, err := h.versions.GetVersion(ctx, adID, stream, activeID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"activeVersionId": activeID,
		"version":         v,
	})
}
