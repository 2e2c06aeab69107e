package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/adstudio/cmd/adstudio/models"
	"github.com/lyzr/adstudio/cmd/adstudio/service"
	"github.com/lyzr/adstudio/common/logger"
)

// respondError maps service errors to HTTP statuses
func respondError(c echo.Context, log *logger.Logger, err error) error {
	body := map[string]interface{}{
		"error": err.Error(),
	}

	var (
		conflict *service.DraftConflictError
		active   *service.AlreadyActiveError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &conflict):
		status = http.StatusConflict
		body["draftVersionId"] = conflict.DraftID
	case errors.As(err, &active):
		status = http.StatusBadRequest
		body["activeVersionId"] = active.ActiveID
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrImmutableVersion),
		errors.Is(err, service.ErrAlreadyActive),
		errors.Is(err, service.ErrStaleLayout):
		status = http.StatusBadRequest
	}

	if status >= http.StatusInternalServerError {
		log.WithContext(c.Request().Context()).Error("request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"error", err,
		)
		body["error"] = "internal error"
	}

	return c.JSON(status, body)
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]interface{}{
		"error": message,
	})
}

// streamParam parses :stream, writing a 400 when it is unknown
func streamParam(c echo.Context) (models.StreamType, bool, error) {
	stream, err := models.ParseStreamType(c.Param("stream"))
	if err != nil {
		return "", false, badRequest(c, err.Error())
	}
	return stream, true, nil
}
