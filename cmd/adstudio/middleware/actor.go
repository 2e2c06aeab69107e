package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/adstudio/cmd/adstudio/models"
	"github.com/lyzr/adstudio/common/logger"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ActorKey is the context key for the author of a request
	ActorKey ContextKey = "actor"

	// ActorHeader carries "user" or "llm"; absent means user
	ActorHeader = "X-Actor"
)

// ExtractActor reads the X-Actor header and stores the author in the echo context.
//
// The LLM orchestration layer sends X-Actor: llm so generated versions are
// attributed correctly in lineage; browsers omit the header.
func ExtractActor() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(ActorHeader)
			if header == "" {
				return next(c)
			}

			actor, err := models.ParseCreatedBy(header)
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]interface{}{
					"error": err.Error(),
				})
			}

			c.Set(string(ActorKey), actor)
			return next(c)
		}
	}
}

// GetActor returns the request's author, defaulting to user
func GetActor(c echo.Context) models.CreatedBy {
	if actor, ok := LookupActor(c); ok {
		return actor
	}
	return models.CreatedByUser
}

// LookupActor returns the author only when the request named one
func LookupActor(c echo.Context) (models.CreatedBy, bool) {
	actor, ok := c.Get(string(ActorKey)).(models.CreatedBy)
	return actor, ok
}

// RequestContext copies the request id assigned by echo's RequestID middleware
// into the request context so service logs can be correlated.
func RequestContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Response().Header().Get(echo.HeaderXRequestID)
			if id == "" {
				id = c.Request().Header.Get(echo.HeaderXRequestID)
			}
			if id != "" {
				req := c.Request()
				c.SetRequest(req.WithContext(context.WithValue(req.Context(), logger.RequestIDKey, id)))
			}
			return next(c)
		}
	}
}
