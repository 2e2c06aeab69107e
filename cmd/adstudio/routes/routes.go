package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/lyzr/adstudio/cmd/adstudio/container"
	"github.com/lyzr/adstudio/cmd/adstudio/handlers"
	"github.com/lyzr/adstudio/cmd/adstudio/middleware"
)

// RegisterAdRoutes registers the ad, version and mixer routes
func RegisterAdRoutes(e *echo.Echo, c *container.Container) {
	ads := handlers.NewAdHandler(c)
	versions := handlers.NewVersionHandler(c)
	mixer := handlers.NewMixerHandler(c)

	ad := e.Group("/api/v1/ads/:ad_id")
	if c.RateLimiter != nil {
		ad.Use(middleware.WriteRateLimit(c.RateLimiter, c.RatePolicies, c.Components.Logger))
	}
	{
		ad.GET("", ads.GetAd)       // GET /api/v1/ads/ad-1
		ad.DELETE("", ads.DeleteAd) // DELETE /api/v1/ads/ad-1
	}

	stream := ad.Group("/streams/:stream")
	{
		stream.GET("/versions", versions.ListVersions)                          // GET .../streams/voice/versions
		stream.POST("/versions", versions.CreateVersion)                        // POST .../streams/voice/versions
		stream.GET("/versions/:version_id", versions.GetVersion)                // GET .../versions/v1
		stream.PATCH("/versions/:version_id", versions.UpdateVersion)           // PATCH .../versions/v1
		stream.DELETE("/versions/:version_id", versions.DeleteVersion)          // DELETE .../versions/v1
		stream.POST("/versions/:version_id/clone", versions.CloneVersion)       // POST .../versions/v1/clone
		stream.POST("/versions/:version_id/activate", versions.ActivateVersion) // POST .../versions/v1/activate
		stream.POST("/versions/:version_id/freeze", versions.FreezeVersion)     // POST .../versions/v1/freeze
		stream.GET("/versions/:version_id/lineage", versions.GetLineage)        // GET .../versions/v1/lineage
		stream.GET("/active", versions.GetActiveVersion)                        // GET .../streams/voice/active
	}

	mix := ad.Group("/mixer")
	{
		mix.GET("", mixer.GetMixer)                  // GET /api/v1/ads/ad-1/mixer
		mix.POST("/rebuild", mixer.RebuildMixer)     // POST /api/v1/ads/ad-1/mixer/rebuild
		mix.PUT("/mixed-audio", mixer.SetMixedAudio) // PUT /api/v1/ads/ad-1/mixer/mixed-audio
	}
}
