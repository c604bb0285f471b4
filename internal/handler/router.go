package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/dearfuture/capsule-api/internal/middleware"
)

// RegisterRoutes mounts the capsule API under the versioned prefix. Reads run
// with optional identity so anonymous viewers still resolve public and shared
// capsules; writes and owner listings require a verified bearer token.
func RegisterRoutes(r *gin.Engine, prefix string, verifier *middleware.TokenVerifier, capsules *CapsuleHandler, media *MediaHandler, exportsEnabled bool) {
	api := r.Group(prefix)

	caps := api.Group("/capsules")
	caps.POST("", middleware.JWT(verifier), capsules.Create)
	caps.GET("/:id", middleware.OptionalJWT(verifier), capsules.Get)
	caps.DELETE("/:id", middleware.JWT(verifier), capsules.Delete)
	caps.GET("/shared/:slug", middleware.OptionalJWT(verifier), capsules.GetShared)
	caps.GET("/user/:ownerId", middleware.JWT(verifier), capsules.List)
	if exportsEnabled {
		caps.GET("/user/:ownerId/export", middleware.JWT(verifier), capsules.Export)
	}

	api.GET("/media/:id", media.Download)
}
