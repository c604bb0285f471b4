package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/dearfuture/capsule-api/internal/middleware"
	"github.com/dearfuture/capsule-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.IdentityClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.IdentityClaims)
	if !ok {
		return nil
	}
	return claims
}

// viewerFromContext builds the evaluation viewer. Requests without valid
// claims evaluate as anonymous rather than being rejected.
func viewerFromContext(c *gin.Context) models.Viewer {
	claims := claimsFromContext(c)
	if claims == nil {
		return models.Viewer{}
	}
	return models.Viewer{Identity: claims.UserID}
}
