package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dearfuture/capsule-api/internal/service"
	appErrors "github.com/dearfuture/capsule-api/pkg/errors"
	"github.com/dearfuture/capsule-api/pkg/response"
)

type mediaService interface {
	Open(ctx context.Context, mediaID, token string) (*service.MediaDownload, error)
}

// MediaHandler streams media blobs gated by signed tokens. The token is the
// whole authorization; share-link viewers have no bearer token to present.
type MediaHandler struct {
	service mediaService
}

// NewMediaHandler constructs the handler.
func NewMediaHandler(service mediaService) *MediaHandler {
	return &MediaHandler{service: service}
}

// Download godoc
// @Summary Download capsule media via signed token
// @Tags Media
// @Produce octet-stream
// @Param id path string true "Media ID"
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /media/{id} [get]
func (h *MediaHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if strings.TrimSpace(token) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.Open(c.Request.Context(), c.Param("id"), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=\"%s\"", result.FileName))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, result.MimeType, result.File, nil)
}
