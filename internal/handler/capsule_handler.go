package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dearfuture/capsule-api/internal/models"
	"github.com/dearfuture/capsule-api/internal/service"
	appErrors "github.com/dearfuture/capsule-api/pkg/errors"
	"github.com/dearfuture/capsule-api/pkg/response"
)

type capsuleService interface {
	Create(ctx context.Context, ownerID string, draft models.CapsuleDraft, upload *service.MediaUpload) (models.CapsuleView, error)
	GetView(ctx context.Context, id string, viewer models.Viewer) (models.CapsuleView, error)
	GetSharedView(ctx context.Context, slug string, viewer models.Viewer) (models.CapsuleView, error)
	ListOwnerViews(ctx context.Context, ownerID string, viewer models.Viewer, limit int) ([]models.CapsuleView, error)
	Delete(ctx context.Context, id string, viewer models.Viewer) error
	ExportUnlocked(ctx context.Context, ownerID string, viewer models.Viewer, format string) ([]byte, string, error)
}

type createCapsuleRequest struct {
	Title      string `json:"title" form:"title"`
	Message    string `json:"message" form:"message"`
	UnlockAt   string `json:"unlockAt" form:"unlockAt"`
	Visibility string `json:"visibility" form:"visibility"`
}

// CapsuleHandler manages capsule HTTP endpoints.
type CapsuleHandler struct {
	service capsuleService
}

// NewCapsuleHandler constructs the handler.
func NewCapsuleHandler(service capsuleService) *CapsuleHandler {
	return &CapsuleHandler{service: service}
}

// Create godoc
// @Summary Seal a new time capsule
// @Tags Capsules
// @Accept json
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param message formData string true "Message"
// @Param unlockAt formData string true "Unlock instant, RFC3339"
// @Param visibility formData string true "private, public or shareable"
// @Param file formData file false "Single image or video attachment"
// @Success 201 {object} response.Envelope
// @Router /capsules [post]
func (h *CapsuleHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req createCapsuleRequest
	var upload *service.MediaUpload

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		if err := c.ShouldBind(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid capsule payload"))
			return
		}
		if fileHeader, err := c.FormFile("file"); err == nil {
			src, openErr := fileHeader.Open()
			if openErr != nil {
				response.Error(c, appErrors.Wrap(openErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
				return
			}
			defer src.Close()
			upload = &service.MediaUpload{
				FileName:  fileHeader.Filename,
				MimeType:  fileHeader.Header.Get("Content-Type"),
				SizeBytes: fileHeader.Size,
				Content:   src,
			}
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid capsule payload"))
		return
	}

	draft := models.CapsuleDraft{
		Title:      req.Title,
		Message:    req.Message,
		Visibility: models.Visibility(strings.ToLower(strings.TrimSpace(req.Visibility))),
	}
	if raw := strings.TrimSpace(req.UnlockAt); raw != "" {
		unlockAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Validation([]appErrors.FieldError{
				{Field: "unlockAt", Message: "unlock date must be RFC3339"},
			}))
			return
		}
		draft.UnlockAt = unlockAt
	}

	view, err := h.service.Create(c.Request.Context(), claims.UserID, draft, upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, view, nil)
}

// Get godoc
// @Summary Resolve a capsule by id
// @Tags Capsules
// @Produce json
// @Param id path string true "Capsule ID"
// @Success 200 {object} response.Envelope
// @Router /capsules/{id} [get]
func (h *CapsuleHandler) Get(c *gin.Context) {
	view, err := h.service.GetView(c.Request.Context(), c.Param("id"), viewerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// GetShared godoc
// @Summary Resolve a capsule through its share link
// @Tags Capsules
// @Produce json
// @Param slug path string true "Share slug"
// @Success 200 {object} response.Envelope
// @Router /capsules/shared/{slug} [get]
func (h *CapsuleHandler) GetShared(c *gin.Context) {
	view, err := h.service.GetSharedView(c.Request.Context(), c.Param("slug"), viewerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// List godoc
// @Summary List the owner's capsules
// @Tags Capsules
// @Produce json
// @Param ownerId path string true "Owner ID"
// @Param limit query int false "Max results"
// @Success 200 {object} response.Envelope
// @Router /capsules/user/{ownerId} [get]
func (h *CapsuleHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	views, err := h.service.ListOwnerViews(c.Request.Context(), c.Param("ownerId"), viewerFromContext(c), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// Delete godoc
// @Summary Delete a capsule and its media
// @Tags Capsules
// @Produce json
// @Param id path string true "Capsule ID"
// @Success 204
// @Router /capsules/{id} [delete]
func (h *CapsuleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), viewerFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export the owner's unlocked capsules
// @Tags Capsules
// @Produce text/csv
// @Produce application/pdf
// @Param ownerId path string true "Owner ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /capsules/user/{ownerId}/export [get]
func (h *CapsuleHandler) Export(c *gin.Context) {
	format := strings.ToLower(strings.TrimSpace(c.Query("format")))
	payload, contentType, err := h.service.ExportUnlocked(c.Request.Context(), c.Param("ownerId"), viewerFromContext(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	ext := "csv"
	if contentType == "application/pdf" {
		ext = "pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"capsules.%s\"", ext))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, contentType, payload)
}
