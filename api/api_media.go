package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log/level"
	"github.com/mailio/go-keyless-server/global"
	"github.com/mailio/go-keyless-server/services"
	"github.com/mailio/go-keyless-server/types"
)

type MediaApi struct {
	mediaService *services.MediaService
}

func NewMediaApi(mediaService *services.MediaService) *MediaApi {
	return &MediaApi{mediaService: mediaService}
}

// Upload media
// @Security Bearer
// @Summary Pin a post or mint media file
// @Tags Media
// @Accept multipart/form-data
// @Param file formData file true "media file"
// @Success 201 {object} types.PinnedFile
// @Failure 400 {object} api.ApiError "missing or empty file"
// @Failure 413 {object} api.ApiError "file too large"
// @Failure 415 {object} api.ApiError "unsupported file type"
// @Router /api/v1/media [post]
func (ma *MediaApi) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		ApiErrorf(c, http.StatusBadRequest, "file is required")
		return
	}
	if fileHeader.Size > ma.mediaService.MaxFileBytes() {
		ApiErrorf(c, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		ApiErrorf(c, http.StatusBadRequest, "failed to open file")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(io.LimitReader(file, ma.mediaService.MaxFileBytes()+1))
	if err != nil {
		ApiErrorf(c, http.StatusBadRequest, "failed to read file")
		return
	}

	pinned, err := ma.mediaService.Upload(c.Request.Context(), fileHeader.Filename, content)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrEmptyFile):
			ApiErrorf(c, http.StatusBadRequest, "file is empty")
		case errors.Is(err, types.ErrFileTooLarge):
			ApiErrorf(c, http.StatusRequestEntityTooLarge, "file too large")
		case errors.Is(err, types.ErrUnsupportedFileType):
			ApiErrorf(c, http.StatusUnsupportedMediaType, "unsupported file type")
		default:
			level.Error(global.Logger).Log("msg", "failed to pin media", "err", err)
			ApiErrorf(c, http.StatusBadGateway, "failed to pin media")
		}
		return
	}
	c.JSON(http.StatusCreated, pinned)
}

// Unpin media
// @Security Bearer
// @Summary Remove a pinned media file
// @Tags Media
// @Param key path string true "object key (media/...)"
// @Success 204
// @Failure 400 {object} api.ApiError "invalid key"
// @Failure 404 {object} api.ApiError "media not found"
// @Router /api/v1/media/{key} [delete]
func (ma *MediaApi) Unpin(c *gin.Context) {
	err := ma.mediaService.Unpin(c.Request.Context(), c.Param("key"))
	if err != nil {
		switch {
		case errors.Is(err, types.ErrBadRequest):
			ApiErrorf(c, http.StatusBadRequest, "invalid media key")
		case errors.Is(err, types.ErrNotFound):
			ApiErrorf(c, http.StatusNotFound, "media not found")
		case errors.Is(err, types.ErrNotAuthorized):
			ApiErrorf(c, http.StatusForbidden, "not allowed to unpin media")
		default:
			level.Error(global.Logger).Log("msg", "failed to unpin media", "err", err)
			ApiErrorf(c, http.StatusBadGateway, "failed to unpin media")
		}
		return
	}
	c.Status(http.StatusNoContent)
}
