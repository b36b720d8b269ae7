package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"guest-intake/metrics"
	"guest-intake/services"
	"guest-intake/utils"
)

const documentImageDir = "documents"

type ImageController struct {
	Images  *services.ImageStore
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewImageController(images *services.ImageStore, m *metrics.Metrics, logger *zap.Logger) *ImageController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageController{Images: images, metrics: m, logger: logger}
}

// UploadSingle handles POST /api/upload/single-image with one "image" part.
func (c *ImageController) UploadSingle(ctx *gin.Context) {
	fh, err := ctx.FormFile("image")
	if err != nil {
		c.metrics.Upload("invalid")
		utils.JSONError(ctx, http.StatusBadRequest, "Missing image file")
		return
	}

	rel, err := c.Images.SaveUpload(documentImageDir, fh)
	switch {
	case errors.Is(err, services.ErrUnsupportedImage):
		c.metrics.Upload("invalid")
		utils.JSONError(ctx, http.StatusUnsupportedMediaType, "Images must be JPEG, PNG, WebP or GIF")
		return
	case errors.Is(err, services.ErrImageTooLarge):
		c.metrics.Upload("invalid")
		utils.JSONError(ctx, http.StatusRequestEntityTooLarge, "Image is too large")
		return
	case err != nil:
		c.metrics.Upload("failed")
		c.logger.Error("store upload", zap.Error(err))
		utils.JSONError(ctx, http.StatusInternalServerError, "Could not store image")
		return
	}

	c.metrics.Upload("stored")
	ctx.JSON(http.StatusOK, gin.H{"imageUrl": c.Images.URL(rel)})
}
