package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"guest-intake/metrics"
	"guest-intake/services"
	"guest-intake/utils"
)

type VerificationController struct {
	Svc     *services.VerificationService
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewVerificationController(svc *services.VerificationService, m *metrics.Metrics, logger *zap.Logger) *VerificationController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerificationController{Svc: svc, metrics: m, logger: logger}
}

type verifyIDTextRequest struct {
	ImageURL    string `json:"imageUrl" binding:"required"`
	NameEntered string `json:"nameEntered" binding:"required"`
}

// VerifyIDText handles POST /api/verify/id-text.
func (c *VerificationController) VerifyIDText(ctx *gin.Context) {
	var req verifyIDTextRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.JSONError(ctx, http.StatusBadRequest, "imageUrl and nameEntered are required")
		return
	}

	start := time.Now()
	res, err := c.Svc.VerifyName(ctx.Request.Context(), req.ImageURL, req.NameEntered)
	switch {
	case errors.Is(err, services.ErrImageNotFound):
		c.metrics.Verification("error")
		utils.JSONError(ctx, http.StatusNotFound, "Uploaded image not found")
		return
	case errors.Is(err, services.ErrOCRUnavailable):
		c.metrics.Verification("error")
		utils.JSONError(ctx, http.StatusServiceUnavailable, "ID reading is not available")
		return
	case err != nil:
		c.metrics.Verification("error")
		c.logger.Warn("id verification failed", zap.Error(err), zap.Duration("latency", time.Since(start)))
		utils.JSONError(ctx, http.StatusBadGateway, "Could not read the ID document")
		return
	}

	if res.Match {
		c.metrics.Verification("match")
	} else {
		c.metrics.Verification("mismatch")
	}
	ctx.JSON(http.StatusOK, res)
}
