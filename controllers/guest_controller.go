package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"guest-intake/metrics"
	"guest-intake/services"
	"guest-intake/utils"
)

const guestImageDir = "guests"

type GuestController struct {
	GuestSvc *services.GuestService
	Images   *services.ImageStore
	metrics  *metrics.Metrics
	logger   *zap.Logger
	policy   *bluemonday.Policy
	maxBytes int64
}

func NewGuestController(svc *services.GuestService, images *services.ImageStore, m *metrics.Metrics, maxBytes int64, logger *zap.Logger) *GuestController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GuestController{
		GuestSvc: svc,
		Images:   images,
		metrics:  m,
		logger:   logger,
		policy:   bluemonday.StrictPolicy(),
		maxBytes: maxBytes,
	}
}

// Register handles POST /api/guests/register.
func (c *GuestController) Register(ctx *gin.Context) {
	if err := ctx.Request.ParseMultipartForm(c.maxBytes); err != nil {
		c.metrics.Registration("invalid")
		utils.JSONError(ctx, http.StatusBadRequest, "Invalid multipart payload")
		return
	}

	parsed, err := parseRegistration(ctx.Request.MultipartForm, c.policy)
	if err != nil {
		var fe *fieldError
		if errors.As(err, &fe) {
			c.metrics.Registration("invalid")
			utils.JSONError(ctx, http.StatusBadRequest, fe.Error())
			return
		}
		utils.JSONError(ctx, http.StatusInternalServerError, "Registration failed")
		return
	}

	var g errgroup.Group
	for _, up := range parsed.uploads {
		g.Go(func() error {
			p, err := c.Images.SaveUpload(guestImageDir, up.file)
			if err != nil {
				return err
			}
			up.path = p
			return nil
		})
	}
	err = g.Wait()
	stored := make([]string, 0, len(parsed.uploads))
	for _, up := range parsed.uploads {
		if up.path != "" {
			stored = append(stored, up.path)
			up.assign()
		}
	}
	if err != nil {
		c.Images.Remove(stored...)
		c.metrics.Registration("invalid")
		switch {
		case errors.Is(err, services.ErrUnsupportedImage):
			utils.JSONError(ctx, http.StatusUnsupportedMediaType, "Images must be JPEG, PNG, WebP or GIF")
		case errors.Is(err, services.ErrImageTooLarge):
			utils.JSONError(ctx, http.StatusRequestEntityTooLarge, "Image is too large")
		default:
			c.logger.Error("store registration images", zap.Error(err))
			utils.JSONError(ctx, http.StatusInternalServerError, "Could not store images")
		}
		return
	}

	reg := parsed.reg
	if err := c.GuestSvc.Register(ctx.Request.Context(), reg); err != nil {
		c.Images.Remove(stored...)
		c.metrics.Registration("failed")
		if errors.Is(err, services.ErrDuplicateReference) {
			utils.JSONError(ctx, http.StatusConflict, "Registration already exists")
			return
		}
		utils.JSONError(ctx, http.StatusInternalServerError, "Could not save the registration")
		return
	}

	c.metrics.Registration("stored")
	ctx.JSON(http.StatusCreated, gin.H{
		"status":         "success",
		"message":        "Guest registered successfully",
		"registrationId": reg.ID,
		"reference":      reg.ReferenceCode,
	})
}

// ListGuests handles GET /api/registrations/:id/guests.
func (c *GuestController) ListGuests(ctx *gin.Context) {
	idStr := strings.TrimSpace(ctx.Param("id"))
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil || id == 0 {
		utils.JSONError(ctx, http.StatusBadRequest, "Invalid registration id")
		return
	}

	guests, err := c.GuestSvc.ListByRegistration(ctx.Request.Context(), uint(id))
	if errors.Is(err, services.ErrRegistrationNotFound) {
		utils.JSONError(ctx, http.StatusNotFound, "Registration not found")
		return
	}
	if err != nil {
		utils.JSONError(ctx, http.StatusInternalServerError, "Failed to fetch guests")
		return
	}
	utils.JSONSuccess(ctx, http.StatusOK, guests)
}
