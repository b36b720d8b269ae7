package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"guest-intake/config"
	"guest-intake/controllers"
	"guest-intake/metrics"
	"guest-intake/middleware"
)

type Handlers struct {
	Guests       *controllers.GuestController
	Images       *controllers.ImageController
	Verification *controllers.VerificationController
}

// SetupRouter wires the intake API onto a fresh gin engine.
func SetupRouter(h Handlers, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(logger), middleware.Logger(logger))
	r.MaxMultipartMemory = cfg.Uploads.MaxBytes
	r.Static("/uploads", cfg.Uploads.Dir)

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.Origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: cfg.CORS.AllowCredentials(),
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	api := r.Group("/api")
	{
		api.POST("/upload/single-image", h.Images.UploadSingle)
		api.POST("/verify/id-text", h.Verification.VerifyIDText)

		guests := api.Group("/guests")
		{
			guests.POST("/register", h.Guests.Register)
		}

		registrations := api.Group("/registrations")
		{
			registrations.GET("/:id/guests", h.Guests.ListGuests)
		}
	}

	return r
}
