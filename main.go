package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"guest-intake/config"
	"guest-intake/controllers"
	"guest-intake/logging"
	"guest-intake/metrics"
	"guest-intake/routes"
	"guest-intake/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewWithLevel(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.OCR.APIKey == "" {
		logger.Warn("AIGEN_API_KEY is not set; ID verification will report unavailable")
	}

	db, err := config.ConnectDatabase(cfg.Database, logger)
	if err != nil {
		logger.Fatal("database connect failed", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	m := metrics.New()

	images := services.NewImageStore(cfg.Uploads.Dir, cfg.Uploads.MaxBytes, logger.Named("images"))
	ocr := services.NewOCRClient(cfg.OCR, logger.Named("ocr"), services.WithOCRObserver(m.ObserveOCR))
	guestService := services.NewGuestService(db, logger.Named("guests"))
	verificationService := services.NewVerificationService(images, ocr, logger.Named("verification"))

	router := routes.SetupRouter(routes.Handlers{
		Guests:       controllers.NewGuestController(guestService, images, m, cfg.Uploads.MaxBytes, logger),
		Images:       controllers.NewImageController(images, m, logger),
		Verification: controllers.NewVerificationController(verificationService, m, logger),
	}, cfg, m, logger)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout / 2,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
		return
	}
	logger.Info("server stopped")
}
