package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"procurement-client/api"
	"procurement-client/config"
	"procurement-client/container"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}
	defer c.Close()

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	deps := api.Deps{
		Repository:  c.Repository,
		Session:     c.Session,
		Submissions: c.NewSubmissionWorkflow(),
		Projects:    c.NewCreateProjectWorkflow(),
		QR:          c.QRCodeService,
		Health:      c.HealthService,
		Registry:    c.Registry,
		APIKey:      cfg.Server.APIKey,
	}
	if c.Pinata != nil {
		deps.Evidence = c.Pinata
	}
	if cfg.Server.APIKey == "" {
		log.Printf("WARNING: API_KEY not set; /api routes are unauthenticated")
	}

	if c.Session.Snapshot().Connected() {
		c.Repository.Refresh(ctx)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.APIPort,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("Procurement API listening on :%s", cfg.Server.APIPort)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
}
