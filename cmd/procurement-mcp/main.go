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

	"github.com/mark3labs/mcp-go/server"

	"procurement-client/config"
	"procurement-client/container"
	"procurement-client/mcp"
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

	deps := mcp.Deps{
		Repository:  c.Repository,
		Session:     c.Session,
		Submissions: c.NewSubmissionWorkflow(),
		Projects:    c.NewCreateProjectWorkflow(),
		QR:          c.QRCodeService,
	}
	if c.Pinata != nil {
		deps.Evidence = c.Pinata
	}
	srv := mcp.NewMCPServer(deps)

	if c.Session.Snapshot().Connected() {
		c.Repository.Refresh(ctx)
	}

	switch cfg.Server.MCPTransport {
	case "http":
		serveHTTP(ctx, srv, cfg)
	default:
		log.Printf("Serving MCP over stdio")
		if err := server.ServeStdio(srv.GetMCPServer()); err != nil {
			log.Printf("MCP stdio server stopped: %v", err)
		}
	}
}

func serveHTTP(ctx context.Context, srv *mcp.MCPServer, cfg *config.Config) {
	if cfg.Server.MCPAPIKey == "" {
		log.Printf("WARNING: MCP_API_KEY not set; MCP endpoint is unauthenticated")
	}
	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewHTTPHandler(srv, cfg.Server.MCPAPIKey))

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Server.MCPPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Printf("Serving MCP over HTTP on :%s/mcp", cfg.Server.MCPPort)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("MCP HTTP server stopped: %v", err)
	}
}
