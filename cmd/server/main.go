package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ignite/leadfunnel/internal/api"
	"github.com/ignite/leadfunnel/internal/auth"
	"github.com/ignite/leadfunnel/internal/backend"
	"github.com/ignite/leadfunnel/internal/config"
	"github.com/ignite/leadfunnel/internal/pkg/logger"
	"github.com/ignite/leadfunnel/internal/repository/postgres"
	"github.com/ignite/leadfunnel/internal/service/dashboard"
	"github.com/ignite/leadfunnel/internal/service/lead"
	"github.com/ignite/leadfunnel/internal/storage"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use: %v\n"+
			"  Hint: Run 'lsof -i :<port>' to find the blocking process", addr, err)
	}
	ln.Close()
	return nil
}

// extractHost returns the host part of a DSN for logging without secrets.
func extractHost(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	// Load configuration
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.Redact())

	addr := cfg.Server.Addr()
	if err := checkPortAvailable(addr); err != nil {
		log.Fatalf("%v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Printf("Connecting to database at %s", extractHost(cfg.Database.URL))
	client, err := backend.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize backend: %v", err)
	}
	defer client.Close()

	if cfg.Database.AutoMigrate {
		migrateCtx, migrateCancel := context.WithTimeout(ctx, 2*time.Minute)
		err := client.Migrate(migrateCtx)
		migrateCancel()
		if err != nil {
			log.Fatalf("Failed to migrate schema: %v", err)
		}
		log.Println("Schema up to date")
	}

	// Repositories and services
	subscribers := postgres.NewSubscriberRepo(client.DB)
	clicks := postgres.NewClickRepo(client.DB)
	admins := postgres.NewAdminRepo(client.DB)

	var leadOpts []lead.Option
	if cfg.Landing.EmailDownloadLink && client.Mailer.Enabled() {
		leadOpts = append(leadOpts, lead.WithDownloadMail(client.Mailer, cfg.Server.BaseURL+"/download"))
		log.Println("Download link emails enabled")
	}
	leadSvc := lead.NewService(subscribers, clicks, "/download", leadOpts...)

	dashSvc := dashboard.NewService(subscribers, clicks, client.Bucket, dashboard.Config{
		UploadPrefix:    cfg.Storage.UploadPrefix,
		MaxRows:         cfg.Dashboard.MaxRows,
		ListConcurrency: cfg.Storage.ListConcurrency,
	})

	var authOpts []auth.Option
	if client.Mailer.Enabled() {
		authOpts = append(authOpts, auth.WithLinkMailer(client.Mailer))
	}
	authManager := auth.NewManager(cfg.Auth, cfg.Server.BaseURL, admins, client.Sessions, authOpts...)
	if authManager.GoogleEnabled() {
		log.Println("Google sign-in enabled")
	}

	handlers, err := api.NewHandlers(leadSvc, dashSvc, authManager, cfg.Landing, cfg.Storage.MaxUploadBytes())
	if err != nil {
		log.Fatalf("Failed to load pages: %v", err)
	}

	var files http.Handler
	if local, ok := client.Bucket.(*storage.LocalBucket); ok {
		files = local.Handler()
		log.Printf("Serving local bucket under %s/", storage.LocalURLPrefix)
	}

	health := api.NewHealthChecker(client.DB, client.Redis, client.Bucket)
	server := api.NewServer(cfg.Server, handlers, authManager, health, files)

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Println("All services initialized, server is ready")

	<-done
	log.Println("Shutting down...")

	// Cancel background tasks
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
