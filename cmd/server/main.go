package main

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mesikahq/luxe-portal/internal/api"
	"github.com/mesikahq/luxe-portal/internal/apiclient"
	"github.com/mesikahq/luxe-portal/internal/audit"
	"github.com/mesikahq/luxe-portal/internal/auth"
	"github.com/mesikahq/luxe-portal/internal/config"
	"github.com/mesikahq/luxe-portal/internal/encryption"
	"github.com/mesikahq/luxe-portal/internal/logger"
	"github.com/mesikahq/luxe-portal/internal/metrics"
	"github.com/mesikahq/luxe-portal/internal/patient"
	"github.com/mesikahq/luxe-portal/internal/session"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize logger
	zlog, err := logger.New(cfg.Log.Environment, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	m := metrics.New()

	// Initialize Elasticsearch client for the audit trail
	var esClient *elasticsearch.Client
	if cfg.Audit.Elasticsearch.Enabled {
		esClient, err = audit.NewElasticsearchClient(audit.ElasticsearchConfig{
			Addresses: cfg.Audit.Elasticsearch.Addresses,
			Username:  cfg.Audit.Elasticsearch.Username,
			Password:  cfg.Audit.Elasticsearch.Password,
		})
		if err != nil {
			zlog.Fatal("Failed to connect to Elasticsearch", zap.Error(err))
		}
	}
	auditService := audit.NewService(esClient, audit.NewLogger(), cfg.Audit.Elasticsearch.IndexPrefix)

	// Session cookies are sealed with a key derived from the session secret
	encryptService, err := encryption.NewService(cfg.Session.Secret)
	if err != nil {
		zlog.Fatal("Failed to initialize encryption service", zap.Error(err))
	}
	sessions := session.NewStore(encryptService, session.StoreConfig{
		CookieName: cfg.Session.CookieName,
		MaxAge:     cfg.Session.MaxAge,
		Secure:     cfg.Session.Secure,
	})

	client, err := apiclient.New(apiclient.Config{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.API.Timeout,
		MaxRetries: cfg.API.MaxRetries,
		Metrics:    m,
		Logger:     zlog.Named("apiclient"),
	})
	if err != nil {
		zlog.Fatal("Failed to initialize API client", zap.Error(err))
	}

	// Initialize services
	authService := auth.NewService(client, auditService)
	patientService := patient.NewService(client, auditService)
	rules := cfg.ContactRuleSet()

	handler := api.NewHandler(
		authService,
		patientService,
		auditService,
		sessions,
		patient.NewFormValidator(rules),
		m,
		zlog,
	)

	router := api.NewRouter(handler, sessions, m, api.RouterConfig{
		RateLimit:      rate.Limit(cfg.RateLimit.RPS),
		RateBurst:      cfg.RateLimit.Burst,
		RequestTimeout: cfg.Server.RequestTimeout,
	})
	engine := router.SetupRouter(zlog)

	// Create server
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		TLSConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	// Start server in a goroutine
	go func() {
		zlog.Info("Starting server",
			zap.String("addr", srv.Addr),
			zap.String("api", cfg.API.BaseURL),
			zap.String("contact_rule_set", rules.Name()),
		)
		if cfg.Server.TLS.Enabled {
			if err := srv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile); err != nil && err != http.ErrServerClosed {
				zlog.Fatal("Failed to start server", zap.Error(err))
			}
		} else {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				zlog.Fatal("Failed to start server", zap.Error(err))
			}
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zlog.Fatal("Server forced to shutdown", zap.Error(err))
	}

	zlog.Info("Server exiting")
}
