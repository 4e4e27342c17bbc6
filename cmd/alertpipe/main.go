package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"

	"github.com/alertpipe/alertpipe/internal/alerts"
	"github.com/alertpipe/alertpipe/internal/analytics"
	"github.com/alertpipe/alertpipe/internal/bus"
	"github.com/alertpipe/alertpipe/internal/config"
	"github.com/alertpipe/alertpipe/internal/dedup"
	"github.com/alertpipe/alertpipe/internal/escalation"
	"github.com/alertpipe/alertpipe/internal/handlers"
	"github.com/alertpipe/alertpipe/internal/middleware"
	"github.com/alertpipe/alertpipe/internal/notify"
	"github.com/alertpipe/alertpipe/internal/pipeline"
	"github.com/alertpipe/alertpipe/internal/scoring"
	"github.com/alertpipe/alertpipe/internal/store"
	"github.com/alertpipe/alertpipe/internal/suppression"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting alert pipeline...")

	// Initialize JWT authentication middleware
	if cfg.AdminPassword == "" {
		log.Fatalf("ADMIN_PASSWORD is not set")
	}

	// Hash the admin password
	passwordHash, err := middleware.HashPassword(cfg.AdminPassword)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}

	jwtAuthMiddleware := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
		Enabled:           true,
		AdminUsername:     cfg.AdminUsername,
		AdminPasswordHash: passwordHash,
		JWTSecret:         cfg.JWTSecret,
		JWTExpiryHours:    cfg.JWTExpiryHours,
		SkipPaths: []string{
			"/health",
			"/webhook/*",
			"/auth/login",
		},
	})
	log.Printf("JWT authentication enabled for user: %s", cfg.AdminUsername)

	// API key authentication for the webhook ingest path. The JWT layer skips
	// /webhook/* so that monitoring systems authenticate with a static key
	// instead of the login flow. No keys configured means an open webhook.
	apiKeyMiddleware := middleware.NewAuthMiddleware(&middleware.AuthConfig{
		SkipPaths: []string{
			"/health",
			"/auth/*",
			"/api/*",
			"/ws/*",
		},
	})
	apiKeyMiddleware.SetAPIKeys(cfg.WebhookAPIKeys)

	// Load the pipeline tuning file
	pipeCfg, err := config.LoadPipelineConfig(cfg.PipelineConfigPath)
	if err != nil {
		log.Fatalf("Failed to load pipeline config: %v", err)
	}

	// Initialize database connection
	if err := store.Connect(cfg.DatabaseURL, logger.Warn); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run database migrations
	if err := store.AutoMigrate(store.DB); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	storeService := store.NewService(store.DB)
	registry := store.NewRegistry(store.DB)

	// Event bus for lifecycle notifications
	eventBus := bus.New()

	// Mirror group snapshots into the database
	mirror := store.NewMirror(storeService, eventBus)
	mirror.Start()

	// Notifier: Slack when a bot token is configured, otherwise the log
	var notifier notify.Notifier
	if cfg.SlackBotToken != "" {
		notifier = notify.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackChannel)
		log.Printf("Slack notifications enabled on %s", cfg.SlackChannel)
	} else {
		notifier = notify.LogNotifier{}
		log.Printf("Slack not configured, notifications go to the log")
	}

	// Deduplication engine
	dedupEngine := dedup.NewEngine(pipeCfg.Dedup, nil, eventBus)

	// Business impact scorer
	scorer, err := scoring.NewScorer(pipeCfg.Scoring, registry)
	if err != nil {
		log.Fatalf("Failed to build scorer: %v", err)
	}

	// Suppression engine: persisted rules plus rules from the tuning file
	suppressor := suppression.NewEngine()
	persistedRules, err := storeService.ListRules()
	if err != nil {
		log.Printf("Warning: Failed to load persisted suppression rules: %v", err)
	}
	for _, rule := range persistedRules {
		suppressor.AddRule(rule)
	}
	for i := range pipeCfg.Suppression.Rules {
		suppressor.AddRule(&pipeCfg.Suppression.Rules[i])
	}
	log.Printf("Suppression engine loaded %d rules", len(suppressor.Rules()))

	// Escalation manager with on-call schedule and policies
	schedule := escalation.NewSchedule()
	for _, entry := range pipeCfg.Escalation.Schedule {
		schedule.Add(entry)
	}
	escalator := escalation.NewManager(schedule, notifier, eventBus)
	for i := range pipeCfg.Escalation.Policies {
		policy := pipeCfg.Escalation.Policies[i]
		if err := escalator.RegisterPolicy(&policy); err != nil {
			log.Fatalf("Failed to register escalation policy %s: %v", policy.ID, err)
		}
	}
	if pipeCfg.Escalation.Default != "" {
		if err := escalator.SetDefaultPolicy(pipeCfg.Escalation.Default); err != nil {
			log.Fatalf("Failed to set default escalation policy: %v", err)
		}
	}
	for severity, policyID := range pipeCfg.Escalation.BySeverity {
		if err := escalator.SetPolicyForSeverity(alerts.Severity(severity), policyID); err != nil {
			log.Fatalf("Failed to map severity %s to policy %s: %v", severity, policyID, err)
		}
	}

	// Analytics engine
	analyticsEngine := analytics.NewEngine(pipeCfg.Analytics, eventBus)

	// Assemble the pipeline
	pipe := pipeline.New(dedupEngine, scorer, suppressor, escalator, analyticsEngine, notifier, storeService)
	pipe.Start()
	log.Printf("Pipeline started")

	// Initialize handlers
	httpHandler := handlers.NewHTTPHandler()
	webhookHandler := handlers.NewWebhookHandler(pipe)
	apiHandler := handlers.NewAPIHandler(pipe, suppressor, registry, storeService)
	authHandler := handlers.NewAuthHandler(jwtAuthMiddleware, cfg.JWTExpiryHours)
	eventsWSHandler := handlers.NewEventsWSHandler(eventBus)

	// Set up HTTP server routes
	mux := http.NewServeMux()
	httpHandler.SetupRoutes(mux)
	webhookHandler.SetupRoutes(mux)
	apiHandler.SetupRoutes(mux)
	authHandler.SetupRoutes(mux)
	eventsWSHandler.SetupRoutes(mux)

	// Wrap all routes with request IDs and CORS first, then authentication:
	// API keys guard the webhook path, JWT guards everything else
	corsMiddleware := middleware.NewCORSMiddleware() // Allow all origins
	handler := middleware.RequestIDMiddleware(corsMiddleware.Wrap(apiKeyMiddleware.Wrap(jwtAuthMiddleware.Wrap(mux))))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handler,
	}

	go func() {
		log.Printf("Starting HTTP server on port %d", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Println("Pipeline is running! Press Ctrl+C to exit.")
	log.Printf("Alert webhook endpoint: http://localhost:%d/webhook/alert", cfg.HTTPPort)
	log.Printf("Health check endpoint: http://localhost:%d/health", cfg.HTTPPort)
	log.Printf("API base URL: http://localhost:%d/api", cfg.HTTPPort)
	log.Printf("Event stream: ws://localhost:%d/ws/events", cfg.HTTPPort)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Received shutdown signal, cleaning up...")

	log.Println("Shutting down HTTP server...")
	if err := httpServer.Close(); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	pipe.Stop()
	mirror.Stop()
	eventBus.Close()

	log.Println("Shutdown complete")
}
