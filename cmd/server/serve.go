package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/AnshRaj112/chatooz-backend/internal/database"
	"github.com/AnshRaj112/chatooz-backend/internal/flows"
	"github.com/AnshRaj112/chatooz-backend/internal/handlers"
	"github.com/AnshRaj112/chatooz-backend/internal/logging"
	"github.com/AnshRaj112/chatooz-backend/internal/metrics"
	"github.com/AnshRaj112/chatooz-backend/internal/middleware"
	"github.com/AnshRaj112/chatooz-backend/internal/routes"
	"github.com/AnshRaj112/chatooz-backend/internal/services"
)

const (
	devRateLimit    = 100
	devRateWindow   = time.Minute
	shutdownTimeout = 10 * time.Second
)

func runServe(ctx context.Context, configFile string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	logger := logging.New(os.Stdout, cfg.IsProduction())

	// Connect to PostgreSQL
	log.Printf("Connecting to PostgreSQL...")
	db, err := database.ConnectPostgres(cfg.PostgresURI)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL:", err)
	}
	defer db.Close()
	if err := database.InitPostgresTables(ctx, db); err != nil {
		log.Fatal("Failed to create PostgreSQL tables:", err)
	}

	// Connect to Redis
	log.Printf("Connecting to Redis...")
	rdb, err := database.ConnectRedis(cfg.RedisURI)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	// Connect to MongoDB
	log.Printf("Connecting to MongoDB...")
	log.Printf("MongoDB URI: %s", database.MaskURI(cfg.MongoURI))
	mongoClient, mdb, err := database.ConnectMongo(cfg.MongoURI)
	if err != nil {
		log.Println("Troubleshooting tips:")
		log.Println("1. Check if your IP is whitelisted in MongoDB Atlas")
		log.Println("2. Verify your connection string format (should use mongodb+srv:// for Atlas)")
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer database.DisconnectMongo(mongoClient)

	profiles := services.NewProfileDirectory(mdb.Collection(services.ProfilesCollection))
	history := services.NewChatHistory(mdb.Collection(services.MessagesCollection))
	if err := profiles.EnsureIndexes(ctx); err != nil {
		log.Printf("⚠️  WARNING: failed to ensure MongoDB profile indexes: %v", err)
	}
	if err := history.EnsureIndexes(ctx); err != nil {
		log.Printf("⚠️  WARNING: failed to ensure MongoDB chat indexes: %v", err)
	} else {
		log.Println("✅ MongoDB indexes ensured")
	}

	// Media store is optional; sign-up falls back to the default avatar
	var media flows.Media
	if cfg.CloudinaryConfigured() {
		store, err := services.NewMediaStore(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryUploadPreset)
		if err != nil {
			log.Printf("Warning: Failed to initialize Cloudinary: %v", err)
		} else {
			media = store
			log.Println("✅ Cloudinary service initialized")
		}
	} else {
		log.Println("Warning: Cloudinary credentials not found. Avatar uploads will not be available")
	}

	transport := services.NewChatTransport(rdb, db)
	if err := transport.Initialize(cfg.ChatAppID, cfg.ChatAppSecret); err != nil {
		log.Fatal("Failed to initialize chat transport:", err)
	}
	log.Println("✅ Chat transport initialized")

	creds := services.NewCredentialStore(db)
	m := metrics.New()
	orchestrator := flows.New(flows.Deps{
		Credentials:      creds,
		Sessions:         services.NewSessionStore(rdb),
		Profiles:         services.NewProfileCache(profiles, rdb, logger),
		Media:            media,
		Transport:        transport,
		Verifier:         services.NewVerifier(rdb, creds, cfg.PublicURL, logger),
		Logger:           logger,
		Metrics:          m,
		DefaultAvatarURL: cfg.DefaultAvatarURL,
	})

	hub := services.NewChatHub(rdb, logger)
	hub.Start(ctx)
	messenger := services.NewMessenger(transport, history, services.NewRecentCache(rdb, logger), hub, logger)

	h := handlers.New(handlers.Deps{
		Flows:          orchestrator,
		Chat:           messenger,
		Gateway:        transport,
		Hub:            hub,
		Logger:         logger,
		Metrics:        m,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	// Setup router
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.Observe(logger, m))

	// Production: SecurityHeaders → HostCheck → GlobalRateLimit → AuthRateLimit → history limit
	// Non-production: Redis-based rate limit only
	if cfg.IsProduction() {
		limits := middleware.NewLimits(cfg.TrustProxy)
		go limits.Run(ctx)
		for _, mw := range middleware.ProductionSecurity(publicHost(cfg.PublicURL), limits) {
			r.Use(mw)
		}
		r.Use(middleware.ChatHistoryRateLimit(limits))
		log.Println("✅ Production security enabled (security headers, per-IP + auth rate limiting)")
	} else {
		r.Use(middleware.RedisRateLimit(rdb, "global", devRateLimit, devRateWindow, middleware.ByIP(cfg.TrustProxy)))
	}

	routes.SetupRoutes(r, h, routes.Options{
		Metrics:    m.Handler(),
		Redis:      rdb,
		TrustProxy: cfg.TrustProxy,
	})

	log.Println("📋 Registered routes:")
	_ = chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		log.Printf("  %-6s %s", method, route)
		return nil
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("🚀 chatooz backend running on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	orchestrator.Wait()
	return nil
}

// publicHost returns the bare hostname of PUBLIC_URL for the host check.
func publicHost(publicURL string) string {
	u, err := url.Parse(publicURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
