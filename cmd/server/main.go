package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"audioscribe/internal/ai"
	"audioscribe/internal/api"
	"audioscribe/internal/audio"
	"audioscribe/internal/config"
	"audioscribe/internal/credential"
	"audioscribe/internal/db"
	"audioscribe/internal/engine"
	"audioscribe/internal/events"
	"audioscribe/internal/jobs"
	"audioscribe/internal/library"
	"audioscribe/internal/netwatch"
	"audioscribe/internal/persist"
	"audioscribe/internal/remote"
	"audioscribe/internal/repository"
	"audioscribe/internal/storage"
	"audioscribe/internal/stt"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Set Gin mode (default to release mode)
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	repo := openRepository(ctx, cfg, logger)

	provider, err := stt.CreateProvider(stt.Options{
		Provider:  cfg.STTProvider,
		BaseURL:   cfg.OpenAIBaseURL,
		FPTAPIKey: cfg.FPTApiKey,
		FPTURL:    cfg.FPTSTTURL,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create STT provider: %v", err)
	}
	logger.Info("STT provider initialized", "provider", provider.Name(), "models", cfg.TranscribeModels)

	items := storage.NewItems()
	registry := jobs.NewRegistry()
	bus := events.NewBus(1000)
	creds := credential.NewHolder(cfg.OpenAIKey)
	if _, ok := creds.Get(); !ok {
		logger.Warn("OPENAI_API_KEY not set; transcription is disabled until a key is supplied")
	}
	gateway := persist.NewGateway(repo, items, bus, logger)
	policy := remote.DefaultPolicy()

	transcriber := engine.NewTranscriber(engine.TranscriberDeps{
		Items:       items,
		Jobs:        registry,
		Bus:         bus,
		Decoder:     audio.NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath),
		Provider:    provider,
		Policy:      policy,
		Models:      cfg.TranscribeModels,
		Credentials: creds,
		Saver:       gateway,
		Logger:      logger,
		BaseContext: ctx,
	})
	stager := engine.NewStager(engine.StagerDeps{
		Items:       items,
		Jobs:        registry,
		Bus:         bus,
		Transformer: ai.NewOpenAITransformer(cfg.OpenAIBaseURL, ai.DefaultCatalog(), logger),
		Policy:      policy,
		Models:      cfg.TextModels,
		Credentials: creds,
		Saver:       gateway,
		Logger:      logger,
		BaseContext: ctx,
	})

	prober := netwatch.NewProber(cfg.ProbeURL, cfg.ProbeInterval, nil, logger)
	reconnector := engine.NewReconnector(items, transcriber, logger)
	prober.OnReconnect(func(ctx context.Context) {
		if ids := reconnector.OnReconnect(ctx); len(ids) > 0 {
			logger.Info("resumed items after reconnect", "count", len(ids))
		}
	})

	autosaver := persist.NewAutoSaver(gateway, items, cfg.AutoSaveInterval, cfg.AutoSaveMinGap, logger)

	srv := api.NewServer(api.Deps{
		Items:        items,
		Uploader:     storage.NewUploader(cfg.UploadDir, items),
		Bus:          bus,
		Credentials:  creds,
		Transcriber:  transcriber,
		Stager:       stager,
		Projects:     gateway,
		Connectivity: prober,
		Logger:       logger,
	})

	r := gin.Default()

	// Add CORS middleware for browser clients
	r.Use(corsMiddleware())

	// Register routes
	srv.RegisterRoutes(r)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("audioscribe backend running on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return autosaver.Run(gctx) })
	g.Go(func() error { return prober.Run(gctx) })
	if cfg.LibraryDir != "" {
		watcher := library.NewWatcher(cfg.LibraryDir, items, bus, logger)
		g.Go(func() error {
			// A broken library folder only disables ingestion.
			if err := watcher.Run(gctx); err != nil {
				logger.Error("library watcher stopped", "dir", cfg.LibraryDir, "error", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "error", err)
	}
	transcriber.Wait()
	stager.Wait()
	logger.Info("server stopped")
}

// openRepository uses Postgres when DATABASE_URL is set and falls back to memory.
func openRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) repository.SnapshotRepository {
	if cfg.DatabaseURL == "" {
		log.Println("DATABASE_URL not set, running without database (in-memory storage only)")
		return repository.NewMemoryRepository()
	}
	log.Printf("Initializing database connection with DATABASE_URL...")
	conn, err := db.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Warn("failed to initialize database, continuing with in-memory storage", "error", err)
		return repository.NewMemoryRepository()
	}
	log.Println("Database and repository initialized successfully")
	return repository.NewPostgresRepository(conn)
}

// corsMiddleware adds CORS headers for browser clients
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
