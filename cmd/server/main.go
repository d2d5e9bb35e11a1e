package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/inklet-app/inklet/backend/internal/auth"
	"github.com/inklet-app/inklet/backend/internal/config"
	"github.com/inklet-app/inklet/backend/internal/daily"
	"github.com/inklet-app/inklet/backend/internal/llm"
	"github.com/inklet-app/inklet/backend/internal/middleware"
	"github.com/inklet-app/inklet/backend/internal/notes"
	"github.com/inklet-app/inklet/backend/internal/pipeline"
	"github.com/inklet-app/inklet/backend/internal/store"
	"github.com/inklet-app/inklet/backend/internal/works"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer logger.Sync()

	// ── PostgreSQL ────────────────────────────────────────────
	pgPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("postgres connect", zap.Error(err))
	}
	defer pgPool.Close()
	pgStore := store.NewPostgresStore(pgPool)
	if err := pgStore.Migrate(ctx); err != nil {
		logger.Fatal("postgres migrate", zap.Error(err))
	}

	// ── MongoDB ──────────────────────────────────────────────
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal("mongo connect", zap.Error(err))
	}
	defer mongoClient.Disconnect(ctx)
	mongoStore := store.NewMongoStore(mongoClient.Database(cfg.MongoDB))
	if err := mongoStore.EnsureIndexes(ctx); err != nil {
		logger.Fatal("mongo indexes", zap.Error(err))
	}

	// ── Redis ────────────────────────────────────────────────
	rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		logger.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()
	sessions := auth.NewSessionStore(rdb)
	dayLocker := store.NewDayLocker(rdb)

	// ── MinIO ────────────────────────────────────────────────
	minioStore, err := store.NewMinioStore(
		ctx, cfg.MinioEndpoint, cfg.MinioAccessKey,
		cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL,
	)
	if err != nil {
		logger.Fatal("minio connect", zap.Error(err))
	}

	// ── Generation capability ────────────────────────────────
	gemini := llm.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, logger.Named("gemini"))
	policy := llm.DefaultPolicy()

	// ── Pipeline + daily job ─────────────────────────────────
	pipelineSvc := pipeline.NewService(gemini, policy, logger.Named("pipeline"))
	probe := daily.NewOEmbedProbe(logger.Named("probe"))
	dailyJob := daily.NewJob(pgStore, mongoStore, dayLocker, gemini, probe, policy, logger.Named("daily"))
	scheduler := daily.NewScheduler(dailyJob, pgStore, cfg.DailyHour, logger.Named("scheduler"))

	// ── Handlers ─────────────────────────────────────────────
	authHandler := auth.NewHandler(pgStore, sessions, logger.Named("auth"))
	notesHandler := notes.NewHandler(pgStore, logger.Named("notes"))
	pipelineHandler := pipeline.NewHandler(pipelineSvc, pgStore, pgStore, logger.Named("pipeline"))
	worksHandler := works.NewHandler(mongoStore, minioStore, logger.Named("works"))
	dailyHandler := daily.NewHandler(dailyJob, mongoStore, logger.Named("daily"))

	// ── Router ───────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.With(middleware.RequireAuth(sessions)).Get("/me", authHandler.Me)
		r.With(middleware.RequireAuth(sessions)).Put("/style", authHandler.UpdateStyle)
	})

	r.Route("/api/notes", func(r chi.Router) {
		r.Use(middleware.RequireAuth(sessions))
		r.Post("/", notesHandler.Create)
		r.Get("/", notesHandler.List)
		r.Get("/{id}", notesHandler.Get)
		r.Put("/{id}", notesHandler.Update)
		r.Delete("/{id}", notesHandler.Delete)
	})

	r.Route("/api/pipeline", func(r chi.Router) {
		r.Use(middleware.RequireAuth(sessions))
		r.Post("/extract", pipelineHandler.Extract)
		r.Post("/topics", pipelineHandler.Topics)
		r.Post("/article", pipelineHandler.Article)
		r.Post("/card", pipelineHandler.Card)
	})

	r.Route("/api/works", func(r chi.Router) {
		r.Use(middleware.RequireAuth(sessions))
		r.Post("/", worksHandler.Save)
		r.Get("/", worksHandler.List)
		r.Get("/{id}", worksHandler.Get)
		r.Delete("/{id}", worksHandler.Delete)
		r.Get("/{id}/export", worksHandler.Export)
	})

	r.Route("/api/daily", func(r chi.Router) {
		r.Use(middleware.RequireAuth(sessions))
		r.Post("/generate", dailyHandler.Generate)
		r.Get("/", dailyHandler.Get)
	})

	// ── Scheduler ────────────────────────────────────────────
	schedCtx, stopSched := context.WithCancel(ctx)
	defer stopSched()
	go scheduler.Run(schedCtx)

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
	}

	go func() {
		logger.Info("backend listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	stopSched()
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	srv.Shutdown(shutCtx)
}
