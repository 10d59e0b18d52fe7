package main

import (
	"context"
	"log/slog"
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

	"github.com/arjun/expense-tracker/backend/internal/auth"
	"github.com/arjun/expense-tracker/backend/internal/config"
	"github.com/arjun/expense-tracker/backend/internal/expense"
	"github.com/arjun/expense-tracker/backend/internal/logging"
	"github.com/arjun/expense-tracker/backend/internal/middleware"
	"github.com/arjun/expense-tracker/backend/internal/store"
)

func main() {
	logging.Setup()
	cfg := config.Load()
	ctx := context.Background()

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	// ── PostgreSQL ────────────────────────────────────────────
	pgPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		slog.Error("postgres connect", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()
	pgStore := store.NewPostgresStore(pgPool)
	if err := pgStore.Migrate(ctx); err != nil {
		slog.Error("postgres migrate", "error", err)
		os.Exit(1)
	}

	// ── MongoDB ──────────────────────────────────────────────
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		slog.Error("mongo connect", "error", err)
		os.Exit(1)
	}
	defer mongoClient.Disconnect(ctx)
	itemStore := store.NewMongoStore(mongoClient.Database(cfg.MongoDB))

	// ── Redis ────────────────────────────────────────────────
	rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		slog.Error("redis connect", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()
	cache := store.NewCache(rdb)

	// ── MinIO ────────────────────────────────────────────────
	reportStore, err := store.NewMinioStore(
		ctx, cfg.MinioEndpoint, cfg.MinioAccessKey,
		cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL,
	)
	if err != nil {
		slog.Error("minio connect", "error", err)
		os.Exit(1)
	}

	// ── Services & handlers ──────────────────────────────────
	tokens := auth.NewJWTManager(cfg.JWTSecret, time.Duration(cfg.TokenTTLHours)*time.Hour)
	authenticator := auth.NewPasswordAuthenticator(pgStore)
	authHandler := auth.NewHandler(authenticator, tokens)

	itemService := expense.NewService(itemStore)
	itemHandler := expense.NewHandler(itemService, cache, reportStore)

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

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth routes (public)
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.SignUp)
		r.Post("/signin", authHandler.SignIn)
	})

	// Item routes (protected)
	r.Route("/api/item", func(r chi.Router) {
		r.Use(middleware.RequireAuth(tokens))
		r.Post("/create", itemHandler.Create)
		r.Get("/analytics", itemHandler.Analytics)
		r.Get("/today", itemHandler.Today)
		r.Get("/week", itemHandler.Week)
		r.Post("/by-date", itemHandler.ByDate)
		r.Post("/month", itemHandler.Month)
		r.Post("/overall", itemHandler.Overall)
		r.Get("/export", itemHandler.Export)
	})

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		slog.Info("backend listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	srv.Shutdown(shutCtx)
}
