package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/luneo/canvas-engine/internal/asset"
	"github.com/luneo/canvas-engine/internal/auth"
	"github.com/luneo/canvas-engine/internal/cache"
	"github.com/luneo/canvas-engine/internal/collab"
	"github.com/luneo/canvas-engine/internal/config"
	"github.com/luneo/canvas-engine/internal/design"
	"github.com/luneo/canvas-engine/internal/engine"
	"github.com/luneo/canvas-engine/internal/export"
	"github.com/luneo/canvas-engine/internal/fonts"
	"github.com/luneo/canvas-engine/internal/logger"
	"github.com/luneo/canvas-engine/internal/metrics"
	mw "github.com/luneo/canvas-engine/internal/middleware"
	"github.com/luneo/canvas-engine/internal/moderation"
	"github.com/luneo/canvas-engine/internal/qr"
	"github.com/luneo/canvas-engine/internal/storage"
	"github.com/luneo/canvas-engine/internal/zone"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := newStore(ctx, cfg, log)
	if err != nil {
		return err
	}

	designStore, closeDB, err := newDesignStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	keys, err := cfg.APIKeys()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		log.Warn("no widget API keys configured; session creation will always fail")
	}

	policy, err := zone.ParsePolicy(cfg.ContainmentPolicy)
	if err != nil {
		return err
	}

	m := metrics.New()
	validate := validator.New(validator.WithRequiredStructEnabled())

	resolver := asset.NewResolver(
		asset.WithStore(store),
		asset.WithMaxBytes(cfg.MaxUploadBytes),
		asset.WithLogger(log.Named("assets")),
	)
	fontProvider, err := fonts.NewProvider(fonts.WithLogger(log.Named("fonts")))
	if err != nil {
		return fmt.Errorf("load fonts: %w", err)
	}
	exporter, err := export.New(
		export.WithImageSource(resolver),
		export.WithFaceSource(fontProvider),
		export.WithLogger(log.Named("export")),
	)
	if err != nil {
		return fmt.Errorf("create exporter: %w", err)
	}
	exportService := export.NewService(exporter,
		export.WithStore(store),
		export.WithCache(cache.New(ctx, cache.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}, log), cfg.ExportCacheTTL),
		export.WithRecorder(m),
		export.WithServiceLogger(log.Named("export")),
	)

	authService := auth.NewService(keys, cfg.JWTSecret, cfg.SessionTTL)
	designService := design.NewService(designStore,
		design.WithModerator(moderation.New(moderation.Policy{
			BannedWords:   cfg.BannedWords,
			MaxTextLength: cfg.MaxTextLength,
		})),
		design.WithLogger(log.Named("designs")),
	)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := collab.NewHub(
		collab.WithLoader(designService.LoadScene),
		collab.WithSaver(designService.SaveScene),
		collab.WithEngineOptions(
			engine.WithHistorySize(cfg.HistorySize),
			engine.WithContainmentPolicy(policy),
			engine.WithImageResolver(resolver),
			engine.WithQREncoder(qr.NewEncoder()),
			engine.WithFontProvider(fontProvider),
			engine.WithExporter(exporter),
		),
		collab.WithLogger(log.Named("collab")),
	)
	go hub.Run(hubCtx)

	limiter := mw.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, mw.OnReject(m.RateLimited))
	go limiter.Run(ctx)
	limited := func(h http.HandlerFunc) http.Handler { return limiter.Middleware()(h) }
	protected := func(h http.Handler) http.Handler { return authService.Middleware(h) }

	authHandler := auth.NewHandler(authService, log)
	assetHandler := asset.NewHandler(store, cfg.MaxUploadBytes, log)
	exportHandler := export.NewHandler(exportService, validate, log)
	designHandler := design.NewHandler(designService, validate, log)
	sessionHandler := collab.NewHandler(hub, cfg.Origins(), log)

	r := mux.NewRouter()
	r.Use(mw.Recovery(log))
	r.Use(mw.Logging(log))
	r.Use(mw.Metrics(m))

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	r.Handle("/auth/session", limited(authHandler.CreateSession)).Methods(http.MethodPost)

	r.Handle("/assets/upload", protected(limited(assetHandler.Upload))).Methods(http.MethodPost)
	r.HandleFunc("/assets/{key:.+}", assetHandler.Serve).Methods(http.MethodGet)
	r.HandleFunc("/exports/{key:.+}", assetHandler.Serve).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.Middleware)
	api.Handle("/export/{kind}", limited(exportHandler.Export)).Methods(http.MethodPost)
	api.HandleFunc("/designs/{id}", designHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/designs/{id}", designHandler.Save).Methods(http.MethodPut)
	api.Handle("/designs/{id}/quote", limited(designHandler.Quote)).Methods(http.MethodPost)
	api.HandleFunc("/designs/{id}/validate", designHandler.Validate).Methods(http.MethodPost)

	r.Handle("/ws/session/{designId}", protected(http.HandlerFunc(sessionHandler.ServeWS)))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mw.CORS(cfg.Origins())(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}

	// Rooms are saved after the last request has finished.
	log.Info("saving open designs")
	stopHub()
	select {
	case <-hub.Done():
	case <-shutdownCtx.Done():
		log.Warn("timed out saving open designs")
	}
	return nil
}

func newStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	switch cfg.StorageDriver {
	case "s3":
		s, err := storage.NewS3Store(&storage.S3Config{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
		}, storage.WithS3Logger(log.Named("s3")))
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure bucket %s: %w", s.Bucket(), err)
		}
		log.Info("storage: s3", zap.String("bucket", s.Bucket()))
		return s, nil
	case "local", "":
		s, err := storage.NewLocalStore(cfg.StorageDir, cfg.PublicBaseURL, storage.WithLocalLogger(log.Named("storage")))
		if err != nil {
			return nil, err
		}
		log.Info("storage: local", zap.String("dir", s.Dir()))
		return s, nil
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
}

func newDesignStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (design.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Info("design store: memory")
		return design.NewMemoryStore(), func() {}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	store := design.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	log.Info("design store: postgres")
	return store, pool.Close, nil
}
