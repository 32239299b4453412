package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/latentlab/proficiency/internal/application"
	appsamples "github.com/latentlab/proficiency/internal/application/samples"
	"github.com/latentlab/proficiency/internal/config"
	domgenlog "github.com/latentlab/proficiency/internal/domain/genlog"
	domsamples "github.com/latentlab/proficiency/internal/domain/samples"
	domtracking "github.com/latentlab/proficiency/internal/domain/tracking"
	"github.com/latentlab/proficiency/internal/infra/assets"
	corpusloader "github.com/latentlab/proficiency/internal/infra/corpus"
	mysqlp "github.com/latentlab/proficiency/internal/infra/db/mysql"
	postgresp "github.com/latentlab/proficiency/internal/infra/db/postgres"
	"github.com/latentlab/proficiency/internal/infra/httpserver"
	"github.com/latentlab/proficiency/internal/infra/degradation"
	"github.com/latentlab/proficiency/internal/infra/packaging"
	minioStore "github.com/latentlab/proficiency/internal/infra/storage"
	"github.com/latentlab/proficiency/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	db, sampleRepo, usageRepo, eventRepo, err := connectRepos(ctx, cfg)
	if err != nil {
		logger.Fatal("database connect error", zap.Error(err))
	}
	defer db.Close()

	store, err := minioStore.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
		logger,
	)
	if err != nil {
		logger.Fatal("minio init error", zap.Error(err))
	}

	rnd := application.NewRand()
	pool := assets.NewPool(cfg.Images.Pools...)

	degrader := degradation.NewEngine(rnd, logger, degradation.Options{
		MinAreaPercent:  cfg.Degradation.MinAreaPercent,
		MaxAreaPercent:  cfg.Degradation.MaxAreaPercent,
		MinEccentricity: cfg.Degradation.MinEccentricity,
		MaxEccentricity: cfg.Degradation.MaxEccentricity,
		DisplayWidth:    cfg.Images.DisplayWidth,
	})

	packager := &packaging.Packager{
		Root:         cfg.Sample.Root,
		Assets:       pool,
		Degrader:     degrader,
		Rand:         rnd,
		Log:          logger,
		DisplayWidth: cfg.Images.DisplayWidth,
	}

	svc := &appsamples.Service{
		Corpus:   corpusloader.NewLoader(cfg.Corpus.Path, logger),
		Repo:     sampleRepo,
		Usage:    usageRepo,
		Audit:    eventRepo,
		Packager: packager,
		Bundles:  store,
		Assets:   pool,
		Clock:    application.SystemClock{},
		Rand:     rnd,
		Log:      logger,
		Opts: appsamples.Options{
			GroupsPerSample:     cfg.Sample.GroupsPerSample,
			ImagesPerGroup:      cfg.Sample.ImagesPerGroup,
			HasMatchProbability: cfg.Sample.HasSameSourceProbability,
		},
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate)

	mux := chi.NewRouter()
	mux.Get("/healthz", middleware.Liveness)
	mux.Get("/readyz", middleware.Readiness(middleware.DatabasePing(db)))
	mux.Mount("/", httpserver.NewRouter(svc,
		middleware.Logging(logger),
		middleware.RateLimit(limiter, func(r *http.Request) string { return r.RemoteAddr }),
	))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // generation is synchronous and image-bound
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down server")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
}

func connectRepos(ctx context.Context, cfg *config.Config) (*sql.DB, domsamples.Repository, domtracking.Repository, domgenlog.Repository, error) {
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, nil, nil, err
		}
		return db, postgresp.NewSampleRepository(db), postgresp.NewFileUsageRepository(db), postgresp.NewGenerationEventRepository(db), nil
	case "mysql", "":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, nil, nil, err
		}
		return db, mysqlp.NewSampleRepository(db), mysqlp.NewFileUsageRepository(db), mysqlp.NewGenerationEventRepository(db), nil
	default:
		return nil, nil, nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}
