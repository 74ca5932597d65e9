package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/cattle-id/internal/classifier"
	"github.com/example/cattle-id/internal/config"
	"github.com/example/cattle-id/internal/handlers"
	"github.com/example/cattle-id/internal/health"
	"github.com/example/cattle-id/internal/husbandry"
	"github.com/example/cattle-id/internal/logging"
	"github.com/example/cattle-id/internal/normalizer"
	"github.com/example/cattle-id/internal/repository"
	"github.com/example/cattle-id/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	model, err := classifier.NewONNXClassifier(classifier.ONNXConfig{
		ModelPath:         cfg.ModelPath,
		MetadataPath:      cfg.ModelMetadataPath,
		SharedLibraryPath: cfg.ONNXRuntimeLib,
	}, logger)
	if err != nil {
		logger.Fatal("failed to load identity model", zap.Error(err))
	}
	defer model.Close() //nolint:errcheck

	shape := model.InputShape()
	norm, err := normalizer.New(normalizer.Options{
		Width:     int(shape[2]),
		Height:    int(shape[1]),
		Filter:    cfg.ResampleFilter,
		MaxPixels: cfg.MaxImagePixels,
	})
	if err != nil {
		logger.Fatal("invalid normalizer settings", zap.Error(err))
	}

	profiles := loadProfiles(ctx, cfg, logger)
	if missing := profiles.MissingFor(model.Labels()); len(missing) > 0 {
		labels := make([]string, len(missing))
		for i, l := range missing {
			labels[i] = string(l)
		}
		logger.Warn("model labels without husbandry profile", zap.Strings("labels", labels))
	}

	var cache usecase.Cache
	if cfg.CacheEnabled() {
		redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
		redisClient := initRedis(redisCtx, cfg, logger)
		redisCancel()
		redisCache := usecase.NewRedisCache(redisClient)
		defer redisCache.Close() //nolint:errcheck
		cache = redisCache
	} else {
		logger.Info("inference cache disabled")
	}

	uc := usecase.NewIdentificationUseCase(norm, model, profiles, cache, logger,
		usecase.WithMinConfidence(cfg.MinConfidence),
		usecase.WithAlternatives(cfg.Alternatives),
		usecase.WithCacheTTL(cfg.CacheTTL),
	)

	gin.SetMode(gin.ReleaseMode)
	r := handlers.NewRouter(logger, handlers.NewHandler(uc, profiles, uc, logger))

	healthServer := health.NewServer(logger)
	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("failed to listen for grpc", zap.Error(err), zap.String("addr", cfg.GRPCAddr))
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("cattle identification API listening",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("grpc_addr", cfg.GRPCAddr),
		zap.String("model", model.ModelID()),
		zap.Int("animals", profiles.Len()))
	if err := runServers(server, nil, healthServer, grpcListener, cfg.ShutdownTimeout, logger, nil); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// runServers serves HTTP and gRPC health until a shutdown signal. Health turns
// NOT_SERVING as soon as the signal arrives, before HTTP requests drain.
func runServers(server *http.Server, httpListener net.Listener, healthServer *health.Server, grpcListener net.Listener, shutdownTimeout time.Duration, logger *zap.Logger, signalCh <-chan os.Signal) error {
	go func() {
		if err := healthServer.Serve(grpcListener); err != nil {
			logger.Error("grpc health server failed", zap.Error(err))
		}
	}()
	healthServer.SetServing(true)

	serveErr := serveHTTPServerWithOptions(server, shutdownTimeout, logger, httpListener, signalCh, func() {
		healthServer.SetServing(false)
	})

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	healthServer.Stop(ctx)
	return serveErr
}

func loadProfiles(ctx context.Context, cfg config.Config, logger *zap.Logger) *husbandry.Table {
	if cfg.ProfileSource == config.ProfileSourceFile {
		table, err := husbandry.LoadFile(cfg.ProfileFile)
		if err != nil {
			logger.Fatal("failed to load husbandry profiles", zap.Error(err), zap.String("file", cfg.ProfileFile))
		}
		return table
	}

	db := initDatabase(ctx, cfg.DatabaseDSN, logger)
	repo := repository.NewProfileRepository(db, logger)
	if err := repo.AutoMigrate(ctx); err != nil {
		logger.Fatal("auto migrate failed", zap.Error(err))
	}
	table, err := repo.LoadTable(ctx)
	if err != nil {
		logger.Fatal("failed to load husbandry profiles", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return table
}

func initDatabase(ctx context.Context, dsn string, zapLogger *zap.Logger) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("failed to access db handle", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		zapLogger.Fatal("database ping failed", zap.Error(err))
	}

	return db
}

func initRedis(ctx context.Context, cfg config.Config, zapLogger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	return client
}

// serveHTTPServerWithOptions serves until the server fails or a signal
// arrives, then shuts down gracefully. onSignal, when set, runs before the
// shutdown starts. A nil listener means ListenAndServe on server.Addr.
func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal, onSignal func()) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		if onSignal != nil {
			onSignal()
		}
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
