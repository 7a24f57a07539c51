package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"rideshare-registry/internal/config"
	"rideshare-registry/internal/credential"
	apphttp "rideshare-registry/internal/http"
	"rideshare-registry/internal/repository"
	"rideshare-registry/internal/repository/flatfile"
	"rideshare-registry/internal/repository/sqlite"
	"rideshare-registry/internal/service"
	"rideshare-registry/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, err := buildLedger(ctx, cfg)
	if err != nil {
		logger.Fatalf("open ledger: %v", err)
	}
	defer ledger.Close()
	if cfg.Ledger.TestMode {
		logger.Warn("test mode enabled, records go to test_ partitions")
	}

	hasher := credential.NewHasher(cfg.Auth.BcryptCost)
	registry := service.NewRegistry(ledger, hasher, logger)

	sessions, err := service.NewSessionIssuer(service.SessionConfig{
		Secret: cfg.Auth.JWTSecret,
		TTL:    time.Duration(cfg.Auth.TokenTTLMinutes) * time.Minute,
		Issuer: cfg.Auth.Issuer,
	})
	if err != nil {
		logger.Fatalf("setup sessions: %v", err)
	}

	documents, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}

	var limiter *apphttp.LoginLimiter
	if cfg.Redis.URL != "" {
		client, err := apphttp.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Warnf("redis unavailable, login rate limiting disabled: %v", err)
		} else {
			defer client.Close()
			limiter = apphttp.NewLoginLimiter(client, cfg.RateLimit.LoginPerMinute, logger)
		}
	}

	userService := service.NewUserService(registry, sessions, hasher, documents, service.UserServiceConfig{
		MaxAttachmentBytes: cfg.Upload.MaxBytes,
	}, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(userService, limiter, cfg.Upload.MaxBytes, logger)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

func buildLedger(ctx context.Context, cfg config.Config) (repository.Ledger, error) {
	switch cfg.Ledger.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.Ledger.SqlitePath)
		if err != nil {
			return nil, err
		}
		ledger := sqlite.NewLedger(db, cfg.Ledger.TestMode)
		if err := ledger.Init(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init ledger: %w", err)
		}
		return ledger, nil
	default:
		ledger, err := flatfile.Open(cfg.Ledger.Dir, cfg.Ledger.TestMode)
		if err != nil {
			return nil, err
		}
		return ledger, nil
	}
}

func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	if cfg.Storage.Bucket == "" {
		logger.Infof("storing license documents under %s", cfg.Upload.Dir)
		local, err := storage.NewLocalService(cfg.Upload.Dir)
		if err != nil {
			return nil, err
		}
		return local, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client, cfg.Storage.Bucket, cfg.Storage.KeyPrefix), nil
}
