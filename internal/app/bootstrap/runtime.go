package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/quorasec/iamcore/internal/adapters/cache"
	eventadapter "github.com/quorasec/iamcore/internal/adapters/events"
	grpcadapter "github.com/quorasec/iamcore/internal/adapters/grpc"
	httpadapter "github.com/quorasec/iamcore/internal/adapters/http"
	"github.com/quorasec/iamcore/internal/adapters/postgres"
	"github.com/quorasec/iamcore/internal/adapters/security"
	"github.com/quorasec/iamcore/internal/application"
	"github.com/quorasec/iamcore/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	outbox     *eventadapter.OutboxWorker
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping iam core", "service_id", cfg.ServiceID, "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}

	if err := postgres.RunMigrations(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := cacheadapter.Connect(ctx, cacheadapter.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	keyPEM, err := cfg.privateKeyPEM()
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, err
	}
	signer, err := security.NewJWTSigner(keyPEM)
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init jwt signer: %w", err)
	}
	if len(keyPEM) == 0 {
		logger.Warn("no signing key configured, using ephemeral JWT keys")
	}

	svc, err := application.NewService(ctx, application.Config{
		AccessTokenTTL:     cfg.AccessTokenTTL,
		RefreshTokenTTL:    cfg.RefreshTokenTTL,
		ChallengeTTL:       cfg.ChallengeTTL,
		PermissionCacheTTL: cfg.PermissionCacheTTL,
		TOTPReplayTTL:      cfg.TOTPReplayTTL,
		BackupCodeCount:    cfg.BackupCodeCount,
	}, application.Dependencies{
		Principals:  postgres.NewPrincipalRepository(db),
		Credentials: postgres.NewCredentialRepository(db),
		Sessions:    postgres.NewSessionRepository(db),
		MFA:         postgres.NewMFARepository(db),
		RBAC:        postgres.NewRBACRepository(db),
		Audit:       postgres.NewAuditRepository(db),
		Policy:      postgres.NewPolicyRepository(db),
		Lockouts:    cacheadapter.NewRedisLockoutStore(redisClient),
		Challenges:  cacheadapter.NewRedisChallengeStore(redisClient),
		Revocations: cacheadapter.NewRedisRevocationStore(redisClient),
		PermCache:   cacheadapter.NewRedisPermissionCache(redisClient),
		Replay:      cacheadapter.NewRedisReplayGuard(redisClient),
		Hasher:      security.NewBcryptHasher(cfg.BcryptCost),
		Signer:      signer,
		TOTP:        security.NewTOTPProvider(),
		Logger:      logger,
	})
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init service: %w", err)
	}

	ready := func(ctx context.Context) error {
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	}

	handler := httpadapter.NewHandler(svc, signer, ready)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcadapter.Register(grpcServer, grpcadapter.NewIAMInternalServer(svc, signer))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("listen gRPC: %w", err)
	}

	var publisher ports.EventPublisher
	closePublisher := func() {}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub, err := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopics)
		if err != nil {
			_ = lis.Close()
			_ = sqlDB.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("init kafka publisher: %w", err)
		}
		publisher = kafkaPub
		closePublisher = func() { _ = kafkaPub.Close() }
	} else {
		logger.Warn("no kafka brokers configured, audit events publish to log only")
		publisher = eventadapter.NewLoggingPublisher(logger)
	}

	outbox := eventadapter.NewOutboxWorker(
		logger,
		postgres.NewOutboxRepository(db),
		publisher,
		cfg.OutboxPollInterval,
		cfg.OutboxBatchSize,
		cfg.OutboxClaimTTL,
		cfg.OutboxMaxRetries,
	)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		outbox:     outbox,
		cleanupFn: func(ctx context.Context) {
			closePublisher()
			_ = redisClient.Close()
			_ = sqlDB.Close()
		},
	}, nil
}

// RunAPI serves HTTP and gRPC until a termination signal or server failure.
func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}

// RunWorker drives the outbox publish loop until context cancellation.
func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("outbox worker started")
	err := r.outbox.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	return nil
}
