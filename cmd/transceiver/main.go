package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/audit"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/auth"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/config"
	cronrunner "github.com/andyyue2024/signal-transceiver-sub001/internal/cron"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/db"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/handler"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/ledger"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/logger"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/ratelimit"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/repository"
	gormrepository "github.com/andyyue2024/signal-transceiver-sub001/internal/repository/gorm"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/repository/memory"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/strategy"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/subscription"

	_ "github.com/andyyue2024/signal-transceiver-sub001/docs"
)

func main() {
	cfgPath := os.Getenv("ST_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("ST_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	baseLogger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	log := logger.WithApp(baseLogger, cfg.App)
	defer log.Sync()

	store, closeStore := openStore(cfg, log)
	defer closeStore()

	authority := auth.NewAuthority(store, auth.Options{
		AdminAPIKey:     cfg.Auth.AdminAPIKey,
		APIKeyTTL:       cfg.Auth.APIKeyTTL,
		PublisherSignup: cfg.Auth.PublisherSignup,
		BcryptCost:      cfg.Auth.BcryptCost,
	}, log)
	if cfg.Auth.AdminAPIKey == "" {
		log.Warn("no bootstrap admin key configured; roles can only be changed in the database")
	}
	strategies := strategy.NewRegistry(store, log)
	dataLedger := ledger.New(store, strategies, ledger.Options{
		MaxPayloadBytes: cfg.Ledger.MaxPayloadBytes,
		MaxBatchSize:    cfg.Ledger.MaxBatchSize,
		RestrictToOwner: cfg.Ledger.RestrictToOwner,
	}, log)
	subscriptions := subscription.NewRegistry(store, strategies, subscription.Options{
		PageSize:    cfg.Poll.PageSize,
		MaxPageSize: cfg.Poll.MaxPageSize,
	}, log)

	limiter, closeLimiter := newLimiter(cfg.RateLimit, log)
	defer closeLimiter()

	var sink audit.Sink = audit.NopSink{}
	if cfg.Audit.Enabled && len(cfg.Audit.Brokers) > 0 {
		sink = audit.NewKafkaSink(cfg.Audit)
		log.Info("audit events enabled", zap.Strings("brokers", cfg.Audit.Brokers), zap.String("topic", cfg.Audit.Topic))
	}
	recorder := audit.NewRecorder(sink, log)
	defer func() {
		if err := recorder.Close(); err != nil {
			log.Warn("audit sink close failed", zap.Error(err))
		}
	}()

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := handler.NewEngine(handler.Deps{
		Server:        cfg.Server,
		Version:       cfg.App.Version,
		Logger:        log,
		Store:         store,
		Auth:          authority,
		Strategies:    strategies,
		Ledger:        dataLedger,
		Subscriptions: subscriptions,
		Guard: &handler.Guard{
			Auth:    authority,
			Limiter: limiter,
			Rules:   ratelimit.RulesFromConfig(cfg.RateLimit.Tiers),
			Logger:  log,
		},
		Audit: recorder,
	})

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(log, ctx)
	if cfg.Cron.Enabled {
		if err := cronrunner.RegisterMaintenance(cronRunner, cfg.Cron, subscriptions, authority); err != nil {
			log.Fatal("cron register failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", zap.Error(err))
		return
	}
	log.Info("server stopped")
}

func openStore(cfg config.Config, log *zap.Logger) (repository.Repository, func()) {
	if strings.EqualFold(cfg.DB.Driver, "memory") {
		log.Warn("using in-memory store; data is lost on restart")
		return memory.New().WithLockWait(cfg.DB.LockTimeout), func() {}
	}

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		log.Fatal("db open failed", zap.Error(err))
	}
	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		log.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		log.Fatal("auto-migrate failed", zap.Error(err))
	}
	s := gormrepository.New(dbConn.Gorm).WithTimeouts(cfg.DB.LockTimeout, cfg.DB.StatementTimeout)
	return s, func() {
		if err := db.Close(dbConn); err != nil {
			log.Warn("db close failed", zap.Error(err))
		}
	}
}

func newLimiter(cfg config.RateLimitConfig, log *zap.Logger) (ratelimit.Limiter, func()) {
	if !cfg.Enabled {
		return nil, func() {}
	}
	if strings.EqualFold(cfg.Backend, "redis") {
		rl := ratelimit.NewRedisLimiter(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.Prefix)
		log.Info("rate limiter backend", zap.String("backend", "redis"), zap.String("addr", cfg.Redis.Addr))
		return rl, func() { _ = rl.Close() }
	}
	return ratelimit.NewMemoryLimiter(), func() {}
}
