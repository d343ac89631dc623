package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/adms/sessiond/api/handler"
	"github.com/adms/sessiond/internal/backend"
	"github.com/adms/sessiond/internal/config"
	"github.com/adms/sessiond/internal/infrastructure/monitor"
	pgInfra "github.com/adms/sessiond/internal/infrastructure/postgres"
	redisInfra "github.com/adms/sessiond/internal/infrastructure/redis"
	"github.com/adms/sessiond/internal/middleware"
	"github.com/adms/sessiond/internal/router"
	"github.com/adms/sessiond/internal/services/controller"
	"github.com/adms/sessiond/internal/services/lifecycle"
	"github.com/adms/sessiond/internal/services/maintenance"
	"github.com/adms/sessiond/internal/services/navigation"
	syncSvc "github.com/adms/sessiond/internal/services/sync"
	"github.com/adms/sessiond/pkg/httpcontext"
	"github.com/adms/sessiond/pkg/logger"
	"github.com/adms/sessiond/pkg/sched"
	"github.com/adms/sessiond/repository"
	boltRepo "github.com/adms/sessiond/repository/bolt"
	pgRepo "github.com/adms/sessiond/repository/postgres"
	redisRepo "github.com/adms/sessiond/repository/redis"
	sessionstore "github.com/adms/sessiond/usecase/session"

	"github.com/jackc/pgx/v5/pgxpool"
	goRedis "github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	// Audit trail is optional: without a database the lifecycle runs the
	// same, it just leaves no session_events behind.
	var pool *pgxpool.Pool
	var events repository.EventRepository
	if cfg.Database.Enabled {
		if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
			zapLogger.Fatal("migrations failed", zap.Error(err))
		}

		pool, err = pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
		if err != nil {
			zapLogger.Fatal("postgres connection failed", zap.Error(err))
		}
		manager.Register("postgres", func(ctx context.Context) error {
			pool.Close()
			return nil
		})
		events = pgRepo.NewEventRepository(pool)
	}

	// Redis carries cross-instance broadcast when enabled; otherwise the
	// local bolt store keeps state durable for a single instance.
	var kv repository.KeyValueBroadcastStore
	var redisClient *goRedis.Client
	var storageHealth monitor.StorageHealth
	if cfg.Redis.Enabled {
		redisClient, err = redisInfra.NewClient(cfg.Redis)
		if err != nil {
			zapLogger.Fatal("redis connection failed", zap.Error(err))
		}
		manager.Register("redis", func(ctx context.Context) error {
			return redisClient.Close()
		})

		store, err := redisRepo.NewStore(redisClient, zapLogger)
		if err != nil {
			zapLogger.Fatal("redis store failed", zap.Error(err))
		}
		manager.Register("kv_store", func(ctx context.Context) error {
			return store.Close()
		})
		kv = store
	} else {
		store, err := boltRepo.Open(cfg.Storage.Path, cfg.Storage.Bucket)
		if err != nil {
			zapLogger.Fatal("failed to open storage", zap.Error(err))
		}
		manager.Register("kv_store", func(ctx context.Context) error {
			return store.Close()
		})
		kv = store
		storageHealth = store
	}

	mon := monitor.New(pool, redisClient, storageHealth, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	backendClient := backend.NewClient(cfg.Backend, zapLogger)

	sessionStore := sessionstore.NewStore(appCtx, kv, backendClient, zapLogger)

	maintManager := maintenance.New(kv, events, maintenance.Config{
		SweepInterval:  cfg.Maintenance.SweepInterval,
		AuditRetention: cfg.Maintenance.AuditRetention,
	}, zapLogger)
	maintManager.Start()
	manager.Register("maintenance", func(ctx context.Context) error {
		maintManager.Stop(ctx)
		return nil
	})

	navigator := navigation.NewTracker(cfg.Session.LoginPath, zapLogger)

	ctrl := controller.New(
		sessionStore,
		backendClient,
		navigator,
		events,
		sched.Wall(),
		controller.Config{
			IdleTimeout:        cfg.Session.IdleTimeout,
			CountdownSeconds:   cfg.Session.CountdownSeconds,
			RefreshLeadTime:    cfg.Session.RefreshLeadTime,
			LoginPath:          cfg.Session.LoginPath,
			DefaultLandingPath: cfg.Session.DefaultLandingPath,
		},
		func(remaining int) {
			zapLogger.Info("idle countdown", zap.Int("remaining_seconds", remaining))
		},
		zapLogger,
	)
	ctrl.Resume(appCtx)
	manager.Register("controller", func(ctx context.Context) error {
		ctrl.Close()
		return nil
	})

	synchronizer := syncSvc.New(kv, sessionStore, maintManager, zapLogger)
	synchronizer.Start()
	manager.Register("synchronizer", func(ctx context.Context) error {
		synchronizer.Stop()
		return nil
	})

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Session: apiHandler.NewSessionHandler(
			sessionStore, ctrl, navigator, events, cfg.Session.ActivityEvents, ctxAdapter, zapLogger),
		Maintenance: apiHandler.NewMaintenanceHandler(maintManager, ctxAdapter, zapLogger),
		Health:      apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	gate := middleware.SessionGate(middleware.GateConfig{
		Secret:         cfg.JWT.Secret,
		PublicPrefixes: cfg.Session.PublicPrefixes,
		Sessions:       sessionStore,
		Maintenance:    maintManager,
		RecordIntended: ctrl.RecordIntendedPath,
	}, zapLogger)
	r := router.New(handlers, gate)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
