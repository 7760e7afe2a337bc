package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/maintenancehub/escalation-engine/internal/api"
	"github.com/maintenancehub/escalation-engine/internal/config"
	"github.com/maintenancehub/escalation-engine/internal/db"
	"github.com/maintenancehub/escalation-engine/internal/domain"
	"github.com/maintenancehub/escalation-engine/internal/escalation"
	"github.com/maintenancehub/escalation-engine/internal/metrics"
	"github.com/maintenancehub/escalation-engine/internal/notify"
	"github.com/maintenancehub/escalation-engine/internal/pm"
	"github.com/maintenancehub/escalation-engine/internal/provider"
	"github.com/maintenancehub/escalation-engine/internal/ratelimiter"
	"github.com/maintenancehub/escalation-engine/internal/repository"
	"github.com/maintenancehub/escalation-engine/internal/scheduler"
	"github.com/maintenancehub/escalation-engine/internal/service"
	"github.com/maintenancehub/escalation-engine/internal/worker"
)

func main() {
	logger := newLogger(os.Getenv("APP_ENV"))
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.MigrationsPath, db.MigrationURL(cfg.DatabaseURL)); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	clock := domain.RealClock{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	jobRepo := repository.NewPgJobRepository(pool)
	escRepo := repository.NewPgEscalationRepository(pool)
	notifRepo := repository.NewPgNotificationRepository(pool)
	prefRepo := repository.NewPgPreferenceRepository(pool)
	subRepo := repository.NewPgSubscriptionRepository(pool)
	pmRepo := repository.NewPgPMRepository(pool)
	dir := repository.NewPgDirectory(pool)

	transports, err := newTransports(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to configure delivery channels", zap.Error(err))
	}
	limiter := ratelimiter.New(map[domain.Channel]int{
		domain.ChannelPush:  cfg.PushRateLimit,
		domain.ChannelEmail: cfg.EmailRateLimit,
		domain.ChannelSMS:   cfg.SMSRateLimit,
	})

	engine := escalation.NewEngine(escRepo, dir, clock, cfg.EscalationMaxLevel, logger, m.EscalationHooks())
	generator := pm.NewGenerator(pmRepo, clock, logger)
	resolver := notify.NewResolver(prefRepo, cfg.Location(), logger)
	dispatcher := notify.NewDispatcher(notifRepo, subRepo, jobRepo, dir, resolver, transports, limiter, clock, logger, m.DeliveryHooks())

	registry := worker.NewRegistry()
	registry.Register(domain.JobEscalationCheck, engine.Handle)
	registry.Register(domain.JobPMGeneration, generator.Handle)
	registry.Register(domain.JobNotificationSend, dispatcher.Handle)

	jobSvc := service.NewJobService(jobRepo, clock, logger)

	// ---- background workers ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	var wake chan struct{}
	if cfg.ListenNotify {
		wake = make(chan struct{}, cfg.WorkerCount)
		go db.Listen(workerCtx, pool, db.JobChannel, wake, logger)
	}

	workers := worker.NewPool(cfg, jobRepo, registry, clock, wake, logger, m.WorkerHooks())
	workers.Start(workerCtx)

	reaper := worker.NewStaleReaper(jobRepo, clock, cfg.StaleJobTimeout, cfg.ReapInterval, logger)
	go reaper.Run(workerCtx)

	depth := worker.NewDepthWorker(jobRepo, 5*time.Second, m.ObserveQueueDepth, logger)
	go depth.Run(workerCtx)

	// ---- scheduler ----
	var lock scheduler.TickLock
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		lock = scheduler.NewRedisTickLock(rdb, instanceName(cfg))
	}
	trigger := scheduler.NewTrigger(jobSvc, lock, clock, logger)
	if err := trigger.Schedule(cfg.EscalationSchedule, domain.JobEscalationCheck); err != nil {
		logger.Fatal("invalid escalation schedule", zap.Error(err))
	}
	if err := trigger.Schedule(cfg.PMSchedule, domain.JobPMGeneration); err != nil {
		logger.Fatal("invalid pm schedule", zap.Error(err))
	}
	trigger.Start(workerCtx)

	// ---- HTTP server ----
	router := api.NewRouter(api.Services{
		Jobs:          jobSvc,
		Inbox:         service.NewInboxService(notifRepo, logger),
		Subscriptions: service.NewSubscriptionService(subRepo, clock, logger),
		Preferences:   service.NewPreferenceService(prefRepo, clock),
		Escalations:   service.NewEscalationService(escRepo, repository.NewPgRuleRepository(pool), clock, logger),
		DB:            pool,
	}, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Stop producing new jobs.
	trigger.Stop()

	// 3. Signal all workers to stop claiming.
	cancelWorkers()

	// 4. Wait for in-flight jobs to finish.
	workers.Wait()

	logger.Info("server stopped cleanly")
}

func newLogger(env string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func instanceName(cfg *config.Config) string {
	if cfg.InstanceID != "" {
		return cfg.InstanceID
	}
	host, err := os.Hostname()
	if err != nil {
		return "worker"
	}
	return host
}

// newTransports builds the senders for every configured channel. A channel
// without credentials stays nil and is skipped by the dispatcher.
func newTransports(ctx context.Context, cfg *config.Config, logger *zap.Logger) (notify.Transports, error) {
	t := notify.Transports{PushFanout: cfg.PushFanout}

	if cfg.PushEnabled() {
		t.Push = provider.NewWebPushSender(provider.WebPushConfig{
			PublicKey:  cfg.VAPIDPublicKey,
			PrivateKey: cfg.VAPIDPrivateKey,
			Subject:    cfg.VAPIDSubject,
			TTL:        time.Duration(cfg.PushTTL) * time.Second,
			Timeout:    cfg.PushTimeout,
		}, nil)
	} else {
		logger.Warn("VAPID keys not set, push delivery disabled")
	}

	if !cfg.EmailEnabled() && !cfg.SMSEnable {
		return t, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return t, err
	}
	if cfg.EmailEnabled() {
		t.Email = provider.NewSESEmailer(ses.NewFromConfig(awsCfg), cfg.EmailFrom)
	}
	if cfg.SMSEnable {
		t.SMS = provider.NewSNSTexter(sns.NewFromConfig(awsCfg))
	}
	return t, nil
}
