// cmd/bot/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"barbearia-twowell/internal/calendar"
	commonaws "barbearia-twowell/internal/common/aws"
	"barbearia-twowell/internal/common/camunda"
	"barbearia-twowell/internal/common/config"
	"barbearia-twowell/internal/common/database"
	"barbearia-twowell/internal/common/logger"
	"barbearia-twowell/internal/common/observability"
	"barbearia-twowell/internal/datetime"
	"barbearia-twowell/internal/journal"
	"barbearia-twowell/internal/notify"
	"barbearia-twowell/internal/router"
	"barbearia-twowell/internal/server"
	"barbearia-twowell/internal/session"
	"barbearia-twowell/internal/transport"
	"barbearia-twowell/internal/transport/whatsapp"
)

// retryWithBackoff attempts to execute a function with exponential backoff.
// Only used while booting; the turn path never retries.
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).With(map[string]interface{}{
		"app":     cfg.App.Name,
		"version": cfg.App.Version,
	})

	zapLog.Info("Starting booking bot", zap.String("environment", cfg.App.Environment))

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := map[string]server.Pinger{}

	// --- Session store ---
	var sessions session.Store
	ttl := config.GetDuration(cfg.Session.TTL)
	switch cfg.Session.Backend {
	case "redis":
		var rdb *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.ConnectRedis(ctx, cfg.Database.Redis)
			return err
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		deps["redis"] = rdb
		sessions = session.NewRedisStore(rdb.Client, cfg.Session.KeyPrefix, ttl)
		zapLog.Info("Redis session store connected")
	default:
		sessions = session.NewMemoryStore(ttl)
	}

	// --- Calendar ---
	gateway, err := calendar.NewGoogleGateway(ctx, cfg.Calendar, log)
	if err != nil {
		zapLog.Fatal("calendar gateway init failed", zap.Error(err))
	}

	// --- WhatsApp outbound ---
	wa, err := whatsapp.NewClient(cfg.WhatsApp, nil, log)
	if err != nil {
		zapLog.Fatal("whatsapp client init failed", zap.Error(err))
	}
	replier := transport.NewReplier(wa, config.GetDuration(cfg.Bot.TypingDelay), log)

	parser, err := datetime.NewParser()
	if err != nil {
		zapLog.Fatal("timezone load failed", zap.Error(err))
	}

	opts := []router.Option{router.WithObservability(obs)}

	// --- Turn journal ---
	if cfg.Journal.Enabled {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.ConnectPostgres(ctx, cfg.Database.Postgres)
			return err
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		deps["postgres"] = pg

		j, err := journal.NewPostgresJournal(pg.DB, cfg.Journal.Table)
		if err != nil {
			zapLog.Fatal("journal init failed", zap.Error(err))
		}
		if err := j.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("journal schema failed", zap.Error(err))
		}
		opts = append(opts, router.WithJournal(j))
		zapLog.Info("Turn journal enabled", zap.String("table", j.Table()))
	}

	// --- Owner notifications ---
	sinks, closeSinks, err := buildSinks(ctx, cfg, deps, zapLog)
	if err != nil {
		zapLog.Fatal("notification setup failed", zap.Error(err))
	}
	defer closeSinks()
	if len(sinks) > 0 {
		notifier := notify.NewNotifier(log, 0, sinks...)
		opts = append(opts, router.WithNotifier(notifier))
		zapLog.Info("Owner notifications enabled", zap.Strings("channels", notifier.Sinks()))
	}

	bot := router.New(router.Config{
		BookingSummary: cfg.Bot.BookingSummary,
		FallbackName:   cfg.Bot.FallbackName,
	}, parser, sessions, gateway, replier, log, opts...)

	dispatcher := transport.NewDispatcher(bot, cfg.Bot.QueueSize, log,
		transport.WithLimiter(transport.NewSenderLimiter(cfg.Bot.RateLimitPerMin, cfg.Bot.RateLimitBurst)),
		transport.WithTurnTimeout(config.GetDuration(cfg.Bot.TurnTimeout)),
	)

	webhook := whatsapp.NewWebhookHandler(cfg.WhatsApp.VerifyToken, cfg.WhatsApp.AppSecret, dispatcher, log)
	if cfg.WhatsApp.AppSecret == "" {
		zapLog.Warn("whatsapp.app_secret is empty; webhook signatures are not checked")
	}

	srv := server.New(server.Options{
		Address:      cfg.Server.Address,
		Webhook:      webhook,
		Ready:        dispatcher.Ready(),
		Dependencies: deps,
	}, log)

	// The dispatcher keeps draining after ctx is cancelled until Close.
	runDone := make(chan error, 1)
	go func() { runDone <- dispatcher.Run(context.Background()) }()

	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		zapLog.Info("Shutdown signal received")
	case err := <-srvErr:
		if err != nil {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}

	// --- Graceful Shutdown ---
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}

	dispatcher.Close()
	select {
	case <-dispatcher.Done():
		if err := <-runDone; err != nil {
			zapLog.Error("Dispatcher stopped with error", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		zapLog.Warn("Dispatcher did not drain before the shutdown deadline")
	}

	zapLog.Info("Booking bot stopped gracefully")
}

// buildSinks creates the enabled owner notification channels. The returned
// func releases any connections they hold. The Zeebe client joins deps so
// /ready reports it.
func buildSinks(ctx context.Context, cfg *config.Config, deps map[string]server.Pinger, zapLog *zap.Logger) ([]notify.Sink, func(), error) {
	n := cfg.Notifications
	var sinks []notify.Sink
	closers := []func(){}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if n.Email.Enabled || n.SMS.Enabled {
		awsCfg, err := commonaws.LoadConfig(ctx, n.AWS.Region)
		if err != nil {
			return nil, closeAll, err
		}
		if n.Email.Enabled {
			sinks = append(sinks, notify.NewEmailSink(commonaws.NewSESClient(awsCfg, n.Email.FromEmail), n.Email.To))
		}
		if n.SMS.Enabled {
			sinks = append(sinks, notify.NewSMSSink(commonaws.NewSNSClient(awsCfg, n.SMS.SenderID), n.SMS.PhoneNumber))
		}
	}

	if n.Workflow.Enabled {
		var zc *camunda.Client
		err := retryWithBackoff(func() error {
			var err error
			zc, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         n.Workflow.GatewayAddress,
				UsePlaintextConnection: n.Workflow.Plaintext,
				ConnectionTimeout:      10 * time.Second,
				RequestTimeout:         config.GetDuration(n.Workflow.RequestTimeout),
				MessageTTL:             time.Hour,
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, func() {
			if err := zc.Close(); err != nil {
				zapLog.Error("Error closing Zeebe client", zap.Error(err))
			}
		})
		deps["zeebe"] = zc
		sinks = append(sinks, notify.NewWorkflowSink(zc, n.Workflow.MessageName))
		zapLog.Info("Zeebe client connected successfully")
	}

	return sinks, closeAll, nil
}
