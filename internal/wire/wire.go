// Package wire provides dependency injection for tradeflow.
// It creates singleton services with lazy initialization.
package wire

import (
	"context"
	"log"
	"log/slog"
	"sync"
	"time"

	"github.com/example/tradeflow/internal/adapters/classifier"
	"github.com/example/tradeflow/internal/adapters/push"
	"github.com/example/tradeflow/internal/adapters/sqlite"
	"github.com/example/tradeflow/internal/app"
	"github.com/example/tradeflow/internal/config"
	"github.com/example/tradeflow/internal/db"
	"github.com/example/tradeflow/internal/gateway"
	"github.com/example/tradeflow/internal/notifier"
	"github.com/example/tradeflow/internal/ports/primary"
	"github.com/example/tradeflow/internal/ports/secondary"
)

var (
	cfg = config.DefaultConfig()

	hub              *notifier.Hub
	executor         *app.DefaultEffectExecutor
	requestService   primary.RequestService
	lifecycleService primary.LifecycleService
	messageService   primary.MessageService
	triageService    *app.TriageServiceImpl
	logService       primary.LogService
	once             sync.Once
)

// Configure sets the configuration services are built from. It must be
// called before the first service is requested.
func Configure(c *config.Config) {
	if c != nil {
		cfg = c
	}
	db.Configure(db.Options{
		Driver:        cfg.Storage.Driver,
		Path:          cfg.Storage.Path,
		BusyTimeoutMS: cfg.Storage.BusyTimeoutMS,
	})
}

// Config returns the active configuration.
func Config() *config.Config {
	return cfg
}

// RequestService returns the singleton RequestService instance.
func RequestService() primary.RequestService {
	once.Do(initServices)
	return requestService
}

// LifecycleService returns the singleton LifecycleService instance.
func LifecycleService() primary.LifecycleService {
	once.Do(initServices)
	return lifecycleService
}

// MessageService returns the singleton MessageService instance.
func MessageService() primary.MessageService {
	once.Do(initServices)
	return messageService
}

// TriageService returns the singleton TriageService instance.
func TriageService() primary.TriageService {
	once.Do(initServices)
	return triageService
}

// PruneTriage drops advisory conversations idle for longer than maxAge.
func PruneTriage(maxAge time.Duration) int {
	once.Do(initServices)
	return triageService.PruneIdle(maxAge)
}

// LogService returns the singleton LogService instance.
func LogService() primary.LogService {
	once.Do(initServices)
	return logService
}

// Notifier returns the change-notification hub.
func Notifier() *notifier.Hub {
	once.Do(initServices)
	return hub
}

// DrainNotifications waits for in-flight push deliveries until ctx is done.
// It is a no-op when no service was ever built.
func DrainNotifications(ctx context.Context) error {
	if executor == nil {
		return nil
	}
	return executor.Drain(ctx)
}

// Gateway returns a new HTTP gateway over the singleton services.
func Gateway() *gateway.Server {
	once.Do(initServices)
	return gateway.New(cfg.Gateway, gateway.Services{
		Requests:  requestService,
		Lifecycle: lifecycleService,
		Messages:  messageService,
		Triage:    triageService,
		Logs:      logService,
		Notifier:  hub,
	}, slog.Default())
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	database, err := db.GetDB()
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	logger := slog.Default()

	tx := sqlite.NewTransactor(database)
	requestRepo := sqlite.NewRequestRepository(database)
	engagementRepo := sqlite.NewEngagementRepository(database)
	messageRepo := sqlite.NewMessageRepository(database)
	logRepo := sqlite.NewActivityLogRepository(database)
	logWriter := sqlite.NewLogWriterAdapter(logRepo)

	hub = notifier.New(
		notifier.WithLogger(logger),
		notifier.WithSubscriberBuffer(cfg.Notifier.SubscriberBuffer),
	)
	executor = app.NewEffectExecutor(hub, notificationSink(logger), logger,
		app.WithDeliveryTimeout(cfg.Notify.Timeout()),
		app.WithMaxDeliveries(cfg.Notify.MaxInFlight),
	)

	requests := app.NewRequestService(tx, requestRepo, logWriter, executor)
	requestService = requests
	lifecycleService = app.NewLifecycleService(tx, requestRepo, engagementRepo, requests, logWriter, executor, logger)
	messageService = app.NewMessageService(tx, messageRepo, engagementRepo, executor, logger)
	triageService = app.NewTriageService(triageClassifier(logger), requests, app.TriageSettings{
		MinExchangesForCTA: cfg.Triage.MinExchangesForCTA,
		WindowSize:         cfg.Triage.WindowSize,
		SummaryLimit:       cfg.Triage.SummaryLimit,
		ConfidenceFloor:    cfg.Triage.ConfidenceFloor,
	}, logger)
	logService = app.NewLogService(logRepo)
}

// notificationSink picks Telegram when configured and falls back to the log.
func notificationSink(logger *slog.Logger) secondary.NotificationSink {
	tg := cfg.Notify.Telegram
	if !tg.Enabled || tg.Token == "" {
		return push.NewLogSink(logger)
	}
	bot, err := push.NewTelegramBot(tg.Token, cfg.Notify.Timeout())
	if err != nil {
		logger.Warn("telegram unavailable, logging notifications instead", "error", err)
		return push.NewLogSink(logger)
	}
	sink, err := push.NewTelegramSink(bot, tg.Recipients, logger)
	if err != nil {
		logger.Warn("telegram recipients invalid, logging notifications instead", "error", err)
		return push.NewLogSink(logger)
	}
	return sink
}

// triageClassifier picks the model-backed classifier when one is configured.
func triageClassifier(logger *slog.Logger) secondary.Classifier {
	cc := cfg.Classifier
	if cc.Provider != config.ProviderOpenAI {
		return classifier.NewStaticClassifier()
	}
	m, err := classifier.NewOpenAIModel(context.Background(), cc)
	if err != nil {
		logger.Warn("classifier unavailable, using offline rules", "error", err)
		return classifier.NewStaticClassifier()
	}
	return classifier.NewEinoClassifier(m, time.Duration(cc.TimeoutSeconds)*time.Second, logger)
}
