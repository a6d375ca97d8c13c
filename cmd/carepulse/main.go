// cmd/carepulse/main.go
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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	appointmentactions "carepulse/internal/actions/appointment"
	patientactions "carepulse/internal/actions/patient"
	"carepulse/internal/cache"
	"carepulse/internal/catalog"
	awsclients "carepulse/internal/common/aws"
	"carepulse/internal/common/config"
	"carepulse/internal/common/database"
	"carepulse/internal/common/logger"
	"carepulse/internal/common/observability"
	"carepulse/internal/common/validation"
	"carepulse/internal/forms/render"
	"carepulse/internal/notify"
	"carepulse/internal/store"
	"carepulse/internal/store/badgerstore"
	"carepulse/internal/store/elastic"
	"carepulse/internal/store/postgres"
	"carepulse/internal/web"
)

// retryWithBackoff attempts to execute a function with exponential backoff
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

// openStore connects the configured document store. The returned closer
// releases the underlying connection.
func openStore(ctx context.Context, cfg *config.Config, zapLog *zap.Logger, ready map[string]web.ReadinessCheck) (store.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		var pg *database.PostgresClient
		err := retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			return nil, nil, err
		}
		st := postgres.New(pg.DB)
		if err := st.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("ensure documents schema: %w", err)
		}
		ready["postgres"] = pg.Ping
		return st, func() { pg.Close() }, nil

	case config.DriverElasticsearch:
		var es *database.ElasticsearchClient
		err := retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			return nil, nil, err
		}
		ready["elasticsearch"] = es.Ping
		return elastic.New(es.Client), func() {}, nil

	case config.DriverBadger:
		bg, err := database.NewBadger(cfg.Database.Badger)
		if err != nil {
			return nil, nil, err
		}
		return badgerstore.New(bg.DB), func() { bg.Close() }, nil
	}
	return nil, nil, fmt.Errorf("store.driver %q is not supported", cfg.Store.Driver)
}

func newNotifier(ctx context.Context, cfg *config.Config, log logger.Logger, zapLog *zap.Logger) *notify.Notifier {
	nc := notify.Config{
		EmailEnabled: cfg.Notifications.Email.Enabled,
		SMSEnabled:   cfg.Notifications.SMS.Enabled,
		FromEmail:    cfg.Notifications.Email.FromEmail,
	}

	var sesClient notify.SESService
	if nc.EmailEnabled {
		client, err := awsclients.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Error("SES client unavailable, email disabled", zap.Error(err))
			nc.EmailEnabled = false
		} else {
			sesClient = client
		}
	}

	var snsClient notify.SNSService
	if nc.SMSEnabled {
		client, err := awsclients.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Error("SNS client unavailable, SMS disabled", zap.Error(err))
			nc.SMSEnabled = false
		} else {
			snsClient = client
		}
	}

	return notify.New(nc, sesClient, snsClient, log)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting CarePulse...",
		zap.String("environment", cfg.App.Environment),
		zap.String("storeDriver", cfg.Store.Driver),
	)

	location, err := time.LoadLocation(cfg.App.TimeZone)
	if err != nil {
		zapLog.Fatal("time zone load failed", zap.Error(err))
	}

	obs, err := observability.New(cfg.Observability.ServiceName, prometheus.DefaultRegisterer, cfg.Observability.TracingEnabled)
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}
	defer obs.Shutdown(context.Background())

	ctx := context.Background()
	ready := map[string]web.ReadinessCheck{}

	// --- Document store ---
	st, closeStore, err := openStore(ctx, cfg, zapLog, ready)
	if err != nil {
		zapLog.Fatal("document store failed", zap.Error(err))
	}
	defer closeStore()
	zapLog.Info("Document store connected successfully", zap.String("driver", cfg.Store.Driver))

	// --- Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	ready["redis"] = redis.Ping
	zapLog.Info("Redis connected successfully")

	views := cache.NewViewCache(redis.Client, config.GetDuration(cfg.Cache.ViewTTL))
	locks := cache.NewSubmissionLocks(redis.Client, config.GetDuration(cfg.Cache.SubmissionLockTTL))

	// --- Reference data and form tooling ---
	cat, err := catalog.Default()
	if cfg.Catalog.Path != "" {
		cat, err = catalog.Load(cfg.Catalog.Path)
	}
	if err != nil {
		zapLog.Fatal("catalog load failed", zap.Error(err))
	}

	validator, err := validation.Default()
	if err != nil {
		zapLog.Fatal("schema compile failed", zap.Error(err))
	}

	renderer, err := render.New(
		render.WithDefaultRegion(cfg.Phone.DefaultRegion),
		render.WithLocation(location),
	)
	if err != nil {
		zapLog.Fatal("renderer init failed", zap.Error(err))
	}

	// --- Persistence actions ---
	patients := patientactions.NewHandler(patientactions.LoadConfig(cfg), st, views, obs, log)
	appointments := appointmentactions.NewHandler(
		appointmentactions.LoadConfig(cfg),
		st, views, newNotifier(ctx, cfg, log, zapLog), obs, log,
	)

	// --- HTTP ---
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv, err := web.NewServer(&web.Config{Location: location}, web.Deps{
		Patients:      patients,
		Appointments:  appointments,
		Catalog:       cat,
		Renderer:      renderer,
		Validator:     validator,
		Guard:         locks,
		Observability: obs,
		Readiness:     ready,
	}, log)
	if err != nil {
		zapLog.Fatal("web server init failed", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      srv.Router(),
		ReadTimeout:  config.GetDuration(cfg.HTTP.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.HTTP.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.HTTP.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.HTTP.ShutdownTimeout))
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}

	zapLog.Info("CarePulse stopped gracefully")
}
