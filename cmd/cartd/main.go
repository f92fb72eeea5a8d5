package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/nursingcollective/cartengine/api/controllers"
	"github.com/nursingcollective/cartengine/api/routes"
	"github.com/nursingcollective/cartengine/internal/analytics"
	"github.com/nursingcollective/cartengine/internal/cart"
	"github.com/nursingcollective/cartengine/pkg/auth"
	"github.com/nursingcollective/cartengine/pkg/cartapi"
	"github.com/nursingcollective/cartengine/pkg/config"
	"github.com/nursingcollective/cartengine/pkg/instance"
	"github.com/nursingcollective/cartengine/pkg/logger"
	"github.com/nursingcollective/cartengine/pkg/metrics"
	"github.com/nursingcollective/cartengine/pkg/pubsub"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "cartd"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cartd",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "cartd stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	local, err := openLocalStore(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer func() {
		multierr.AppendInto(&err, local.Close())
	}()

	session, err := auth.NewSession(local, logg)
	if err != nil {
		return err
	}

	apiClient, err := cartapi.NewClient(session,
		cartapi.WithBaseURL(cfg.API.BaseURL),
		cartapi.WithTimeout(cfg.API.Timeout),
		cartapi.WithLogger(logg),
	)
	if err != nil {
		return err
	}

	pingers := map[string]controllers.Pinger{"storage": local}

	var events cart.EventSink
	var publisher *analytics.Publisher
	var topic *gcppubsub.Publisher
	if cfg.Analytics.Enabled {
		var psClient *pubsub.Client
		psClient, err = pubsub.NewClient(ctx, cfg.Analytics, logg)
		if err != nil {
			return err
		}
		defer func() {
			multierr.AppendInto(&err, psClient.Close())
		}()

		topic = psClient.EventsPublisher()
		publisher, err = analytics.NewPublisher(topic, cfg.Analytics.PublishTimeout, logg)
		if err != nil {
			return err
		}
		events = publisher
		pingers["pubsub"] = psClient
	}

	engine, err := cart.New(cart.Params{
		Remote:       cart.NewAPIStore(apiClient),
		Local:        local,
		Auth:         session,
		Events:       events,
		Metrics:      metrics.NewCartMetrics(prometheus.DefaultRegisterer),
		Logger:       logg,
		GuestCartKey: cfg.Storage.GuestCartKey,
	})
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			Engine:   engine,
			Session:  session,
			Pingers:  pingers,
			Gatherer: prometheus.DefaultGatherer,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":            cfg.App.Env,
		"addr":           addr,
		"storage_driver": cfg.Storage.NormalizedDriver(),
		"analytics":      cfg.Analytics.Enabled,
		"instance":       instance.GetID(),
	})

	// prime the snapshot before serving
	if res := engine.SyncFromServer(ctx); res.Cause != nil {
		logg.Warn(logg.WithField(logCtx, "outcome", res.Outcome.String()), "initial cart sync incomplete")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logg.Info(logCtx, "starting cart gateway")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logg.Info(logCtx, "shutting down cart gateway")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()

		shutdownErr := server.Shutdown(shutdownCtx)
		if publisher != nil {
			multierr.AppendInto(&shutdownErr, publisher.Flush(shutdownCtx))
		}
		if topic != nil {
			topic.Stop()
		}
		return shutdownErr
	})

	return g.Wait()
}
