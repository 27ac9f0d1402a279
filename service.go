package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var Version = "1.0.0"

// Daemon runs a single card behind the HTTP service.
type Daemon struct {
	logger *slog.Logger

	configProvider ConfigProvider
	config         *atomic.Pointer[Configuration]

	subscriber Subscriber
	clock      Clock
	gatherer   prometheus.Gatherer

	card   *Card
	server *Server

	panicHandler PanicHandler
}

func NewDaemon(logger *slog.Logger, configProvider ConfigProvider) *Daemon {
	return &Daemon{
		logger: logger,

		configProvider: configProvider,
		config:         &atomic.Pointer[Configuration]{},

		clock: SystemClock{},

		panicHandler: nil,
	}
}

// WithSubscriber replaces the subscriber otherwise built from the feed configuration.
func (daemon *Daemon) WithSubscriber(subscriber Subscriber) *Daemon {
	daemon.subscriber = subscriber

	return daemon
}

func (daemon *Daemon) WithClock(clock Clock) *Daemon {
	daemon.clock = clock

	return daemon
}

func (daemon *Daemon) WithPanicHandler(panicHandler PanicHandler) *Daemon {
	daemon.panicHandler = panicHandler

	return daemon
}

// WithPrometheusAnalytics registers the metrics with registry and serves them
// on a dedicated server.
func (daemon *Daemon) WithPrometheusAnalytics(
	server *http.Server,
	registry *prometheus.Registry,
	opts promhttp.HandlerOpts,
) *Daemon {
	if registry == nil {
		registry = prometheus.NewPedanticRegistry()
	}

	registry.MustRegister(
		ReconcilerMetrics.SnapshotsTotal,
		ReconcilerMetrics.TicksTotal,
		ReconcilerMetrics.State,
		ReconcilerMetrics.ActiveTickers,

		FeedMetrics.ErrorsTotal,
		FeedMetrics.Latency,
		FeedMetrics.CardStatus,
	)

	daemon.gatherer = registry

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, opts))

	server.Handler = mux

	go func() {
		daemon.logger.Info("Starting Prometheus HTTP server", "host", server.Addr)

		var err error

		if server.TLSConfig != nil {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			daemon.logger.Error("Prometheus HTTP server stopped", "error", err)
		}
	}()

	return daemon
}

func (daemon *Daemon) Config() *Configuration {
	return daemon.config.Load()
}

func (daemon *Daemon) Card() *Card {
	return daemon.card
}

func (daemon *Daemon) Server() *Server {
	return daemon.server
}

// Start loads the configuration and mounts the card for the configured user.
func (daemon *Daemon) Start(ctx context.Context) error {
	daemon.logger.Info("Starting Presence Kit", "version", Version)

	if err := daemon.getConfig(ctx); err != nil {
		return fmt.Errorf("failed to get config: %w", err)
	}

	config := daemon.config.Load()

	if daemon.subscriber == nil {
		subscriber, err := NewSubscriber(daemon.logger, config.Feed)
		if err != nil {
			return err
		}

		daemon.subscriber = subscriber
	}

	opts := []CardOption{
		WithCardClock(daemon.clock),
		WithCardTickInterval(config.TickInterval.OrDefault(DefaultTickInterval)),
	}

	if daemon.panicHandler != nil {
		opts = append(opts, WithPanicHandler(daemon.panicHandler))
	}

	daemon.card = NewCard(daemon.logger, daemon.subscriber, config.Display.DisplayConfig(), opts...)
	daemon.server = NewServer(ctx, daemon.logger, daemon.card, daemon.gatherer)

	err := daemon.card.Mount(ctx, config.UserID)
	if err != nil {
		return fmt.Errorf("failed to mount card: %w", err)
	}

	return nil
}

// Serve runs the HTTP service until ctx is done.
func (daemon *Daemon) Serve(ctx context.Context) error {
	config := daemon.config.Load()
	if config == nil || daemon.server == nil {
		return ErrCardNotMounted
	}

	if config.HTTP.Host == "" {
		<-ctx.Done()

		return nil
	}

	errs := make(chan error, 1)

	go func() {
		errs <- daemon.server.ListenAndServe(config.HTTP.Host)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		return daemon.server.Shutdown(context.WithoutCancel(ctx))
	}
}

func (daemon *Daemon) Stop(_ context.Context) {
	daemon.logger.Info("Stopping Presence Kit")

	if daemon.card != nil {
		daemon.card.Unmount()
	}
}

func (daemon *Daemon) getConfig(ctx context.Context) error {
	daemon.logger.Debug("Getting config")

	config, err := daemon.configProvider.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to get config: %w", err)
	}

	config.ApplyEnvironment()

	err = config.Validate()
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	daemon.config.Store(config)

	return nil
}
