// Package app assembles the dispatch service from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/techdispatch/api"
	apidispatch "github.com/kilianp07/techdispatch/api/dispatch"
	"github.com/kilianp07/techdispatch/api/jobs"
	"github.com/kilianp07/techdispatch/api/technicians"
	"github.com/kilianp07/techdispatch/config"
	"github.com/kilianp07/techdispatch/core/clock"
	"github.com/kilianp07/techdispatch/core/directory"
	"github.com/kilianp07/techdispatch/core/dispatch"
	"github.com/kilianp07/techdispatch/core/dispatch/logging"
	"github.com/kilianp07/techdispatch/core/events"
	coremetrics "github.com/kilianp07/techdispatch/core/metrics"
	coremon "github.com/kilianp07/techdispatch/core/monitoring"
	"github.com/kilianp07/techdispatch/core/notify"
	"github.com/kilianp07/techdispatch/core/pricing"
	"github.com/kilianp07/techdispatch/core/store"
	"github.com/kilianp07/techdispatch/infra/logger"
	"github.com/kilianp07/techdispatch/infra/metrics"
	infmon "github.com/kilianp07/techdispatch/infra/monitoring"
	infmqtt "github.com/kilianp07/techdispatch/infra/mqtt"
	infstore "github.com/kilianp07/techdispatch/infra/store"
	"github.com/kilianp07/techdispatch/infra/telemetry"
	"github.com/kilianp07/techdispatch/internal/eventbus"
)

// Service owns the coordinator and every adapter around it.
type Service struct {
	Coordinator *dispatch.Coordinator
	Directory   *directory.Directory

	cfg       *config.Config
	log       logger.Logger
	bus       eventbus.EventBus[events.Event]
	sink      coremetrics.MetricsSink
	store     store.JobStore
	client    *infmqtt.PahoClient
	telemetry *telemetry.Manager
	requests  chan dispatch.SubmitRequest
}

// New builds a Service from cfg. No goroutine is started before Run.
func New(cfg *config.Config) (*Service, error) {
	log := logger.New("service")
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	mon, err := infmon.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	dir := directory.New()
	if cfg.Seed.Technicians != "" {
		techs, err := directory.LoadSeed(cfg.Seed.Technicians)
		if err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
		if err := dir.Seed(techs); err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
		log.Infof("loaded %d technicians from %s", len(techs), cfg.Seed.Technicians)
	}

	policy, err := dispatch.NewPolicy(cfg.Dispatch)
	if err != nil {
		return nil, err
	}
	prices, err := pricing.NewStatic(cfg.Pricing)
	if err != nil {
		return nil, fmt.Errorf("pricing: %w", err)
	}

	s := &Service{cfg: cfg, log: log, Directory: dir}
	var notifier notify.Notifier = notify.NopNotifier{}
	alerters := notify.MultiAlerter{infmon.NewAlerter(mon)}
	if cfg.MQTT.Enabled() {
		s.client, err = infmqtt.NewPahoClient(cfg.MQTT, "dispatch")
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		n := infmqtt.NewNotifier(s.client)
		notifier = n
		alerters = append(alerters, n)
	}

	coord, err := dispatch.NewCoordinator(dir, policy, notifier, alerters, clock.Real(), logger.New("dispatch"))
	if err != nil {
		s.closeClient()
		return nil, err
	}
	s.Coordinator = coord
	coord.SetPricing(prices)

	if err := s.openStores(); err != nil {
		_ = s.Close()
		return nil, err
	}

	s.bus = eventbus.New[events.Event]()
	coord.SetEventBus(s.bus)
	if err := coord.Restore(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}
	s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("metrics sinks: %w", err)
	}

	if s.client != nil && cfg.Telemetry.Enabled {
		s.telemetry, err = telemetry.NewManager(cfg.Telemetry, dir, prometheus.DefaultRegisterer)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("telemetry: %w", err)
		}
	}
	return s, nil
}

func (s *Service) openStores() error {
	switch s.cfg.Store.Backend {
	case "sqlite":
		st, err := infstore.NewSQLiteStore(s.cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("job store: %w", err)
		}
		s.store = st
		s.Coordinator.SetJobStore(st)
	default:
		s.store = store.NewMemoryStore()
		s.Coordinator.SetJobStore(s.store)
	}
	journal, err := logging.Open(s.cfg.Dispatch.Journal)
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	if journal != nil {
		s.Coordinator.SetLogStore(journal)
	}
	return nil
}

// Handler returns the REST API. Every /api route goes through the bearer
// check when a token is configured.
func (s *Service) Handler() http.Handler {
	apiMux := http.NewServeMux()
	jobs.NewHandler(s.Coordinator).Register(apiMux)
	technicians.NewHandler(s.Directory).Register(apiMux)
	if journal := s.Coordinator.Journal(); journal != nil {
		apiMux.Handle("GET /api/dispatch/logs", apidispatch.NewLogHandler(journal, ""))
	}
	apiMux.Handle("GET /api/dispatch/stats", apidispatch.NewStatsHandler(s.Coordinator, ""))

	root := http.NewServeMux()
	root.Handle("/api/", api.RequireBearer(s.cfg.HTTP.Token, apiMux))
	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return api.Recover(root)
}

// Run starts the adapters and blocks until ctx is canceled or a listener
// fails.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errc := make(chan error, 2)

	metrics.StartEventCollector(ctx, s.bus, s.sink)
	interval := time.Duration(s.cfg.Metrics.FleetInterval) * time.Second
	metrics.StartFleetReporter(ctx, s.Directory, s.sink, interval)
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			defer coremon.Recover()
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				errc <- fmt.Errorf("prom server: %w", err)
			}
		}()
	}

	if s.client != nil {
		if err := s.startMQTT(ctx); err != nil {
			return err
		}
	}

	if addr := s.cfg.HTTP.Addr; addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           s.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(s.cfg.HTTP.ReadTimeoutSeconds) * time.Second,
			WriteTimeout:      time.Duration(s.cfg.HTTP.WriteTimeoutSeconds) * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				s.log.Errorf("http shutdown: %v", err)
			}
		}()
		go func() {
			defer coremon.Recover()
			s.log.Infof("REST API listening on %s", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errc:
		return err
	}
}

func (s *Service) startMQTT(ctx context.Context) error {
	listener := infmqtt.NewResponseListener(s.Coordinator, s.client)
	if err := listener.Start(s.client); err != nil {
		return fmt.Errorf("response listener: %w", err)
	}
	s.requests = make(chan dispatch.SubmitRequest, 64)
	go s.Coordinator.Run(ctx, s.requests)
	if err := infmqtt.NewRequestIntake(ctx, s.requests).Start(s.client); err != nil {
		return fmt.Errorf("request intake: %w", err)
	}
	if s.telemetry != nil {
		if err := s.telemetry.Start(ctx, s.client); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}
	return nil
}

func (s *Service) closeClient() {
	if s.client != nil {
		s.client.Disconnect()
		s.client = nil
	}
}

// Close stops timers, flushes the journal and releases connections.
func (s *Service) Close() error {
	var errs []error
	if s.Coordinator != nil {
		errs = append(errs, s.Coordinator.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	s.closeClient()
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}
