// Package server wires storage, broker, read-model index, reminder
// service, actor host and command pipeline into one runnable daemon.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gracevcs/grace-server/pkg/actorhost"
	"github.com/gracevcs/grace-server/pkg/actors"
	"github.com/gracevcs/grace-server/pkg/cache"
	"github.com/gracevcs/grace-server/pkg/config"
	"github.com/gracevcs/grace-server/pkg/events"
	"github.com/gracevcs/grace-server/pkg/log"
	"github.com/gracevcs/grace-server/pkg/metrics"
	"github.com/gracevcs/grace-server/pkg/pipeline"
	"github.com/gracevcs/grace-server/pkg/readmodel"
	"github.com/gracevcs/grace-server/pkg/resolve"
	"github.com/gracevcs/grace-server/pkg/storage"
	"github.com/gracevcs/grace-server/pkg/timers"
)

// Server owns the component lifecycles. Start brings them up in
// dependency order; Stop tears them down in reverse.
type Server struct {
	cfg config.Config

	store     *storage.BoltStore
	broker    *events.Broker
	index     *readmodel.Index
	host      *actorhost.Host
	reminders *timers.ReminderService
	pipeline  *pipeline.Pipeline

	httpSrv  *http.Server
	listener net.Listener
	checks   []check
}

// New builds a stopped server from the configuration.
func New(cfg config.Config) (*Server, error) {
	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	broker := events.NewBroker()
	index, err := readmodel.NewIndex(store.DB(), broker)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open read-model index: %w", err)
	}

	host := actorhost.NewHost(cfg.ActorIdleAfter.Std())
	reminders, err := timers.NewReminderService(store.DB(), host, cfg.ReminderTick.Std())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open reminder store: %w", err)
	}

	deps := &actors.Deps{
		Store:            store,
		Broker:           broker,
		Host:             host,
		Reminders:        reminders,
		Index:            index,
		DefaultRetention: cfg.DefaultRetention,
	}
	actors.Register(host, deps)

	existence := cache.NewExistenceCache(cfg.CacheTTL.Std())
	resolver := resolve.New(host, existence)

	s := &Server{
		cfg:       cfg,
		store:     store,
		broker:    broker,
		index:     index,
		host:      host,
		reminders: reminders,
		pipeline:  pipeline.New(host, resolver, index),
	}
	s.checks = []check{
		{name: "storage", probe: s.probeStorage},
		{name: "broker", probe: s.probeBroker},
		{name: "reminders", probe: s.probeReminders},
	}
	return s, nil
}

// Pipeline exposes the command pipeline to embedders and tests.
func (s *Server) Pipeline() *pipeline.Pipeline { return s.pipeline }

// Addr reports the bound health address, empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start brings every component up and begins serving the health and
// metrics endpoints.
func (s *Server) Start() error {
	logger := log.WithComponent("server")

	s.broker.Start()
	s.index.Start()
	s.host.Start()
	s.reminders.Start()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthHandler)
	mux.HandleFunc("/readyz", s.readyHandler)
	mux.Handle("/metrics", metrics.Handler())

	listener, err := net.Listen("tcp", s.cfg.HealthAddr)
	if err != nil {
		s.stopComponents()
		return fmt.Errorf("listen %s: %w", s.cfg.HealthAddr, err)
	}
	s.listener = listener
	s.httpSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if serveErr := s.httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error().Err(serveErr).Msg("health server stopped")
		}
	}()

	logger.Info().
		Str("data_dir", s.cfg.DataDir).
		Str("health_addr", listener.Addr().String()).
		Msg("server started")
	return nil
}

// Stop shuts the components down in reverse start order.
func (s *Server) Stop(ctx context.Context) error {
	logger := log.WithComponent("server")

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			logger.Warn().Err(err).Msg("health server shutdown")
		}
	}
	s.stopComponents()
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close state store: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func (s *Server) stopComponents() {
	s.reminders.Stop()
	s.host.Stop()
	s.index.Stop()
	s.broker.Stop()
}

func (s *Server) probeStorage(ctx context.Context) error {
	_, err := s.store.Retrieve("health", "probe")
	return err
}

func (s *Server) probeBroker(ctx context.Context) error {
	// The index subscription is held for the broker's whole lifetime;
	// losing it means the broker loop is down.
	if s.broker.SubscriberCount() == 0 {
		return errors.New("no active subscribers")
	}
	return nil
}

func (s *Server) probeReminders(ctx context.Context) error {
	_, err := s.reminders.Pending("health", "probe", "probe")
	return err
}
