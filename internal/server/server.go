package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gorilla/mux"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"

	"github.com/bankcore/transaction-service/internal/core/audit"
	"github.com/bankcore/transaction-service/internal/core/events"
	"github.com/bankcore/transaction-service/internal/core/handler"
	"github.com/bankcore/transaction-service/internal/core/logger"
	middlwre "github.com/bankcore/transaction-service/internal/core/middleware"
	"github.com/bankcore/transaction-service/internal/core/processor"
	"github.com/bankcore/transaction-service/internal/core/repository"
	"github.com/bankcore/transaction-service/internal/core/repository/memory"
	"github.com/bankcore/transaction-service/internal/core/repository/postgres"
	"github.com/bankcore/transaction-service/internal/core/service"
	"github.com/bankcore/transaction-service/pkg/config"
	"github.com/bankcore/transaction-service/pkg/postgresdb"
)

type Server struct {
	router             *mux.Router
	log                logger.Logger
	httpServer         *http.Server
	transactionHandler *handler.TransactionHandler
	dispatcher         *events.Dispatcher
	db                 *postgresdb.Database
	addr               string
}

// Addr is the listen address resolved from configuration.
func (s *Server) Addr() string {
	return s.addr
}

func NewServer(log logger.Logger) (*Server, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	var repo repository.TransactionRepository
	var db *postgresdb.Database

	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		cfgDB, err := config.LoadConfigDB()
		if err != nil {
			return nil, err
		}
		db, err = postgresdb.NewPostgresDB(*cfgDB, log)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := postgres.EnsureSchema(ctx, db.DB); err != nil {
			return nil, err
		}
		repo = postgres.NewPostgresTransactionRepo(db.DB, log)
	default:
		repo = memory.NewMemoryTransactionRepo(log)
	}

	auditLog := audit.NewLog(log)
	dispatcher := events.NewDispatcher(cfg.EventBufferSize, log)
	dispatcher.Register(events.NewAuditHandler(auditLog))
	dispatcher.Register(events.NewFraudHandler(dispatcher, log))
	dispatcher.Register(events.NewComplianceHandler(dispatcher, log))
	dispatcher.Register(events.NewNotificationHandler(log))
	dispatcher.Start()

	metrics := service.NewMetrics(promclient.DefaultRegisterer)
	proc := processor.NewProcessor(log)
	transactionService := service.NewTransactionService(repo, proc, dispatcher, auditLog, metrics, log)
	transactionHandler := handler.NewTransactionHandler(transactionService, log)

	if cfg.SeedSampleData {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := service.SeedSampleData(ctx, repo, log); err != nil {
			return nil, err
		}
	}

	server := &Server{
		log:                log,
		router:             mux.NewRouter(),
		transactionHandler: transactionHandler,
		dispatcher:         dispatcher,
		db:                 db,
		addr:               cfg.Port,
	}

	server.router.Use(middlwre.RequestLogger(server.log))

	mw := middleware.New(middleware.Config{
		Recorder: prometheus.NewRecorder(prometheus.Config{}),
	})

	server.router.Use(func(next http.Handler) http.Handler {
		return std.Handler("", mw, next)
	})

	server.RegisterRoutes()

	return server, nil
}

func (s *Server) RegisterRoutes() {
	s.router.Use(middlwre.Recovery(s.log))
	s.transactionHandler.RegisterRoutes(s.router)
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.HandleFunc("/debug/pprof/", pprof.Index)
	s.router.HandleFunc("/debug/pprof/profile", pprof.Profile)
	s.router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	s.router.HandleFunc("/debug/pprof/trace", pprof.Trace)
}

func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       9 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 60 * time.Second,
	}

	s.httpServer = srv

	return srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	var shutdownErr error

	go func() {
		if s.httpServer != nil {
			err := s.httpServer.Shutdown(ctx)
			if err != nil {
				s.log.Error("failed to shutdown HTTP server", logger.ErrorField("error", err))
				shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
			}
		}

		if s.dispatcher != nil {
			s.dispatcher.Close()
		}

		if s.db != nil {
			err := s.db.Close()
			if err != nil {
				s.log.Error("failed to close database connection", logger.ErrorField("error", err))
				shutdownErr = fmt.Errorf("database shutdown error: %w", err)
			}
		}

		close(done)
	}()

	select {
	case <-done:
		return shutdownErr
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
