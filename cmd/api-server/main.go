package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/clock"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/labtest"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/messaging"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/resource"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("prod", "api-server")
		boot.Fatal().Err(err).Msg("config load error")
	}

	log := logging.New(cfg.Env, "api-server")
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, 0)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	deps := []api.Dependency{
		{Name: "postgres", Checker: pgPool, Critical: true},
		{Name: "redis", Checker: redisclient.Pinger{Client: rdb}, Critical: true},
	}

	// RabbitMQ is optional here; readiness reports it as degraded when down.
	if conn, err := messaging.Dial(cfg.AMQPURL); err != nil {
		log.Warn().Err(err).Msg("rabbitmq unavailable, readiness will report it degraded")
	} else {
		defer conn.Close()
		deps = append(deps, api.Dependency{Name: "rabbitmq", Checker: messaging.ConnPinger{Conn: conn}})
	}

	clk := clock.System(cfg.Location)
	directory := resource.NewPgDirectory(pgPool)
	if cfg.DefaultLabDepartment != nil {
		dep, err := directory.GetDepartment(rootCtx, *cfg.DefaultLabDepartment)
		if err != nil {
			log.Fatal().Err(err).Msg("DEFAULT_LAB_DEPARTMENT_ID does not name a department")
		}
		log.Info().Str("department", dep.Name).Msg("default lab department resolved")
	}
	apptRepo := appointment.NewPgRepository(pgPool)
	locker := redisclient.NewRedisPartitionLocker(rdb, cfg.LockTTL)

	appointments := appointment.NewService(
		apptRepo,
		appointment.NewPgUnitOfWork(pgPool),
		directory,
		locker,
		cfg,
		clk,
		log,
	)
	labs := labtest.NewService(
		labtest.NewPgRepository(pgPool),
		labtest.NewPgUnitOfWork(pgPool),
		apptRepo,
		directory,
		cfg,
		clk,
		log,
	)

	router := api.NewRouter(api.RouterConfig{
		Appointments: appointments,
		Labs:         labs,
		Dependencies: deps,
		CORSOrigins:  cfg.CORSOrigins,
		Logger:       log,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := newHTTPServer(cfg, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}

	log.Info().Msg("api-server stopped")
}

// newHTTPServer keeps the write timeout above the router's 30s request
// timeout.
func newHTTPServer(cfg config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
