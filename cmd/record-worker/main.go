package main

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/clinicalrecord"
	"github.com/hackgods/clinic-scheduling/internal/clock"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/messaging"
	"github.com/hackgods/clinic-scheduling/internal/outbox"
)

const consumerPrefetch = 10

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("prod", "record-worker")
		boot.Fatal().Err(err).Msg("config load error")
	}

	log := logging.New(cfg.Env, "record-worker")
	log.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Str("record_queue", cfg.RecordQueue).
		Msg("record-worker starting up")

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

	conn, err := messaging.Dial(cfg.AMQPURL)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbitmq connection error")
	}
	defer conn.Close()
	log.Info().Msg("connected to RabbitMQ")

	publisher, err := messaging.NewPublisher(conn, eventRoutes(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("publisher setup error")
	}
	defer publisher.Close()

	consumer, err := messaging.NewConsumer(conn, cfg.RecordQueue, consumerPrefetch, log)
	if err != nil {
		log.Fatal().Err(err).Msg("consumer setup error")
	}
	defer consumer.Close()
	consumer.Discard = func(err error) bool {
		return errors.Is(err, clinicalrecord.ErrMalformedEvent)
	}

	relay := outbox.NewRelay(
		outbox.NewPgStore(pgPool),
		publisher,
		cfg.OutboxBatchSize,
		clock.System(cfg.Location),
		log,
	)
	records := clinicalrecord.NewHandler(clinicalrecord.NewPgStore(pgPool), log)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		relay.Run(rootCtx, cfg.WorkerInterval)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := consumer.Run(rootCtx, records.Handle); err != nil {
			log.Error().Err(err).Msg("record consumer stopped")
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutdown signal received, waiting for workers")
	wg.Wait()
	log.Info().Msg("record-worker stopped")
}

// eventRoutes sends record requests to the queue this worker consumes and
// every other event type to the general events queue.
func eventRoutes(cfg config.Config) messaging.Routes {
	return messaging.Routes{
		ByType:  map[string]string{appointment.EventClinicalRecordRequested: cfg.RecordQueue},
		Default: cfg.EventsQueue,
	}
}
