package main

import (
	"context"

	"reservd/internal/reservations/archive"
	"reservd/internal/reservations/changefeed"
	"reservd/internal/reservations/handler"
	"reservd/internal/reservations/index"
	"reservd/internal/reservations/relay"
	"reservd/internal/reservations/service"
	"reservd/internal/reservations/store"
	"reservd/internal/reservations/validator"
	"reservd/pkg/app"
	"reservd/pkg/config"
	"reservd/pkg/kafka"
	kafka_config "reservd/pkg/kafka/config"
	kafka_middleware "reservd/pkg/kafka/middleware"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)

	var archiveRepo archive.ArchiveRepository
	if cfg.MongoEnabled {
		cfg.SetMongo()
		archiveRepo = archive.NewMongoArchiveRepository(cfg)
	}

	feed := rehydrateFeed(cfg, archiveRepo)
	bus := changefeed.NewBus(cfg.NotifyBacklog)
	st := store.New(index.New(), feed, bus)

	if err := st.Replay(feed.ReadFrom(1)); err != nil {
		cfg.Log.Fatal("Failed to rebuild reservations from the change log", "error", err)
	}

	reservationService := service.NewReservationService(
		st,
		feed,
		bus,
		validator.NewReservationValidator(cfg.Log),
		cfg,
	)

	archiver := startArchiver(cfg, bus, feed, archiveRepo)
	rly, producer := startRelay(cfg, bus, feed)

	cfg.Log.Info("Reservations service initialized",
		"change_log_sequence", feed.LastSequence(),
		"mongo_enabled", cfg.MongoEnabled,
		"kafka_enabled", cfg.KafkaEnabled,
	)

	reservationHandler := handler.NewReservationHandler(reservationService, cfg.Log)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(reservationHandler, reservationHandler)
	serverApp.Run()

	// The HTTP server is down, nothing appends to the feed anymore. Drain
	// the background consumers before disconnecting the backends.
	bus.Close()
	if rly != nil {
		rly.Stop()
	}
	if archiver != nil {
		archiver.Stop()
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	}
	cfg.GracefulShutdown()
}

// rehydrateFeed rebuilds the in-memory change log from the Mongo archive, or
// starts empty when the archive is disabled.
func rehydrateFeed(cfg *config.Config, repo archive.ArchiveRepository) *changefeed.Log {
	if repo == nil {
		return changefeed.NewLog()
	}

	records, err := repo.LoadRecords(context.Background())
	if err != nil {
		cfg.Log.Fatal("Failed to load archived change records", "error", err)
	}

	cfg.Log.Info("Change log rehydrated from archive", "records", len(records))
	return changefeed.NewLogFrom(records)
}

func startArchiver(cfg *config.Config, bus *changefeed.Bus, feed *changefeed.Log, repo archive.ArchiveRepository) *archive.Archiver {
	if repo == nil {
		return nil
	}

	lastArchived, err := repo.LastSequence(context.Background())
	if err != nil {
		cfg.Log.Fatal("Failed to read archive position", "error", err)
	}

	archiver := archive.NewArchiver(cfg.Log, bus, feed, repo, lastArchived)
	go archiver.Run()
	cfg.Log.Info("Change archive enabled", "database", cfg.MongoDatabaseName, "last_sequence", lastArchived)
	return archiver
}

func startRelay(cfg *config.Config, bus *changefeed.Bus, feed *changefeed.Log) (*relay.Relay, *kafka.Producer) {
	if !cfg.KafkaEnabled {
		return nil, nil
	}

	kafkaCfg := kafka_config.Load()
	producer, err := kafka.NewProducer(kafkaCfg, cfg.KafkaTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.Logging(cfg.Log))
	}

	rly := relay.NewRelay(cfg.Log, bus, feed, producer, ServiceName)
	go rly.Run()
	cfg.Log.Info("Change relay enabled", "topic", cfg.KafkaTopic, "brokers", kafkaCfg.Brokers)
	return rly, producer
}
