// FieldLink Core - field device command dispatch
//
// This is the main entry point for the FieldLink Core service. It accepts
// operator commands over HTTP, fans them out to coordinators and nodes
// over MQTT, and streams device answers and broker status to WebSocket
// subscribers.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldlink/fieldlink-core/internal/api"
	"github.com/fieldlink/fieldlink-core/internal/auth"
	"github.com/fieldlink/fieldlink-core/internal/broker"
	"github.com/fieldlink/fieldlink-core/internal/command"
	"github.com/fieldlink/fieldlink-core/internal/coordinator"
	"github.com/fieldlink/fieldlink-core/internal/dispatch"
	"github.com/fieldlink/fieldlink-core/internal/eventbus"
	"github.com/fieldlink/fieldlink-core/internal/gateway"
	"github.com/fieldlink/fieldlink-core/internal/infrastructure/config"
	"github.com/fieldlink/fieldlink-core/internal/infrastructure/database"
	"github.com/fieldlink/fieldlink-core/internal/infrastructure/influxdb"
	"github.com/fieldlink/fieldlink-core/internal/infrastructure/logging"
	"github.com/fieldlink/fieldlink-core/internal/infrastructure/mqtt"
	"github.com/fieldlink/fieldlink-core/internal/metrics"
	"github.com/fieldlink/fieldlink-core/internal/usage"
	"github.com/fieldlink/fieldlink-core/migrations"
)

// Version information, set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

// shutdownTimeout bounds how long queued events get to drain on exit.
const shutdownTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component, blocks until ctx is cancelled, then tears
// down in reverse order through the deferred closers.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting FieldLink Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // nothing left to report to
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	m := metrics.New()

	// Connected before the bus so that it closes after the bus drains.
	// Nil interfaces keep the recorder on SQLite and /health off InfluxDB.
	var series usage.TimeSeries
	var influxHealth api.HealthChecker
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		series = influxClient
		influxHealth = influxClient
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	bus := eventbus.New(log, eventbus.WithObserver(m))
	defer func() {
		log.Info("draining event bus")
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if closeErr := bus.Close(closeCtx); closeErr != nil {
			log.Warn("event bus did not drain", "error", closeErr)
		}
	}()

	mqttClient := mqtt.New(cfg.MQTT, log.With("component", "mqtt"))
	brokerClient := broker.New(mqttClient, bus, broker.OptionsFromConfig(cfg.MQTT), log, m)
	if startErr := brokerClient.Start(); startErr != nil {
		return fmt.Errorf("starting broker client: %w", startErr)
	}
	brokerClient.WatchLink(mqttClient)
	if connErr := mqttClient.Connect(ctx); connErr != nil {
		if !errors.Is(connErr, mqtt.ErrTimeout) {
			return fmt.Errorf("connecting to MQTT: %w", connErr)
		}
		log.Warn("MQTT broker not reachable yet, retrying in background", "error", connErr)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	go brokerClient.RunStatusPoller(ctx)

	usageStore := usage.NewSQLiteStore(db.DB)
	// Subscriptions live until the bus drains on shutdown.
	usage.NewRecorder(usageStore, series, log, m).Attach(bus)

	authStore := auth.NewSQLiteStore(db.DB)
	resolver := auth.NewResolver(authStore, cfg.Security.JWT.Secret)
	janitor := auth.NewJanitor(authStore, cfg.Security.JWT.Secret, cfg.GetTokenCleanupInterval(), log)
	go janitor.Run(ctx)

	catalog := command.DefaultCatalog()
	coordinators := coordinator.NewSQLiteRepository(db.DB)
	orchestrator := dispatch.New(dispatch.Config{
		Catalog:    catalog,
		Membership: coordinators,
		Frames:     brokerClient,
		Events:     bus,
		BuildingID: cfg.Site.BuildingID,
		Logger:     log,
		Metrics:    m,
	})
	log.Info("command catalog loaded", "commands", catalog.Len())

	gw := gateway.New(cfg.WebSocket, resolver, log, m)
	defer gw.Close()
	gw.Attach(bus)
	go gw.RunHeartbeat(ctx)

	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		DevMode:  cfg.DevMode,
		Version:  version,
		Logger:   log,
		Resolver: resolver,
		Catalog:  catalog,
		Dispatch: orchestrator,
		Broker:   brokerClient,
		Nodes:    coordinators,
		Usage:    usageStore,
		Events:   bus,
		Gateway:  gw,
		Metrics:  m.Handler(),
		Database: db,
		MQTT:     mqttClient,
		InfluxDB: influxHealth,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if cfg.DevMode {
		log.Warn("dev mode enabled, test endpoints are exposed")
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns FIELDLINK_CONFIG when set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv("FIELDLINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
