// StateGate - REST gateway for home-automation datapoints
//
// StateGate exposes a key/value state store over a simple HTTP API:
// every endpoint is one command (get, set, toggle, ...) addressing
// datapoints by id or display name. Protocol bridges confirm writes
// over MQTT, and InfluxDB optionally records history for charting.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/oakhurst-automation/stategate/migrations"

	"github.com/oakhurst-automation/stategate/internal/acl"
	"github.com/oakhurst-automation/stategate/internal/api"
	"github.com/oakhurst-automation/stategate/internal/auth"
	"github.com/oakhurst-automation/stategate/internal/await"
	"github.com/oakhurst-automation/stategate/internal/history"
	"github.com/oakhurst-automation/stategate/internal/infrastructure/config"
	"github.com/oakhurst-automation/stategate/internal/infrastructure/database"
	"github.com/oakhurst-automation/stategate/internal/infrastructure/logging"
	"github.com/oakhurst-automation/stategate/internal/infrastructure/mqtt"
	"github.com/oakhurst-automation/stategate/internal/resolver"
	"github.com/oakhurst-automation/stategate/internal/store"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting StateGate",
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

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database and run migrations
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// State store and its collaborators
	st := store.NewSQLiteStore(db.DB)
	st.SetLogger(log)
	defer st.Close()

	res := resolver.New(st, cfg.API.Language)
	go res.Run(ctx, st.ObjectEvents())

	tracker := await.NewTracker(st)
	go tracker.Run(ctx, st.StateEvents())

	// Authentication: seed the admin account on first start
	authn := auth.NewSQLiteAuthenticator(db.DB)
	if _, seedErr := auth.SeedAdmin(ctx, authn, cfg.Auth.AdminUser, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding admin user: %w", seedErr)
	}

	gate := acl.NewGate(acl.NewSQLiteEngine(db.DB), cfg.Auth.AdminUser, log)

	// MQTT bridge (optional): announces writes, consumes acknowledgements
	var bridge *store.Bridge
	if cfg.MQTT.Enabled {
		mqttClient, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		bridge = store.NewBridge(st, mqttClient)
		bridge.SetLogger(log)
		if startErr := bridge.Start(); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		defer bridge.Stop()
	} else {
		log.Info("MQTT disabled, writes are acknowledged locally only")
	}

	// InfluxDB history (optional)
	var histSource *history.InfluxSource
	if cfg.InfluxDB.Enabled {
		histSource, err = history.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := histSource.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		histSource.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled, query serves current values only")
	}

	// REST API server
	deps := api.Deps{
		Config:   cfg.API,
		AuthCfg:  cfg.Auth,
		Logger:   log,
		Store:    st,
		Resolver: res,
		Gate:     gate,
		Tracker:  tracker,
		Auth:     authn,
		Version:  version,
	}
	if histSource != nil {
		deps.History = histSource
		deps.Recorder = histSource
	}
	if bridge != nil {
		deps.Publisher = bridge
	}

	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses STATEGATE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("STATEGATE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
