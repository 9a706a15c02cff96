// Gray Logic DALI Bridge
//
// This is the main entry point for the Gray Logic DALI bridge daemon.
// The bridge connects Sunricher DALI Center gateways (SR-GW-EDA) to the
// Gray Logic MQTT bus, translating bus commands into gateway writes and
// gateway reports into bus state, events and measurements.
//
// For architecture details, see: docs/architecture/system-overview.md
// For coding standards, see: docs/development/CODING-STANDARDS.md
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-dali-bridge/migrations"

	"github.com/nerrad567/gray-logic-dali-bridge/internal/api"
	"github.com/nerrad567/gray-logic-dali-bridge/internal/bridge"
	"github.com/nerrad567/gray-logic-dali-bridge/internal/dali"
	"github.com/nerrad567/gray-logic-dali-bridge/internal/device"
	"github.com/nerrad567/gray-logic-dali-bridge/internal/gateway"
	"github.com/nerrad567/gray-logic-dali-bridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dali-bridge/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-dali-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-dali-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-dali-bridge/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic DALI bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
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

	// Open database
	db, err := database.Open(database.Config{
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise device registry
	deviceRepo := device.NewSQLiteRepository(db.DB)
	deviceRegistry := device.NewRegistry(deviceRepo)
	deviceRegistry.SetLogger(log)

	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", deviceRegistry.Count())

	// Connect to the Gray Logic MQTT bus
	busClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := busClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	busClient.SetLogger(log)
	busClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	busClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
		influxClient = nil
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	// Build a connection and protocol client per configured gateway
	if len(cfg.Gateways) == 0 {
		return fmt.Errorf("no gateways configured")
	}

	links := make([]bridge.Link, 0, len(cfg.Gateways))
	gatewayInfos := make([]api.GatewayInfo, 0, len(cfg.Gateways))
	for _, gwCfg := range cfg.Gateways {
		gwLog := log.ForGateway(gwCfg.SerialNumber)
		conn, connErr := gateway.NewConnection(gateway.Options{
			Config: gwCfg,
			Logger: gwLog,
		})
		if connErr != nil {
			return fmt.Errorf("gateway %s: %w", gwCfg.SerialNumber, connErr)
		}
		defer conn.Disconnect()

		client := dali.NewClient(conn, gwLog)

		links = append(links, bridge.Link{
			SerialNumber: gwCfg.SerialNumber,
			Name:         gwCfg.Name,
			Conn:         conn,
			Client:       client,
		})
		gatewayInfos = append(gatewayInfos, api.GatewayInfo{
			SerialNumber: gwCfg.SerialNumber,
			Name:         gwCfg.Name,
			Conn:         conn,
		})
	}

	// Start the bridge before connecting so gateway availability events
	// (and the discovery they trigger) are not missed.
	var metrics bridge.MetricsWriter
	if influxClient != nil {
		metrics = influxClient
	}

	daliBridge, err := bridge.New(bridge.Options{
		ID:             cfg.Bridge.ID,
		Version:        version,
		Bus:            busClient,
		Links:          links,
		Registry:       deviceRegistry,
		Metrics:        metrics,
		HealthInterval: time.Duration(cfg.Bridge.HealthInterval) * time.Second,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if startErr := daliBridge.Start(ctx); startErr != nil {
		return fmt.Errorf("starting bridge: %w", startErr)
	}
	defer func() {
		log.Info("stopping bridge")
		daliBridge.Stop()
	}()

	// Connect each gateway. A gateway that is unreachable at startup is
	// retried in the background so a single dark cabinet cannot hold the
	// whole daemon hostage.
	for i, link := range links {
		gwCfg := cfg.Gateways[i]
		client, ok := link.Client.(*dali.Client)
		if !ok {
			return fmt.Errorf("gateway %s: unexpected client type", link.SerialNumber)
		}
		conn, ok := link.Conn.(*gateway.Connection)
		if !ok {
			return fmt.Errorf("gateway %s: unexpected connection type", link.SerialNumber)
		}
		go connectGateway(ctx, conn, client, gwCfg, log.ForGateway(gwCfg.SerialNumber))
	}

	// Start the REST/WebSocket API (optional)
	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			Logger:   log,
			Registry: deviceRegistry,
			Bus:      busClient,
			Gateways: gatewayInfos,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		log.Info("API server started",
			"host", cfg.API.Host,
			"port", cfg.API.Port,
		)
	} else {
		log.Info("API server disabled")
	}

	// Verify infrastructure connections are healthy
	if err := healthCheck(ctx, db, busClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order: API server, bridge,
	// gateway connections, InfluxDB (if enabled), MQTT, database.

	log.Info("Gray Logic DALI bridge stopped")
	return nil
}

// connectGateway establishes the initial link to a gateway and starts its
// protocol client. Gateways start rejecting TLS handshakes under load or
// sit behind ports that come up late, so a failed first attempt is retried
// with the configured backoff rather than failing the daemon.
func connectGateway(ctx context.Context, conn *gateway.Connection, client *dali.Client, gwCfg config.GatewayConfig, log *logging.Logger) {
	delay := time.Duration(gwCfg.Reconnect.InitialDelay) * time.Second
	maxDelay := time.Duration(gwCfg.Reconnect.MaxDelay) * time.Second

	for {
		err := conn.Connect(ctx)
		if err == nil {
			if startErr := client.Start(); startErr != nil {
				log.Error("failed to start DALI client", "error", startErr)
				return
			}
			log.Info("gateway connected",
				"host", gwCfg.Host,
				"port", gwCfg.Port,
			)
			return
		}

		log.Warn("gateway connect failed, retrying",
			"error", err,
			"retry_in", delay.String(),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// getConfigPath returns the configuration file path.
// Uses DALIBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DALIBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// Gateway links are deliberately excluded: an unreachable gateway is a
// degraded condition reported over the bus, not a startup failure.
func healthCheck(ctx context.Context, db *database.DB, busClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := busClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
