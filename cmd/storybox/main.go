// Storybox Core - Device Event & Control Layer
//
// This is the main entry point for the Storybox Core service. It maintains
// the broker connection for an account's fleet of children's audio players,
// routes their events into the state registry, the adventure engine and the
// event log, dispatches commands with a cloud fallback, and runs the audio
// stitch worker pool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/storyware/storybox-core/internal/adventure"
	"github.com/storyware/storybox-core/internal/cloud"
	"github.com/storyware/storybox-core/internal/command"
	"github.com/storyware/storybox-core/internal/eventlog"
	"github.com/storyware/storybox-core/internal/events"
	"github.com/storyware/storybox-core/internal/infrastructure/config"
	"github.com/storyware/storybox-core/internal/infrastructure/database"
	"github.com/storyware/storybox-core/internal/infrastructure/logging"
	"github.com/storyware/storybox-core/internal/infrastructure/mqtt"
	"github.com/storyware/storybox-core/internal/infrastructure/telemetry"
	"github.com/storyware/storybox-core/internal/player"
	"github.com/storyware/storybox-core/internal/stitch"
	"github.com/storyware/storybox-core/internal/token"
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

// stitchShutdownTimeout bounds how long shutdown waits for running stitch
// jobs to reach a track boundary.
const stitchShutdownTimeout = 30 * time.Second

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
	// A local .env can supply secrets like STORYBOX_CLOUD_REFRESH_TOKEN
	// during development. Missing file is fine.
	_ = godotenv.Load()

	log := logging.Default()
	log.Info("starting Storybox Core",
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
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database and prepare the schema.
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
	if err := db.InitSchema(ctx); err != nil {
		return fmt.Errorf("initialising schema: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	// Event log writer.
	logRepo := eventlog.NewSQLiteRepository(db)
	appender := eventlog.NewAppender(logRepo, cfg.Events.LogBuffer, log.With("component", "eventlog"))
	appender.Start()
	defer func() {
		log.Info("draining event log")
		appender.Close()
	}()

	// Cloud client and token provider. The cloud client performs the token
	// refresh; the provider caches grants and hands credentials to the
	// broker connection.
	cloudClient := cloud.NewClient(cloud.Config{
		BaseURL:        cfg.Cloud.BaseURL,
		RefreshToken:   cfg.Cloud.RefreshToken,
		RequestTimeout: cfg.GetRequestTimeout(),
	})
	cloudClient.SetLogger(log.With("component", "cloud"))

	tokens := token.NewCloudProvider(cloudClient, cfg.GetTokenHeadroom())
	tokens.SetLogger(log.With("component", "token"))
	cloudClient.SetTokenSource(tokens)

	// Player state registry.
	registry := player.NewRegistry(log.With("component", "player"))

	// Broker connection.
	mqttClient, err := mqtt.Connect(ctx, mqtt.Config{
		ClientID:       cfg.MQTT.ClientID,
		QoS:            byte(cfg.MQTT.QoS),
		OutboundBuffer: cfg.MQTT.OutboundBuffer,
		InitialDelay:   cfg.GetReconnectInitialDelay(),
		MaxDelay:       cfg.GetReconnectMaxDelay(),
		Stability:      cfg.GetReconnectStability(),
		TokenHeadroom:  cfg.GetTokenHeadroom(),
	}, tokens, log.With("component", "mqtt"))
	if err != nil {
		return fmt.Errorf("connecting to broker: %w", err)
	}
	defer func() {
		log.Info("disconnecting from broker")
		mqttClient.Close()
	}()
	log.Info("broker connected", "client_id", cfg.MQTT.ClientID)

	mqttClient.OnConnect(func() {
		log.Info("broker reconnected")
	})
	mqttClient.OnDisconnect(func(err error) {
		log.Warn("broker connection lost", "error", err)
	})

	topics := mqtt.Topics{Account: cfg.Account.ID}

	// Command dispatcher confirms against registry updates.
	dispatcher := command.NewDispatcher(mqttClient, cloudClient, registry, topics, command.Config{
		Timeout:    cfg.GetCommandTimeout(),
		Retries:    cfg.Commands.Retries,
		RetryDelay: cfg.GetCommandRetryDelay(),
	}, log.With("component", "command"))
	registry.AddListener(dispatcher)
	defer func() {
		log.Info("aborting pending commands")
		dispatcher.Close()
	}()

	// Telemetry sink (optional).
	if cfg.Telemetry.Enabled {
		telemetryClient, err := telemetry.Connect(cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("connecting to telemetry: %w", err)
		}
		defer func() {
			log.Info("closing telemetry connection")
			if closeErr := telemetryClient.Close(); closeErr != nil {
				log.Error("error closing telemetry", "error", closeErr)
			}
		}()
		telemetryClient.SetOnError(func(err error) {
			log.Error("telemetry write error", "error", err)
		})
		registry.AddListener(telemetry.NewStateListener(telemetryClient))
		log.Info("telemetry connected",
			"url", cfg.Telemetry.URL,
			"org", cfg.Telemetry.Org,
			"bucket", cfg.Telemetry.Bucket,
		)
	} else {
		log.Info("telemetry disabled")
	}

	// Adventure engine on top of the content library.
	library, err := adventure.LoadLibrary(cfg.Adventure.Library)
	if err != nil {
		return fmt.Errorf("loading content library: %w", err)
	}
	log.Info("content library loaded",
		"path", cfg.Adventure.Library,
		"stories", library.Len(),
	)

	var sessions adventure.SessionStore
	if cfg.Adventure.PersistSessions {
		sessions = adventure.NewSQLiteStore(db)
		log.Info("adventure sessions persisted to database")
	}
	engine := adventure.NewEngine(library, &playCommander{dispatcher: dispatcher, log: log}, sessions,
		log.With("component", "adventure"))

	// Event routing: state first, then story transitions, then the log.
	dedup, err := events.NewDeduper(cfg.Events.DedupDevices, cfg.Events.DedupWindow)
	if err != nil {
		return fmt.Errorf("creating deduper: %w", err)
	}
	router := events.NewRouter(dedup, []events.Handler{
		events.NewStateHandler(registry, log.With("component", "events")),
		events.NewAdventureHandler(engine, log.With("component", "events")),
		events.NewLogHandler(appender, log.With("component", "events")),
	}, cfg.Events.LogBuffer, log.With("component", "events"))
	router.Start(ctx)

	// Subscribe to every configured family, or the whole account when no
	// families are pinned.
	patterns := make([]string, 0, len(cfg.Account.Families))
	for _, fam := range cfg.Account.Families {
		patterns = append(patterns, topics.FamilyEvents(fam))
	}
	if len(patterns) == 0 {
		patterns = append(patterns, topics.AllEvents())
	}
	for _, pattern := range patterns {
		if err := mqttClient.Subscribe(pattern, mqtt.QoSDefault, router.HandleMessage); err != nil {
			return fmt.Errorf("subscribing to %s: %w", pattern, err)
		}
		log.Info("subscribed to player events", "pattern", pattern)
	}

	// Stitch worker pool.
	stitchManager := stitch.NewManager(
		stitch.DirResolver{Dir: cfg.Stitch.TrackDir, Ext: ".mp3"},
		stitch.FileStitcher{OutputDir: cfg.Stitch.OutputDir},
		cfg.Stitch.Concurrency,
		log.With("component", "stitch"),
	)
	defer func() {
		log.Info("stopping stitch jobs")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), stitchShutdownTimeout)
		defer cancel()
		if shutdownErr := stitchManager.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error("stitch shutdown incomplete", "error", shutdownErr)
		}
	}()

	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	router.Wait()

	log.Info("Storybox Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses STORYBOX_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("STORYBOX_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// playCommander adapts the command dispatcher to the adventure engine's
// play interface.
type playCommander struct {
	dispatcher *command.Dispatcher
	log        *logging.Logger
}

func (c *playCommander) Play(ctx context.Context, playerID, track string) error {
	res, err := c.dispatcher.Send(ctx, playerID, command.KindPlay, command.Params{"track": track})
	if err != nil {
		return err
	}
	if res == command.ResultFallback {
		c.log.Warn("chapter track played via cloud fallback",
			"player_id", playerID, "track", track)
	}
	return nil
}
