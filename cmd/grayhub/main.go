// Gray Logic Hub - home automation hub mirror
//
// This is the main entry point for the Gray Logic Hub daemon. It keeps a
// local mirror of every entity of an upstream hub, dispatches state changes
// to observers, and exposes the mirror over MQTT, InfluxDB and HTTP:
//   - Entity store with bounded per-entity history
//   - Retained MQTT state topics plus inbound service commands
//   - Time series of numeric states and attributes
//   - SQLite command log of every service call issued by the daemon
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-hub/internal/actuator"
	"github.com/nerrad567/gray-logic-hub/internal/api"
	"github.com/nerrad567/gray-logic-hub/internal/audit"
	"github.com/nerrad567/gray-logic-hub/internal/entity"
	"github.com/nerrad567/gray-logic-hub/internal/event"
	"github.com/nerrad567/gray-logic-hub/internal/hub"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-hub/internal/mirror"
	"github.com/nerrad567/gray-logic-hub/internal/observer"
	"github.com/nerrad567/gray-logic-hub/migrations"
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

// Command log sources.
const (
	sourceAPI  = "api"
	sourceMQTT = "mqtt"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options are the command line flags.
type options struct {
	configPath  string
	showVersion bool
}

// parseFlags parses the command line. The config path defaults to
// GRAYHUB_CONFIG, then configs/config.yaml.
func parseFlags(args []string) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("grayhub", pflag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", getConfigPath(), "path to the YAML configuration file")
	fs.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	if err := fs.Parse(args); err != nil {
		return options{}, fmt.Errorf("parsing flags: %w", err)
	}
	return opts, nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYHUB_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYHUB_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command line arguments without the program name
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, args []string) error { //nolint:gocognit,gocyclo // linear startup sequence
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Printf("grayhub %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Hub",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", opts.configPath, "level", cfg.Logging.Level)

	// Core: store, observers, dispatcher, hub connection
	store := entity.NewStore(cfg.Observers.HistorySize)
	observers := event.NewObservers(observer.Options{
		Workers: cfg.Observers.Workers,
		Logger:  log.Component("observer"),
	})
	defer observers.Close()

	pending := event.NewPending()
	dispatcher := event.NewDispatcher(store, observers, pending)
	dispatcher.SetLogger(log.Component("dispatcher"))

	hubClient := hub.New(cfg.Hub, pending)
	hubClient.SetLogger(log.Component("hub"))

	observers.Errors.AttachAll(func(e event.ErrorEvent) error {
		log.Warn("hub reported error", "source", e.Source, "id", e.ID, "error", e.Err)
		return nil
	})

	g, gctx := errgroup.WithContext(ctx)
	checks := make(map[string]api.HealthChecker)

	// Command submitters default to the raw hub client and are wrapped by
	// the command log when the database is enabled.
	apiCommands := actuator.Submitter(hubClient)
	mqttCommands := actuator.Submitter(hubClient)
	var auditRepo audit.Repository

	if cfg.Database.Enabled {
		db, dbErr := database.Open(cfg.Database)
		if dbErr != nil {
			return fmt.Errorf("opening database: %w", dbErr)
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
		log.Info("database ready", "path", db.Path())
		checks["database"] = db

		repo := audit.NewSQLiteRepository(db.DB)
		auditLog := log.Component("audit")
		apiRecorder := audit.NewRecorder(hubClient, repo, audit.RecorderOptions{Source: sourceAPI, Logger: auditLog})
		mqttRecorder := audit.NewRecorder(hubClient, repo, audit.RecorderOptions{Source: sourceMQTT, Logger: auditLog})
		g.Go(func() error { return apiRecorder.Run(gctx) })
		g.Go(func() error { return mqttRecorder.Run(gctx) })
		apiCommands, mqttCommands = apiRecorder, mqttRecorder
		auditRepo = repo
	}

	if cfg.MQTT.Enabled {
		closeMQTT, mqttErr := startMQTT(cfg, log, store, observers, dispatcher, mqttCommands, checks)
		if mqttErr != nil {
			return mqttErr
		}
		defer closeMQTT()
	}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err, "failures", influxClient.WriteFailures())
		})
		checks["influxdb"] = influxClient

		telemetry := mirror.NewTelemetry(influxClient, cfg.InfluxDB.Attributes)
		telemetry.Attach(observers.States)
		defer telemetry.Detach()
		log.Info("InfluxDB telemetry enabled", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	if cfg.API.Enabled {
		closeAPI, apiErr := startAPI(ctx, cfg, log, store, observers, hubClient, apiCommands, auditRepo, checks)
		if apiErr != nil {
			return apiErr
		}
		defer closeAPI()
	}

	g.Go(func() error { return hubClient.Run(gctx) })
	g.Go(func() error { return dispatcher.Run(gctx, hubClient.Events()) })

	log.Info("initialisation complete", "hub", cfg.Hub.URL)

	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("hub connection: %w", err)
	}

	log.Info("Gray Logic Hub stopped")
	return nil
}

// startAPI starts the HTTP API and returns its close function. checks
// must not be modified afterwards.
func startAPI(
	ctx context.Context,
	cfg *config.Config,
	log *logging.Logger,
	store *entity.Store,
	observers *event.Observers,
	hubClient *hub.Client,
	commands actuator.Submitter,
	repo audit.Repository,
	checks map[string]api.HealthChecker,
) (func(), error) {
	server, err := api.New(api.Deps{
		Config:    cfg.API,
		Logger:    log.Component("api"),
		Store:     store,
		Observers: observers,
		Hub:       hubClient,
		Commands:  commands,
		Audit:     repo,
		Checks:    checks,
		Version:   version,
	})
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting API server: %w", err)
	}

	return func() {
		if err := server.Close(); err != nil {
			log.Error("error closing API server", "error", err)
		}
	}, nil
}

// startMQTT connects to the broker and wires the state mirror and command
// ingress. The returned function tears both down and disconnects.
func startMQTT(
	cfg *config.Config,
	log *logging.Logger,
	store *entity.Store,
	observers *event.Observers,
	dispatcher *event.Dispatcher,
	commands actuator.Submitter,
	checks map[string]api.HealthChecker,
) (func(), error) {
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))
	checks["mqtt"] = client

	stateMirror := mirror.NewStateMirror(client, client.Topics(), store)
	stateMirror.SetLogger(log.Component("mirror"))
	stateMirror.Attach(observers)

	republish := func() {
		if _, pubErr := stateMirror.PublishAll(); pubErr != nil {
			log.Warn("republishing states failed", "error", pubErr)
		}
	}
	client.SetOnConnect(republish)
	dispatcher.SetSeedHook(func(int) { republish() })

	ingress := mirror.NewCommandIngress(client, commands, client.Topics())
	ingress.SetLogger(log.Component("mirror"))
	if err := ingress.Start(client.QoS()); err != nil {
		stateMirror.Detach()
		_ = client.Close() //nolint:errcheck // already failing
		return nil, err
	}

	log.Info("MQTT mirror started",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"prefix", client.Topics().Prefix(),
	)

	return func() {
		if err := ingress.Stop(); err != nil {
			log.Warn("unsubscribing command topics failed", "error", err)
		}
		stateMirror.Detach()
		log.Info("disconnecting from MQTT")
		if err := client.Close(); err != nil {
			log.Error("error closing MQTT", "error", err)
		}
	}, nil
}
