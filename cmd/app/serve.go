package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vehiclelookup/internal/api"
	"vehiclelookup/internal/clock"
	"vehiclelookup/internal/config"
	"vehiclelookup/internal/coordinator"
	"vehiclelookup/internal/ha"
	"vehiclelookup/internal/lookup"
	"vehiclelookup/internal/mqtt"
	"vehiclelookup/internal/restore"
)

const keyValidationTimeout = 15 * time.Second

// ErrInvalidAPIKey is returned at startup when the registry rejects the key.
var ErrInvalidAPIKey = errors.New("the registry rejected the API key")

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the lookup service",
		Long: `Run the lookup service: watch the registration number helper in Home
Assistant, look vehicles up after the debounce, publish the attributes over
MQTT discovery and serve the HTTP API.

Home Assistant is used when HA_TOKEN is set, MQTT when MQTT_BROKER is set.`,
		PreRunE: bindOnRun(v, map[string]string{
			config.KeyHTTPPort:     "port",
			config.KeyReadOnly:     "read-only",
			config.KeyOptionsFile:  "options",
			config.KeyDBPath:       "db",
			config.KeyStartupDelay: "startup-delay",
		}),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v)
		},
	}

	cmd.Flags().Int("port", 0, "HTTP API port (HTTP_PORT)")
	cmd.Flags().Bool("read-only", false, "Never write to Home Assistant (READ_ONLY)")
	cmd.Flags().String("options", "", "Path to the options file (OPTIONS_FILE)")
	cmd.Flags().String("db", "", "Path to the state database (DB_PATH)")
	cmd.Flags().Duration("startup-delay", 0, "Delay before looking up a restored number")

	return cmd
}

func runServe(ctx context.Context, v *viper.Viper) error {
	cfg, logger, err := loadConfig(v)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting vehicle lookup service",
		zap.Bool("home_assistant", cfg.HAEnabled()),
		zap.Bool("mqtt", cfg.MQTTEnabled()),
		zap.Int("http_port", cfg.HTTPPort),
		zap.Bool("read_only", cfg.ReadOnly))

	registry := newRegistryClient(cfg, logger)
	if err := checkAPIKey(ctx, registry, logger); err != nil {
		return err
	}

	loader := config.NewLoader(cfg.OptionsFile, logger)
	if err := loader.Load(); err != nil {
		return fmt.Errorf("failed to load options: %w", err)
	}
	opts := loader.Options()
	defs, err := opts.Definitions()
	if err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	store, err := restore.Open(cfg.DBPath, logger)
	if err != nil {
		return fmt.Errorf("failed to open state database: %w", err)
	}
	defer store.Close()

	var haClient ha.HAClient
	if cfg.HAEnabled() {
		client := ha.NewClient(cfg.HAURL, cfg.HAToken, logger)
		if err := client.Connect(); err != nil {
			return fmt.Errorf("failed to connect to Home Assistant: %w", err)
		}
		defer client.Disconnect()
		logger.Info("Connected to Home Assistant")
		haClient = client
	} else {
		logger.Info("HA_TOKEN not set, running without Home Assistant")
	}

	var (
		mqttClient *mqtt.Client
		publisher  *mqtt.Publisher
		pub        lookup.Publisher
	)
	if cfg.MQTTEnabled() {
		mqttClient, err = mqtt.Connect(cfg.MQTT, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		defer mqttClient.Close()
		publisher = mqtt.NewPublisher(mqttClient, cfg.MQTT.Topics(), logger)
		pub = publisher
	}

	clk := clock.NewRealClock()
	coord := coordinator.New(registry, clk, logger)
	manager := lookup.NewManager(haClient, coord, store, pub, clk, opts.SchedulerOptions(), lookup.Config{
		RegnrEntity:        cfg.RegnrEntity,
		LookupButtonEntity: cfg.LookupButtonEntity,
		StartupDelay:       cfg.StartupDelay,
		ReadOnly:           cfg.ReadOnly,
		Definitions:        defs,
	}, logger)
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start lookup manager: %w", err)
	}
	defer manager.Stop()

	if publisher != nil {
		if err := publisher.HandleCommands(func(number string) {
			if _, err := manager.SetDirect(number); err != nil {
				logger.Warn("Ignoring MQTT lookup command", zap.String("payload", number), zap.Error(err))
			}
		}, func() {
			_ = manager.Press()
		}); err != nil {
			return err
		}
		mqttClient.SetOnConnect(func() {
			if err := publisher.Announce(manager.Definitions()); err != nil {
				logger.Warn("Failed to re-announce entities", zap.Error(err))
			}
			if err := publisher.PublishSnapshot(manager.Snapshot()); err != nil {
				logger.Warn("Failed to republish state", zap.Error(err))
			}
		})
	}

	loader.OnChange(func(o *config.Options) {
		defs, err := o.Definitions()
		if err != nil {
			logger.Error("Ignoring invalid options", zap.Error(err))
			return
		}
		if err := manager.ApplyOptions(o.SchedulerOptions(), defs); err != nil {
			logger.Error("Failed to apply options", zap.Error(err))
		}
	})

	server := api.NewServer(manager, loader, logger, cfg.HTTPPort, cfg.APITimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loader.Watch(gctx)
	})
	g.Go(func() error {
		return server.Run(gctx)
	})

	logger.Info("Vehicle lookup service running. Press Ctrl+C to exit.")
	err = g.Wait()
	logger.Info("Shutting down gracefully...")
	return err
}

// checkAPIKey fails when the registry rejects the key. A registry that
// cannot be reached only produces a warning.
func checkAPIKey(ctx context.Context, client keyValidator, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, keyValidationTimeout)
	defer cancel()

	ok, err := client.ValidateKey(ctx)
	if err != nil {
		logger.Warn("Could not validate API key, continuing", zap.Error(err))
		return nil
	}
	if !ok {
		return ErrInvalidAPIKey
	}
	logger.Info("API key accepted by the registry")
	return nil
}

type keyValidator interface {
	ValidateKey(ctx context.Context) (bool, error)
}
