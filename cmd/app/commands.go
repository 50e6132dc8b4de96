// Package app provides the command line interface for the vehicle lookup
// service.
package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"vehiclelookup/internal/config"
	"vehiclelookup/internal/vegvesen"
)

// NewRootCmd creates the root command with every subcommand attached.
// Each call returns a fresh command tree bound to its own viper instance.
func NewRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "vehiclelookup",
		Short: "Norwegian vehicle registry lookup for Home Assistant",
		Long: `vehiclelookup looks up vehicles in the Statens vegvesen registry by
registration number and exposes the result to Home Assistant over the
WebSocket API, MQTT discovery and a small HTTP API.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().String(config.KeyConfigFile, "", "Path to a YAML config file")
	root.PersistentFlags().String("api-key", "", "Statens vegvesen API key (VEGVESEN_API_KEY)")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (LOG_LEVEL)")
	root.PersistentFlags().Bool("dev", false, "Human readable development logging")

	if err := bindFlags(v, root, map[string]string{
		config.KeyConfigFile:     config.KeyConfigFile,
		config.KeyAPIKey:         "api-key",
		config.KeyLogLevel:       "log-level",
		config.KeyLogDevelopment: "dev",
	}, true); err != nil {
		panic(err)
	}

	root.AddCommand(newServeCmd(v))
	root.AddCommand(newLookupCmd(v))
	root.AddCommand(newValidateKeyCmd(v))
	root.AddCommand(newAttributesCmd(v))

	return root
}

// bindFlags binds viper keys to flag names on cmd. Subcommands that share
// a key bind in PreRunE so only the command being run owns it.
func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string, persistent bool) error {
	flags := cmd.Flags()
	if persistent {
		flags = cmd.PersistentFlags()
	}
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// bindOnRun binds keys when cmd is about to run.
func bindOnRun(v *viper.Viper, keys map[string]string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		return bindFlags(v, cmd, keys, false)
	}
}

// loadConfig resolves the configuration and builds the logger.
func loadConfig(v *viper.Viper) (*config.Config, *zap.Logger, error) {
	if err := config.SetDefaults(v); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newLogger(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	zc := zap.NewProductionConfig()
	if development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

func newRegistryClient(cfg *config.Config, logger *zap.Logger) *vegvesen.Client {
	return vegvesen.NewClient(cfg.APIKey, logger,
		vegvesen.WithBaseURL(cfg.APIBaseURL),
		vegvesen.WithTimeout(cfg.APITimeout))
}
