package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"vehiclelookup/internal/attributes"
	"vehiclelookup/internal/clock"
	"vehiclelookup/internal/config"
	"vehiclelookup/internal/coordinator"
	"vehiclelookup/internal/regnr"
)

const maxColumnWidth = 60

func newLookupCmd(v *viper.Viper) *cobra.Command {
	var (
		asJSON bool
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "lookup <regnr>",
		Short: "Look up one vehicle and print its attributes",
		Args:    cobra.ExactArgs(1),
		PreRunE: bindOnRun(v, map[string]string{config.KeyOptionsFile: "options"}),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(cmd.Context(), v, cmd.OutOrStdout(), args[0], asJSON, all)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw vehicle record as JSON")
	cmd.Flags().BoolVar(&all, "all", false, "Include attributes without a value")
	cmd.Flags().String("options", "", "Path to the options file, for custom attributes")

	return cmd
}

func runLookup(ctx context.Context, v *viper.Viper, out io.Writer, raw string, asJSON, all bool) error {
	cfg, logger, err := loadConfig(v)
	if err != nil {
		return err
	}
	defer logger.Sync()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	number, err := regnr.Parse(raw)
	if err != nil {
		return err
	}
	defs, err := loadDefinitions(cfg, logger)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	coord := coordinator.New(newRegistryClient(cfg, logger), clock.NewRealClock(), logger)
	coord.SetTarget(number)
	if _, err := coord.RequestRefresh(ctx); err != nil {
		return err
	}
	snap := coord.Snapshot()

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap.Record)
	}

	if snap.Status == coordinator.StatusNotFound {
		fmt.Fprintf(out, "No vehicle registered as %s\n", number)
		return nil
	}

	table := uitable.New()
	table.MaxColWidth = maxColumnWidth
	table.Wrap = true
	table.AddRow("ATTRIBUTE", "VALUE", "UNIT")
	for _, def := range defs {
		value := attributes.Value(snap.Record, def)
		if value == nil && !all {
			continue
		}
		table.AddRow(def.Name, formatValue(value), def.Unit)
	}
	fmt.Fprintln(out, table)
	return nil
}

func newValidateKeyCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-key",
		Short: "Check that the registry accepts the API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(v)
			if err != nil {
				return err
			}
			defer logger.Sync()
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ok, err := newRegistryClient(cfg, logger).ValidateKey(ctx)
			if err != nil {
				return fmt.Errorf("cannot reach the registry: %w", err)
			}
			if !ok {
				return ErrInvalidAPIKey
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key accepted")
			return nil
		},
	}
}

func newAttributesCmd(v *viper.Viper) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "attributes",
		Short: "List the attributes exposed for a vehicle",
		Args:    cobra.NoArgs,
		PreRunE: bindOnRun(v, map[string]string{config.KeyOptionsFile: "options"}),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(v)
			if err != nil {
				return err
			}
			defer logger.Sync()

			defs, err := loadDefinitions(cfg, logger)
			if err != nil {
				return err
			}
			printDefinitions(cmd.OutOrStdout(), defs, category)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Only list one category")
	cmd.Flags().String("options", "", "Path to the options file, for custom attributes")

	return cmd
}

func printDefinitions(out io.Writer, defs []attributes.Definition, category string) {
	table := uitable.New()
	table.MaxColWidth = maxColumnWidth
	table.AddRow("KEY", "NAME", "CATEGORY", "ENABLED", "UNIT")
	for _, def := range defs {
		if category != "" && string(def.Category) != category {
			continue
		}
		table.AddRow(def.Key, def.Name, def.Category, def.EnabledDefault, def.Unit)
	}
	fmt.Fprintln(out, table)
}

// loadDefinitions resolves the attribute set from the options file.
func loadDefinitions(cfg *config.Config, logger *zap.Logger) ([]attributes.Definition, error) {
	loader := config.NewLoader(cfg.OptionsFile, logger)
	if err := loader.Load(); err != nil {
		return nil, err
	}
	return loader.Options().Definitions()
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "-"
	case string:
		return t
	case map[string]any, []any:
		data, _ := json.Marshal(t)
		return string(data)
	default:
		return fmt.Sprint(t)
	}
}
