// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/patrol-cli/internal/config"
	"github.com/xkilldash9x/patrol-cli/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

// configKeyAnnotation marks a flag as an override for a configuration key.
const configKeyAnnotation = "patrol/config-key"

// NewRootCommand builds a fresh command tree with its own viper instance, so
// flags never leak between executions.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "patrol",
		Short:         "patrol visits targets in a headless browser on a schedule and reports what it saw.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(cmd, v, cfgFile); err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "patrol"})
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "patrol"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting patrol", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "config file (default is ./patrol.yaml)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.Bool("headless", true, "run the browser without a window")
	pf.String("artifacts-dir", "screenshots", "directory for capture files")
	bindFlags(pf, map[string]string{
		"log-level":     "logger.level",
		"headless":      "browser.headless",
		"artifacts-dir": "artifacts.dir",
	})

	rootCmd.SetVersionTemplate(`{{printf "patrol version %s\n" .Version}}`)

	rootCmd.AddCommand(
		newRunCmd(),
		newVisitCmd(),
		newPruneCmd(),
		newLogsCmd(),
		newHistoryCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// bindFlags annotates flags with the configuration keys they override. The
// binding itself happens in initializeConfig, against the viper instance of
// that execution.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		_ = fs.SetAnnotation(name, configKeyAnnotation, []string{key})
	}
}

// Execute runs the command tree under ctx and logs the failure, if any.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	observability.Sync()
	return err
}

// initializeConfig reads the config file and environment, then binds every
// annotated flag of the executing command to its configuration key.
func initializeConfig(cmd *cobra.Command, v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("patrol")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("PATROL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		keys, ok := f.Annotations[configKeyAnnotation]
		if !ok || len(keys) == 0 || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(keys[0], f)
	})
	return bindErr
}

// getConfigFromContext returns the configuration stored by PersistentPreRunE.
func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration missing from command context")
	}
	return cfg, nil
}
