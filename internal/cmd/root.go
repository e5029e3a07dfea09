package cmd

import (
	"fmt"
	"strings"

	cmdconfig "github.com/Iron-Ham/edgeshift/internal/cmd/config"
	"github.com/Iron-Ham/edgeshift/internal/config"
	"github.com/Iron-Ham/edgeshift/internal/engine"
	"github.com/Iron-Ham/edgeshift/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "edgeshift",
	Short: "Adaptive local/remote task dispatch for edge clients",
	Long: `Edgeshift decides, per task, whether to run it on this device or forward
it to a remote endpoint, based on task characteristics and live device state
(connectivity, network speed, battery, CPU class). Results produced offline
are cached and synchronized once connectivity returns.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/edgeshift/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "override logging.level (debug, info, warn, error)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	cmdconfig.Register(rootCmd)
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("EDGESHIFT")
	// Replace dots with underscores for nested keys in env vars
	// e.g., EDGESHIFT_REMOTE_URL for remote.url
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// newLogger builds the process logger from the logging section.
func newLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	if !cfg.Enabled {
		return logging.NopLogger(), nil
	}
	return logging.NewLogger(cfg.ResolveDir(), logging.ParseLevel(cfg.Level), logging.RotationConfig{
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
}

// openEngine loads the configuration, applies mutate, and builds an Engine.
// The returned close function destroys the engine and closes the log file.
func openEngine(mutate func(*config.Config)) (*engine.Engine, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if mutate != nil {
		mutate(cfg)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}

	eng, err := engine.New(cfg, engine.WithLogger(logger))
	if err != nil {
		_ = logger.Close()
		return nil, nil, fmt.Errorf("failed to create engine: %w", err)
	}

	closeFn := func() error {
		err := eng.Destroy()
		if cerr := logger.Close(); err == nil {
			err = cerr
		}
		return err
	}
	return eng, closeFn, nil
}
