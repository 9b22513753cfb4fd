package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"sf/internal/config"
	"sf/internal/logging"
)

var (
	cfg       *config.Config
	cfgFile   string
	configErr error
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sf",
	Short: "sf - send files over the local network",
	Long: `sf sends files and directory trees from one machine to another over a
single TCP connection on the local network.

The receiver listens and broadcasts its address on the subnet. The sender
either picks up that broadcast or connects to an address given directly.

Usage:
  Receive into the current directory: sf receive
  Send to whoever is listening:       sf send auto photos/ notes.txt
  Send to a known receiver:           sf send 192.168.1.20 photos/`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initConfig()

		loaded, err := config.Load(viper.GetViper())
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = loaded

		return logging.Init(logging.Config{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Sync()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sf.yaml)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "console", "log format: console or json")
	flags.String("metrics-addr", "", "serve prometheus metrics on this address, e.g. :9090")
	flags.Uint16("port", config.DefaultPort, "TCP port of the transfer stream")

	viper.BindPFlag("log.level", flags.Lookup("log-level"))
	viper.BindPFlag("log.format", flags.Lookup("log-format"))
	viper.BindPFlag("metrics.addr", flags.Lookup("metrics-addr"))
	viper.BindPFlag("transfer.port", flags.Lookup("port"))

	// SF_TRANSFER_PORT, SF_LOG_LEVEL, ...
	viper.SetEnvPrefix("SF")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}

		// Search config in home directory with name ".sf" (without extension)
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".sf")
	}

	// reported by logConfigSource once logging is up
	configErr = viper.ReadInConfig()
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}

// logConfigSource reports which config file, if any, was applied
func logConfigSource(logger *zap.Logger) {
	if configErr == nil {
		logger.Debug("using config file", zap.String("path", viper.ConfigFileUsed()))
		return
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(configErr, &notFound) {
		return
	}
	logger.Warn("config file not loaded", zap.Error(configErr))
}

// createContext creates a context that cancels on interrupt signals
func createContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
