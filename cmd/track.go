package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/creasty/defaults"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dotalive/seriesd/pkg/daemon"
)

//nolint:gochecknoglobals // Cobra flags are typically global
var (
	trackCfgFile string
)

//nolint:gochecknoglobals // Cobra commands are typically global
var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Start the series tracker daemon",
	Long:  `The tracker daemon polls the live feed, correlates series and enriches finished matches.`,
	RunE:  runTrack,
}

func init() {
	rootCmd.AddCommand(trackCmd)
	trackCmd.Flags().StringVar(&trackCfgFile, "config", "config.yaml", "config file (default is config.yaml)")
}

func loadDaemonConfigFromFile(file string) (*daemon.Config, error) {
	if file == "" {
		file = "config.yaml"
	}

	config := &daemon.Config{}

	if err := defaults.Set(config); err != nil {
		return nil, err
	}

	yamlFile, err := os.ReadFile(file) //nolint:gosec // User-provided config file path
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(yamlFile, config); err != nil {
		return nil, err
	}

	return config, nil
}

func runTrack(cmd *cobra.Command, _ []string) error {
	// Silence usage on error
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	// Load configuration
	config, err := loadDaemonConfigFromFile(trackCfgFile)
	if err != nil {
		return err
	}

	// Setup logger
	level, err := logrus.ParseLevel(config.Logging)
	if err != nil {
		return err
	}
	logger := logrus.New()
	logger.SetLevel(level)

	logger.Info("Configuration loaded")

	app := daemon.NewApplication(config, logger)
	if err := app.Start(); err != nil {
		return err
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	return app.Stop()
}
