package cli

import (
	"fmt"

	"cdhsearch/internal/config"
	"cdhsearch/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "cdhsearch",
	Short: "Find visually similar images",
	Long: `cdhsearch ranks images by similarity of their color histogram,
color difference histogram and mean color.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads --config, or the defaults when unset, and applies logging.
// quiet lowers logging to errors unless --log-level is given, for commands
// that print results to stdout.
func loadConfig(quiet bool) (*config.Config, error) {
	conf := config.Default()
	if configPath != "" {
		var err error
		if conf, err = config.FromFile(configPath); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	switch {
	case logLevel != "":
		conf.Log.Level = logLevel
	case quiet:
		conf.Log.Level = logger.ErrorLevel
	}
	if err := logger.InitLogger(conf.Log.Level, conf.Log.File); err != nil {
		return nil, err
	}
	return conf, nil
}
