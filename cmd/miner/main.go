package main

import (
	"fmt"
	"os"

	"forecast-miner/internal/cfg"
	"forecast-miner/internal/common"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfgPath  string
	rootDir  string
	logLevel string
	pretty   bool

	settings cfg.Settings
)

var rootCmd = &cobra.Command{
	Use:           "miner",
	Short:         "Forecast miner: discovers a prediction module and serves its forecasts",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := cfgPath
		if path == "" {
			path = os.Getenv(common.EnvConfigFile)
		}
		s, err := cfg.LoadFile(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if rootDir != "" {
			s.Root = rootDir
		}
		if logLevel != "" {
			s.LogLevel = logLevel
		}
		if cmd.Flags().Changed("pretty") {
			s.LogPretty = pretty
		}
		settings = s
		setupLogging(s.LogLevel, s.LogPretty)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (defaults to $"+common.EnvConfigFile+")")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "root", "r", "", "root directory to discover from")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "human readable console logs")

	rootCmd.AddCommand(serveCmd, discoverCmd, listCmd, predictCmd, queryCmd, historyCmd)
}

func setupLogging(level string, console bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
