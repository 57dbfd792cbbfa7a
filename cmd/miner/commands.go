package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"forecast-miner/internal/client"
	"forecast-miner/internal/common"
	"forecast-miner/internal/discovery"
	"forecast-miner/internal/storage"

	"github.com/spf13/cobra"
)

var (
	queryURL     string
	queryTimeout time.Duration
	historyFrom  string
	historyTo    string
	historyLimit int
)

// reportCapture keeps the last discovery report, including failed runs.
type reportCapture struct {
	report discovery.Report
}

func (r *reportCapture) RecordDiscovery(report discovery.Report) error {
	r.report = report
	return nil
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run discovery once and print the report",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		capture := &reportCapture{}
		engine, err := newEngine(discovery.WithRecorder(capture))
		if err != nil {
			return err
		}
		_, derr := engine.Discover(cmd.Context())
		if err := printJSON(capture.report); err != nil {
			return err
		}
		return derr
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List candidate files under the root without loading anything",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := discovery.List(settings.DiscoveryConfig())
		if err != nil {
			return err
		}
		return printJSON(c)
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict <timestamp>...",
	Short: "Discover locally and print forecasts for the given timestamps",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}
		res, err := engine.Discover(cmd.Context())
		if err != nil {
			return err
		}
		var failed error
		for _, ts := range args {
			p, err := res.Predictor.Predict(cmd.Context(), ts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", ts, err)
				failed = errors.Join(failed, err)
				continue
			}
			if err := printJSON(p); err != nil {
				return err
			}
		}
		return failed
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <timestamp>...",
	Short: "Ask a running miner for forecasts",
	Args:  cobra.MinimumNArgs(1),
	// query talks to a remote miner and needs no local configuration.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging("warn", true)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(queryURL, queryTimeout)
		var failed error
		for _, ts := range args {
			resp, err := c.Predict(cmd.Context(), ts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", ts, err)
				failed = errors.Join(failed, err)
				continue
			}
			if err := printJSON(resp); err != nil {
				return err
			}
		}
		return failed
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print journaled discoveries and served predictions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if settings.JournalPath == "" {
			return errors.New("no journal configured, set " + common.EnvJournalPath)
		}
		store, err := storage.New(settings.JournalPath)
		if err != nil {
			return err
		}
		defer store.Close()

		discoveries, err := store.Discoveries(historyLimit)
		if err != nil {
			return err
		}
		from, to := time.Unix(0, math.MinInt64), time.Unix(0, math.MaxInt64-1)
		if historyFrom != "" {
			if from, err = common.ParseTimestamp(historyFrom); err != nil {
				return err
			}
		}
		if historyTo != "" {
			if to, err = common.ParseTimestamp(historyTo); err != nil {
				return err
			}
		}
		predictions, err := store.Predictions(from, to)
		if err != nil {
			return err
		}
		return printJSON(struct {
			Discoveries []storage.DiscoveryRecord  `json:"discoveries"`
			Predictions []storage.PredictionRecord `json:"predictions"`
		}{discoveries, predictions})
	},
}

func init() {
	queryCmd.Flags().StringVarP(&queryURL, "url", "u", "http://localhost:8091", "miner base URL")
	queryCmd.Flags().DurationVar(&queryTimeout, "timeout", 5*time.Second, "request timeout")

	historyCmd.Flags().StringVar(&historyFrom, "from", "", "earliest forecast timestamp to list")
	historyCmd.Flags().StringVar(&historyTo, "to", "", "latest forecast timestamp to list")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of discovery reports to list")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
