package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/prospector/internal/leads"
	"github.com/spigell/prospector/internal/logger"
)

var signalCmd = &cobra.Command{
	Use:   "signal <id>",
	Short: "Process a single signal and print the opportunities as json",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSignal(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(signalCmd)

	signalCmd.Flags().IntP("max-results", "n", 0, "maximum search results for the signal. Default is run.results-per-signal")
}

func runSignal(cmd *cobra.Command, arg string) error {
	id, err := strconv.Atoi(arg)
	if err != nil || !leads.ValidSignal(id) {
		return fmt.Errorf("invalid signal id %q", arg)
	}

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	cfg, err := getConfig()
	if err != nil {
		return fmt.Errorf("getting a config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Run.Timeout)
	defer cancel()

	p, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("building the pipeline: %w", err)
	}
	defer p.Close()

	maxResults, _ := cmd.Flags().GetInt("max-results")

	logger.Info("processing signal", zap.Int("signal_type", id), zap.String("signal_name", p.signals.Name(id)))

	found, err := p.orchestrator.ProcessSignal(ctx, id, maxResults)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(found)
}
