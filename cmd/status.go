package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/prospector/internal/inference"
	"github.com/spigell/prospector/internal/logger"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe the inference backend and print its status",
	RunE: func(_ *cobra.Command, _ []string) error {
		logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
		if err != nil {
			log.Fatalf("creating a logger: %s", err)
		}
		defer logger.Sync()

		cfg, err := getConfig()
		if err != nil {
			return fmt.Errorf("getting a config: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Inference.Timeout*2)
		defer cancel()

		client := newInference(ctx, cfg.Inference, logger)
		defer client.Close()

		report := struct {
			Healthy   bool             `json:"healthy"`
			Inference inference.Status `json:"inference"`
			Sink      string           `json:"sink"`
			Search    string           `json:"search"`
		}{
			Healthy:   client.HealthCheck(ctx),
			Inference: client.Status(),
			Sink:      cfg.Sink.Kind,
			Search:    cfg.Search.Provider,
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
