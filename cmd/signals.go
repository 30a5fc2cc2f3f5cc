package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spigell/prospector/internal/leads"
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "List the signal catalog with configured overrides",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := getConfig()
		if err != nil {
			return fmt.Errorf("getting a config: %w", err)
		}

		signals := leads.DefaultSignals().WithOverrides(cfg.SignalOverrides())

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTEMPLATE\tTHRESHOLD\tQUERIES")
		for _, id := range signals.IDs() {
			s := signals[id]
			fmt.Fprintf(w, "%d\t%s\t%s\t%g\t%s\n",
				s.ID, s.Name, s.TemplateID,
				signals.ThresholdFor(id, cfg.Quality.MinRelevance),
				strings.Join(s.Queries, "; "),
			)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(signalsCmd)
}
