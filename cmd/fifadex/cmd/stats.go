package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/console"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/logger"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/tracing"
)

func DefineStatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "stats",
		Short:        "Build the catalog and print index occupancy, counts and stage timings",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         RunStats,
	}

	cmd.Flags().Bool("json", false, "print the statistics as JSON")
	cmd.Flags().Bool("trace", false, "print the build span tree")

	return cmd
}

func RunStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger.SetupTo(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	cat, db, err := buildCatalog(cmd.Context(), cfg, nil)
	if err != nil {
		return err
	}
	if db != nil {
		db.Close()
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(cat.Stats())
	}
	if err := console.WriteStats(out, cat.Stats()); err != nil {
		return err
	}
	if trace, _ := cmd.Flags().GetBool("trace"); trace && cat.Trace() != nil {
		fmt.Fprintln(out)
		cat.Trace().Walk(func(depth int, span *tracing.Span) {
			fmt.Fprintf(out, "%s%s %s\n", strings.Repeat("  ", depth), span.Name, span.Duration)
		})
	}
	return nil
}
