package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/console"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/searcher/executor"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/logger"
)

func DefineConsoleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "console",
		Short:        "Build the catalog and start the interactive query prompt",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         RunConsole,
	}

	cmd.Flags().String("log-file", "", "write logs to this file instead of stderr")
	cmd.Flags().Bool("no-prompt", false, "do not print a prompt, for piped input")

	return cmd
}

func RunConsole(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logOut := os.Stderr
	if path, _ := cmd.Flags().GetString("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger.SetupTo(logOut, cfg.Logging.Level, cfg.Logging.Format)

	ctx := cmd.Context()
	cat, db, err := buildCatalog(ctx, cfg, nil)
	if err != nil {
		return err
	}
	if db != nil {
		db.Close()
	}

	var opts []executor.Option
	queryCache, redisClient := connectCache(ctx, cfg)
	if queryCache != nil {
		defer redisClient.Close()
		opts = append(opts, executor.WithCache(queryCache))
	}
	exec := executor.New(cat, cfg.Search, opts...)

	var consoleOpts []console.Option
	if noPrompt, _ := cmd.Flags().GetBool("no-prompt"); noPrompt {
		consoleOpts = append(consoleOpts, console.WithPrompt(""))
	}
	fmt.Fprintln(cmd.OutOrStdout(), `fifadex ready, type "help" for commands`)
	return console.New(exec, cmd.OutOrStdout(), consoleOpts...).Run(ctx, cmd.InOrStdin())
}
