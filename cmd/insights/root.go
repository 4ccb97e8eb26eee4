package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"query-insights/internal/config"
	"query-insights/internal/domain"
)

var (
	version = "dev"
	commit  = "none"
)

// options are the resolved persistent flags.
type options struct {
	envFile string
	output  string
	stdout  io.Writer
	stderr  io.Writer
}

// execute runs the CLI and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts := &options{stdout: stdout, stderr: stderr}
	rootCmd := newRootCmd(opts)
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if opts.output == "json" {
			errObj := map[string]any{"error": err.Error()}
			var validation *domain.ValidationError
			var notFound *domain.NotFoundError
			switch {
			case errors.As(err, &validation):
				errObj["code"] = "validation"
			case errors.As(err, &notFound):
				errObj["code"] = "not_found"
			}
			_ = printJSON(opts.stdout, errObj)
		} else {
			_, _ = fmt.Fprintf(opts.stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd(opts *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "insights",
		Short:         "Query insights server and CLI",
		Long:          "Build, run and inspect saved analytical queries against DuckDB and SQLite data sources.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if opts.output != "table" && opts.output != "json" {
				return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", opts.output)
			}
			return nil
		},
	}
	rootCmd.SetOut(opts.stdout)
	rootCmd.SetErr(opts.stderr)

	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Path to a .env file loaded before the environment")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "Output format (table, json)")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newListCmd(opts))
	rootCmd.AddCommand(newSyncCmd(opts))
	rootCmd.AddCommand(newMigrateCmd(opts))
	rootCmd.AddCommand(newVersionCmd(opts))
	return rootCmd
}

// loadConfig reads .env and the environment, builds the logger and reports
// config warnings through it.
func loadConfig(opts *options) (*config.Config, *slog.Logger, error) {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", opts.envFile, err)
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(opts.stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}
	return cfg, logger, nil
}

func newVersionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if opts.output == "json" {
				return printJSON(opts.stdout, map[string]string{"version": version, "commit": commit})
			}
			_, err := fmt.Fprintf(opts.stdout, "insights version %s (commit: %s)\n", version, commit)
			return err
		},
	}
}
