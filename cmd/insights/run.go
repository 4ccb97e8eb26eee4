package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"query-insights/internal/domain"
)

func newRunCmd(opts *options) *cobra.Command {
	var cached bool
	cmd := &cobra.Command{
		Use:   "run <query-id>",
		Short: "Fetch a saved query and print its results",
		Long: "Runs a saved query against its data source and prints the shaped results.\n" +
			"With --cached the last cached results are printed without running the query.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := loadConfig(opts)
			if err != nil {
				return err
			}
			rt, err := openRuntime(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck

			var results *domain.ResultSet
			if cached {
				results, err = rt.app.Query.Results(ctx, args[0])
			} else {
				results, err = rt.app.Query.Fetch(ctx, args[0])
			}
			if err != nil {
				return err
			}
			return printResults(opts, results)
		},
	}
	cmd.Flags().BoolVar(&cached, "cached", false, "Print cached results instead of running the query")
	return cmd
}

func newListCmd(opts *options) *cobra.Command {
	var maxResults int
	var pageToken string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, err := loadConfig(opts)
			if err != nil {
				return err
			}
			rt, err := openRuntime(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck

			page := domain.PageRequest{MaxResults: maxResults, PageToken: pageToken}
			docs, total, err := rt.app.Query.List(ctx, page)
			if err != nil {
				return err
			}
			return printQueries(opts, docs, domain.NextPageToken(page.Offset(), page.Limit(), total))
		},
	}
	cmd.Flags().IntVar(&maxResults, "max-results", domain.DefaultPageSize, "Maximum number of queries to list")
	cmd.Flags().StringVar(&pageToken, "page-token", "", "Token of the page to list")
	return cmd
}

func newSyncCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <data-source>",
		Short: "Store the table metadata of a data source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := loadConfig(opts)
			if err != nil {
				return err
			}
			rt, err := openRuntime(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck

			n, err := rt.app.Query.SyncDataSource(ctx, args[0])
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(opts.stdout, map[string]any{"data_source": args[0], "tables": n})
			}
			_, err = fmt.Fprintf(opts.stdout, "synced %d table(s) from %s\n", n, args[0])
			return err
		},
	}
}
