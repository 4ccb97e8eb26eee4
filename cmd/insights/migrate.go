package main

import (
	"fmt"

	"github.com/spf13/cobra"

	internaldb "query-insights/internal/db"
)

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply metadata store migrations and print the schema version",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			meta, err := internaldb.OpenMetaStore(cfg.MetaDBPath)
			if err != nil {
				return err
			}
			defer meta.Close() //nolint:errcheck

			v, err := internaldb.SchemaVersion(meta.Write)
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(opts.stdout, map[string]any{"path": cfg.MetaDBPath, "version": v})
			}
			_, err = fmt.Fprintf(opts.stdout, "%s at schema version %d\n", cfg.MetaDBPath, v)
			return err
		},
	}
}
