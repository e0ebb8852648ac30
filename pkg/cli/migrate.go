package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/researchportal/pubportal/pkg/storage"
)

func newMigrateCommand(opts *options) *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if list {
				for _, m := range storage.Migrations(cfg.Database.Driver) {
					fmt.Fprintf(out, "%3d  %s\n", m.Version, m.Description)
				}
				return nil
			}

			db, err := openDatabase(cmd.Context(), cfg, logger(cfg), true)
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Fprintf(out, "database is up to date (%s)\n", cfg.Database.Driver)
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "print the known migrations without applying them")
	return cmd
}
