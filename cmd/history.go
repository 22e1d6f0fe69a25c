// File: cmd/history.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/patrol-cli/internal/history"
	"github.com/xkilldash9x/patrol-cli/internal/observability"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent visits from the history database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			dsn := cfg.History().DatabaseURL
			if dsn == "" {
				return fmt.Errorf("history.database_url is not set")
			}

			store, closeDB, err := history.Connect(cmd.Context(), dsn, observability.GetLogger(), cfg.History().Timeout)
			if err != nil {
				return err
			}
			defer closeDB()

			results, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printResults(cmd.OutOrStdout(), results, asJSON)
		},
	}
	historyCmd.Flags().IntVar(&limit, "limit", 20, "maximum number of visits to show")
	historyCmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return historyCmd
}
