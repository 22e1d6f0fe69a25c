// File: cmd/prune.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/patrol-cli/internal/observability"
	"github.com/xkilldash9x/patrol-cli/internal/retention"
)

func newPruneCmd() *cobra.Command {
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Apply the retention bound to the artifact directory",
		Long: `Indexes the capture files already on disk and deletes the oldest until at
most artifacts.capacity remain. Files that are not captures are left alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			store, err := retention.Inspect(logger, cfg.Artifacts().Dir, cfg.Artifacts().Capacity)
			if err != nil {
				return fmt.Errorf("failed to open artifact store: %w", err)
			}
			removed, err := store.Prune()
			if err != nil {
				return fmt.Errorf("prune failed: %w", err)
			}

			logger.Info("Artifacts pruned.", zap.Int("removed", removed), zap.Int("kept", store.Len()))
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d, kept %d of %d in %s\n", removed, store.Len(), store.Capacity(), store.Dir())
			return nil
		},
	}
	pruneCmd.Flags().Int("capacity", 100, "number of capture files to keep")
	bindFlags(pruneCmd.Flags(), map[string]string{"capacity": "artifacts.capacity"})
	return pruneCmd
}
