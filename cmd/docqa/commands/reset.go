package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/logging"
)

// NewResetCmd constructs the `docqa reset` command.
func NewResetCmd() *cobra.Command {
	var deleteFiles bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Remove every indexed chunk",
		Long: `Empty the index and its metadata and forget the ingested documents.
With --delete-files the snapshot files are removed from the data directory
as well.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			a, err := openStorage(ctx, log)
			if err != nil {
				return fmt.Errorf("reset: %w", err)
			}
			defer a.Close(ctx)

			if err := a.store.Reset(ctx, deleteFiles); err != nil {
				return fmt.Errorf("reset: %w", err)
			}
			if a.catalog != nil {
				if err := a.catalog.ClearDocuments(ctx); err != nil {
					log.Warn("catalog: clear failed", slog.Any("error", err))
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "index reset")
			return nil
		},
	}

	cmd.Flags().BoolVar(&deleteFiles, "delete-files", false, "Also delete the snapshot files")

	return cmd
}
