package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/logging"
)

// NewStatsCmd constructs the `docqa stats` command.
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the vector and metadata counts of the index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openStorage(ctx, logging.FromContext(ctx))
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			defer a.Close(ctx)

			return printJSON(cmd.OutOrStdout(), a.store.Stats())
		},
	}
}
