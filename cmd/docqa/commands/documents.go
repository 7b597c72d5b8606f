package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/catalog"
	"github.com/54b3r/docqa-go/internal/logging"
)

// NewDocumentsCmd constructs the `docqa documents` command, which lists the
// documents recorded in the catalog, oldest first.
func NewDocumentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "documents",
		Short: "List ingested documents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openStorage(ctx, logging.FromContext(ctx))
			if err != nil {
				return fmt.Errorf("documents: %w", err)
			}
			defer a.Close(ctx)

			docs := []catalog.Document{}
			if a.catalog != nil {
				if docs, err = a.catalog.Documents(ctx); err != nil {
					return fmt.Errorf("documents: %w", err)
				}
			}
			if docs == nil {
				docs = []catalog.Document{}
			}
			return printJSON(cmd.OutOrStdout(), docs)
		},
	}
}
