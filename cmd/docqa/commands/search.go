package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/rag"
)

// NewSearchCmd constructs the `docqa search` command, which prints the
// nearest chunks for a query without running question answering.
func NewSearchCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "List the indexed chunks closest to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, logging.FromContext(ctx))
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer a.Close(ctx)

			hits, err := a.pipeline.Search(ctx, strings.Join(args, " "), topK)
			if errors.Is(err, rag.ErrEmptyIndex) {
				return fmt.Errorf("search: no documents have been ingested yet")
			}
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			sources := make([]rag.Source, 0, len(hits))
			for _, h := range hits {
				sources = append(sources, rag.SourceFromHit(h))
			}
			return printJSON(cmd.OutOrStdout(), sources)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Neighbours to retrieve (default: DOCQA_TOP_K or 5)")

	return cmd
}
