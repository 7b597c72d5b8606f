package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/rag"
)

// NewQueryCmd constructs the `docqa query` command, which answers a question
// from the closest indexed chunk and prints the JSON response.
func NewQueryCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Answer a question from the indexed documents",
		Long: `Retrieve the chunks closest to the question, answer it from the single
best chunk and print the answer with its source and citation as JSON.

Examples:
  docqa query "What is the notice period?"
  docqa query --top-k 3 "Who signed the agreement?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, logging.FromContext(ctx))
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			defer a.Close(ctx)

			resp, err := a.pipeline.Query(ctx, strings.Join(args, " "), topK)
			if errors.Is(err, rag.ErrEmptyIndex) {
				return fmt.Errorf("query: no documents have been ingested yet")
			}
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Neighbours to retrieve (default: DOCQA_TOP_K or 5)")

	return cmd
}
