// Package commands defines all Cobra CLI commands for the docqa binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/audit"
	"github.com/54b3r/docqa-go/internal/config"
	"github.com/54b3r/docqa-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docqa",
		Short: "docqa: question answering over your PDF documents",
		Long: `docqa splits PDF documents into page-tagged chunks, embeds them into an
exact L2 vector index and answers questions from the closest chunk, citing
where in the document the answer was found.

The index lives in DOCQA_DATA_DIR (default: ~/.docqa) and is restored on
every start. Settings come from environment variables or a YAML config
file (~/.docqa/config.yaml); environment variables always win.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			// Rebuild so LOG_LEVEL / LOG_FORMAT from the config file apply.
			log = logging.New()
			cmd.SetContext(logging.WithLogger(cmd.Context(), log))

			audit.LogCommandStart(cmd.Context(), log, cmd.Name(), path)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.docqa/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewQueryCmd(),
		NewSearchCmd(),
		NewStatsCmd(),
		NewResetCmd(),
		NewDocumentsCmd(),
		NewVersionCmd(),
	)

	return root
}
