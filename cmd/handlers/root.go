package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nicheexplorer",
		Short: "NicheExplorer discovers topics in research and community feeds.",
		Long: `NicheExplorer turns a free-text query into ranked topics: it picks an
article source (arXiv or Reddit), fetches matching articles, embeds them
with a pgvector-backed cache, clusters the embeddings, and labels each
cluster with an LLM.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.nicheexplorer.yaml)")

	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewDiscoverCmd())

	return rootCmd
}

// Execute runs the root command.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
