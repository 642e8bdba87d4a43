package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Verify configuration and probe the embedding provider",
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cmd.Println("Configuration loaded")
	cmd.Printf("  Books directory: %s\n", cfg.Paths.BooksRoot)
	cmd.Printf("  Data directory:  %s\n", cfg.Paths.DataDir)
	cmd.Printf("  Ledger file:     %s\n", cfg.Paths.LedgerFile)
	cmd.Printf("  Store backend:   %s\n", cfg.Store.Backend)

	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	cmd.Println("Data directory ready")

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	vectors, err := embedder.Embed(cmd.Context(), []string{"test"})
	if err != nil {
		return fmt.Errorf("probe embedding provider: %w", err)
	}
	cmd.Println("Embedding provider reachable")
	cmd.Printf("  Model:      %s\n", cfg.OpenAI.Model)
	cmd.Printf("  Dimensions: %d\n", len(vectors[0]))

	cmd.Println("\nNext steps:")
	cmd.Println("  booksearch index        index your library")
	cmd.Println("  booksearch search \"…\"   search it")
	return nil
}
