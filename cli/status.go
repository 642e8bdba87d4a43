package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/fabfab/booksearch/ledger"
	"github.com/fabfab/booksearch/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index status and statistics",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	led, err := ledger.Open(cfg.Paths.LedgerFile)
	if err != nil {
		return err
	}
	stats := led.Stats()

	cmd.Println("=== Index Status ===")
	cmd.Printf("Books indexed:    %d\n", stats.Books)
	cmd.Printf("Chapter chunks:   %d\n", stats.ChapterChunks)
	cmd.Printf("Paragraph chunks: %d\n", stats.ParagraphChunks)
	if stats.LastUpdate != nil {
		cmd.Printf("Last update:      %s\n", stats.LastUpdate.Format("2006-01-02 15:04:05"))
	} else {
		cmd.Println("Last update:      never")
	}

	ctx := cmd.Context()
	vs, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	count, err := vs.Count(ctx)
	if err != nil {
		if errors.Is(err, store.ErrIndexNotInitialized) {
			cmd.Println("\n(collection not yet created - run indexing first)")
			return nil
		}
		return err
	}
	cmd.Printf("\nChunks in store:  %d\n", count)
	return nil
}
