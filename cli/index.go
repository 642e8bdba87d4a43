package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fabfab/booksearch/indexer"
)

var (
	indexForce bool
	indexBook  string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index books in the library",
	Long: `Scans the books directory and indexes every supported file (EPUB, PDF,
TXT, MD). Books already indexed at their current content are skipped
unless --force is given. With --book only that file is (re)indexed.`,
	RunE: runIndex,
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Index only new or changed books",
	RunE: func(cmd *cobra.Command, args []string) error {
		indexForce = false
		indexBook = ""
		return runIndex(cmd, args)
	},
}

func init() {
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "reindex books even if unchanged")
	indexCmd.Flags().StringVar(&indexBook, "book", "", "index a single book by path")
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(updateCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	vs, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	ix, err := newIndexer(cfg, embedder, vs)
	if err != nil {
		return err
	}

	if indexBook != "" {
		result, err := ix.IngestBook(ctx, indexBook, true)
		if err != nil {
			return fmt.Errorf("index %s: %w", indexBook, err)
		}
		switch result.Status {
		case indexer.StatusEmpty:
			cmd.Printf("%s produced no chunks; nothing indexed\n", indexBook)
		default:
			cmd.Printf("Indexed %s: %d chapter chunks, %d paragraph chunks\n",
				indexBook, result.ChapterChunks, result.ParagraphChunks)
		}
		return nil
	}

	stats, err := ix.IngestLibrary(ctx, indexForce, func(ev indexer.ProgressEvent) {
		switch {
		case ev.Err != nil:
			cmd.Printf("  FAILED  %s: %v\n", ev.Path, ev.Err)
		case ev.Result.Status == indexer.StatusIndexed:
			cmd.Printf("  indexed %s (%d chapters, %d paragraphs)\n",
				ev.Path, ev.Result.ChapterChunks, ev.Result.ParagraphChunks)
		default:
			cmd.Printf("  %s %s\n", ev.Result.Status, ev.Path)
		}
	})
	if err != nil {
		return err
	}

	cmd.Println()
	cmd.Printf("Books found:     %d\n", stats.Found)
	cmd.Printf("Processed:       %d\n", stats.Processed)
	cmd.Printf("Skipped:         %d\n", stats.Skipped)
	if stats.Failed > 0 {
		cmd.Printf("Failed:          %d\n", stats.Failed)
	}
	cmd.Printf("Chapter chunks:  %d\n", stats.ChapterChunks)
	cmd.Printf("Paragraph chunks: %d\n", stats.ParagraphChunks)
	return nil
}
