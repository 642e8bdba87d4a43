package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fabfab/booksearch/search"
)

var (
	searchLimit  int
	searchLevel  string
	searchAuthor string
	searchTitle  string
	searchFull   bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the library by meaning",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (default from config)")
	searchCmd.Flags().StringVar(&searchLevel, "level", "both", "search granularity: chapter, paragraph or both")
	searchCmd.Flags().StringVar(&searchAuthor, "author", "", "filter by author name (substring)")
	searchCmd.Flags().StringVar(&searchTitle, "book", "", "filter by book title (substring)")
	searchCmd.Flags().BoolVar(&searchFull, "full", false, "show full text instead of a preview")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	kind := ""
	switch searchLevel {
	case "chapter", "paragraph":
		kind = searchLevel
	case "both", "":
	default:
		return fmt.Errorf("invalid --level %q: want chapter, paragraph or both", searchLevel)
	}

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

	searcher := search.New(embedder, vs, cfg.Search)
	results, err := searcher.Search(ctx, query, search.Options{
		Limit:  searchLimit,
		Kind:   kind,
		Author: searchAuthor,
		Title:  searchTitle,
	})
	if err != nil {
		return err
	}

	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Printf("Found %d result(s):\n", len(results))
	for i, r := range results {
		cmd.Printf("\n%d. %s - %s\n", i+1, r.BookTitle, r.BookAuthor)
		cmd.Printf("   Chapter: %s (Ch. %d)\n", r.ChapterTitle, r.ChapterNumber)
		cmd.Printf("   Type: %s\n", r.Kind)
		cmd.Printf("   Similarity: %.3f\n", r.Similarity)
		if searchFull {
			cmd.Printf("   Text: %s\n", r.Text)
		} else {
			cmd.Printf("   Preview: %s\n", r.Preview(200))
		}
	}
	return nil
}
