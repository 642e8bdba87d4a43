// Package cli wires the booksearch commands: index, update, search, status,
// clear and init.
package cli

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fabfab/booksearch/chunker"
	"github.com/fabfab/booksearch/config"
	"github.com/fabfab/booksearch/embeddings"
	"github.com/fabfab/booksearch/indexer"
	"github.com/fabfab/booksearch/ledger"
	"github.com/fabfab/booksearch/parser"
	"github.com/fabfab/booksearch/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "booksearch",
	Short:         "Semantic search over a personal e-book library",
	Long:          "booksearch indexes EPUB, PDF and plain-text books into a vector store\nand answers free-text queries by meaning rather than keyword.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default booksearch.yaml)")
}

// ExecuteContext runs the CLI. The process exits 1 on any returned error.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()
	return config.Load(configPath)
}

func newLogger() *log.Logger {
	return log.New(os.Stderr, "", log.LstdFlags)
}

// openStore builds the configured vector store backend. The returned closer
// releases the connection pool, if any.
func openStore(ctx context.Context, cfg *config.Config) (store.VectorStore, func(), error) {
	switch cfg.Store.Backend {
	case "memory":
		return store.NewMemory(cfg.Store.DistanceMetric), func() {}, nil
	case "postgres", "":
		pool, err := store.NewPostgresPool(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connection: %w", err)
		}
		pg := store.NewPostgres(pool, cfg.Store.Collection, cfg.Store.DistanceMetric, cfg.OpenAI.Dimensions)
		return pg, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

func newEmbedder(cfg *config.Config) (embeddings.Embedder, error) {
	client, err := embeddings.NewOpenAIClient(cfg.OpenAI)
	if err != nil {
		return nil, fmt.Errorf("embedder setup: %w", err)
	}
	return client, nil
}

func newIndexer(cfg *config.Config, embedder embeddings.Embedder, vs store.VectorStore) (*indexer.Indexer, error) {
	led, err := ledger.Open(cfg.Paths.LedgerFile)
	if err != nil {
		return nil, err
	}
	return indexer.New(cfg, parser.NewRegistry(), chunker.NewBuilder(cfg.Chunking), embedder, vs, led, newLogger()), nil
}
