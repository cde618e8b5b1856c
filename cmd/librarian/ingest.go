package librarian

import (
	"context"
	"fmt"
	"os"

	"github.com/soundprediction/go-librarian/pkg/config"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <csv-file>",
	Short: "Load a CSV of books into the library graph",
	Long: `Load book records from a CSV file into Neo4j and ensure the plot
vector index exists.

Expected columns: title, author, language, rating, publication_year,
summary, genres, embeddings. The genres field may use "/" or "," as a
separator. The embeddings field is a bracketed float list; when empty the
summary is embedded via the configured provider.

Ingestion is sequential and fail-fast: the first record that cannot be
written stops the run, and records already committed stay committed.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().String("index-name", "", "Vector index name")
	ingestCmd.Flags().Int("dimensions", 0, "Vector index dimensions")
	ingestCmd.Flags().String("similarity", "", "Similarity function (cosine, euclidean, dot)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("index-name") {
		cfg.Index.Name, _ = cmd.Flags().GetString("index-name")
	}
	if cmd.Flags().Changed("dimensions") {
		cfg.Index.Dimensions, _ = cmd.Flags().GetInt("dimensions")
	}
	if cmd.Flags().Changed("similarity") {
		cfg.Index.Similarity, _ = cmd.Flags().GetString("similarity")
	}

	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer file.Close()

	client, _, log, err := buildClient(cfg)
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer client.Close(ctx)

	if err := client.IngestCSV(ctx, file); err != nil {
		return err
	}

	stats, err := client.Stats(ctx)
	if err != nil {
		return err
	}
	log.Info("library graph ready",
		"books", stats.Books,
		"authors", stats.Authors,
		"genres", stats.Genres,
		"relations", stats.Relations)
	return nil
}
