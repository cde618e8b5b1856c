package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/soundprediction/go-librarian/pkg/embedder"
	"github.com/soundprediction/go-librarian/pkg/graph"
)

// Config holds ingestion settings.
type Config struct {
	// IndexName is the vector index created after all records commit.
	IndexName string
	// Dimensions of the vector index; falls back to the embedder's
	// dimensionality when zero.
	Dimensions int
	// Similarity function for the vector index.
	Similarity string
}

// Pipeline loads book records into the graph: one upsert plus one embedding
// attach per record, then the vector index. Ingestion is single-writer and
// sequential by record.
type Pipeline struct {
	store    graph.Store
	embedder embedder.Client
	config   Config
	logger   *slog.Logger
}

// NewPipeline creates an ingestion pipeline. The embedder may be nil when
// every source record carries a precomputed embedding.
func NewPipeline(store graph.Store, embedderClient embedder.Client, config Config, logger *slog.Logger) *Pipeline {
	if config.IndexName == "" {
		config.IndexName = "summaryPlots"
	}
	if config.Similarity == "" {
		config.Similarity = graph.SimilarityCosine
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		store:    store,
		embedder: embedderClient,
		config:   config,
		logger:   logger,
	}
}

// RunCSV parses a CSV stream and runs the pipeline over its records.
func (p *Pipeline) RunCSV(ctx context.Context, r io.Reader) error {
	records, err := ReadRecords(r)
	if err != nil {
		return err
	}
	return p.Run(ctx, records)
}

// Run ingests records in order. The first failing record halts ingestion:
// its error is logged with the offending title and returned, and records
// that already committed stay committed. After the last record the vector
// index is created if absent.
func (p *Pipeline) Run(ctx context.Context, records []Record) error {
	for i, record := range records {
		if err := p.ingestRecord(ctx, record); err != nil {
			p.logger.Error("ingestion halted", "title", record.Title, "record", i+1, "error", err)
			return err
		}
	}

	p.logger.Info("ingested records", "count", len(records))
	return p.EnsureIndex(ctx)
}

// EnsureIndex checks for the configured vector index and creates it when
// missing. Safe to call more than once.
func (p *Pipeline) EnsureIndex(ctx context.Context) error {
	exists, err := p.store.IndexExists(ctx, p.config.IndexName)
	if err != nil {
		return err
	}
	if exists {
		p.logger.Info("vector index already exists", "name", p.config.IndexName)
		return nil
	}

	dimensions := p.config.Dimensions
	if dimensions == 0 && p.embedder != nil {
		dimensions = p.embedder.Dimensions()
	}

	return p.store.CreateVectorIndex(ctx, p.config.IndexName, dimensions, p.config.Similarity)
}

func (p *Pipeline) ingestRecord(ctx context.Context, record Record) error {
	if record.Title == "" {
		return fmt.Errorf("record has no title")
	}

	genres := ParseGenres(record.Genres)

	vector, err := p.embeddingFor(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to resolve embedding for %q: %w", record.Title, err)
	}

	book := graph.Book{
		Title:           record.Title,
		Author:          record.Author,
		Language:        record.Language,
		Rating:          record.Rating,
		PublicationYear: record.PublicationYear,
		Summary:         record.Summary,
	}
	if err := p.store.UpsertBook(ctx, genres, book); err != nil {
		return err
	}

	// Attach after the upsert so the merge enriches an existing node
	// instead of creating a bare title-only one.
	return p.store.AttachEmbedding(ctx, record.Title, vector)
}

// embeddingFor parses the record's precomputed embedding, or computes one
// from the summary when the field is empty.
func (p *Pipeline) embeddingFor(ctx context.Context, record Record) ([]float32, error) {
	if record.Embeddings != "" {
		return ParseEmbedding(record.Embeddings)
	}
	if p.embedder == nil {
		return nil, fmt.Errorf("record has no embedding and no embedder is configured")
	}
	return p.embedder.EmbedSingle(ctx, record.Summary)
}
