package ingest_test

import (
	"context"
	"errors"
	"testing"

	"github.com/soundprediction/go-librarian/pkg/graph"
	"github.com/soundprediction/go-librarian/pkg/ingest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory graph.Store that mimics merge-by-key semantics.
type memStore struct {
	nodes       map[string]bool
	books       map[string]graph.Book
	authors     map[string]bool
	genres      map[string]bool
	embeddings  map[string][]float32
	indexes     map[string]bool
	createCalls int

	failTitle string // UpsertBook for this title fails
}

func newMemStore() *memStore {
	return &memStore{
		nodes:      make(map[string]bool),
		books:      make(map[string]graph.Book),
		authors:    make(map[string]bool),
		genres:     make(map[string]bool),
		embeddings: make(map[string][]float32),
		indexes:    make(map[string]bool),
	}
}

func (s *memStore) UpsertBook(ctx context.Context, genres []string, book graph.Book) error {
	if book.Title == s.failTitle {
		return &graph.WriteError{Op: "upsert book", Title: book.Title, Err: errors.New("boom")}
	}
	s.nodes[book.Title] = true
	s.books[book.Title] = book
	s.authors[book.Author] = true
	for _, genre := range genres {
		s.genres[genre] = true
	}
	return nil
}

func (s *memStore) AttachEmbedding(ctx context.Context, title string, vector []float32) error {
	s.nodes[title] = true
	s.embeddings[title] = vector
	return nil
}

func (s *memStore) IndexExists(ctx context.Context, name string) (bool, error) {
	return s.indexes[name], nil
}

func (s *memStore) CreateVectorIndex(ctx context.Context, name string, dimensions int, similarity string) error {
	s.createCalls++
	s.indexes[name] = true
	return nil
}

func (s *memStore) SearchPlots(ctx context.Context, indexName string, vector []float32, topK int) ([]graph.PlotMatch, error) {
	return nil, nil
}

func (s *memStore) QueryRead(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	return nil, nil
}

func (s *memStore) Schema(ctx context.Context) (string, error) { return "", nil }

func (s *memStore) History(ctx context.Context, sessionID string, lastN int) ([]graph.ChatMessage, error) {
	return nil, nil
}

func (s *memStore) AppendHistory(ctx context.Context, sessionID string, msgs ...graph.ChatMessage) error {
	return nil
}

func (s *memStore) Stats(ctx context.Context) (*graph.Stats, error) { return &graph.Stats{}, nil }

func (s *memStore) Close(ctx context.Context) error { return nil }

// fixedEmbedder returns the same vector for any text.
type fixedEmbedder struct {
	dims  int
	calls int
}

func (e *fixedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		e.calls++
		out[i] = make([]float32, e.dims)
	}
	return out, nil
}

func (e *fixedEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	return make([]float32, e.dims), nil
}

func (e *fixedEmbedder) Dimensions() int { return e.dims }
func (e *fixedEmbedder) Close() error    { return nil }

func duneRecord() ingest.Record {
	return ingest.Record{
		Title:           "Dune",
		Author:          "Frank Herbert",
		Language:        "English",
		Rating:          4.8,
		PublicationYear: 1965,
		Summary:         "A desert planet and its spice.",
		Genres:          "Science Fiction/Adventure",
		Embeddings:      "[0.1,0.2,0.3]",
	}
}

func TestPipelineRun(t *testing.T) {
	store := newMemStore()
	pipeline := ingest.NewPipeline(store, &fixedEmbedder{dims: 3}, ingest.Config{}, nil)

	err := pipeline.Run(context.Background(), []ingest.Record{duneRecord()})
	require.NoError(t, err)

	assert.Equal(t, "Dune", store.books["Dune"].Title)
	assert.True(t, store.authors["Frank Herbert"])
	assert.True(t, store.genres["Science Fiction"])
	assert.True(t, store.genres["Adventure"])
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, store.embeddings["Dune"])
	assert.True(t, store.indexes["summaryPlots"])
}

func TestPipelineRunIdempotent(t *testing.T) {
	store := newMemStore()
	pipeline := ingest.NewPipeline(store, nil, ingest.Config{Dimensions: 3}, nil)

	records := []ingest.Record{duneRecord()}
	require.NoError(t, pipeline.Run(context.Background(), records))
	require.NoError(t, pipeline.Run(context.Background(), records))

	assert.Len(t, store.books, 1)
	assert.Len(t, store.authors, 1)
	assert.Len(t, store.genres, 2)
	// Index creation happened once; the second run saw it existing.
	assert.Equal(t, 1, store.createCalls)
}

func TestPipelineFailFast(t *testing.T) {
	store := newMemStore()
	store.failTitle = "Hamlet"
	pipeline := ingest.NewPipeline(store, nil, ingest.Config{Dimensions: 3}, nil)

	records := []ingest.Record{
		duneRecord(),
		{Title: "Hamlet", Author: "William Shakespeare", Summary: "Ghost.", Genres: "Drama", Embeddings: "[0.4]"},
		{Title: "Emma", Author: "Jane Austen", Summary: "Matchmaking.", Genres: "Romance", Embeddings: "[0.5]"},
	}

	err := pipeline.Run(context.Background(), records)
	require.Error(t, err)

	var writeErr *graph.WriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, "Hamlet", writeErr.Title)

	// The first record committed; the record after the failure never ran.
	assert.Contains(t, store.books, "Dune")
	assert.NotContains(t, store.books, "Emma")
	// The index is only ensured after a fully successful run.
	assert.Equal(t, 0, store.createCalls)
}

func TestPipelineComputesEmbeddingWhenMissing(t *testing.T) {
	store := newMemStore()
	embedderClient := &fixedEmbedder{dims: 4}
	pipeline := ingest.NewPipeline(store, embedderClient, ingest.Config{}, nil)

	record := duneRecord()
	record.Embeddings = ""

	require.NoError(t, pipeline.Run(context.Background(), []ingest.Record{record}))
	assert.Equal(t, 1, embedderClient.calls)
	assert.Len(t, store.embeddings["Dune"], 4)
}

func TestPipelineNoEmbedderNoEmbedding(t *testing.T) {
	store := newMemStore()
	pipeline := ingest.NewPipeline(store, nil, ingest.Config{Dimensions: 3}, nil)

	record := duneRecord()
	record.Embeddings = ""

	err := pipeline.Run(context.Background(), []ingest.Record{record})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Dune")
}

func TestPipelineAttachBeforeUpsert(t *testing.T) {
	// Embedding-only writes are accepted ingestion-order slop: the store
	// ends up with a bare title node and the index check still works.
	store := newMemStore()
	pipeline := ingest.NewPipeline(store, nil, ingest.Config{Dimensions: 3}, nil)

	require.NoError(t, store.AttachEmbedding(context.Background(), "Unknown Title", []float32{0.1}))
	require.NoError(t, pipeline.EnsureIndex(context.Background()))

	assert.True(t, store.nodes["Unknown Title"])
	assert.NotContains(t, store.books, "Unknown Title")
	assert.Equal(t, []float32{0.1}, store.embeddings["Unknown Title"])
}
