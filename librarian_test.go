package librarian_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	librarian "github.com/soundprediction/go-librarian"
	"github.com/soundprediction/go-librarian/pkg/graph"
	"github.com/soundprediction/go-librarian/pkg/ingest"
	"github.com/soundprediction/go-librarian/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore implements graph.Store in memory.
type fakeStore struct {
	books    map[string]graph.Book
	vectors  map[string][]float32
	indexes  map[string]bool
	messages map[string][]graph.ChatMessage
	closed   bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		books:    make(map[string]graph.Book),
		vectors:  make(map[string][]float32),
		indexes:  make(map[string]bool),
		messages: make(map[string][]graph.ChatMessage),
	}
}

func (s *fakeStore) UpsertBook(ctx context.Context, genres []string, book graph.Book) error {
	s.books[book.Title] = book
	return nil
}

func (s *fakeStore) AttachEmbedding(ctx context.Context, title string, vector []float32) error {
	s.vectors[title] = vector
	return nil
}

func (s *fakeStore) IndexExists(ctx context.Context, name string) (bool, error) {
	return s.indexes[name], nil
}

func (s *fakeStore) CreateVectorIndex(ctx context.Context, name string, dimensions int, similarity string) error {
	s.indexes[name] = true
	return nil
}

func (s *fakeStore) SearchPlots(ctx context.Context, indexName string, vector []float32, topK int) ([]graph.PlotMatch, error) {
	return nil, nil
}

func (s *fakeStore) QueryRead(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	return nil, nil
}

func (s *fakeStore) Schema(ctx context.Context) (string, error) { return "", nil }

func (s *fakeStore) History(ctx context.Context, sessionID string, lastN int) ([]graph.ChatMessage, error) {
	return s.messages[sessionID], nil
}

func (s *fakeStore) AppendHistory(ctx context.Context, sessionID string, msgs ...graph.ChatMessage) error {
	s.messages[sessionID] = append(s.messages[sessionID], msgs...)
	return nil
}

func (s *fakeStore) Stats(ctx context.Context) (*graph.Stats, error) {
	return &graph.Stats{Books: int64(len(s.books))}, nil
}

func (s *fakeStore) Close(ctx context.Context) error {
	s.closed = true
	return nil
}

// chatOnlyLLM routes every turn to General Chat and answers it.
type chatOnlyLLM struct {
	closed bool
}

func (c *chatOnlyLLM) Chat(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	return &llm.Response{Content: "happy to help with books"}, nil
}

func (c *chatOnlyLLM) ChatJSON(ctx context.Context, messages []llm.Message) (json.RawMessage, error) {
	return json.RawMessage(`{"tool": "General Chat", "input": "hi"}`), nil
}

func (c *chatOnlyLLM) Close() error {
	c.closed = true
	return nil
}

type staticEmbedder struct {
	closed bool
}

func (e *staticEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (e *staticEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func (e *staticEmbedder) Dimensions() int { return 3 }

func (e *staticEmbedder) Close() error {
	e.closed = true
	return nil
}

func newTestClient(t *testing.T) (*librarian.Client, *fakeStore, *chatOnlyLLM, *staticEmbedder) {
	t.Helper()
	store := newFakeStore()
	model := &chatOnlyLLM{}
	embedderClient := &staticEmbedder{}

	client, err := librarian.NewClient(store, model, embedderClient, nil, nil, nil)
	require.NoError(t, err)
	return client, store, model, embedderClient
}

func TestClientRespond(t *testing.T) {
	client, store, _, _ := newTestClient(t)

	answer, err := client.Respond(context.Background(), "session-1", "hi there")
	require.NoError(t, err)
	assert.Equal(t, "happy to help with books", answer)

	// Both turns of the exchange land in the session history.
	require.Len(t, store.messages["session-1"], 2)
	assert.Equal(t, "user", store.messages["session-1"][0].Role)
	assert.Equal(t, "assistant", store.messages["session-1"][1].Role)
}

func TestClientIngest(t *testing.T) {
	client, store, _, _ := newTestClient(t)

	err := client.Ingest(context.Background(), []ingest.Record{{
		Title:   "Dune",
		Author:  "Frank Herbert",
		Summary: "A desert planet and its spice.",
		Genres:  "Science Fiction",
	}})
	require.NoError(t, err)

	assert.Contains(t, store.books, "Dune")
	assert.Len(t, store.vectors["Dune"], 3)
	assert.True(t, store.indexes["summaryPlots"])

	stats, err := client.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Books)
}

func TestClientIngestCSV(t *testing.T) {
	client, store, _, _ := newTestClient(t)

	csv := "title,author,summary,genres,embeddings\nDune,Frank Herbert,Sand.,Science Fiction,\"[0.1,0.2,0.3]\"\n"
	err := client.IngestCSV(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)

	assert.Contains(t, store.books, "Dune")
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, store.vectors["Dune"])
}

func TestClientEnsureIndex(t *testing.T) {
	client, store, _, _ := newTestClient(t)

	require.NoError(t, client.EnsureIndex(context.Background()))
	assert.True(t, store.indexes["summaryPlots"])
}

func TestClientClose(t *testing.T) {
	client, store, model, embedderClient := newTestClient(t)

	require.NoError(t, client.Close(context.Background()))
	assert.True(t, store.closed)
	assert.True(t, model.closed)
	assert.True(t, embedderClient.closed)
}
