package graph

import (
	"context"
	"time"
)

// Similarity functions accepted by the vector index.
const (
	SimilarityCosine    = "cosine"
	SimilarityEuclidean = "euclidean"
	SimilarityDot       = "dot"
)

// Book holds the scalar attributes of a Book node. Title is the node
// identity; writes for the same title merge into a single node.
type Book struct {
	Title           string  `json:"title"`
	Author          string  `json:"author"`
	Language        string  `json:"language"`
	Rating          float64 `json:"rating"`
	PublicationYear int     `json:"publication_year"`
	Summary         string  `json:"summary"`
}

// PlotMatch is a single vector-index hit together with the graph context
// needed to compose an answer.
type PlotMatch struct {
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Score   float64  `json:"score"`
	Authors []string `json:"authors"`
	Genres  []string `json:"genres"`
}

// ChatMessage is one turn of a stored conversation.
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Stats holds node and relationship counts for the library graph.
type Stats struct {
	Books     int64 `json:"books"`
	Authors   int64 `json:"authors"`
	Genres    int64 `json:"genres"`
	Relations int64 `json:"relations"`
}

// Store defines the operations the ingestion pipeline and the chat agent
// need from the graph database. Implementations own the connection
// lifecycle and must release the underlying session on every exit path.
type Store interface {
	// UpsertBook merges the Book, its Author, and its Genres plus their
	// relationships in one write transaction.
	UpsertBook(ctx context.Context, genres []string, book Book) error

	// AttachEmbedding merges a Book by title and sets its plot embedding.
	// A missing title creates a bare node; callers should upsert first.
	AttachEmbedding(ctx context.Context, title string, vector []float32) error

	// IndexExists reports whether a vector index with the given name exists.
	IndexExists(ctx context.Context, name string) (bool, error)

	// CreateVectorIndex creates the vector index if it is not already
	// present. A second call with the same name is a no-op.
	CreateVectorIndex(ctx context.Context, name string, dimensions int, similarity string) error

	// SearchPlots runs a nearest-neighbor query against the vector index.
	SearchPlots(ctx context.Context, indexName string, vector []float32, topK int) ([]PlotMatch, error)

	// QueryRead executes a read-only Cypher query and returns its rows.
	QueryRead(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)

	// Schema renders the live schema (labels, properties, relationship
	// patterns) for query generation.
	Schema(ctx context.Context) (string, error)

	// History returns the last n messages of a session in oldest-first order.
	History(ctx context.Context, sessionID string, lastN int) ([]ChatMessage, error)

	// AppendHistory appends messages to a session, creating it on first use.
	AppendHistory(ctx context.Context, sessionID string, msgs ...ChatMessage) error

	// Stats returns node and relationship counts.
	Stats(ctx context.Context) (*Stats, error)

	// Close releases the underlying driver.
	Close(ctx context.Context) error
}

// ValidSimilarity reports whether s names a supported similarity function.
func ValidSimilarity(s string) bool {
	switch s {
	case SimilarityCosine, SimilarityEuclidean, SimilarityDot:
		return true
	}
	return false
}
