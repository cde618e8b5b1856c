package graph

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
)

// EmbeddingProperty is the Book node property holding the plot embedding.
const EmbeddingProperty = "plot_embedding"

// Index names cannot be parameterized in Cypher DDL, so they are validated
// before being spliced into the query text.
var indexNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Neo4jStore implements the Store interface against a Neo4j database.
type Neo4jStore struct {
	client   neo4j.DriverWithContext
	uri      string
	database string
	logger   *slog.Logger
}

// NewNeo4jStore creates a new Neo4j-backed store.
func NewNeo4jStore(uri, username, password, database string, logger *slog.Logger) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, &ConnectionError{URI: uri, Err: err}
	}

	if database == "" {
		database = "neo4j"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Neo4jStore{
		client:   driver,
		uri:      uri,
		database: database,
		logger:   logger,
	}, nil
}

// Ping verifies connectivity to the database.
func (s *Neo4jStore) Ping(ctx context.Context) error {
	if err := s.client.VerifyConnectivity(ctx); err != nil {
		return &ConnectionError{URI: s.uri, Err: err}
	}
	return nil
}

// UpsertBook merges the Book, Author, and Genre nodes plus their
// relationships in a single write transaction. Repeat calls with the same
// data leave exactly one node per key.
func (s *Neo4jStore) UpsertBook(ctx context.Context, genres []string, book Book) error {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (b:Book {title: $title})
			SET b += {language: $language, rating: $rating, publication_year: $year, summary: $summary}
			MERGE (a:Author {name: $author})
			MERGE (b)-[:WRITTEN_BY]->(a)
			WITH b
			UNWIND $genres AS genreName
			MERGE (g:Genre {name: genreName})
			MERGE (b)-[:HAS_GENRE]->(g)
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"title":    book.Title,
			"language": book.Language,
			"rating":   book.Rating,
			"year":     book.PublicationYear,
			"summary":  book.Summary,
			"author":   book.Author,
			"genres":   genres,
		})
		return nil, err
	})
	if err != nil {
		s.logger.Error("failed to upsert book", "title", book.Title, "error", err)
		return &WriteError{Op: "upsert book", Title: book.Title, Err: err}
	}

	return nil
}

// AttachEmbedding merges a Book by title and sets its plot embedding vector.
// If no book with the title exists yet, a bare node is created; the later
// UpsertBook for the same title merges into it.
func (s *Neo4jStore) AttachEmbedding(ctx context.Context, title string, vector []float32) error {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (b:Book {title: $title})
			WITH b
			CALL db.create.setNodeVectorProperty(b, $property, $vector)
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"title":    title,
			"property": EmbeddingProperty,
			"vector":   vector,
		})
		return nil, err
	})
	if err != nil {
		s.logger.Error("failed to attach embedding", "title", title, "error", err)
		return &WriteError{Op: "attach embedding", Title: title, Err: err}
	}

	return nil
}

// IndexExists reports whether a vector index with the given name is present.
func (s *Neo4jStore) IndexExists(ctx context.Context, name string) (bool, error) {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			SHOW INDEXES YIELD name, type
			WHERE type = "VECTOR" AND name = $name
			RETURN count(*) AS found
		`
		res, err := tx.Run(ctx, query, map[string]any{"name": name})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		found, _ := record.Get("found")
		return found, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to check vector index %q: %w", name, err)
	}

	return result.(int64) > 0, nil
}

// CreateVectorIndex creates the vector index over Book plot embeddings.
// IF NOT EXISTS makes a second call with the same name a no-op.
func (s *Neo4jStore) CreateVectorIndex(ctx context.Context, name string, dimensions int, similarity string) error {
	if !indexNamePattern.MatchString(name) {
		return fmt.Errorf("invalid vector index name %q", name)
	}
	if dimensions <= 0 {
		return fmt.Errorf("vector index dimensions must be positive, got %d", dimensions)
	}
	if !ValidSimilarity(similarity) {
		return fmt.Errorf("unsupported similarity function %q", similarity)
	}

	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
			CREATE VECTOR INDEX %s IF NOT EXISTS
			FOR (b:Book)
			ON b.%s
			OPTIONS {indexConfig: {
				`+"`vector.dimensions`"+`: $dimensions,
				`+"`vector.similarity_function`"+`: $similarity
			}}
		`, name, EmbeddingProperty)
		_, err := tx.Run(ctx, query, map[string]any{
			"dimensions": dimensions,
			"similarity": similarity,
		})
		return nil, err
	})
	if err != nil {
		s.logger.Error("failed to create vector index", "name", name, "error", err)
		return &WriteError{Op: "create vector index", Title: name, Err: err}
	}

	s.logger.Info("vector index ready", "name", name, "dimensions", dimensions, "similarity", similarity)
	return nil
}

// SearchPlots runs a nearest-neighbor query against the vector index and
// returns the top-k books with their authors and genres.
func (s *Neo4jStore) SearchPlots(ctx context.Context, indexName string, vector []float32, topK int) ([]PlotMatch, error) {
	if topK <= 0 {
		topK = 5
	}

	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			CALL db.index.vector.queryNodes($indexName, $topK, $vector)
			YIELD node, score
			RETURN node.title AS title,
			       node.summary AS summary,
			       score,
			       [(node)-[:WRITTEN_BY]->(a:Author) | a.name] AS authors,
			       [(node)-[:HAS_GENRE]->(g:Genre) | g.name] AS genres
			ORDER BY score DESC
		`
		res, err := tx.Run(ctx, query, map[string]any{
			"indexName": indexName,
			"topK":      topK,
			"vector":    vector,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("plot similarity search failed: %w", err)
	}

	records := result.([]*db.Record)
	matches := make([]PlotMatch, 0, len(records))
	for _, record := range records {
		match := PlotMatch{}
		if v, ok := record.Get("title"); ok && v != nil {
			match.Title = v.(string)
		}
		if v, ok := record.Get("summary"); ok && v != nil {
			match.Summary = v.(string)
		}
		if v, ok := record.Get("score"); ok && v != nil {
			match.Score = v.(float64)
		}
		if v, ok := record.Get("authors"); ok {
			match.Authors = toStringSlice(v)
		}
		if v, ok := record.Get("genres"); ok {
			match.Genres = toStringSlice(v)
		}
		matches = append(matches, match)
	}

	return matches, nil
}

// QueryRead executes a Cypher query inside a read transaction and returns
// the rows as maps keyed by the query's return columns.
func (s *Neo4jStore) QueryRead(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("read query failed: %w", err)
	}

	records := result.([]*db.Record)
	rows := make([]map[string]any, 0, len(records))
	for _, record := range records {
		row := make(map[string]any, len(record.Keys))
		for _, key := range record.Keys {
			value, _ := record.Get(key)
			row[key] = value
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// Schema renders the live schema as text for Cypher generation: node labels
// with their properties and the relationship patterns between labels.
func (s *Neo4jStore) Schema(ctx context.Context) (string, error) {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		propsRes, err := tx.Run(ctx, `
			CALL db.schema.nodeTypeProperties()
			YIELD nodeLabels, propertyName, propertyTypes
			RETURN nodeLabels, propertyName, propertyTypes
		`, nil)
		if err != nil {
			return nil, err
		}
		propRecords, err := propsRes.Collect(ctx)
		if err != nil {
			return nil, err
		}

		relRes, err := tx.Run(ctx, `
			MATCH (a)-[r]->(b)
			RETURN DISTINCT labels(a) AS from, type(r) AS rel, labels(b) AS to
		`, nil)
		if err != nil {
			return nil, err
		}
		relRecords, err := relRes.Collect(ctx)
		if err != nil {
			return nil, err
		}

		return [2][]*db.Record{propRecords, relRecords}, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch schema: %w", err)
	}

	records := result.([2][]*db.Record)
	return renderSchema(records[0], records[1]), nil
}

// History returns the last n messages of a chat session, oldest first.
func (s *Neo4jStore) History(ctx context.Context, sessionID string, lastN int) ([]ChatMessage, error) {
	if lastN <= 0 {
		lastN = 10
	}

	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (:ChatSession {id: $sessionID})-[r:HAS_MESSAGE]->(m:ChatMessage)
			RETURN m.role AS role, m.content AS content
			ORDER BY r.seq DESC
			LIMIT $lastN
		`
		res, err := tx.Run(ctx, query, map[string]any{
			"sessionID": sessionID,
			"lastN":     lastN,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load history for session %s: %w", sessionID, err)
	}

	records := result.([]*db.Record)
	messages := make([]ChatMessage, 0, len(records))
	// Records come back newest-first; reverse into conversation order.
	for i := len(records) - 1; i >= 0; i-- {
		role, _ := records[i].Get("role")
		content, _ := records[i].Get("content")
		messages = append(messages, ChatMessage{
			Role:    role.(string),
			Content: content.(string),
		})
	}

	return messages, nil
}

// AppendHistory appends messages to a session, creating the session node on
// first use. A per-session turn counter keeps message order stable even
// when two turns land in the same millisecond.
func (s *Neo4jStore) AppendHistory(ctx context.Context, sessionID string, msgs ...ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	payload := make([]map[string]any, len(msgs))
	for i, msg := range msgs {
		payload[i] = map[string]any{"role": msg.Role, "content": msg.Content}
	}

	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (s:ChatSession {id: $sessionID})
			ON CREATE SET s.turns = 0
			WITH s
			UNWIND $messages AS msg
			SET s.turns = s.turns + 1
			CREATE (s)-[:HAS_MESSAGE {seq: s.turns}]->(:ChatMessage {
				role: msg.role,
				content: msg.content,
				created_at: datetime()
			})
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"sessionID": sessionID,
			"messages":  payload,
		})
		return nil, err
	})
	if err != nil {
		s.logger.Error("failed to append history", "session_id", sessionID, "error", err)
		return &WriteError{Op: "append history", Title: sessionID, Err: err}
	}

	return nil
}

// Stats returns node and relationship counts for the library graph.
func (s *Neo4jStore) Stats(ctx context.Context) (*Stats, error) {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			RETURN COUNT { (:Book) } AS books,
			       COUNT { (:Author) } AS authors,
			       COUNT { (:Genre) } AS genres,
			       COUNT { ()-[:WRITTEN_BY|HAS_GENRE]->() } AS relations
		`
		res, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}
		return res.Single(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch graph stats: %w", err)
	}

	record := result.(*db.Record)
	stats := &Stats{}
	if v, ok := record.Get("books"); ok {
		stats.Books = v.(int64)
	}
	if v, ok := record.Get("authors"); ok {
		stats.Authors = v.(int64)
	}
	if v, ok := record.Get("genres"); ok {
		stats.Genres = v.(int64)
	}
	if v, ok := record.Get("relations"); ok {
		stats.Relations = v.(int64)
	}

	return stats, nil
}

// Close releases the underlying driver.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// renderSchema formats schema records the way the Cypher generation prompt
// expects them: one line per label with properties, then one line per
// relationship pattern.
func renderSchema(propRecords, relRecords []*db.Record) string {
	props := make(map[string][]string)
	for _, record := range propRecords {
		labelsValue, _ := record.Get("nodeLabels")
		nameValue, _ := record.Get("propertyName")
		typesValue, _ := record.Get("propertyTypes")
		if nameValue == nil {
			continue
		}

		propType := "ANY"
		if types := toStringSlice(typesValue); len(types) > 0 {
			propType = types[0]
		}
		for _, label := range toStringSlice(labelsValue) {
			props[label] = append(props[label], fmt.Sprintf("%s: %s", nameValue.(string), propType))
		}
	}

	labels := make([]string, 0, len(props))
	for label := range props {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var buf strings.Builder
	buf.WriteString("Node properties:\n")
	for _, label := range labels {
		buf.WriteString(fmt.Sprintf("%s {%s}\n", label, strings.Join(props[label], ", ")))
	}

	buf.WriteString("Relationships:\n")
	seen := make(map[string]bool)
	for _, record := range relRecords {
		fromValue, _ := record.Get("from")
		relValue, _ := record.Get("rel")
		toValue, _ := record.Get("to")
		if relValue == nil {
			continue
		}
		from := strings.Join(toStringSlice(fromValue), ":")
		to := strings.Join(toStringSlice(toValue), ":")
		line := fmt.Sprintf("(:%s)-[:%s]->(:%s)", from, relValue.(string), to)
		if seen[line] {
			continue
		}
		seen[line] = true
		buf.WriteString(line + "\n")
	}

	return buf.String()
}

func toStringSlice(value any) []string {
	list, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
