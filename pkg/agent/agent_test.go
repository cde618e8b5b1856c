package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/soundprediction/go-librarian/pkg/agent"
	"github.com/soundprediction/go-librarian/pkg/graph"
	"github.com/soundprediction/go-librarian/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLLM scripts the dispatcher and answer-composition calls.
type fakeLLM struct {
	jsonResponse string
	jsonErr      error
	chatFn       func(messages []llm.Message) (string, error)
	chatCalls    [][]llm.Message
}

func (f *fakeLLM) Chat(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	f.chatCalls = append(f.chatCalls, messages)
	if f.chatFn != nil {
		content, err := f.chatFn(messages)
		if err != nil {
			return nil, err
		}
		return &llm.Response{Content: content}, nil
	}
	return &llm.Response{Content: "a helpful answer"}, nil
}

func (f *fakeLLM) ChatJSON(ctx context.Context, messages []llm.Message) (json.RawMessage, error) {
	if f.jsonErr != nil {
		return nil, f.jsonErr
	}
	return json.RawMessage(f.jsonResponse), nil
}

func (f *fakeLLM) Close() error { return nil }

// routerStore records which read paths the agent exercised.
type routerStore struct {
	history     []graph.ChatMessage
	appended    []graph.ChatMessage
	matches     []graph.PlotMatch
	rows        []map[string]any
	schema      string
	lastQuery   string
	queryErr    error
	searchCalls int
	queryCalls  int
	schemaCalls int
}

func (s *routerStore) UpsertBook(ctx context.Context, genres []string, book graph.Book) error {
	return nil
}

func (s *routerStore) AttachEmbedding(ctx context.Context, title string, vector []float32) error {
	return nil
}

func (s *routerStore) IndexExists(ctx context.Context, name string) (bool, error) { return true, nil }

func (s *routerStore) CreateVectorIndex(ctx context.Context, name string, dimensions int, similarity string) error {
	return nil
}

func (s *routerStore) SearchPlots(ctx context.Context, indexName string, vector []float32, topK int) ([]graph.PlotMatch, error) {
	s.searchCalls++
	return s.matches, nil
}

func (s *routerStore) QueryRead(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	s.queryCalls++
	s.lastQuery = cypher
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.rows, nil
}

func (s *routerStore) Schema(ctx context.Context) (string, error) {
	s.schemaCalls++
	return s.schema, nil
}

func (s *routerStore) History(ctx context.Context, sessionID string, lastN int) ([]graph.ChatMessage, error) {
	return s.history, nil
}

func (s *routerStore) AppendHistory(ctx context.Context, sessionID string, msgs ...graph.ChatMessage) error {
	s.appended = append(s.appended, msgs...)
	return nil
}

func (s *routerStore) Stats(ctx context.Context) (*graph.Stats, error) { return &graph.Stats{}, nil }

func (s *routerStore) Close(ctx context.Context) error { return nil }

// countingEmbedder counts provider round trips.
type countingEmbedder struct {
	dims  int
	calls int
}

func (e *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		e.calls++
		out[i] = make([]float32, e.dims)
	}
	return out, nil
}

func (e *countingEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	return make([]float32, e.dims), nil
}

func (e *countingEmbedder) Dimensions() int { return e.dims }
func (e *countingEmbedder) Close() error    { return nil }

// mapCache is an in-memory cache.Cache.
type mapCache struct {
	entries map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{entries: make(map[string][]byte)} }

func (c *mapCache) Set(key string, value []byte, ttl time.Duration) error {
	c.entries[key] = value
	return nil
}

func (c *mapCache) Get(key string) ([]byte, error) {
	value, ok := c.entries[key]
	if !ok {
		return nil, errors.New("key not found in cache")
	}
	return value, nil
}

func (c *mapCache) Delete(key string) error {
	delete(c.entries, key)
	return nil
}

func (c *mapCache) Close() error { return nil }

// recordedTool returns a tool that remembers its invocations.
func recordedTool(name string, calls *[]string) agent.Tool {
	return agent.Tool{
		Name:        name,
		Description: "test tool " + name,
		Func: func(ctx context.Context, input string) (string, error) {
			*calls = append(*calls, input)
			return "answer from " + name, nil
		},
	}
}

func TestAgentRoutesToSelectedTool(t *testing.T) {
	var callsA, callsB []string
	store := &routerStore{}
	model := &fakeLLM{jsonResponse: `{"tool": "Tool B", "input": "rephrased question"}`}

	a, err := agent.New(model, store, []agent.Tool{
		recordedTool("Tool A", &callsA),
		recordedTool("Tool B", &callsB),
	}, nil)
	require.NoError(t, err)

	answer, err := a.Respond(context.Background(), "session-1", "original question")
	require.NoError(t, err)

	assert.Equal(t, "answer from Tool B", answer)
	assert.Empty(t, callsA)
	assert.Equal(t, []string{"rephrased question"}, callsB)

	// Both sides of the exchange are persisted.
	require.Len(t, store.appended, 2)
	assert.Equal(t, graph.ChatMessage{Role: "user", Content: "original question"}, store.appended[0])
	assert.Equal(t, graph.ChatMessage{Role: "assistant", Content: "answer from Tool B"}, store.appended[1])
}

func TestAgentFallsBackOnUnknownTool(t *testing.T) {
	var callsA []string
	model := &fakeLLM{jsonResponse: `{"tool": "Nonexistent", "input": "x"}`}

	a, err := agent.New(model, &routerStore{}, []agent.Tool{recordedTool("Tool A", &callsA)}, nil)
	require.NoError(t, err)

	answer, err := a.Respond(context.Background(), "session-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "answer from Tool A", answer)
	assert.Equal(t, []string{"x"}, callsA)
}

func TestAgentFallsBackOnDispatchError(t *testing.T) {
	var callsA []string
	model := &fakeLLM{jsonErr: errors.New("provider down")}

	a, err := agent.New(model, &routerStore{}, []agent.Tool{recordedTool("Tool A", &callsA)}, nil)
	require.NoError(t, err)

	answer, err := a.Respond(context.Background(), "session-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "answer from Tool A", answer)
	assert.Equal(t, []string{"hello"}, callsA)
}

func TestAgentRepairsMalformedSelection(t *testing.T) {
	var callsA, callsB []string
	// Trailing comma is invalid JSON; jsonrepair fixes it.
	model := &fakeLLM{jsonResponse: `{"tool": "Tool B", "input": "x",}`}

	a, err := agent.New(model, &routerStore{}, []agent.Tool{
		recordedTool("Tool A", &callsA),
		recordedTool("Tool B", &callsB),
	}, nil)
	require.NoError(t, err)

	_, err = a.Respond(context.Background(), "session-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, callsB)
}

func TestAgentDefaultsEmptyToolInput(t *testing.T) {
	var callsA []string
	model := &fakeLLM{jsonResponse: `{"tool": "Tool A"}`}

	a, err := agent.New(model, &routerStore{}, []agent.Tool{recordedTool("Tool A", &callsA)}, nil)
	require.NoError(t, err)

	_, err = a.Respond(context.Background(), "session-1", "the original message")
	require.NoError(t, err)
	assert.Equal(t, []string{"the original message"}, callsA)
}

func TestAgentRequiresTools(t *testing.T) {
	_, err := agent.New(&fakeLLM{}, &routerStore{}, nil, nil)
	assert.Error(t, err)
}

func TestNonBookTopicStaysInGeneralChat(t *testing.T) {
	store := &routerStore{schema: "Node properties:\nBook {title: STRING}\n"}
	embedderClient := &countingEmbedder{dims: 3}
	model := &fakeLLM{jsonResponse: `{"tool": "General Chat", "input": "what's the weather today"}`}

	tools := []agent.Tool{
		agent.NewGeneralChatTool(model),
		agent.NewPlotSearchTool(store, embedderClient, model, nil, agent.PlotSearchConfig{}, nil),
		agent.NewCypherQATool(store, model, nil, agent.CypherQAConfig{}, nil),
	}
	a, err := agent.New(model, store, tools, nil)
	require.NoError(t, err)

	answer, err := a.Respond(context.Background(), "session-1", "what's the weather today")
	require.NoError(t, err)
	assert.NotEmpty(t, answer)

	// An off-topic turn must never reach the database or the embedder.
	assert.Equal(t, 0, store.searchCalls)
	assert.Equal(t, 0, store.queryCalls)
	assert.Equal(t, 0, embedderClient.calls)
}
