package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/soundprediction/go-librarian/pkg/graph"
	"github.com/soundprediction/go-librarian/pkg/llm"
)

// DefaultHistoryTurns is how many stored messages feed the dispatch prompt.
const DefaultHistoryTurns = 10

// Agent routes one user utterance per turn to one of its tools. It holds
// no state between turns; conversation history lives in the graph store
// keyed by session id, and the routing decision is delegated to the
// language model given each tool's name and description.
type Agent struct {
	llm          llm.Client
	store        graph.Store
	tools        []Tool
	historyTurns int
	logger       *slog.Logger
}

// New creates an agent over the given tools. The first tool is the
// fallback when the dispatcher returns an unknown tool name.
func New(llmClient llm.Client, store graph.Store, tools []Tool, logger *slog.Logger) (*Agent, error) {
	if len(tools) == 0 {
		return nil, fmt.Errorf("agent requires at least one tool")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Agent{
		llm:          llmClient,
		store:        store,
		tools:        tools,
		historyTurns: DefaultHistoryTurns,
		logger:       logger,
	}, nil
}

// toolChoice is the dispatcher's structured decision.
type toolChoice struct {
	Tool  string `json:"tool"`
	Input string `json:"input"`
}

// Respond handles one chat turn: load history, let the model pick a tool,
// invoke it, and persist both sides of the exchange.
func (a *Agent) Respond(ctx context.Context, sessionID, input string) (string, error) {
	history, err := a.store.History(ctx, sessionID, a.historyTurns)
	if err != nil {
		a.logger.Error("failed to load conversation history", "session_id", sessionID, "error", err)
		return "", err
	}

	choice := a.selectTool(ctx, history, input)
	tool := a.toolByName(choice.Tool)
	a.logger.Debug("dispatching turn", "session_id", sessionID, "tool", tool.Name)

	answer, err := tool.Func(ctx, choice.Input)
	if err != nil {
		a.logger.Error("tool invocation failed", "tool", tool.Name, "session_id", sessionID, "error", err)
		return "", err
	}

	err = a.store.AppendHistory(ctx, sessionID,
		graph.ChatMessage{Role: "user", Content: input},
		graph.ChatMessage{Role: "assistant", Content: answer},
	)
	if err != nil {
		return "", err
	}

	return answer, nil
}

// selectTool asks the model for a routing decision. Any failure along the
// way degrades to the fallback tool with the raw input, so a flaky
// dispatcher never loses a turn.
func (a *Agent) selectTool(ctx context.Context, history []graph.ChatMessage, input string) toolChoice {
	fallback := toolChoice{Tool: a.tools[0].Name, Input: input}

	var toolList strings.Builder
	for _, tool := range a.tools {
		fmt.Fprintf(&toolList, "- %s: %s\n", tool.Name, tool.Description)
	}

	messages := []llm.Message{
		llm.NewSystemMessage(fmt.Sprintf(dispatchInstructions, toolList.String())),
	}
	for _, msg := range history {
		role := llm.RoleUser
		if msg.Role == "assistant" {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: msg.Content})
	}
	messages = append(messages, llm.NewUserMessage(input))

	raw, err := a.llm.ChatJSON(ctx, messages)
	if err != nil {
		a.logger.Warn("tool selection failed, falling back", "tool", fallback.Tool, "error", err)
		return fallback
	}

	var choice toolChoice
	if err := json.Unmarshal(raw, &choice); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(string(raw))
		if repairErr != nil || json.Unmarshal([]byte(repaired), &choice) != nil {
			a.logger.Warn("unparseable tool selection, falling back", "tool", fallback.Tool)
			return fallback
		}
	}

	if choice.Tool == "" {
		return fallback
	}
	if choice.Input == "" {
		choice.Input = input
	}
	return choice
}

// toolByName resolves a dispatcher choice, falling back to the first tool
// for unknown names.
func (a *Agent) toolByName(name string) Tool {
	for _, tool := range a.tools {
		if strings.EqualFold(tool.Name, name) {
			return tool
		}
	}
	a.logger.Warn("dispatcher chose unknown tool, using fallback", "requested", name, "fallback", a.tools[0].Name)
	return a.tools[0]
}
