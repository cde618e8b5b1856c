package llm

import (
	"context"
	"encoding/json"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient implements the Client interface for OpenAI's language models
// and OpenAI-compatible services.
type OpenAIClient struct {
	client *openai.Client
	config Config
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(apiKey string, config Config) *OpenAIClient {
	var client *openai.Client
	if config.BaseURL != "" {
		clientConfig := openai.DefaultConfig(apiKey)
		clientConfig.BaseURL = config.BaseURL
		client = openai.NewClientWithConfig(clientConfig)
	} else {
		client = openai.NewClient(apiKey)
	}

	if config.Model == "" {
		config.Model = openai.GPT4o
	}

	return &OpenAIClient{
		client: client,
		config: config,
	}
}

// Chat sends a chat completion request to OpenAI.
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message) (*Response, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.buildChatRequest(messages, false))
	if err != nil {
		return nil, &ProviderError{Provider: "openai", Op: "chat completion", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: "openai", Op: "chat completion", Err: errNoChoices}
	}

	choice := resp.Choices[0]
	return &Response{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		TokensUsed: &TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// ChatJSON sends a chat completion request with a JSON-object response format.
func (c *OpenAIClient) ChatJSON(ctx context.Context, messages []Message) (json.RawMessage, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.buildChatRequest(messages, true))
	if err != nil {
		return nil, &ProviderError{Provider: "openai", Op: "structured completion", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: "openai", Op: "structured completion", Err: errNoChoices}
	}

	return json.RawMessage(resp.Choices[0].Message.Content), nil
}

// Close cleans up resources (no-op for OpenAI client).
func (c *OpenAIClient) Close() error {
	return nil
}

func (c *OpenAIClient) buildChatRequest(messages []Message, jsonOutput bool) openai.ChatCompletionRequest {
	openaiMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		openaiMessages[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	req := openai.ChatCompletionRequest{
		Model:    c.config.Model,
		Messages: openaiMessages,
	}

	if c.config.Temperature != nil {
		req.Temperature = *c.config.Temperature
	}
	if c.config.MaxTokens != nil {
		req.MaxTokens = *c.config.MaxTokens
	}
	if len(c.config.Stop) > 0 {
		req.Stop = c.config.Stop
	}
	if jsonOutput {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	return req
}

var errNoChoices = &noChoicesError{}

type noChoicesError struct{}

func (*noChoicesError) Error() string { return "no choices returned" }
