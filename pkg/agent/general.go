package agent

import (
	"context"

	"github.com/soundprediction/go-librarian/pkg/llm"
)

// NewGeneralChatTool returns the fallback strategy: no database access,
// just the librarian persona answering from the conversation itself.
func NewGeneralChatTool(llmClient llm.Client) Tool {
	return Tool{
		Name:        "General Chat",
		Description: "For general chat about books, authors, and genres not covered by the other tools, and for any message that is not a question about the library.",
		Func: func(ctx context.Context, input string) (string, error) {
			resp, err := llmClient.Chat(ctx, []llm.Message{
				llm.NewSystemMessage(librarianPersona),
				llm.NewUserMessage(input),
			})
			if err != nil {
				return "", err
			}
			return resp.Content, nil
		},
	}
}
