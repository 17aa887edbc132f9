// Package openai provides the OpenAI-backed language adapter. Each text
// message becomes one chat completion returning the raw extraction map.
package openai

import (
	"context"
	"fmt"

	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/mullbot/mull/pkg/adapter"
	"github.com/mullbot/mull/pkg/adapters/nlu/prompt"
	"github.com/mullbot/mull/pkg/chat"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// Adapter implements adapter.NLU on the OpenAI chat completions API.
type Adapter struct {
	client sdk.Client
	model  string
}

// New creates an openai language adapter.
func New(apiKey, model string) *Adapter {
	if model == "" {
		model = DefaultModel
	}
	return &Adapter{
		client: sdk.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Name returns the adapter name.
func (a *Adapter) Name() string { return "openai" }

// Process runs the extraction prompt over the message text.
func (a *Adapter) Process(ctx context.Context, message *chat.TextMessage) (map[string]interface{}, error) {
	resp, err := a.client.Chat.Completions.New(ctx, sdk.ChatCompletionNewParams{
		Model: sdk.ChatModel(a.model),
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.SystemMessage(prompt.Extraction),
			sdk.UserMessage(message.Text()),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return map[string]interface{}{}, nil
	}
	return prompt.Parse(resp.Choices[0].Message.Content)
}

// Compile-time verification
var _ adapter.NLU = (*Adapter)(nil)
