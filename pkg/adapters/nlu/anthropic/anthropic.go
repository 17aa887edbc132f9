// Package anthropic provides the Anthropic-backed language adapter.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mullbot/mull/pkg/adapter"
	"github.com/mullbot/mull/pkg/adapters/nlu/prompt"
	"github.com/mullbot/mull/pkg/chat"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-3-5-haiku-latest"

// Adapter implements adapter.NLU on the Anthropic messages API.
type Adapter struct {
	client sdk.Client
	model  string
}

// New creates an anthropic language adapter.
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
func (a *Adapter) Name() string { return "anthropic" }

// Process runs the extraction prompt over the message text.
func (a *Adapter) Process(ctx context.Context, message *chat.TextMessage) (map[string]interface{}, error) {
	resp, err := a.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(a.model),
		MaxTokens: 1024,
		System: []sdk.TextBlockParam{
			{Text: prompt.Extraction},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(message.Text())),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic completion: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return map[string]interface{}{}, nil
	}
	return prompt.Parse(text.String())
}

// Compile-time verification
var _ adapter.NLU = (*Adapter)(nil)
