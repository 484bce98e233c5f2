package llm

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"triage_server/pkg/httputil"
)

type Client struct {
	client         *openai.Client
	model          string
	embeddingModel openai.EmbeddingModel
	maxTokens      int
	temperature    float32
	minEmbedLen    int
}

type ClientConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	MaxTokens      int
	Temperature    float64
	MinEmbedLen    int
}

const (
	DefaultModel          = "gpt-4o-mini"
	DefaultEmbeddingModel = openai.SmallEmbedding3
	DefaultMinEmbedLen    = 10
)

func NewClient(cfg ClientConfig) *Client {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	embeddingModel := openai.EmbeddingModel(cfg.EmbeddingModel)
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.2
	}
	minEmbedLen := cfg.MinEmbedLen
	if minEmbedLen == 0 {
		minEmbedLen = DefaultMinEmbedLen
	}
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.HTTPClient = httputil.OpenAIClient()

	return &Client{
		client:         openai.NewClientWithConfig(apiCfg),
		model:          model,
		embeddingModel: embeddingModel,
		maxTokens:      maxTokens,
		temperature:    float32(temperature),
		minEmbedLen:    minEmbedLen,
	}
}

func (c *Client) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt,
			},
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}

	return resp.Choices[0].Message.Content, nil
}

// Embed returns the embedding for text, or nil for text too short to
// carry meaning.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	text = strings.TrimSpace(text)
	if len(text) < c.minEmbedLen {
		return nil, nil
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: c.embeddingModel,
		Input: []string{text},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}

	vec := make([]float64, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float64(v)
	}
	return vec, nil
}

// stripCodeFences removes the markdown fences models wrap JSON in.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// truncateBody caps prompt input size.
func truncateBody(body string, max int) string {
	if len(body) <= max {
		return body
	}
	return body[:max]
}
