package briefing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/daily-brief/internal/models"
	"go.uber.org/zap"
)

// FallbackText replaces the briefing when generation fails.
const FallbackText = "Error generating briefing. Please try again later."

var errEmptyCompletion = errors.New("completion has no content")

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Generator drafts briefings through an OpenAI-compatible chat completions API.
type Generator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

func NewGenerator(cfg Config, logger *zap.Logger) *Generator {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Generator{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger,
	}
}

// Generate returns the briefing text, or FallbackText if the API call fails.
func (g *Generator) Generate(ctx context.Context, profile models.UserProfile, specialRequest string) string {
	content, err := g.complete(ctx, BuildPrompt(profile, specialRequest))
	if err != nil {
		g.logger.Error("Failed to generate briefing",
			zap.Error(err),
			zap.String("phone", profile.Phone),
			zap.String("model", g.model))
		return FallbackText
	}
	return content
}

func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: g.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens:   g.maxTokens,
			Temperature: float32(g.temperature),
		},
	)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errEmptyCompletion
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", errEmptyCompletion
	}

	return content, nil
}
