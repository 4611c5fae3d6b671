package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"keygate/internal/config"
)

const summarizePrompt = "Summarize the following text in a few sentences:\n\n"

// GeminiSummarizer produces summaries with the Gemini API.
type GeminiSummarizer struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

func NewGemini(ctx context.Context, cfg config.SummarizerConfig, logger *slog.Logger) (*GeminiSummarizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("summarizer api_key must be configured")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiSummarizer{
		client: client,
		model:  cfg.Model,
		logger: logger.With("component", "summarizer"),
	}, nil
}

func (g *GeminiSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	m := g.client.GenerativeModel(g.model)
	resp, err := m.GenerateContent(ctx, genai.Text(summarizePrompt+text))
	if err != nil {
		g.logger.Error("gemini request failed", "error", err)
		return "", fmt.Errorf("gemini request: %w", err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		// Only the first candidate is used.
		break
	}
	if sb.Len() == 0 {
		return "", errors.New("gemini returned no text candidates")
	}
	return sb.String(), nil
}

func (g *GeminiSummarizer) Close() error {
	return g.client.Close()
}
