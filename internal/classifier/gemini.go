package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	genai "google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/option"
)

// DefaultGeminiModel matches the model the hosted tracker uses.
const DefaultGeminiModel = "models/gemini-2.5-pro"

// GeminiRemote implements Remote against the Generative Language API.
type GeminiRemote struct {
	svc   *genai.Service
	model string
}

func NewGeminiRemote(ctx context.Context, apiKey, model string) (*GeminiRemote, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("missing Gemini API key")
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	svc, err := genai.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create generative language service: %w", err)
	}

	return &GeminiRemote{svc: svc, model: model}, nil
}

func (g *GeminiRemote) Classify(ctx context.Context, prompt string) (string, error) {
	req := &genai.GenerateContentRequest{
		Contents: []*genai.Content{{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		}},
	}

	resp, err := g.svc.Models.GenerateContent(g.model, req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("empty model response")
	}

	return strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text), nil
}
