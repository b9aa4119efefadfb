package analyzer

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-3-flash-preview"

// Gemini is a TextGenerator backed by the Gemini API. The client is built
// once at startup and shared.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("analyzer: missing Gemini API key")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("analyzer: creating Gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("analyzer: gemini %s: %w", g.model, err)
	}
	return resp.Text(), nil
}
