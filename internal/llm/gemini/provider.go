// Package gemini implements the llm.Provider contract on Google's Gemini API.
package gemini

import (
	"context"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/clinova/go-triage-backend/internal/llm"
)

// defaultModel is used when no model is configured.
const defaultModel = "gemini-2.5-flash"

// defaultTimeout bounds a single completion call when the caller's context
// carries no deadline of its own.
const defaultTimeout = 15 * time.Second

// Provider phrases intake turns via Gemini.
type Provider struct {
	apiKey  string
	model   string
	timeout time.Duration
}

// NewProvider constructs a Gemini provider. An empty apiKey yields an
// unconfigured provider that fails Complete; callers should check
// IsConfigured and fall back to fixed phrasing.
func NewProvider(apiKey, model string, timeout time.Duration) *Provider {
	if model == "" {
		model = defaultModel
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Provider{apiKey: apiKey, model: model, timeout: timeout}
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "gemini" }

// IsConfigured checks if the provider has an API key.
func (p *Provider) IsConfigured() bool { return p.apiKey != "" }

// Complete generates one assistant reply. Temperature is pinned to 0 so the
// phrasing stays deterministic for identical transcripts.
func (p *Provider) Complete(ctx context.Context, prompt string) (string, error) {
	if !p.IsConfigured() {
		return "", fmt.Errorf("gemini provider is not configured (missing API key)")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(p.model)
	var temperature float32 = 0.0
	model.Temperature = &temperature

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation error: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", llm.ErrUnparsableOutput
	}

	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out += string(text)
		}
	}
	if out == "" {
		return "", llm.ErrUnparsableOutput
	}
	return out, nil
}
