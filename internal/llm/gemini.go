// Package llm wraps the hosted text-understanding service. The engine
// treats it as a black box: instructions and user text in, best-effort
// tabular text out.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Completer is the seam the submission parser depends on, so the decode
// and reconciliation logic can be tested without network access.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Gemini implements Completer on the Gemini API. Requests are bounded by
// a timeout and fall through a small model list on quota errors.
type Gemini struct {
	client  *genai.Client
	models  []string
	timeout time.Duration
}

var _ Completer = (*Gemini)(nil)

// NewGemini creates a Gemini-backed completer.
func NewGemini(ctx context.Context, apiKey string, timeout time.Duration) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}

	return &Gemini{
		client:  client,
		models:  []string{"gemini-2.5-flash", "gemini-2.5-flash-lite"},
		timeout: timeout,
	}, nil
}

// Complete sends the system instructions and user text to the model and
// returns its raw textual response. Extraction needs determinism, so
// temperature is pinned to zero.
func (g *Gemini) Complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0),
	}

	var lastErr error
	for _, model := range g.models {
		result, err := g.client.Models.GenerateContent(ctx, model, genai.Text(user), config)
		if err != nil {
			if isQuotaError(err) {
				lastErr = err
				continue
			}
			return "", err
		}
		if result != nil && len(result.Candidates) > 0 && len(result.Candidates[0].Content.Parts) > 0 {
			return result.Candidates[0].Content.Parts[0].Text, nil
		}
		lastErr = fmt.Errorf("model %s returned no candidates", model)
	}

	return "", fmt.Errorf("all models failed: %w", lastErr)
}

func isQuotaError(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "429") ||
		strings.Contains(s, "rate limit") ||
		strings.Contains(s, "exhausted") ||
		strings.Contains(s, "not found") ||
		strings.Contains(s, "404")
}
