package external

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/mediflow/clinic/pkg/config"
	"github.com/mediflow/clinic/pkg/types"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiAssistant answers medication questions with a hosted model
type GeminiAssistant struct {
	models contentGenerator
	model  string
}

// NewGeminiAssistant creates an assistant from the gemini config section
func NewGeminiAssistant(ctx context.Context, cfg config.GeminiConfig) (*GeminiAssistant, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiAssistant{models: client.Models, model: cfg.Model}, nil
}

// Generate sends prompt and returns the answer on a single line
func (a *GeminiAssistant) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := a.models.GenerateContent(ctx, a.model, genai.Text(prompt), nil)
	if err != nil {
		return "", types.NewExternalError(types.ErrCodeExternalError, "failed to generate response", err)
	}
	text := resp.Text()
	if text == "" {
		return "", types.NewExternalError(types.ErrCodeExternalError, "model returned no text", nil)
	}
	return strings.ReplaceAll(text, "\n", ""), nil
}

// MedicationPrompt builds the assistant prompt from the caller's active
// prescriptions, any extra context lines and the question.
func MedicationPrompt(active []*types.Prescription, extra []string, question string) string {
	var b strings.Builder
	b.WriteString("You are a medication assistant who replies in 4-5 sentences.\n\n")
	b.WriteString("Current active prescriptions and context:\n")
	for _, p := range active {
		details := p.Details
		if details == "" {
			details = p.Text
		}
		fmt.Fprintf(&b, "Title %s, Details %s\n", p.Title, details)
	}
	for _, line := range extra {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\nUser question: ")
	b.WriteString(question)
	return b.String()
}
