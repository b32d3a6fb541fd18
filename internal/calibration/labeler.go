package calibration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/abhisek/catengine/internal/bank"
	"github.com/abhisek/catengine/internal/llm"
)

// Labeler assigns a coarse difficulty to a question that has none.
type Labeler interface {
	Label(ctx context.Context, q *bank.Question) (bank.Difficulty, error)
}

// StaticLabeler always returns the same label.
type StaticLabeler bank.Difficulty

// Label returns the fixed label.
func (s StaticLabeler) Label(context.Context, *bank.Question) (bank.Difficulty, error) {
	return bank.Difficulty(s), nil
}

// LabelerConfig holds configuration for the LLM labeler.
type LabelerConfig struct {
	MaxTokens   int
	Temperature float64
}

// DefaultLabelerConfig returns sensible defaults.
func DefaultLabelerConfig() LabelerConfig {
	return LabelerConfig{
		MaxTokens:   200,
		Temperature: 0.2,
	}
}

// LLMLabeler classifies questions with an LLM.
type LLMLabeler struct {
	provider llm.Provider
	cfg      LabelerConfig
}

// NewLLMLabeler creates an LLM-backed labeler.
func NewLLMLabeler(provider llm.Provider, cfg LabelerConfig) *LLMLabeler {
	return &LLMLabeler{provider: provider, cfg: cfg}
}

// labelOutput is the raw LLM response.
type labelOutput struct {
	Difficulty string `json:"difficulty"`
	Reasoning  string `json:"reasoning"`
}

// Label asks the provider for a difficulty. An unrecognised label falls
// back to Medium rather than failing.
func (l *LLMLabeler) Label(ctx context.Context, q *bank.Question) (bank.Difficulty, error) {
	ctx = llm.WithPurpose(ctx, "difficulty-label")

	userMsg, err := buildLabelMessage(q)
	if err != nil {
		return "", fmt.Errorf("build label prompt: %w", err)
	}

	resp, err := l.provider.Generate(ctx, llm.Request{
		System: labelSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: userMsg},
		},
		Schema:      DifficultySchema,
		MaxTokens:   l.cfg.MaxTokens,
		Temperature: l.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("LLM labelling failed: %w", err)
	}

	var raw labelOutput
	if err := json.Unmarshal(resp.Content, &raw); err != nil {
		return "", fmt.Errorf("failed to parse label response: %w", err)
	}

	d, ok := bank.ParseDifficulty(raw.Difficulty)
	if !ok {
		return bank.DifficultyMedium, nil
	}
	return d, nil
}

const labelSystemPrompt = `You are an experienced psychometrician reviewing items for a licensure exam. Rate how difficult the question is for a typical candidate.

Instructions:
- Answer with exactly one of Easy, Medium or Hard.
- Consider the reasoning steps needed, not the length of the text.
- Keep reasoning to one sentence.`

var labelUserTemplate = template.Must(template.New("label").Parse(`Topic: {{.Topic}}
Format: {{.Format}}
Question: {{.Text}}

Options:
{{range .Options}}- {{.Text}}{{if .IsCorrect}} (correct){{end}}
{{end}}`))

func buildLabelMessage(q *bank.Question) (string, error) {
	var buf bytes.Buffer
	if err := labelUserTemplate.Execute(&buf, q); err != nil {
		return "", err
	}
	return buf.String(), nil
}
