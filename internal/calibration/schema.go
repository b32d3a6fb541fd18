package calibration

import "github.com/abhisek/catengine/internal/llm"

// DifficultySchema defines the JSON schema for LLM difficulty labelling.
var DifficultySchema = &llm.Schema{
	Name:        "difficulty-label",
	Description: "Coarse difficulty rating of an exam question",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"difficulty": map[string]any{
				"type":        "string",
				"enum":        []any{"Easy", "Medium", "Hard"},
				"description": "How hard the question is for a typical candidate",
			},
			"reasoning": map[string]any{
				"type":        "string",
				"description": "One-sentence justification",
			},
		},
		"required":             []any{"difficulty", "reasoning"},
		"additionalProperties": false,
	},
}
