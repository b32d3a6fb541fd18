// Package bank defines the question content types the adaptive engine
// reads from the question repository.
package bank

import "strings"

// Format names a question's answer format.
type Format string

const (
	FormatMultipleChoice   Format = "Multiple Choice"
	FormatSelectAll        Format = "Select All That Apply"
	FormatSATA             Format = "SATA"
	FormatMultipleResponse Format = "Multiple Response"
)

// IsMultiSelect reports whether the format accepts more than one selected option.
func (f Format) IsMultiSelect() bool {
	switch Format(strings.TrimSpace(string(f))) {
	case FormatSelectAll, FormatSATA, FormatMultipleResponse:
		return true
	}
	return false
}

// Difficulty is the coarse difficulty label attached to a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// ParseDifficulty normalizes a free-form label. Unknown or empty labels
// return ("", false).
func ParseDifficulty(s string) (Difficulty, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return DifficultyEasy, true
	case "medium":
		return DifficultyMedium, true
	case "hard":
		return DifficultyHard, true
	}
	return "", false
}

// Option is one answer option of a question.
type Option struct {
	ID            string  `json:"id"`
	QuestionID    string  `json:"question_id"`
	OptionNumber  int     `json:"option_number"`
	Text          string  `json:"text"`
	IsCorrect     bool    `json:"is_correct"`
	PartialCredit float64 `json:"partial_credit"`
	PenaltyValue  float64 `json:"penalty_value"`
}

// Question is the content of a single item in the bank.
type Question struct {
	ID             string     `json:"id"`
	Text           string     `json:"text"`
	Format         Format     `json:"format"`
	Topic          string     `json:"topic,omitempty"`
	Difficulty     Difficulty `json:"difficulty,omitempty"`
	PartialScoring bool       `json:"partial_scoring"`
	Options        []Option   `json:"options"`
}

// PoolFilter narrows the candidates considered for a new test pool.
type PoolFilter struct {
	Topics []string
}
