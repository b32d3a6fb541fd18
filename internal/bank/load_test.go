package bank

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBank = `{
  "questions": [
    {
      "id": "q1",
      "text": "Which electrolyte imbalance causes peaked T waves?",
      "topic": "cardio",
      "difficulty": "hard",
      "options": [
        {"text": "Hyperkalemia", "is_correct": true},
        {"text": "Hyponatremia"}
      ]
    },
    {
      "id": "q2",
      "text": "Select the signs of hypoglycemia.",
      "format": "SATA",
      "partial_scoring": true,
      "difficulty": "tricky",
      "options": [
        {"id": "a", "text": "Diaphoresis", "is_correct": true, "partial_credit": 0.5},
        {"id": "b", "text": "Tremor", "is_correct": true},
        {"id": "c", "text": "Bradycardia", "penalty_value": 0.5}
      ]
    }
  ]
}`

func TestDecode(t *testing.T) {
	qs, err := Decode(strings.NewReader(sampleBank))
	require.NoError(t, err)
	require.Len(t, qs, 2)

	q1 := qs[0]
	assert.Equal(t, FormatMultipleChoice, q1.Format)
	assert.Equal(t, DifficultyHard, q1.Difficulty)
	assert.Equal(t, "q1-1", q1.Options[0].ID)
	assert.Equal(t, 2, q1.Options[1].OptionNumber)
	assert.Equal(t, "q1", q1.Options[1].QuestionID)
	assert.Equal(t, 1.0, q1.Options[0].PartialCredit)
	assert.Zero(t, q1.Options[1].PartialCredit)

	q2 := qs[1]
	assert.Empty(t, q2.Difficulty, "unknown labels are cleared")
	assert.Equal(t, 0.5, q2.Options[0].PartialCredit)
	assert.Equal(t, 1.0, q2.Options[1].PartialCredit)
	assert.Equal(t, 0.5, q2.Options[2].PenaltyValue)
}

func TestDecodeBareArray(t *testing.T) {
	qs, err := Decode(strings.NewReader(`[{"id":"x","text":"t","options":[{"text":"a","is_correct":true},{"text":"b"}]}]`))
	require.NoError(t, err)
	assert.Len(t, qs, 1)
}

func TestDecodeRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"malformed":        `{"questions": [`,
		"missing id":       `[{"text":"t","options":[{"text":"a","is_correct":true},{"text":"b"}]}]`,
		"missing text":     `[{"id":"x","options":[{"text":"a","is_correct":true},{"text":"b"}]}]`,
		"one option":       `[{"id":"x","text":"t","options":[{"text":"a","is_correct":true}]}]`,
		"no correct":       `[{"id":"x","text":"t","options":[{"text":"a"},{"text":"b"}]}]`,
		"two correct mcq":  `[{"id":"x","text":"t","options":[{"text":"a","is_correct":true},{"text":"b","is_correct":true}]}]`,
		"dup option id":    `[{"id":"x","text":"t","options":[{"id":"a","text":"a","is_correct":true},{"id":"a","text":"b"}]}]`,
		"dup question ids": `[{"id":"x","text":"t","options":[{"text":"a","is_correct":true},{"text":"b"}]},{"id":"x","text":"t","options":[{"text":"a","is_correct":true},{"text":"b"}]}]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(body))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bank.json")
	require.NoError(t, os.WriteFile(p, []byte(sampleBank), 0o644))

	qs, err := LoadFile(p)
	require.NoError(t, err)
	assert.Len(t, qs, 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
