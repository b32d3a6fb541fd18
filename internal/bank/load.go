package bank

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// document is the on-disk bank layout. A bare JSON array of questions is
// accepted too.
type document struct {
	Questions []Question `json:"questions"`
}

// Decode reads a question bank from r, fills defaults and validates it.
func Decode(r io.Reader) ([]Question, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read bank: %w", err)
	}
	raw = bytes.TrimSpace(raw)

	var qs []Question
	if len(raw) > 0 && raw[0] == '[' {
		err = json.Unmarshal(raw, &qs)
	} else {
		var doc document
		err = json.Unmarshal(raw, &doc)
		qs = doc.Questions
	}
	if err != nil {
		return nil, fmt.Errorf("decode bank: %w", err)
	}

	seen := make(map[string]bool, len(qs))
	var errs []error
	for i := range qs {
		q := &qs[i]
		Normalize(q)
		if err := Validate(q); err != nil {
			errs = append(errs, fmt.Errorf("question %d: %w", i+1, err))
			continue
		}
		if seen[q.ID] {
			errs = append(errs, fmt.Errorf("question %d: duplicate id %q", i+1, q.ID))
		}
		seen[q.ID] = true
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return qs, nil
}

// LoadFile decodes the bank stored at path.
func LoadFile(path string) ([]Question, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Normalize fills derived fields: option IDs and numbers, owning question
// ID, full credit on correct options that carry none, and a canonical
// difficulty label. Unknown labels are cleared so the item gets labelled
// later.
func Normalize(q *Question) {
	q.ID = strings.TrimSpace(q.ID)
	if q.Format == "" {
		q.Format = FormatMultipleChoice
	}
	if d, ok := ParseDifficulty(string(q.Difficulty)); ok {
		q.Difficulty = d
	} else {
		q.Difficulty = ""
	}
	for i := range q.Options {
		o := &q.Options[i]
		o.QuestionID = q.ID
		if o.OptionNumber == 0 {
			o.OptionNumber = i + 1
		}
		if o.ID == "" {
			o.ID = fmt.Sprintf("%s-%d", q.ID, o.OptionNumber)
		}
		if o.IsCorrect && o.PartialCredit == 0 {
			o.PartialCredit = 1.0
		}
	}
}

// Validate checks a normalized question can be served and scored.
func Validate(q *Question) error {
	if q.ID == "" {
		return errors.New("missing id")
	}
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%s: missing text", q.ID)
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("%s: needs at least two options", q.ID)
	}

	ids := make(map[string]bool, len(q.Options))
	correct := 0
	for _, o := range q.Options {
		if ids[o.ID] {
			return fmt.Errorf("%s: duplicate option id %q", q.ID, o.ID)
		}
		ids[o.ID] = true
		if o.IsCorrect {
			correct++
		}
	}
	switch {
	case correct == 0:
		return fmt.Errorf("%s: no correct option", q.ID)
	case correct > 1 && !q.Format.IsMultiSelect():
		return fmt.Errorf("%s: %d correct options on a single-answer question", q.ID, correct)
	}
	return nil
}
