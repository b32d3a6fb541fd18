package calibration

import (
	"context"
	"fmt"

	"github.com/abhisek/catengine/internal/bank"
	"github.com/abhisek/catengine/internal/irt"
	"github.com/abhisek/catengine/internal/logger"
	"github.com/abhisek/catengine/internal/store"
)

// Initializer guarantees that every requested question has a parameter row,
// creating label-derived defaults for the ones that do not.
type Initializer struct {
	questions store.QuestionRepo
	params    store.ParamRepo
	boot      *Bootstrapper
	labeler   Labeler
	log       *logger.Logger
}

// NewInitializer creates an Initializer. A nil labeler treats unlabelled
// questions as Medium without asking anyone.
func NewInitializer(questions store.QuestionRepo, params store.ParamRepo, boot *Bootstrapper, labeler Labeler, log *logger.Logger) *Initializer {
	if log == nil {
		log = logger.Nop()
	}
	return &Initializer{questions: questions, params: params, boot: boot, labeler: labeler, log: log}
}

// Ensure returns parameters for all ids, initializing missing rows first.
// Rows written concurrently by another caller win over our draws.
func (i *Initializer) Ensure(ctx context.Context, ids []string) (map[string]irt.Params, error) {
	existing, err := i.params.GetParams(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load item params: %w", err)
	}

	var missing []string
	for _, id := range ids {
		if _, ok := existing[id]; !ok {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		if err := i.initialize(ctx, missing); err != nil {
			return nil, err
		}
		existing, err = i.params.GetParams(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("reload item params: %w", err)
		}
	}

	out := make(map[string]irt.Params, len(existing))
	for id, p := range existing {
		out[id] = irt.Params{A: p.Discrimination, B: p.Difficulty, C: p.Guessing}
	}
	return out, nil
}

func (i *Initializer) initialize(ctx context.Context, ids []string) error {
	labels, err := i.questions.DifficultyLabels(ctx, ids)
	if err != nil {
		return fmt.Errorf("load difficulty labels: %w", err)
	}

	rows := make([]store.ItemParams, 0, len(ids))
	for _, id := range ids {
		label, ok := bank.ParseDifficulty(labels[id])
		if !ok {
			label = i.inferLabel(ctx, id)
		}
		p := i.boot.Defaults(label)
		rows = append(rows, store.ItemParams{
			QuestionID:     id,
			Discrimination: p.A,
			Difficulty:     p.B,
			Guessing:       p.C,
			Source:         store.ParamSourceLabel,
		})
	}

	if err := i.params.InsertIfAbsent(ctx, rows); err != nil {
		return fmt.Errorf("initialize item params: %w", err)
	}
	i.log.Debug("initialized item params", "count", len(rows))
	return nil
}

// inferLabel asks the labeler for a difficulty, falling back to Medium on
// any failure. Successful labels are persisted so they are asked once.
func (i *Initializer) inferLabel(ctx context.Context, id string) bank.Difficulty {
	if i.labeler == nil {
		return bank.DifficultyMedium
	}

	q, err := i.questions.GetQuestion(ctx, id)
	if err != nil {
		i.log.Warn("load question for labelling", "question_id", id, "error", err)
		return bank.DifficultyMedium
	}

	label, err := i.labeler.Label(ctx, q)
	if err != nil {
		i.log.Warn("difficulty labelling failed", "question_id", id, "error", err)
		return bank.DifficultyMedium
	}

	if err := i.questions.SetDifficultyLabel(ctx, id, label); err != nil {
		i.log.Warn("persist difficulty label", "question_id", id, "error", err)
	}
	return label
}
