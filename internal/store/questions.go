package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/catengine/internal/bank"
)

type questionRepo struct {
	db *sql.DB
	b  *entsql.DialectBuilder
}

func (r *questionRepo) GetQuestion(ctx context.Context, id string) (*bank.Question, error) {
	query, args := r.b.Select("id", "question_text", "question_format", "topic", "difficulty_label", "partial_scoring").
		From(r.b.Table(QuestionsTable.Name)).
		Where(entsql.EQ("id", id)).
		Query()

	var (
		q     bank.Question
		label sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&q.ID, &q.Text, &q.Format, &q.Topic, &label, &q.PartialScoring)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get question %s: %w", id, err)
	}
	if label.Valid {
		q.Difficulty = bank.Difficulty(label.String)
	}

	query, args = r.b.Select("id", "question_id", "option_number", "option_text", "is_correct", "partial_credit", "penalty_value").
		From(r.b.Table(AnswerOptionsTable.Name)).
		Where(entsql.EQ("question_id", id)).
		OrderBy("option_number").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query options for %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var o bank.Option
		if err := rows.Scan(&o.ID, &o.QuestionID, &o.OptionNumber, &o.Text, &o.IsCorrect, &o.PartialCredit, &o.PenaltyValue); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		q.Options = append(q.Options, o)
	}
	return &q, rows.Err()
}

func (r *questionRepo) PoolCandidates(ctx context.Context, filter bank.PoolFilter) ([]string, error) {
	sel := r.b.Select("id").From(r.b.Table(QuestionsTable.Name))
	if len(filter.Topics) > 0 {
		sel.Where(entsql.In("topic", anyArgs(filter.Topics)...))
	}
	query, args := sel.OrderBy("id").Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pool candidates: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *questionRepo) DifficultyLabels(ctx context.Context, ids []string) (map[string]string, error) {
	labels := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return labels, nil
	}

	query, args := r.b.Select("id", "difficulty_label").
		From(r.b.Table(QuestionsTable.Name)).
		Where(entsql.And(
			entsql.In("id", anyArgs(ids)...),
			entsql.NotNull("difficulty_label"),
		)).
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query difficulty labels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, label string
		if err := rows.Scan(&id, &label); err != nil {
			return nil, fmt.Errorf("scan difficulty label: %w", err)
		}
		labels[id] = label
	}
	return labels, rows.Err()
}

func (r *questionRepo) SetDifficultyLabel(ctx context.Context, id string, label bank.Difficulty) error {
	query, args := r.b.Update(QuestionsTable.Name).
		Set("difficulty_label", string(label)).
		Where(entsql.EQ("id", id)).
		Query()

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("set difficulty label for %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *questionRepo) ImportQuestions(ctx context.Context, questions []bank.Question) error {
	now := time.Now()
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, q := range questions {
			var label any
			if q.Difficulty != "" {
				label = string(q.Difficulty)
			}
			query, args := r.b.Insert(QuestionsTable.Name).
				Columns("id", "question_text", "question_format", "topic", "difficulty_label", "partial_scoring", "source", "created_at").
				Values(q.ID, q.Text, string(q.Format), q.Topic, label, q.PartialScoring, "import", now).
				OnConflict(
					entsql.ConflictColumns("id"),
					entsql.ResolveWith(func(u *entsql.UpdateSet) {
						u.SetExcluded("question_text")
						u.SetExcluded("question_format")
						u.SetExcluded("topic")
						u.SetExcluded("difficulty_label")
						u.SetExcluded("partial_scoring")
					}),
				).
				Query()
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("upsert question %s: %w", q.ID, err)
			}

			query, args = r.b.Delete(AnswerOptionsTable.Name).
				Where(entsql.EQ("question_id", q.ID)).
				Query()
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("clear options for %s: %w", q.ID, err)
			}

			if len(q.Options) == 0 {
				continue
			}
			ins := r.b.Insert(AnswerOptionsTable.Name).
				Columns("id", "question_id", "option_number", "option_text", "is_correct", "partial_credit", "penalty_value")
			for i, o := range q.Options {
				num := o.OptionNumber
				if num == 0 {
					num = i + 1
				}
				ins.Values(o.ID, q.ID, num, o.Text, o.IsCorrect, o.PartialCredit, o.PenaltyValue)
			}
			query, args = ins.Query()
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("insert options for %s: %w", q.ID, err)
			}
		}
		return nil
	})
}

func (r *questionRepo) CountQuestions(ctx context.Context) (int, error) {
	query, args := r.b.Select(entsql.Count("*")).From(r.b.Table(QuestionsTable.Name)).Query()
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}
