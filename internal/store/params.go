package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

type paramRepo struct {
	db *sql.DB
	b  *entsql.DialectBuilder
}

func (r *paramRepo) GetParams(ctx context.Context, ids []string) (map[string]ItemParams, error) {
	out := make(map[string]ItemParams, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query, args := r.b.Select("question_id", "discrimination", "difficulty", "guessing", "source", "updated_at").
		From(r.b.Table(ItemParametersTable.Name)).
		Where(entsql.In("question_id", anyArgs(ids)...)).
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query item params: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p      ItemParams
			source string
		)
		if err := rows.Scan(&p.QuestionID, &p.Discrimination, &p.Difficulty, &p.Guessing, &source, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan item params: %w", err)
		}
		p.Source = ParamSource(source)
		out[p.QuestionID] = p
	}
	return out, rows.Err()
}

func (r *paramRepo) InsertIfAbsent(ctx context.Context, params []ItemParams) error {
	if len(params) == 0 {
		return nil
	}

	ins := r.b.Insert(ItemParametersTable.Name).
		Columns("question_id", "discrimination", "difficulty", "guessing", "source", "updated_at")
	for _, p := range params {
		ins.Values(p.QuestionID, p.Discrimination, p.Difficulty, p.Guessing, string(sourceOrDefault(p.Source)), updatedAt(p.UpdatedAt))
	}
	query, args := ins.OnConflict(
		entsql.ConflictColumns("question_id"),
		entsql.DoNothing(),
	).Query()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert item params: %w", err)
	}
	return nil
}

func (r *paramRepo) Upsert(ctx context.Context, p ItemParams) error {
	query, args := r.b.Insert(ItemParametersTable.Name).
		Columns("question_id", "discrimination", "difficulty", "guessing", "source", "updated_at").
		Values(p.QuestionID, p.Discrimination, p.Difficulty, p.Guessing, string(sourceOrDefault(p.Source)), updatedAt(p.UpdatedAt)).
		OnConflict(
			entsql.ConflictColumns("question_id"),
			entsql.ResolveWithNewValues(),
		).
		Query()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert item params for %s: %w", p.QuestionID, err)
	}
	return nil
}

func sourceOrDefault(s ParamSource) ParamSource {
	if s == "" {
		return ParamSourceLabel
	}
	return s
}

func updatedAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
