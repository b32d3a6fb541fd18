package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

type responseRepo struct {
	db *sql.DB
	b  *entsql.DialectBuilder
}

func (r *responseRepo) RecordResult(ctx context.Context, res Result) (string, error) {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	selected, err := json.Marshal(res.SelectedOptions)
	if err != nil {
		return "", fmt.Errorf("marshal selected options: %w", err)
	}

	query, args := r.b.Insert(TestResultsTable.Name).
		Columns("id", "test_id", "user_id", "question_id", "selected_options", "is_correct", "score", "max_score", "time_spent_seconds", "answered_at").
		Values(res.ID, res.TestID, res.UserID, res.QuestionID, string(selected), res.IsCorrect, res.Score, res.MaxScore, res.TimeSpentSec, updatedAt(res.AnsweredAt)).
		OnConflict(
			entsql.ConflictColumns("test_id", "question_id"),
			entsql.DoNothing(),
		).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("record result for %s: %w", res.QuestionID, err)
	}
	return res.ID, nil
}

func (r *responseRepo) Results(ctx context.Context, testID string) ([]Result, error) {
	query, args := r.b.Select("id", "test_id", "user_id", "question_id", "selected_options", "is_correct", "score", "max_score", "time_spent_seconds", "answered_at").
		From(r.b.Table(TestResultsTable.Name)).
		Where(entsql.EQ("test_id", testID)).
		OrderBy("answered_at").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var (
			res      Result
			selected []byte
		)
		if err := rows.Scan(&res.ID, &res.TestID, &res.UserID, &res.QuestionID, &selected, &res.IsCorrect, &res.Score, &res.MaxScore, &res.TimeSpentSec, &res.AnsweredAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if err := json.Unmarshal(selected, &res.SelectedOptions); err != nil {
			return nil, fmt.Errorf("unmarshal selected options: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *responseRepo) UpsertQuestionStatus(ctx context.Context, userID, questionID string, correct bool, at time.Time) error {
	query, args := r.b.Insert(QuestionStatusTable.Name).
		Columns("user_id", "question_id", "attempts", "last_correct", "last_seen_at").
		Values(userID, questionID, 1, correct, at).
		OnConflict(
			entsql.ConflictColumns("user_id", "question_id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.Add("attempts", 1)
				u.SetExcluded("last_correct")
				u.SetExcluded("last_seen_at")
			}),
		).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert question status: %w", err)
	}
	return nil
}

func (r *responseRepo) QuestionStatuses(ctx context.Context, userID string, ids []string) (map[string]QuestionStatus, error) {
	out := make(map[string]QuestionStatus, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query, args := r.b.Select("user_id", "question_id", "attempts", "last_correct", "last_seen_at").
		From(r.b.Table(QuestionStatusTable.Name)).
		Where(entsql.And(
			entsql.EQ("user_id", userID),
			entsql.In("question_id", anyArgs(ids)...),
		)).
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query question status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var st QuestionStatus
		if err := rows.Scan(&st.UserID, &st.QuestionID, &st.Attempts, &st.LastCorrect, &st.LastSeenAt); err != nil {
			return nil, fmt.Errorf("scan question status: %w", err)
		}
		out[st.QuestionID] = st
	}
	return out, rows.Err()
}
