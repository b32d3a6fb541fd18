package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

type sessionRepo struct {
	db *sql.DB
	b  *entsql.DialectBuilder
}

var sessionColumns = []string{
	"id", "test_id", "user_id", "initial_ability", "current_ability", "ability_confidence",
	"passing_standard", "min_questions", "max_questions", "questions_answered",
	"status", "version", "started_at", "stopped_at",
}

var selectionColumns = []string{
	"session_id", "position", "question_id", "information", "ability_before",
	"ability_after", "was_correct", "selected_at", "answered_at",
}

func (r *sessionRepo) CreateTest(ctx context.Context, t Test) error {
	topics, err := json.Marshal(t.Topics)
	if err != nil {
		return fmt.Errorf("marshal topics: %w", err)
	}
	kind := t.Kind
	if kind == "" {
		kind = "cat"
	}
	created := updatedAt(t.CreatedAt)

	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		query, args := r.b.Insert(TestsTable.Name).
			Columns("id", "user_id", "kind", "topics", "created_at").
			Values(t.ID, t.UserID, kind, string(topics), created).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert test: %w", err)
		}

		if len(t.QuestionIDs) == 0 {
			return nil
		}
		ins := r.b.Insert(TestQuestionsTable.Name).Columns("test_id", "question_id", "position")
		for i, qid := range t.QuestionIDs {
			ins.Values(t.ID, qid, i)
		}
		query, args = ins.Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert test questions: %w", err)
		}
		return nil
	})
}

func (r *sessionRepo) GetTest(ctx context.Context, id string) (*Test, error) {
	query, args := r.b.Select("id", "user_id", "kind", "topics", "created_at").
		From(r.b.Table(TestsTable.Name)).
		Where(entsql.EQ("id", id)).
		Query()

	var (
		t      Test
		topics []byte
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&t.ID, &t.UserID, &t.Kind, &topics, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get test %s: %w", id, err)
	}
	if len(topics) > 0 {
		if err := json.Unmarshal(topics, &t.Topics); err != nil {
			return nil, fmt.Errorf("unmarshal topics: %w", err)
		}
	}

	query, args = r.b.Select("question_id").
		From(r.b.Table(TestQuestionsTable.Name)).
		Where(entsql.EQ("test_id", id)).
		OrderBy("position").
		Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query test questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var qid string
		if err := rows.Scan(&qid); err != nil {
			return nil, fmt.Errorf("scan test question: %w", err)
		}
		t.QuestionIDs = append(t.QuestionIDs, qid)
	}
	return &t, rows.Err()
}

func (r *sessionRepo) CreateSession(ctx context.Context, s Session) error {
	status := s.Status
	if status == "" {
		status = StatusInProgress
	}
	version := s.Version
	if version == 0 {
		version = 1
	}

	query, args := r.b.Insert(CatSessionsTable.Name).
		Columns(sessionColumns...).
		Values(s.ID, s.TestID, s.UserID, s.InitialAbility, s.CurrentAbility, s.AbilityConfidence,
			s.PassingStandard, s.MinQuestions, s.MaxQuestions, s.QuestionsAnswered,
			string(status), version, updatedAt(s.StartedAt), nullTime(s.StoppedAt)).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *sessionRepo) GetSession(ctx context.Context, id string) (*Session, error) {
	query, args := r.b.Select(sessionColumns...).
		From(r.b.Table(CatSessionsTable.Name)).
		Where(entsql.EQ("id", id)).
		Query()

	s, err := scanSession(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return s, nil
}

func (r *sessionRepo) ListSessions(ctx context.Context, userID string, limit int) ([]Session, error) {
	sel := r.b.Select(sessionColumns...).
		From(r.b.Table(CatSessionsTable.Name)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Desc("started_at"))
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *sessionRepo) Selections(ctx context.Context, sessionID string) ([]Selection, error) {
	query, args := r.b.Select(selectionColumns...).
		From(r.b.Table(CatSelectionsTable.Name)).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy("position").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query selections: %w", err)
	}
	defer rows.Close()

	var out []Selection
	for rows.Next() {
		var (
			sel          Selection
			abilityAfter sql.NullFloat64
			wasCorrect   sql.NullBool
			answeredAt   sql.NullTime
		)
		if err := rows.Scan(&sel.SessionID, &sel.Position, &sel.QuestionID, &sel.Information, &sel.AbilityBefore,
			&abilityAfter, &wasCorrect, &sel.SelectedAt, &answeredAt); err != nil {
			return nil, fmt.Errorf("scan selection: %w", err)
		}
		if abilityAfter.Valid {
			sel.AbilityAfter = &abilityAfter.Float64
		}
		if wasCorrect.Valid {
			sel.WasCorrect = &wasCorrect.Bool
		}
		if answeredAt.Valid {
			sel.AnsweredAt = &answeredAt.Time
		}
		out = append(out, sel)
	}
	return out, rows.Err()
}

func (r *sessionRepo) AppendSelection(ctx context.Context, sel Selection) error {
	query, args := r.b.Insert(CatSelectionsTable.Name).
		Columns("session_id", "position", "question_id", "information", "ability_before", "selected_at").
		Values(sel.SessionID, sel.Position, sel.QuestionID, sel.Information, sel.AbilityBefore, updatedAt(sel.SelectedAt)).
		OnConflict(entsql.DoNothing()).
		Query()

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("append selection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

func (r *sessionRepo) RecordAnswer(ctx context.Context, c AnswerCommit) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		query, args := r.b.Update(CatSelectionsTable.Name).
			Set("was_correct", c.WasCorrect).
			Set("ability_after", c.AbilityAfter).
			Set("answered_at", c.AnsweredAt).
			Where(entsql.And(
				entsql.EQ("session_id", c.SessionID),
				entsql.EQ("position", c.Position),
				entsql.IsNull("was_correct"),
			)).
			Query()
		if err := execOne(ctx, tx, query, args); err != nil {
			return err
		}

		upd := r.b.Update(CatSessionsTable.Name).
			Set("current_ability", c.CurrentAbility).
			Set("ability_confidence", c.AbilityConfidence).
			Set("questions_answered", c.QuestionsAnswered).
			Set("status", string(c.Status)).
			Add("version", 1)
		if c.Status.Terminal() {
			upd.Set("stopped_at", c.AnsweredAt)
		}
		query, args = upd.Where(entsql.And(
			entsql.EQ("id", c.SessionID),
			entsql.EQ("version", c.ExpectedVersion),
			entsql.EQ("status", string(StatusInProgress)),
		)).Query()
		return execOne(ctx, tx, query, args)
	})
}

func (r *sessionRepo) Finish(ctx context.Context, id string, expectedVersion int, status SessionStatus, at time.Time) error {
	query, args := r.b.Update(CatSessionsTable.Name).
		Set("status", string(status)).
		Set("stopped_at", at).
		Add("version", 1).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("version", expectedVersion),
			entsql.EQ("status", string(StatusInProgress)),
		)).
		Query()
	return execOne(ctx, r.db, query, args)
}

// execOne runs a conditional write and maps "no rows matched" to ErrConflict.
func execOne(ctx context.Context, q querier, query string, args []any) error {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		s         Session
		status    string
		stoppedAt sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.TestID, &s.UserID, &s.InitialAbility, &s.CurrentAbility, &s.AbilityConfidence,
		&s.PassingStandard, &s.MinQuestions, &s.MaxQuestions, &s.QuestionsAnswered,
		&status, &s.Version, &s.StartedAt, &stoppedAt); err != nil {
		return nil, err
	}
	s.Status = SessionStatus(status)
	if stoppedAt.Valid {
		s.StoppedAt = &stoppedAt.Time
	}
	return &s, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
