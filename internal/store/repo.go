package store

import (
	"context"
	"errors"
	"time"

	"github.com/abhisek/catengine/internal/bank"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when a conditional write matched no rows
	// because another writer got there first.
	ErrConflict = errors.New("store: conflicting update")
)

// SessionStatus is the persisted lifecycle state of a CAT session.
type SessionStatus string

const (
	StatusInProgress SessionStatus = "in_progress"
	StatusPassed     SessionStatus = "passed"
	StatusFailed     SessionStatus = "failed"
	StatusAbandoned  SessionStatus = "abandoned"
)

// Terminal reports whether no further transitions are allowed.
func (s SessionStatus) Terminal() bool {
	return s != StatusInProgress
}

// ParamSource records where a row of item parameters came from.
type ParamSource string

const (
	ParamSourceLabel  ParamSource = "label"
	ParamSourceManual ParamSource = "manual"
)

// ItemParams is a persisted 3PL parameter row.
type ItemParams struct {
	QuestionID     string
	Discrimination float64
	Difficulty     float64
	Guessing       float64
	Source         ParamSource
	UpdatedAt      time.Time
}

// QuestionStatus is the per-user history of a question.
type QuestionStatus struct {
	UserID      string
	QuestionID  string
	Attempts    int
	LastCorrect bool
	LastSeenAt  time.Time
}

// Test is a generated test and its fixed question pool.
type Test struct {
	ID          string
	UserID      string
	Kind        string
	Topics      []string
	QuestionIDs []string
	CreatedAt   time.Time
}

// Result is one scored answer.
type Result struct {
	ID              string
	TestID          string
	UserID          string
	QuestionID      string
	SelectedOptions []string
	IsCorrect       bool
	Score           float64
	MaxScore        float64
	TimeSpentSec    int
	AnsweredAt      time.Time
}

// Session is a persisted CAT session row.
type Session struct {
	ID                string        `json:"id"`
	TestID            string        `json:"test_id"`
	UserID            string        `json:"user_id"`
	InitialAbility    float64       `json:"initial_ability"`
	CurrentAbility    float64       `json:"current_ability"`
	AbilityConfidence float64       `json:"ability_confidence"`
	PassingStandard   float64       `json:"passing_standard"`
	MinQuestions      int           `json:"min_questions"`
	MaxQuestions      int           `json:"max_questions"`
	QuestionsAnswered int           `json:"questions_answered"`
	Status            SessionStatus `json:"status"`
	Version           int           `json:"version"`
	StartedAt         time.Time     `json:"started_at"`
	StoppedAt         *time.Time    `json:"stopped_at"`
}

// Selection is one served question within a session. WasCorrect and
// AbilityAfter stay nil until the question is answered.
type Selection struct {
	SessionID     string     `json:"session_id"`
	Position      int        `json:"position"`
	QuestionID    string     `json:"question_id"`
	Information   float64    `json:"information_value"`
	AbilityBefore float64    `json:"ability_before"`
	AbilityAfter  *float64   `json:"ability_after"`
	WasCorrect    *bool      `json:"was_correct"`
	SelectedAt    time.Time  `json:"selected_at"`
	AnsweredAt    *time.Time `json:"answered_at"`
}

// Answered reports whether the selection has been scored.
func (s Selection) Answered() bool {
	return s.WasCorrect != nil
}

// AnswerCommit carries everything written atomically when an answer is
// accepted: the selection outcome and the session's new state.
type AnswerCommit struct {
	SessionID         string
	Position          int
	WasCorrect        bool
	AbilityAfter      float64
	AnsweredAt        time.Time
	ExpectedVersion   int
	CurrentAbility    float64
	AbilityConfidence float64
	QuestionsAnswered int
	Status            SessionStatus
}

// QuestionRepo reads and writes the item bank.
type QuestionRepo interface {
	// GetQuestion returns a question with its options ordered by option number.
	GetQuestion(ctx context.Context, id string) (*bank.Question, error)

	// PoolCandidates returns question IDs matching the filter, ordered by ID.
	PoolCandidates(ctx context.Context, filter bank.PoolFilter) ([]string, error)

	// DifficultyLabels returns the raw difficulty label per question ID.
	// Questions without a label are omitted.
	DifficultyLabels(ctx context.Context, ids []string) (map[string]string, error)

	// SetDifficultyLabel persists an inferred label.
	SetDifficultyLabel(ctx context.Context, id string, label bank.Difficulty) error

	// ImportQuestions upserts questions and replaces their options.
	ImportQuestions(ctx context.Context, questions []bank.Question) error

	// CountQuestions returns the size of the bank.
	CountQuestions(ctx context.Context) (int, error)
}

// ResponseRepo records scored answers and per-user question history.
type ResponseRepo interface {
	// RecordResult stores a scored answer and returns its ID. Re-recording
	// the same (test, question) pair is a no-op.
	RecordResult(ctx context.Context, r Result) (string, error)
	Results(ctx context.Context, testID string) ([]Result, error)
	UpsertQuestionStatus(ctx context.Context, userID, questionID string, correct bool, at time.Time) error
	QuestionStatuses(ctx context.Context, userID string, ids []string) (map[string]QuestionStatus, error)
}

// ParamRepo stores 3PL item parameters.
type ParamRepo interface {
	GetParams(ctx context.Context, ids []string) (map[string]ItemParams, error)

	// InsertIfAbsent writes rows that do not exist yet and leaves existing
	// rows untouched, so concurrent initializers converge on one value.
	InsertIfAbsent(ctx context.Context, params []ItemParams) error

	// Upsert overwrites the row for params.QuestionID.
	Upsert(ctx context.Context, params ItemParams) error
}

// SessionRepo persists tests, CAT sessions and their selections.
type SessionRepo interface {
	CreateTest(ctx context.Context, t Test) error
	GetTest(ctx context.Context, id string) (*Test, error)

	CreateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context, userID string, limit int) ([]Session, error)

	// Selections returns a session's selections ordered by position.
	Selections(ctx context.Context, sessionID string) ([]Selection, error)

	// AppendSelection adds a selection. Returns ErrConflict if the position
	// or question is already taken in the session.
	AppendSelection(ctx context.Context, sel Selection) error

	// RecordAnswer applies c in one transaction. Returns ErrConflict if the
	// selection was already answered or the session version moved.
	RecordAnswer(ctx context.Context, c AnswerCommit) error

	// Finish moves an in-progress session to a terminal status. Returns
	// ErrConflict if the session is no longer at expectedVersion.
	Finish(ctx context.Context, id string, expectedVersion int, status SessionStatus, at time.Time) error
}

// QueryOpts controls event queries.
type QueryOpts struct {
	Limit int
	After time.Time
}

// LLMRequestEventData holds the data for an LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEvent is a stored LLM request event.
type LLMRequestEvent struct {
	ID        int
	Timestamp time.Time
	LLMRequestEventData
}

// LLMUsageStats summarises LLM usage.
type LLMUsageStats struct {
	Requests     int
	Failures     int
	InputTokens  int
	OutputTokens int
}

// ModelUsage holds aggregated token usage for a single model.
type ModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// EventRepo records operational events.
type EventRepo interface {
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error
	QueryLLMRequests(ctx context.Context, opts QueryOpts) ([]LLMRequestEvent, error)
	GetLLMRequest(ctx context.Context, id int) (*LLMRequestEvent, error)
	LLMUsage(ctx context.Context) (LLMUsageStats, error)
	LLMUsageByModel(ctx context.Context) ([]ModelUsage, error)
}
