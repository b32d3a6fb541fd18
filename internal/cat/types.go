package cat

import (
	"github.com/abhisek/catengine/internal/bank"
	"github.com/abhisek/catengine/internal/store"
)

// Status is the lifecycle state of a session.
type Status = store.SessionStatus

const (
	StatusInProgress = store.StatusInProgress
	StatusPassed     = store.StatusPassed
	StatusFailed     = store.StatusFailed
	StatusAbandoned  = store.StatusAbandoned
)

// TestOptions configures a new adaptive test. Zero values take the
// service defaults.
type TestOptions struct {
	Topics          []string
	MinQuestions    int
	MaxQuestions    int
	PassingStandard *float64
}

// CreatedTest is returned by CreateTest.
type CreatedTest struct {
	TestID        string `json:"test_id"`
	SessionID     string `json:"session_id"`
	QuestionCount int    `json:"question_count"`
}

// NextQuestion is the result of asking for the next item. Question is nil
// once the session has reached a terminal status.
type NextQuestion struct {
	SessionID         string         `json:"session_id"`
	Status            Status         `json:"status"`
	Question          *bank.Question `json:"question,omitempty"`
	SerialNumber      int            `json:"serial_number,omitempty"`
	Ability           float64        `json:"ability"`
	QuestionsAnswered int            `json:"questions_answered"`
}

// Finished reports whether the session is over.
func (n *NextQuestion) Finished() bool {
	return n.Status.Terminal()
}

// Answer is a candidate's response to the in-flight question.
type Answer struct {
	QuestionID       string   `json:"question_id"`
	Selected         []string `json:"selected"`
	TimeSpentSeconds int      `json:"time_spent_seconds"`
}

// SubmitResult is returned by SubmitAnswer.
type SubmitResult struct {
	IsCorrect         bool    `json:"is_correct"`
	Score             float64 `json:"score"`
	MaxScore          float64 `json:"max_score"`
	Ability           float64 `json:"ability"`
	AbilityConfidence float64 `json:"ability_confidence"`
	QuestionsAnswered int     `json:"questions_answered"`
	Status            Status  `json:"status"`
}

// Report is a session together with its selection log.
type Report struct {
	Session    store.Session     `json:"session"`
	Selections []store.Selection `json:"selections"`
}
