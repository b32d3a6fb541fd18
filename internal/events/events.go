// Package events publishes CAT session lifecycle events.
package events

import (
	"context"
	"sync"
	"time"
)

// Event types.
const (
	TypeSessionCreated  = "session.created"
	TypeAnswerSubmitted = "answer.submitted"
	TypeSessionFinished = "session.finished"
)

// Event is the JSON body published for every lifecycle change.
type Event struct {
	Type       string    `json:"event_type"`
	SessionID  string    `json:"session_id"`
	TestID     string    `json:"test_id,omitempty"`
	UserID     string    `json:"user_id"`
	QuestionID string    `json:"question_id,omitempty"`
	Correct    *bool     `json:"correct,omitempty"`
	Ability    float64   `json:"ability"`
	Answered   int       `json:"questions_answered"`
	Status     string    `json:"status,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the type of every published event in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
