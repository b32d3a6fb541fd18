// Package cat runs computer adaptive test sessions: it builds the question
// pool, serves the most informative item, scores answers, re-estimates
// ability and decides pass or fail.
package cat

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/catengine/internal/bank"
	"github.com/abhisek/catengine/internal/events"
	"github.com/abhisek/catengine/internal/irt"
	"github.com/abhisek/catengine/internal/lock"
	"github.com/abhisek/catengine/internal/logger"
	"github.com/abhisek/catengine/internal/metrics"
	"github.com/abhisek/catengine/internal/scoring"
	"github.com/abhisek/catengine/internal/selection"
	"github.com/abhisek/catengine/internal/store"
)

// Config holds engine defaults.
type Config struct {
	MinQuestions     int
	MaxQuestions     int
	PassingStandard  float64
	SeparationMargin float64
	ShortlistSize    int
	Estimator        irt.EstimatorConfig
}

// DefaultConfig returns the standard licensure-exam settings.
func DefaultConfig() Config {
	return Config{
		MinQuestions:     75,
		MaxQuestions:     145,
		PassingStandard:  0.0,
		SeparationMargin: 1.0,
		ShortlistSize:    selection.DefaultShortlistSize,
		Estimator:        irt.DefaultEstimatorConfig(),
	}
}

// Deps are the collaborators of a Service. Locker, Events, Metrics, Log,
// Rand and Now are optional.
type Deps struct {
	Questions store.QuestionRepo
	Responses store.ResponseRepo
	Sessions  store.SessionRepo
	Params    selection.ParamEnsurer

	Locker  lock.Locker
	Events  events.Publisher
	Metrics *metrics.Metrics
	Log     *logger.Logger
	Rand    *rand.Rand
	Now     func() time.Time
}

// Service orchestrates CAT sessions. It is safe for concurrent use; calls
// on the same session are serialized through the Locker.
type Service struct {
	questions store.QuestionRepo
	responses store.ResponseRepo
	sessions  store.SessionRepo
	params    selection.ParamEnsurer
	selector  *selection.Selector
	scorer    *scoring.Engine
	locker    lock.Locker
	events    events.Publisher
	metrics   *metrics.Metrics
	log       *logger.Logger
	now       func() time.Time
	cfg       Config

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewService wires a Service.
func NewService(deps Deps, cfg Config) *Service {
	s := &Service{
		questions: deps.Questions,
		responses: deps.Responses,
		sessions:  deps.Sessions,
		params:    deps.Params,
		scorer:    scoring.NewEngine(),
		locker:    deps.Locker,
		events:    deps.Events,
		metrics:   deps.Metrics,
		log:       deps.Log,
		now:       deps.Now,
		cfg:       cfg,
		rng:       deps.Rand,
	}
	if s.locker == nil {
		s.locker = lock.NewKeyedMutex()
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if s.cfg.Estimator.MaxIterations == 0 {
		s.cfg.Estimator = irt.DefaultEstimatorConfig()
	}
	s.selector = selection.New(deps.Params, cfg.ShortlistSize, rand.New(rand.NewPCG(s.rng.Uint64(), s.rng.Uint64())))
	return s
}

// CreateTest builds a tiered question pool for callerID and opens a session
// on it. The pool is capped at the session's maximum length.
func (s *Service) CreateTest(ctx context.Context, callerID string, opts TestOptions) (*CreatedTest, error) {
	if callerID == "" {
		return nil, ErrUnauthorizedSession
	}
	minQ, maxQ, standard, err := s.resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	candidates, err := s.questions.PoolCandidates(ctx, bank.PoolFilter{Topics: opts.Topics})
	if err != nil {
		return nil, fmt.Errorf("load pool candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, ErrEmptyPool
	}

	statuses, err := s.responses.QuestionStatuses(ctx, callerID, candidates)
	if err != nil {
		return nil, fmt.Errorf("load question history: %w", err)
	}

	s.rngMu.Lock()
	pool := buildPool(candidates, statuses, s.rng)
	s.rngMu.Unlock()
	if len(pool) > maxQ {
		pool = pool[:maxQ]
	}

	if _, err := s.params.Ensure(ctx, pool); err != nil {
		return nil, fmt.Errorf("ensure pool params: %w", err)
	}

	now := s.now()
	test := store.Test{
		ID:          uuid.NewString(),
		UserID:      callerID,
		Kind:        "cat",
		Topics:      opts.Topics,
		QuestionIDs: pool,
		CreatedAt:   now,
	}
	if err := s.sessions.CreateTest(ctx, test); err != nil {
		return nil, fmt.Errorf("create test: %w", err)
	}

	sess := store.Session{
		ID:              uuid.NewString(),
		TestID:          test.ID,
		UserID:          callerID,
		PassingStandard: standard,
		MinQuestions:    minQ,
		MaxQuestions:    maxQ,
		Status:          StatusInProgress,
		Version:         1,
		StartedAt:       now,
	}
	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.metrics.SessionCreated()
	s.publish(ctx, events.Event{
		Type:       events.TypeSessionCreated,
		SessionID:  sess.ID,
		TestID:     test.ID,
		UserID:     callerID,
		Status:     string(StatusInProgress),
		OccurredAt: now,
	})
	s.log.Info("cat session created", "session_id", sess.ID, "test_id", test.ID, "pool", len(pool), "min", minQ, "max", maxQ)

	return &CreatedTest{TestID: test.ID, SessionID: sess.ID, QuestionCount: len(pool)}, nil
}

func (s *Service) resolveOptions(opts TestOptions) (minQ, maxQ int, standard float64, err error) {
	minQ, maxQ, standard = s.cfg.MinQuestions, s.cfg.MaxQuestions, s.cfg.PassingStandard
	if opts.MinQuestions != 0 {
		minQ = opts.MinQuestions
	}
	if opts.MaxQuestions != 0 {
		maxQ = opts.MaxQuestions
		if opts.MinQuestions == 0 && minQ > maxQ {
			minQ = maxQ
		}
	}
	if opts.PassingStandard != nil {
		standard = *opts.PassingStandard
	}
	if minQ < 0 || maxQ < 1 || minQ > maxQ {
		return 0, 0, 0, fmt.Errorf("%w: min=%d max=%d", ErrInvalidOptions, minQ, maxQ)
	}
	return minQ, maxQ, standard, nil
}

// NextQuestion returns the question in flight, selects a new one, or ends
// the session when the stopping rule fires. Terminal sessions report their
// final state without error.
func (s *Service) NextQuestion(ctx context.Context, callerID, sessionID string) (*NextQuestion, error) {
	unlock, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("lock session: %w", err)
	}
	defer unlock()

	sess, err := s.loadSession(ctx, callerID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return terminal(sess), nil
	}

	sels, err := s.sessions.Selections(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load selections: %w", err)
	}

	if n := len(sels); n > 0 && !sels[n-1].Answered() {
		return s.serve(ctx, sess, sels[n-1])
	}

	if status, stop := s.shouldStop(sess); stop {
		return s.finish(ctx, sess, status)
	}

	test, err := s.sessions.GetTest(ctx, sess.TestID)
	if err != nil {
		return nil, fmt.Errorf("load test %s: %w", sess.TestID, err)
	}
	answered := make(map[string]bool, len(sels))
	for _, sel := range sels {
		answered[sel.QuestionID] = true
	}

	choice, err := s.selector.Select(ctx, sess.CurrentAbility, test.QuestionIDs, answered)
	if errors.Is(err, selection.ErrPoolExhausted) {
		return s.finish(ctx, sess, s.decide(sess.CurrentAbility, sess.PassingStandard))
	}
	if err != nil {
		return nil, fmt.Errorf("select item: %w", err)
	}

	sel := store.Selection{
		SessionID:     sessionID,
		Position:      sess.QuestionsAnswered + 1,
		QuestionID:    choice.QuestionID,
		Information:   choice.Information,
		AbilityBefore: sess.CurrentAbility,
		SelectedAt:    s.now(),
	}
	if err := s.sessions.AppendSelection(ctx, sel); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: position %d already selected", ErrOutOfSequence, sel.Position)
		}
		return nil, fmt.Errorf("record selection: %w", err)
	}
	s.metrics.ObserveSelection(choice.Information, choice.Random)
	s.log.Debug("item selected", "session_id", sessionID, "question_id", choice.QuestionID, "position", sel.Position, "information", choice.Information, "random", choice.Random)

	return s.serve(ctx, sess, sel)
}

func (s *Service) serve(ctx context.Context, sess *store.Session, sel store.Selection) (*NextQuestion, error) {
	q, err := s.questions.GetQuestion(ctx, sel.QuestionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: question %s", ErrNotFound, sel.QuestionID)
		}
		return nil, fmt.Errorf("load question %s: %w", sel.QuestionID, err)
	}
	return &NextQuestion{
		SessionID:         sess.ID,
		Status:            sess.Status,
		Question:          q,
		SerialNumber:      sel.Position,
		Ability:           sess.CurrentAbility,
		QuestionsAnswered: sess.QuestionsAnswered,
	}, nil
}

// SubmitAnswer scores the answer to the in-flight question, re-estimates
// ability over the full history and commits everything atomically. The
// stopping rule is evaluated on the new state, so the returned Status may
// already be terminal.
func (s *Service) SubmitAnswer(ctx context.Context, callerID, sessionID string, ans Answer) (*SubmitResult, error) {
	unlock, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("lock session: %w", err)
	}
	defer unlock()

	sess, err := s.loadSession(ctx, callerID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		s.metrics.AnswerRejected("session_closed")
		return nil, fmt.Errorf("%w: session is %s", ErrOutOfSequence, sess.Status)
	}

	sels, err := s.sessions.Selections(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load selections: %w", err)
	}
	n := len(sels)
	if n == 0 || sels[n-1].Answered() || sels[n-1].QuestionID != ans.QuestionID {
		s.metrics.AnswerRejected("out_of_sequence")
		s.log.Warn("answer rejected", "session_id", sessionID, "question_id", ans.QuestionID)
		return nil, fmt.Errorf("%w: question %s is not in flight", ErrOutOfSequence, ans.QuestionID)
	}
	current := sels[n-1]

	q, err := s.questions.GetQuestion(ctx, current.QuestionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: question %s", ErrNotFound, current.QuestionID)
		}
		return nil, fmt.Errorf("load question %s: %w", current.QuestionID, err)
	}
	result := s.scorer.Score(q, ans.Selected)

	ids := make([]string, n)
	for i, sel := range sels {
		ids[i] = sel.QuestionID
	}
	params, err := s.params.Ensure(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load item params: %w", err)
	}

	history := make([]irt.Response, 0, n)
	items := make([]irt.Params, 0, n)
	for i, sel := range sels {
		correct := result.IsCorrect
		if i < n-1 {
			correct = *sel.WasCorrect
		}
		p := params[sel.QuestionID]
		history = append(history, irt.Response{Params: p, Correct: correct})
		items = append(items, p)
	}

	est := s.cfg.Estimator.Estimate(sess.CurrentAbility, history)
	s.metrics.ObserveEstimate(est.Iterations, est.Converged)
	confidence := irt.Reliability(irt.TestInformation(est.Theta, items))

	next := *sess
	next.CurrentAbility = est.Theta
	next.AbilityConfidence = confidence
	next.QuestionsAnswered = sess.QuestionsAnswered + 1
	next.Status = StatusInProgress
	if status, stop := s.shouldStop(&next); stop {
		next.Status = status
	}

	now := s.now()
	err = s.sessions.RecordAnswer(ctx, store.AnswerCommit{
		SessionID:         sessionID,
		Position:          current.Position,
		WasCorrect:        result.IsCorrect,
		AbilityAfter:      est.Theta,
		AnsweredAt:        now,
		ExpectedVersion:   sess.Version,
		CurrentAbility:    next.CurrentAbility,
		AbilityConfidence: next.AbilityConfidence,
		QuestionsAnswered: next.QuestionsAnswered,
		Status:            next.Status,
	})
	if errors.Is(err, store.ErrConflict) {
		s.metrics.AnswerRejected("conflict")
		return nil, fmt.Errorf("%w: position %d already answered", ErrOutOfSequence, current.Position)
	}
	if err != nil {
		return nil, fmt.Errorf("commit answer: %w", err)
	}

	s.recordResponse(ctx, sess, ans, result, now)

	correct := result.IsCorrect
	s.metrics.AnswerAccepted(correct)
	s.publish(ctx, events.Event{
		Type:       events.TypeAnswerSubmitted,
		SessionID:  sessionID,
		TestID:     sess.TestID,
		UserID:     sess.UserID,
		QuestionID: current.QuestionID,
		Correct:    &correct,
		Ability:    est.Theta,
		Answered:   next.QuestionsAnswered,
		Status:     string(next.Status),
		OccurredAt: now,
	})
	s.log.Info("answer accepted", "session_id", sessionID, "position", current.Position, "correct", correct, "ability", est.Theta, "iterations", est.Iterations)
	if next.Status.Terminal() {
		s.finished(ctx, &next, now)
	}

	return &SubmitResult{
		IsCorrect:         result.IsCorrect,
		Score:             result.Score,
		MaxScore:          result.MaxScore,
		Ability:           est.Theta,
		AbilityConfidence: confidence,
		QuestionsAnswered: next.QuestionsAnswered,
		Status:            next.Status,
	}, nil
}

// recordResponse writes the result log and question history. The answer is
// already committed, so failures here are logged rather than returned.
func (s *Service) recordResponse(ctx context.Context, sess *store.Session, ans Answer, result scoring.Result, at time.Time) {
	_, err := s.responses.RecordResult(ctx, store.Result{
		TestID:          sess.TestID,
		UserID:          sess.UserID,
		QuestionID:      ans.QuestionID,
		SelectedOptions: ans.Selected,
		IsCorrect:       result.IsCorrect,
		Score:           result.Score,
		MaxScore:        result.MaxScore,
		TimeSpentSec:    ans.TimeSpentSeconds,
		AnsweredAt:      at,
	})
	if err != nil {
		s.log.Error("record result", "session_id", sess.ID, "question_id", ans.QuestionID, "error", err)
	}
	if err := s.responses.UpsertQuestionStatus(ctx, sess.UserID, ans.QuestionID, result.IsCorrect, at); err != nil {
		s.log.Error("upsert question status", "session_id", sess.ID, "question_id", ans.QuestionID, "error", err)
	}
}

// Abandon ends an in-progress session early.
func (s *Service) Abandon(ctx context.Context, callerID, sessionID string) (*NextQuestion, error) {
	unlock, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("lock session: %w", err)
	}
	defer unlock()

	sess, err := s.loadSession(ctx, callerID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return nil, fmt.Errorf("%w: session is %s", ErrSessionClosed, sess.Status)
	}
	return s.finish(ctx, sess, StatusAbandoned)
}

// Report returns the session and its selection log.
func (s *Service) Report(ctx context.Context, callerID, sessionID string) (*Report, error) {
	sess, err := s.loadSession(ctx, callerID, sessionID)
	if err != nil {
		return nil, err
	}
	sels, err := s.sessions.Selections(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load selections: %w", err)
	}
	return &Report{Session: *sess, Selections: sels}, nil
}

// loadSession fetches a session and checks ownership before anything else
// is read or written.
func (s *Service) loadSession(ctx context.Context, callerID, sessionID string) (*store.Session, error) {
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if callerID == "" || sess.UserID != callerID {
		s.log.Warn("unauthorized session access", "session_id", sessionID)
		return nil, ErrUnauthorizedSession
	}
	return sess, nil
}

// shouldStop applies the stopping rule to the session's current state.
func (s *Service) shouldStop(sess *store.Session) (Status, bool) {
	if sess.QuestionsAnswered >= sess.MaxQuestions {
		return s.decide(sess.CurrentAbility, sess.PassingStandard), true
	}
	if sess.QuestionsAnswered >= sess.MinQuestions && separated(sess.CurrentAbility, sess.PassingStandard, s.cfg.SeparationMargin) {
		return s.decide(sess.CurrentAbility, sess.PassingStandard), true
	}
	return StatusInProgress, false
}

func (s *Service) decide(theta, standard float64) Status {
	if theta >= standard {
		return StatusPassed
	}
	return StatusFailed
}

func separated(theta, standard, margin float64) bool {
	d := theta - standard
	if d < 0 {
		d = -d
	}
	return d > margin
}

// finish persists a terminal status.
func (s *Service) finish(ctx context.Context, sess *store.Session, status Status) (*NextQuestion, error) {
	now := s.now()
	if err := s.sessions.Finish(ctx, sess.ID, sess.Version, status, now); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: session %s changed concurrently", ErrOutOfSequence, sess.ID)
		}
		return nil, fmt.Errorf("finish session: %w", err)
	}

	done := *sess
	done.Status = status
	done.Version++
	done.StoppedAt = &now
	s.finished(ctx, &done, now)
	return terminal(&done), nil
}

func (s *Service) finished(ctx context.Context, sess *store.Session, at time.Time) {
	s.metrics.SessionFinished(string(sess.Status))
	s.publish(ctx, events.Event{
		Type:       events.TypeSessionFinished,
		SessionID:  sess.ID,
		TestID:     sess.TestID,
		UserID:     sess.UserID,
		Ability:    sess.CurrentAbility,
		Answered:   sess.QuestionsAnswered,
		Status:     string(sess.Status),
		OccurredAt: at,
	})
	s.log.Info("cat session finished", "session_id", sess.ID, "status", sess.Status, "ability", sess.CurrentAbility, "answered", sess.QuestionsAnswered)
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.Warn("publish event", "type", e.Type, "session_id", e.SessionID, "error", err)
	}
}

func terminal(sess *store.Session) *NextQuestion {
	return &NextQuestion{
		SessionID:         sess.ID,
		Status:            sess.Status,
		Ability:           sess.CurrentAbility,
		QuestionsAnswered: sess.QuestionsAnswered,
	}
}
