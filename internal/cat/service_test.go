package cat

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/catengine/internal/bank"
	"github.com/abhisek/catengine/internal/calibration"
	"github.com/abhisek/catengine/internal/events"
	"github.com/abhisek/catengine/internal/store"
)

const user = "user-1"

type harness struct {
	svc    *Service
	store  *store.Store
	events *events.Recorder
}

func mediumQuestions(n int) []bank.Question {
	qs := make([]bank.Question, n)
	for i := range qs {
		id := fmt.Sprintf("q%02d", i+1)
		qs[i] = bank.Question{
			ID: id, Text: "Question " + id, Format: bank.FormatMultipleChoice, Topic: "core", Difficulty: bank.DifficultyMedium,
			Options: []bank.Option{
				{ID: id + "-a", Text: "right", IsCorrect: true, PartialCredit: 1},
				{ID: id + "-b", Text: "wrong"},
			},
		}
	}
	return qs
}

func newHarness(t *testing.T, questions []bank.Question) *harness {
	t.Helper()
	ctx := context.Background()

	st, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "cat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	if len(questions) > 0 {
		require.NoError(t, st.Questions().ImportQuestions(ctx, questions))
	}

	rec := &events.Recorder{}
	boot := calibration.NewBootstrapper(calibration.DefaultConfig(), rand.New(rand.NewPCG(3, 4)))
	svc := NewService(Deps{
		Questions: st.Questions(),
		Responses: st.Responses(),
		Sessions:  st.Sessions(),
		Params:    calibration.NewInitializer(st.Questions(), st.Params(), boot, nil, nil),
		Events:    rec,
		Rand:      rand.New(rand.NewPCG(5, 6)),
	}, DefaultConfig())

	return &harness{svc: svc, store: st, events: rec}
}

func std(v float64) *float64 { return &v }

func correctOption(q *bank.Question) string {
	for _, o := range q.Options {
		if o.IsCorrect {
			return o.ID
		}
	}
	return ""
}

func wrongOption(q *bank.Question) string {
	for _, o := range q.Options {
		if !o.IsCorrect {
			return o.ID
		}
	}
	return ""
}

// answerNext fetches the next question and answers it.
func (h *harness) answerNext(t *testing.T, sessionID string, correct bool) *SubmitResult {
	t.Helper()
	ctx := context.Background()

	next, err := h.svc.NextQuestion(ctx, user, sessionID)
	require.NoError(t, err)
	require.NotNil(t, next.Question, "expected a question, got status %s", next.Status)

	pick := wrongOption(next.Question)
	if correct {
		pick = correctOption(next.Question)
	}
	res, err := h.svc.SubmitAnswer(ctx, user, sessionID, Answer{QuestionID: next.Question.ID, Selected: []string{pick}, TimeSpentSeconds: 30})
	require.NoError(t, err)
	return res
}

func TestCreateTestEmptyPool(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.svc.CreateTest(context.Background(), user, TestOptions{})
	assert.ErrorIs(t, err, ErrEmptyPool)

	h = newHarness(t, mediumQuestions(3))
	_, err = h.svc.CreateTest(context.Background(), user, TestOptions{Topics: []string{"other"}})
	assert.ErrorIs(t, err, ErrEmptyPool)
}

func TestCreateTestValidatesOptions(t *testing.T) {
	h := newHarness(t, mediumQuestions(3))
	ctx := context.Background()

	tests := []struct {
		name string
		opts TestOptions
	}{
		{"min above max", TestOptions{MinQuestions: 10, MaxQuestions: 5}},
		{"negative min", TestOptions{MinQuestions: -1, MaxQuestions: 5}},
		{"negative max", TestOptions{MaxQuestions: -3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.CreateTest(ctx, user, tt.opts)
			assert.ErrorIs(t, err, ErrInvalidOptions)
		})
	}

	_, err := h.svc.CreateTest(ctx, "", TestOptions{})
	assert.ErrorIs(t, err, ErrUnauthorizedSession)
}

func TestCreateTestOpensSession(t *testing.T) {
	h := newHarness(t, mediumQuestions(4))
	ctx := context.Background()

	created, err := h.svc.CreateTest(ctx, user, TestOptions{MinQuestions: 2, MaxQuestions: 3, PassingStandard: std(0.5)})
	require.NoError(t, err)
	assert.Equal(t, 3, created.QuestionCount, "pool is capped at max questions")

	sess, err := h.store.Sessions().GetSession(ctx, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, sess.Status)
	assert.Equal(t, 0.0, sess.CurrentAbility)
	assert.Equal(t, 0.0, sess.InitialAbility)
	assert.Equal(t, 0, sess.QuestionsAnswered)
	assert.Equal(t, 0.5, sess.PassingStandard)
	assert.Equal(t, 2, sess.MinQuestions)
	assert.Equal(t, 3, sess.MaxQuestions)

	test, err := h.store.Sessions().GetTest(ctx, created.TestID)
	require.NoError(t, err)
	params, err := h.store.Params().GetParams(ctx, test.QuestionIDs)
	require.NoError(t, err)
	assert.Len(t, params, 3, "params are initialized for the whole pool")

	assert.Equal(t, []string{events.TypeSessionCreated}, h.events.Types())
}

func TestCreateTestTiersPool(t *testing.T) {
	h := newHarness(t, mediumQuestions(4))
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, h.store.Responses().UpsertQuestionStatus(ctx, user, "q01", true, now))
	require.NoError(t, h.store.Responses().UpsertQuestionStatus(ctx, user, "q02", false, now))

	created, err := h.svc.CreateTest(ctx, user, TestOptions{MaxQuestions: 4})
	require.NoError(t, err)

	test, err := h.store.Sessions().GetTest(ctx, created.TestID)
	require.NoError(t, err)
	require.Len(t, test.QuestionIDs, 4)
	assert.ElementsMatch(t, []string{"q03", "q04"}, test.QuestionIDs[:2], "unseen first")
	assert.Equal(t, "q02", test.QuestionIDs[2], "then previously incorrect")
	assert.Equal(t, "q01", test.QuestionIDs[3], "then everything else")
}

func TestMaxOneTerminatesAfterOneSubmit(t *testing.T) {
	h := newHarness(t, mediumQuestions(5))
	ctx := context.Background()

	created, err := h.svc.CreateTest(ctx, user, TestOptions{MaxQuestions: 1})
	require.NoError(t, err)

	res := h.answerNext(t, created.SessionID, true)
	assert.Contains(t, []Status{StatusPassed, StatusFailed}, res.Status)
	assert.Equal(t, 1, res.QuestionsAnswered)

	next, err := h.svc.NextQuestion(ctx, user, created.SessionID)
	require.NoError(t, err)
	assert.True(t, next.Finished())
	assert.Nil(t, next.Question)
	assert.Equal(t, res.Status, next.Status)
}

func TestFiveMediumAllCorrectPasses(t *testing.T) {
	h := newHarness(t, mediumQuestions(5))
	ctx := context.Background()

	created, err := h.svc.CreateTest(ctx, user, TestOptions{MinQuestions: 5, MaxQuestions: 5, PassingStandard: std(0)})
	require.NoError(t, err)

	var res *SubmitResult
	prev := 0.0
	for i := 0; i < 5; i++ {
		res = h.answerNext(t, created.SessionID, true)
		assert.GreaterOrEqual(t, res.Ability, prev, "ability never drops on a correct answer")
		prev = res.Ability
		if i < 4 {
			assert.Equal(t, StatusInProgress, res.Status)
		}
	}
	assert.Equal(t, StatusPassed, res.Status)
	assert.Greater(t, res.Ability, 0.0)

	sess, err := h.store.Sessions().GetSession(ctx, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, StatusPassed, sess.Status)
	assert.Greater(t, sess.CurrentAbility, 0.0)
	assert.Equal(t, 5, sess.QuestionsAnswered)
	assert.NotNil(t, sess.StoppedAt)

	results, err := h.store.Responses().Results(ctx, created.TestID)
	require.NoError(t, err)
	assert.Len(t, results, 5)

	assert.Equal(t, []string{
		events.TypeSessionCreated,
		events.TypeAnswerSubmitted, events.TypeAnswerSubmitted, events.TypeAnswerSubmitted,
		events.TypeAnswerSubmitted, events.TypeAnswerSubmitted,
		events.TypeSessionFinished,
	}, h.events.Types())
}

func TestDoubleSubmitIsOutOfSequence(t *testing.T) {
	h := newHarness(t, mediumQuestions(5))
	ctx := context.Background()

	created, err := h.svc.CreateTest(ctx, user, TestOptions{MinQuestions: 5, MaxQuestions: 5})
	require.NoError(t, err)

	next, err := h.svc.NextQuestion(ctx, user, created.SessionID)
	require.NoError(t, err)
	ans := Answer{QuestionID: next.Question.ID, Selected: []string{correctOption(next.Question)}}

	first, err := h.svc.SubmitAnswer(ctx, user, created.SessionID, ans)
	require.NoError(t, err)

	_, err = h.svc.SubmitAnswer(ctx, user, created.SessionID, ans)
	assert.ErrorIs(t, err, ErrOutOfSequence)

	sess, err := h.store.Sessions().GetSession(ctx, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, first.Ability, sess.CurrentAbility)
	assert.Equal(t, 1, sess.QuestionsAnswered)
}

func TestConcurrentSubmitsAcceptOnlyOne(t *testing.T) {
	h := newHarness(t, mediumQuestions(5))
	ctx := context.Background()

	created, err := h.svc.CreateTest(ctx, user, TestOptions{MinQuestions: 5, MaxQuestions: 5})
	require.NoError(t, err)
	next, err := h.svc.NextQuestion(ctx, user, created.SessionID)
	require.NoError(t, err)
	ans := Answer{QuestionID: next.Question.ID, Selected: []string{correctOption(next.Question)}}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.SubmitAnswer(ctx, user, created.SessionID, ans)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, ErrOutOfSequence):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, 7, rejected)
}

func TestSubmitWithoutQuestionInFlight(t *testing.T) {
	h := newHarness(t, mediumQuestions(3))
	ctx := context.Background()
	created, err := h.svc.CreateTest(ctx, user, TestOptions{MaxQuestions: 3})
	require.NoError(t, err)

	_, err = h.svc.SubmitAnswer(ctx, user, created.SessionID, Answer{QuestionID: "q01", Selected: []string{"q01-a"}})
	assert.ErrorIs(t, err, ErrOutOfSequence)

	next, err := h.svc.NextQuestion(ctx, user, created.SessionID)
	require.NoError(t, err)
	other := "q01"
	if next.Question.ID == other {
		other = "q02"
	}
	_, err = h.svc.SubmitAnswer(ctx, user, created.SessionID, Answer{QuestionID: other, Selected: []string{other + "-a"}})
	assert.ErrorIs(t, err, ErrOutOfSequence)

	report, err := h.svc.Report(ctx, user, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Session.QuestionsAnswered)
}

func TestNextQuestionReservesInFlight(t *testing.T) {
	h := newHarness(t, mediumQuestions(5))
	ctx := context.Background()
	created, err := h.svc.CreateTest(ctx, user, TestOptions{MaxQuestions: 5})
	require.NoError(t, err)

	first, err := h.svc.NextQuestion(ctx, user, created.SessionID)
	require.NoError(t, err)
	again, err := h.svc.NextQuestion(ctx, user, created.SessionID)
	require.NoError(t, err)

	assert.Equal(t, first.Question.ID, again.Question.ID)
	assert.Equal(t, 1, again.SerialNumber)

	report, err := h.svc.Report(ctx, user, created.SessionID)
	require.NoError(t, err)
	require.Len(t, report.Selections, 1)
	sel := report.Selections[0]
	assert.Equal(t, 1, sel.Position)
	assert.Nil(t, sel.WasCorrect)
	assert.Nil(t, sel.AbilityAfter)
	assert.Equal(t, 0.0, sel.AbilityBefore)
	assert.Greater(t, sel.Information, 0.0)
}

func TestSelectionLogIsGapless(t *testing.T) {
	h := newHarness(t, mediumQuestions(6))
	ctx := context.Background()
	created, err := h.svc.CreateTest(ctx, user, TestOptions{MinQuestions: 4, MaxQuestions: 4})
	require.NoError(t, err)

	for i, correct := range []bool{true, false, true, false} {
		res := h.answerNext(t, created.SessionID, correct)
		assert.Equal(t, i+1, res.QuestionsAnswered)
	}

	report, err := h.svc.Report(ctx, user, created.SessionID)
	require.NoError(t, err)
	require.Len(t, report.Selections, 4)
	seen := map[string]bool{}
	for i, sel := range report.Selections {
		assert.Equal(t, i+1, sel.Position)
		require.NotNil(t, sel.WasCorrect)
		require.NotNil(t, sel.AbilityAfter)
		assert.False(t, seen[sel.QuestionID], "question served twice")
		seen[sel.QuestionID] = true
		if i > 0 {
			assert.Equal(t, *report.Selections[i-1].AbilityAfter, sel.AbilityBefore)
		}
	}
	assert.Equal(t, *report.Selections[3].AbilityAfter, report.Session.CurrentAbility)
}

func TestSeparationStopsEarly(t *testing.T) {
	h := newHarness(t, mediumQuestions(10))
	ctx := context.Background()
	created, err := h.svc.CreateTest(ctx, user, TestOptions{MinQuestions: 2, MaxQuestions: 10})
	require.NoError(t, err)

	res := h.answerNext(t, created.SessionID, false)
	assert.Equal(t, StatusInProgress, res.Status, "below minimum the session continues")
	res = h.answerNext(t, created.SessionID, false)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Less(t, res.Ability, -1.0)
}

func TestPoolExhaustionFinishes(t *testing.T) {
	h := newHarness(t, mediumQuestions(2))
	ctx := context.Background()
	created, err := h.svc.CreateTest(ctx, user, TestOptions{MinQuestions: 5, MaxQuestions: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, created.QuestionCount)

	h.answerNext(t, created.SessionID, true)
	h.answerNext(t, created.SessionID, true)

	next, err := h.svc.NextQuestion(ctx, user, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, StatusPassed, next.Status)
	assert.Equal(t, 2, next.QuestionsAnswered)
}

func TestAbandon(t *testing.T) {
	h := newHarness(t, mediumQuestions(3))
	ctx := context.Background()
	created, err := h.svc.CreateTest(ctx, user, TestOptions{MaxQuestions: 3})
	require.NoError(t, err)
	next, err := h.svc.NextQuestion(ctx, user, created.SessionID)
	require.NoError(t, err)

	out, err := h.svc.Abandon(ctx, user, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, StatusAbandoned, out.Status)

	_, err = h.svc.Abandon(ctx, user, created.SessionID)
	assert.ErrorIs(t, err, ErrSessionClosed)

	_, err = h.svc.SubmitAnswer(ctx, user, created.SessionID, Answer{QuestionID: next.Question.ID, Selected: []string{correctOption(next.Question)}})
	assert.ErrorIs(t, err, ErrOutOfSequence)

	again, err := h.svc.NextQuestion(ctx, user, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, StatusAbandoned, again.Status)
}

func TestOperationsRequireOwner(t *testing.T) {
	h := newHarness(t, mediumQuestions(3))
	ctx := context.Background()
	created, err := h.svc.CreateTest(ctx, user, TestOptions{MaxQuestions: 3})
	require.NoError(t, err)

	_, err = h.svc.NextQuestion(ctx, "intruder", created.SessionID)
	assert.ErrorIs(t, err, ErrUnauthorizedSession)
	_, err = h.svc.SubmitAnswer(ctx, "intruder", created.SessionID, Answer{QuestionID: "q01"})
	assert.ErrorIs(t, err, ErrUnauthorizedSession)
	_, err = h.svc.Abandon(ctx, "intruder", created.SessionID)
	assert.ErrorIs(t, err, ErrUnauthorizedSession)
	_, err = h.svc.Report(ctx, "intruder", created.SessionID)
	assert.ErrorIs(t, err, ErrUnauthorizedSession)

	report, err := h.svc.Report(ctx, user, created.SessionID)
	require.NoError(t, err)
	assert.Empty(t, report.Selections, "rejected calls must not select items")
}

func TestUnknownSession(t *testing.T) {
	h := newHarness(t, mediumQuestions(1))
	_, err := h.svc.NextQuestion(context.Background(), user, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSATAPartialCreditFlowsThrough(t *testing.T) {
	q := bank.Question{
		ID: "sata", Text: "Pick primes", Format: bank.FormatSATA, PartialScoring: true, Difficulty: bank.DifficultyMedium,
		Options: []bank.Option{
			{ID: "two", Text: "2", IsCorrect: true, PartialCredit: 1},
			{ID: "three", Text: "3", IsCorrect: true, PartialCredit: 1},
			{ID: "four", Text: "4", PenaltyValue: 0.5},
		},
	}
	h := newHarness(t, []bank.Question{q})
	ctx := context.Background()
	created, err := h.svc.CreateTest(ctx, user, TestOptions{MaxQuestions: 1})
	require.NoError(t, err)
	_, err = h.svc.NextQuestion(ctx, user, created.SessionID)
	require.NoError(t, err)

	res, err := h.svc.SubmitAnswer(ctx, user, created.SessionID, Answer{QuestionID: "sata", Selected: []string{"two", "three"}})
	require.NoError(t, err)
	assert.True(t, res.IsCorrect)
	assert.Equal(t, 2.0, res.Score)
	assert.Equal(t, 2.0, res.MaxScore)

	statuses, err := h.store.Responses().QuestionStatuses(ctx, user, []string{"sata"})
	require.NoError(t, err)
	assert.True(t, statuses["sata"].LastCorrect)
}

func TestBuildPoolTiers(t *testing.T) {
	history := map[string]store.QuestionStatus{
		"right": {Attempts: 2, LastCorrect: true},
		"wrong": {Attempts: 1, LastCorrect: false},
	}
	pool := buildPool([]string{"right", "wrong", "new1", "new2"}, history, rand.New(rand.NewPCG(1, 1)))
	require.Len(t, pool, 4)
	assert.ElementsMatch(t, []string{"new1", "new2"}, pool[:2])
	assert.Equal(t, []string{"wrong", "right"}, pool[2:])
}

func TestResolveOptionsDefaults(t *testing.T) {
	s := NewService(Deps{}, DefaultConfig())

	minQ, maxQ, standard, err := s.resolveOptions(TestOptions{})
	require.NoError(t, err)
	assert.Equal(t, 75, minQ)
	assert.Equal(t, 145, maxQ)
	assert.Equal(t, 0.0, standard)

	minQ, maxQ, _, err = s.resolveOptions(TestOptions{MaxQuestions: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, minQ, "default minimum is clamped to an explicit maximum")
	assert.Equal(t, 10, maxQ)
}
