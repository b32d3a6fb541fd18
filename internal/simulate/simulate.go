// Package simulate runs synthetic examinees with known ability through
// the adaptive engine to check classification accuracy and estimate
// recovery.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"

	"github.com/abhisek/catengine/internal/bank"
	"github.com/abhisek/catengine/internal/cat"
	"github.com/abhisek/catengine/internal/irt"
	"github.com/abhisek/catengine/internal/logger"
	"github.com/abhisek/catengine/internal/store"
)

// ParamReader looks up calibrated item parameters.
type ParamReader interface {
	GetParams(ctx context.Context, ids []string) (map[string]store.ItemParams, error)
}

// Config controls a simulation run. True abilities are drawn from
// N(ThetaMean, ThetaSD) with a PCG source derived from Seed.
type Config struct {
	Examinees   int
	Concurrency int
	ThetaMean   float64
	ThetaSD     float64
	Seed        uint64
	Test        cat.TestOptions
}

// DefaultConfig returns 100 examinees from N(0, 1), eight at a time.
func DefaultConfig() Config {
	return Config{Examinees: 100, Concurrency: 8, ThetaSD: 1.0, Seed: 1}
}

// Outcome is one examinee's run.
type Outcome struct {
	UserID    string     `json:"user_id"`
	SessionID string     `json:"session_id"`
	TrueTheta float64    `json:"true_theta"`
	Estimate  float64    `json:"estimate"`
	Status    cat.Status `json:"status"`
	Questions int        `json:"questions"`
}

// Report aggregates the outcomes of a run.
type Report struct {
	Outcomes         []Outcome `json:"outcomes"`
	PassRate         float64   `json:"pass_rate"`
	MeanAbsError     float64   `json:"mean_abs_error"`
	MeanLength       float64   `json:"mean_length"`
	DecisionAccuracy float64   `json:"decision_accuracy"`
}

// Runner drives synthetic examinees through a cat.Service.
type Runner struct {
	svc    *cat.Service
	params ParamReader
	log    *logger.Logger
}

// NewRunner creates a Runner. A nil log discards output.
func NewRunner(svc *cat.Service, params ParamReader, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{svc: svc, params: params, log: log}
}

// Run simulates cfg.Examinees sessions, at most cfg.Concurrency at a time.
// standard is the passing standard in effect, used to score decisions.
func (r *Runner) Run(ctx context.Context, cfg Config, standard float64) (*Report, error) {
	if cfg.Examinees < 1 {
		return nil, errors.New("examinees must be positive")
	}
	opts := cfg.Test
	if opts.PassingStandard == nil {
		opts.PassingStandard = &standard
	}

	outcomes := make([]Outcome, cfg.Examinees)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Concurrency, 1))
	for i := range outcomes {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(cfg.Seed, uint64(i)))
			theta := cfg.ThetaMean + cfg.ThetaSD*rng.NormFloat64()
			out, err := r.examinee(gctx, fmt.Sprintf("sim-%04d", i+1), theta, opts, rng)
			if err != nil {
				return fmt.Errorf("examinee %d: %w", i+1, err)
			}
			outcomes[i] = *out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rep := summarize(outcomes, *opts.PassingStandard)
	r.log.Info("simulation finished", "examinees", len(outcomes), "pass_rate", rep.PassRate,
		"mean_abs_error", rep.MeanAbsError, "mean_length", rep.MeanLength)
	return rep, nil
}

func (r *Runner) examinee(ctx context.Context, userID string, theta float64, opts cat.TestOptions, rng *rand.Rand) (*Outcome, error) {
	created, err := r.svc.CreateTest(ctx, userID, opts)
	if err != nil {
		return nil, err
	}

	for {
		next, err := r.svc.NextQuestion(ctx, userID, created.SessionID)
		if err != nil {
			return nil, err
		}
		if next.Finished() {
			return &Outcome{
				UserID:    userID,
				SessionID: created.SessionID,
				TrueTheta: theta,
				Estimate:  next.Ability,
				Status:    next.Status,
				Questions: next.QuestionsAnswered,
			}, nil
		}

		q := next.Question
		ps, err := r.params.GetParams(ctx, []string{q.ID})
		if err != nil {
			return nil, err
		}
		p, ok := ps[q.ID]
		if !ok {
			return nil, fmt.Errorf("no parameters for %s", q.ID)
		}

		correct := rng.Float64() < irt.Probability(theta, irt.Params{A: p.Discrimination, B: p.Difficulty, C: p.Guessing})
		ans := cat.Answer{QuestionID: q.ID, Selected: Respond(q, correct)}
		if _, err := r.svc.SubmitAnswer(ctx, userID, created.SessionID, ans); err != nil {
			return nil, err
		}
	}
}

// Respond picks the options an examinee selects: every correct option
// when answering correctly, otherwise the first incorrect one.
func Respond(q *bank.Question, correct bool) []string {
	var out []string
	for _, o := range q.Options {
		if o.IsCorrect == correct {
			out = append(out, o.ID)
			if !correct {
				break
			}
		}
	}
	return out
}

func summarize(outcomes []Outcome, standard float64) *Report {
	rep := &Report{Outcomes: outcomes}
	var passed, decided, agree int
	var absErr, length float64
	for _, o := range outcomes {
		absErr += math.Abs(o.Estimate - o.TrueTheta)
		length += float64(o.Questions)
		switch o.Status {
		case cat.StatusPassed:
			passed++
			decided++
			if o.TrueTheta > standard {
				agree++
			}
		case cat.StatusFailed:
			decided++
			if o.TrueTheta <= standard {
				agree++
			}
		}
	}

	n := float64(len(outcomes))
	rep.PassRate = float64(passed) / n
	rep.MeanAbsError = absErr / n
	rep.MeanLength = length / n
	if decided > 0 {
		rep.DecisionAccuracy = float64(agree) / float64(decided)
	}
	return rep
}

// SyntheticBank generates n single-answer questions spread evenly over
// the three difficulty labels, for trying the engine without real content.
func SyntheticBank(n int, topics []string) []bank.Question {
	labels := []bank.Difficulty{bank.DifficultyEasy, bank.DifficultyMedium, bank.DifficultyHard}
	if len(topics) == 0 {
		topics = []string{"general"}
	}

	qs := make([]bank.Question, n)
	for i := range qs {
		id := fmt.Sprintf("syn-%04d", i+1)
		qs[i] = bank.Question{
			ID:         id,
			Text:       fmt.Sprintf("Synthetic item %d", i+1),
			Format:     bank.FormatMultipleChoice,
			Topic:      topics[i%len(topics)],
			Difficulty: labels[i%len(labels)],
			Options: []bank.Option{
				{Text: "Right", IsCorrect: true},
				{Text: "Wrong A"},
				{Text: "Wrong B"},
				{Text: "Wrong C"},
			},
		}
		bank.Normalize(&qs[i])
	}
	return qs
}
