// Package scoring grades a single response against a question's options.
package scoring

import (
	"math"

	"github.com/abhisek/catengine/internal/bank"
)

// scoreEpsilon absorbs float rounding when comparing a summed score to its max.
const scoreEpsilon = 1e-9

// Result is the outcome of scoring one response.
type Result struct {
	IsCorrect bool    `json:"is_correct"`
	Score     float64 `json:"score"`
	MaxScore  float64 `json:"max_score"`
}

// Strategy scores a response for one family of question formats.
type Strategy interface {
	Score(q *bank.Question, selected []string) Result
}

// Engine routes a question to the strategy for its format.
type Engine struct {
	single  Strategy
	partial Strategy
	exact   Strategy
}

// NewEngine returns an engine with the built-in strategies.
func NewEngine() *Engine {
	return &Engine{
		single:  singleBest{},
		partial: partialCredit{},
		exact:   exactSet{},
	}
}

// Score grades selected option ids against q.
func (e *Engine) Score(q *bank.Question, selected []string) Result {
	switch {
	case q.Format.IsMultiSelect() && q.PartialScoring:
		return e.partial.Score(q, selected)
	case q.Format.IsMultiSelect():
		return e.exact.Score(q, selected)
	default:
		return e.single.Score(q, selected)
	}
}

// Score grades with the default engine.
func Score(q *bank.Question, selected []string) Result {
	return NewEngine().Score(q, selected)
}

type singleBest struct{}

func (singleBest) Score(q *bank.Question, selected []string) Result {
	res := Result{MaxScore: 1}
	chosen := toSet(selected)
	if len(chosen) != 1 {
		return res
	}
	for _, o := range q.Options {
		if o.IsCorrect && chosen[o.ID] {
			res.Score = 1
			res.IsCorrect = true
			break
		}
	}
	return res
}

type partialCredit struct{}

func (partialCredit) Score(q *bank.Question, selected []string) Result {
	chosen := toSet(selected)
	var score, maxScore float64
	for _, o := range q.Options {
		picked := chosen[o.ID]
		switch {
		case o.IsCorrect && picked:
			score += o.PartialCredit
		case o.IsCorrect:
			score -= o.PartialCredit
		case picked:
			score -= o.PenaltyValue
		}
		if o.IsCorrect {
			maxScore++
		}
	}
	if score < 0 {
		score = 0
	}
	return Result{
		IsCorrect: maxScore > 0 && math.Abs(score-maxScore) < scoreEpsilon,
		Score:     score,
		MaxScore:  maxScore,
	}
}

type exactSet struct{}

func (exactSet) Score(q *bank.Question, selected []string) Result {
	res := Result{MaxScore: 1}
	chosen := toSet(selected)
	correct := make(map[string]bool)
	for _, o := range q.Options {
		if o.IsCorrect {
			correct[o.ID] = true
		}
	}
	if len(correct) == 0 || !setEqual(correct, chosen) {
		return res
	}
	res.Score = 1
	res.IsCorrect = true
	return res
}

func toSet(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func setEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
