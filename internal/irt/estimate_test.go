package irt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mediumItem() Params { return Params{A: 1.0, B: 0.0, C: 0.2} }

func TestEstimate_EmptyHistoryReturnsPrior(t *testing.T) {
	est := EstimateAbility(0.75, nil)
	assert.Equal(t, 0.75, est.Theta)
	assert.Equal(t, 0, est.Iterations)
}

func TestEstimate_Idempotent(t *testing.T) {
	history := []Response{
		{Params: Params{A: 1.0, B: -1.0, C: 0.2}, Correct: true},
		{Params: Params{A: 0.9, B: 0.0, C: 0.22}, Correct: true},
		{Params: Params{A: 1.1, B: 1.0, C: 0.25}, Correct: false},
		{Params: Params{A: 1.2, B: 0.5, C: 0.2}, Correct: false},
		{Params: Params{A: 0.8, B: -0.5, C: 0.21}, Correct: true},
	}
	first := EstimateAbility(0, history)
	second := EstimateAbility(0, history)
	assert.InDelta(t, first.Theta, second.Theta, 1e-6)
	assert.True(t, first.Converged)
	assert.Greater(t, first.Theta, -4.0)
	assert.Less(t, first.Theta, 4.0)
}

func TestEstimate_OrderDoesNotChangeResult(t *testing.T) {
	a := []Response{
		{Params: Params{A: 1.0, B: -1.0, C: 0.2}, Correct: true},
		{Params: Params{A: 1.1, B: 1.0, C: 0.25}, Correct: false},
		{Params: Params{A: 0.9, B: 0.2, C: 0.2}, Correct: true},
	}
	b := []Response{a[2], a[0], a[1]}
	assert.InDelta(t, EstimateAbility(0, a).Theta, EstimateAbility(0, b).Theta, 1e-9)
}

func TestEstimate_AllCorrectClimbsToUpperBound(t *testing.T) {
	var history []Response
	theta := 0.0
	for i := 0; i < 10; i++ {
		history = append(history, Response{Params: mediumItem(), Correct: true})
		est := EstimateAbility(theta, history)
		require.GreaterOrEqual(t, est.Theta, theta, "answer %d", i+1)
		theta = est.Theta
	}
	assert.Equal(t, DefaultMaxTheta, theta)
}

func TestEstimate_AllIncorrectFallsToLowerBound(t *testing.T) {
	var history []Response
	theta := 0.0
	for i := 0; i < 10; i++ {
		history = append(history, Response{Params: mediumItem(), Correct: false})
		est := EstimateAbility(theta, history)
		require.LessOrEqual(t, est.Theta, theta, "answer %d", i+1)
		theta = est.Theta
	}
	assert.Equal(t, DefaultMinTheta, theta)
}

func TestEstimate_ClampsPrior(t *testing.T) {
	history := []Response{{Params: mediumItem(), Correct: true}}
	est := EstimateAbility(12, history)
	assert.LessOrEqual(t, est.Theta, DefaultMaxTheta)
}

func TestEstimate_ZeroSecondDerivativeNudges(t *testing.T) {
	// A zero discrimination makes L'' zero; the estimator must step by the
	// fallback amount instead of dividing by zero.
	history := []Response{{Params: Params{A: 0, B: 0, C: 0.2}, Correct: true}}
	cfg := DefaultEstimatorConfig()
	cfg.MaxIterations = 1
	est := cfg.Estimate(0, history)
	// L' is also zero here, so the step is +FallbackStep.
	assert.InDelta(t, cfg.FallbackStep, est.Theta, 1e-12)
}

func TestEstimate_StopsAtIterationCap(t *testing.T) {
	history := []Response{
		{Params: mediumItem(), Correct: true},
		{Params: mediumItem(), Correct: false},
	}
	cfg := DefaultEstimatorConfig()
	cfg.MaxIterations = 1
	cfg.Tolerance = 0
	est := cfg.Estimate(2.0, history)
	assert.Equal(t, 1, est.Iterations)
	assert.False(t, est.Converged)
}

func TestEstimate_FisherBalancedHistoryNearDifficulty(t *testing.T) {
	// Equal correct/incorrect on 2PL items centred at 0 puts the MLE at 0.
	it := Params{A: 1, B: 0, C: 0}
	history := []Response{
		{Params: it, Correct: true},
		{Params: it, Correct: false},
		{Params: it, Correct: true},
		{Params: it, Correct: false},
	}
	cfg := DefaultEstimatorConfig()
	cfg.Method = MethodFisher
	est := cfg.Estimate(1.5, history)
	assert.True(t, est.Converged)
	assert.InDelta(t, 0.0, est.Theta, 0.01)
}

func TestEstimate_NewtonOscillatesToClampOnMixedHistory(t *testing.T) {
	// One right and one wrong answer on a guessable item: the observed-curvature
	// step overshoots and the iterate bounces between the bounds.
	it := Params{A: 1, B: 0, C: 0.2}
	history := []Response{
		{Params: it, Correct: true},
		{Params: it, Correct: false},
	}
	est := EstimateAbility(0, history)
	assert.False(t, est.Converged)
	assert.Equal(t, DefaultMaxIterations, est.Iterations)
	assert.Contains(t, []float64{DefaultMinTheta, DefaultMaxTheta}, est.Theta)

	cfg := DefaultEstimatorConfig()
	cfg.Method = MethodFisher
	fisher := cfg.Estimate(0, history)
	assert.True(t, fisher.Converged)
	assert.Less(t, math.Abs(fisher.Theta), 1.0)
}

func TestEstimate_FisherMixedHistory(t *testing.T) {
	history := []Response{
		{Params: Params{A: 1.0, B: -1.0, C: 0.2}, Correct: true},
		{Params: Params{A: 0.9, B: 0.0, C: 0.22}, Correct: true},
		{Params: Params{A: 1.1, B: 1.0, C: 0.25}, Correct: false},
		{Params: Params{A: 1.2, B: 0.5, C: 0.2}, Correct: false},
		{Params: Params{A: 0.8, B: -0.5, C: 0.21}, Correct: true},
	}
	cfg := DefaultEstimatorConfig()
	cfg.Method = MethodFisher
	est := cfg.Estimate(0, history)
	assert.True(t, est.Converged)
	assert.InDelta(t, 0.012, est.Theta, 0.01)
}
