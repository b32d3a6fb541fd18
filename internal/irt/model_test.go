package irt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbability_Bounds(t *testing.T) {
	items := []Params{
		{A: 1.0, B: 0.0, C: 0.2},
		{A: 0.5, B: -2.0, C: 0.0},
		{A: 3.0, B: 3.5, C: 0.99},
		{A: 50, B: 0, C: 0.25},
	}
	for _, it := range items {
		for theta := -10.0; theta <= 10.0; theta += 0.25 {
			p := Probability(theta, it)
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
		}
	}
}

func TestProbability_MonotonicInTheta(t *testing.T) {
	it := Params{A: 1.2, B: 0.5, C: 0.2}
	prev := Probability(-6, it)
	for theta := -5.9; theta <= 6.0; theta += 0.1 {
		p := Probability(theta, it)
		require.GreaterOrEqual(t, p, prev, "theta=%.1f", theta)
		prev = p
	}
}

func TestProbability_AtDifficulty(t *testing.T) {
	it := Params{A: 1.0, B: 1.0, C: 0.2}
	assert.InDelta(t, 0.6, Probability(1.0, it), 1e-12)

	it.C = 0
	assert.InDelta(t, 0.5, Probability(1.0, it), 1e-12)
}

func TestProbability_ClampsLogit(t *testing.T) {
	it := Params{A: 100, B: 0, C: 0}
	// z = 1e4 is clamped to 35, so exp does not overflow and the result
	// equals the value at the clamp boundary.
	assert.Equal(t, Probability(0.35, it), Probability(100, it))
	assert.False(t, math.IsNaN(Probability(-1e6, it)))
}

func TestProbability_Reproducible(t *testing.T) {
	it := Params{A: 0.93, B: -0.41, C: 0.217}
	assert.Equal(t, Probability(0.123456789, it), Probability(0.123456789, it))
	assert.Equal(t, Information(0.123456789, it), Information(0.123456789, it))
}

func TestInformation_PeaksAtDifficulty(t *testing.T) {
	tests := []struct {
		name  string
		item  Params
		delta float64
	}{
		{"2PL", Params{A: 1.0, B: 0.5, C: 0}, 0.05},
		{"3PL", Params{A: 1.0, B: -1.0, C: 0.2}, 0.5},
		{"steep 3PL", Params{A: 2.0, B: 1.0, C: 0.25}, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			best, bestTheta := -1.0, 0.0
			for theta := -4.0; theta <= 4.0; theta += 0.01 {
				if info := Information(theta, tt.item); info > best {
					best, bestTheta = info, theta
				}
			}
			assert.InDelta(t, tt.item.B, bestTheta, tt.delta)
		})
	}
}

func TestInformation_FallbackWithoutGuessing(t *testing.T) {
	it := Params{A: 1.5, B: 0, C: 0}
	p := Probability(0, it)
	assert.InDelta(t, 1.5*1.5*p*(1-p), Information(0, it), 1e-12)
}

func TestInformation_ThreePLFormula(t *testing.T) {
	it := Params{A: 1.1, B: 0.3, C: 0.2}
	theta := 0.7
	p := Probability(theta, it)
	r := (p - it.C) / (1 - it.C)
	want := it.A * it.A * r * r * (1 - p) / p
	assert.InDelta(t, want, Information(theta, it), 1e-12)
}

func TestInformation_ThreePLPeakLocation(t *testing.T) {
	// Closed-form maximiser: b + ln((1+√(1+8c))/2)/a.
	it := Params{A: 1.0, B: 0.0, C: 0.2}
	peak := it.B + math.Log((1+math.Sqrt(1+8*it.C))/2)/it.A
	assert.Greater(t, Information(peak, it), Information(peak-0.05, it))
	assert.Greater(t, Information(peak, it), Information(peak+0.05, it))
}

func TestInformation_ModerateItemBeatsEasyAndHard(t *testing.T) {
	easy := Params{A: 1, B: -3, C: 0.2}
	medium := Params{A: 1, B: 0, C: 0.2}
	hard := Params{A: 1, B: 3, C: 0.2}

	assert.Greater(t, Information(0, medium), Information(0, easy))
	assert.Greater(t, Information(0, medium), Information(0, hard))
	// Bounded above by the 2PL value at the same slope.
	for theta := -4.0; theta <= 4.0; theta += 0.5 {
		assert.LessOrEqual(t, Information(theta, medium), 0.25+1e-12)
	}
}

func TestInformation_NonNegative(t *testing.T) {
	it := Params{A: 1, B: 0, C: 0.2}
	for theta := -40.0; theta <= 40.0; theta += 2 {
		info := Information(theta, it)
		assert.GreaterOrEqual(t, info, 0.0)
		assert.False(t, math.IsNaN(info))
	}
}

func TestStandardErrorAndReliability(t *testing.T) {
	assert.True(t, math.IsInf(StandardError(0), 1))
	assert.InDelta(t, 0.5, StandardError(4), 1e-12)

	assert.Equal(t, 0.0, Reliability(0))
	assert.Equal(t, 0.0, Reliability(0.5))
	assert.InDelta(t, 0.75, Reliability(4), 1e-12)
}

func TestTestInformation_Sums(t *testing.T) {
	items := []Params{{A: 1, B: 0, C: 0.2}, {A: 0.8, B: 1, C: 0.25}}
	want := Information(0.2, items[0]) + Information(0.2, items[1])
	assert.InDelta(t, want, TestInformation(0.2, items), 1e-12)
	assert.Equal(t, 0.0, TestInformation(0.2, nil))
}
