package irt

import "math"

// maxLogit bounds a*(theta-b) before exponentiation.
const maxLogit = 35.0

// Params holds the three-parameter logistic (3PL) item parameters.
type Params struct {
	A float64 // discrimination, > 0
	B float64 // difficulty, logit scale
	C float64 // pseudo-guessing, in [0, 1)
}

// Probability returns the 3PL probability of a correct response at ability theta.
func Probability(theta float64, p Params) float64 {
	z := p.A * (theta - p.B)
	if z > maxLogit {
		z = maxLogit
	} else if z < -maxLogit {
		z = -maxLogit
	}
	return p.C + (1-p.C)/(1+math.Exp(-z))
}

// Information returns the 3PL Fisher information of an item at ability
// theta: a² · ((p-c)/(1-c))² · (1-p)/p. It peaks slightly above b.
// Degenerate guessing or saturated probabilities fall back to the 2PL form.
func Information(theta float64, p Params) float64 {
	prob := Probability(theta, p)
	if p.C > 0 && p.C < 1 && prob > p.C && prob < 1 {
		r := (prob - p.C) / (1 - p.C)
		return p.A * p.A * r * r * (1 - prob) / prob
	}
	return p.A * p.A * prob * (1 - prob)
}

// TestInformation sums item information over params at theta.
func TestInformation(theta float64, items []Params) float64 {
	var total float64
	for _, it := range items {
		total += Information(theta, it)
	}
	return total
}

// StandardError is the asymptotic standard error of theta given total
// test information. It is +Inf when no information has been collected.
func StandardError(totalInfo float64) float64 {
	if totalInfo <= 0 {
		return math.Inf(1)
	}
	return 1 / math.Sqrt(totalInfo)
}

// Reliability maps total information to max(0, 1 - SE²).
func Reliability(totalInfo float64) float64 {
	if totalInfo <= 0 {
		return 0
	}
	r := 1 - 1/totalInfo
	if r < 0 {
		return 0
	}
	return r
}
