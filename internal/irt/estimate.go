package irt

import "math"

// Estimator defaults.
const (
	DefaultMaxIterations = 50
	DefaultTolerance     = 0.001
	DefaultMinTheta      = -4.0
	DefaultMaxTheta      = 4.0
	DefaultFallbackStep  = 0.1
	probFloor            = 0.001
	probCeil             = 0.999
)

// Method selects the update rule used by the estimator.
type Method string

const (
	// MethodNewton uses the log-likelihood score terms a(1-p)/p and
	// -a*p/(1-p) against the curvature -a²p(1-p).
	MethodNewton Method = "newton"

	// MethodFisher uses the exact 3PL score against total Fisher information.
	// It converges on mixed histories where MethodNewton can oscillate.
	MethodFisher Method = "fisher"
)

// Response is one answered item in a session history.
type Response struct {
	Params
	Correct bool
}

// EstimatorConfig tunes the Newton-Raphson ability estimator.
type EstimatorConfig struct {
	Method        Method
	MaxIterations int
	Tolerance     float64
	MinTheta      float64
	MaxTheta      float64
	FallbackStep  float64
}

// DefaultEstimatorConfig returns the standard estimator settings.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		Method:        MethodNewton,
		MaxIterations: DefaultMaxIterations,
		Tolerance:     DefaultTolerance,
		MinTheta:      DefaultMinTheta,
		MaxTheta:      DefaultMaxTheta,
		FallbackStep:  DefaultFallbackStep,
	}
}

// Estimate is the outcome of one maximum-likelihood run.
type Estimate struct {
	Theta      float64
	Iterations int
	Converged  bool
}

// EstimateAbility runs the estimator with default settings.
func EstimateAbility(prior float64, history []Response) Estimate {
	return DefaultEstimatorConfig().Estimate(prior, history)
}

// Estimate computes the maximum-likelihood ability over the full history,
// starting the iteration at prior. An empty history returns prior unchanged.
func (cfg EstimatorConfig) Estimate(prior float64, history []Response) Estimate {
	if len(history) == 0 {
		return Estimate{Theta: prior, Converged: true}
	}

	theta := cfg.clamp(prior)
	for i := 1; i <= cfg.MaxIterations; i++ {
		var d1, d2 float64
		if cfg.Method == MethodFisher {
			d1, d2 = scoring(theta, history)
		} else {
			d1, d2 = derivatives(theta, history)
		}

		var next float64
		if d2 != 0 {
			next = theta - d1/d2
		} else {
			next = theta + math.Copysign(cfg.FallbackStep, d1)
		}
		next = cfg.clamp(next)

		if math.Abs(next-theta) <= cfg.Tolerance {
			return Estimate{Theta: next, Iterations: i, Converged: true}
		}
		theta = next
	}
	return Estimate{Theta: theta, Iterations: cfg.MaxIterations}
}

// derivatives returns the first and second derivative of the log-likelihood.
func derivatives(theta float64, history []Response) (d1, d2 float64) {
	for _, r := range history {
		p := Probability(theta, r.Params)
		if p < probFloor {
			p = probFloor
		} else if p > probCeil {
			p = probCeil
		}
		if r.Correct {
			d1 += r.A * (1 - p) / p
		} else {
			d1 -= r.A * p / (1 - p)
		}
		d2 -= r.A * r.A * p * (1 - p)
	}
	return d1, d2
}

func (cfg EstimatorConfig) clamp(theta float64) float64 {
	if theta < cfg.MinTheta {
		return cfg.MinTheta
	}
	if theta > cfg.MaxTheta {
		return cfg.MaxTheta
	}
	return theta
}

// scoring returns the exact 3PL score and the negated test information,
// so the Newton update becomes a Fisher-scoring step.
func scoring(theta float64, history []Response) (score, negInfo float64) {
	for _, r := range history {
		p := Probability(theta, r.Params)
		if p < probFloor {
			p = probFloor
		} else if p > probCeil {
			p = probCeil
		}
		u := 0.0
		if r.Correct {
			u = 1
		}
		score += r.A * (u - p) * (p - r.C) / (p * (1 - r.C))
		negInfo -= Information(theta, r.Params)
	}
	return score, negInfo
}
